// Package workflow implements the review dialog that records whether an
// elapsed appointment took place.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/prenatal/agenda/internal/domain/appointment"
)

var (
	ErrInvalidTransition = errors.New("workflow: invalid transition")
	ErrReasonRequired    = errors.New("workflow: reason is required")
)

type State int

const (
	Closed State = iota
	AwaitingDecision
	AwaitingReason
	Submitting
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case AwaitingDecision:
		return "awaiting_decision"
	case AwaitingReason:
		return "awaiting_reason"
	case Submitting:
		return "submitting"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Updater sends the partial update for the appointment under review.
type Updater interface {
	UpdateAppointment(ctx context.Context, id string, u appointment.Update) error
}

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notifier shows transient user-visible messages (toasts).
type Notifier interface {
	Notify(level Level, msg string)
}

// Hooks are the typed callbacks the view layer registers. Both are optional.
type Hooks struct {
	// OnChange receives every state change, for rendering.
	OnChange func(Snapshot)
	// OnResolved runs after the server accepted an outcome. The view layer
	// re-fetches here.
	OnResolved func(ctx context.Context, a appointment.Appointment, outcome appointment.Status)
}

// Snapshot is a copy of the controller state.
type Snapshot struct {
	State   State
	Subject *appointment.Appointment
	// ReasonDraft is the text kept in the reason input.
	ReasonDraft string
	// Message is the inline validation or failure message, if any.
	Message string
}

const (
	msgReasonRequired = "Please describe why the appointment was not performed."
	msgDone           = "Appointment marked as done."
	msgMissed         = "Appointment marked as not performed."
)

// Controller holds at most one appointment under review. Opening another
// appointment replaces the current one without confirmation, even while a
// submission is in flight; that late result is reported but never touches
// the new subject.
type Controller struct {
	mu      sync.Mutex
	state   State
	subject *appointment.Appointment
	draft   string
	message string
	// gen changes whenever the subject is replaced or discarded.
	gen uint64

	updater  Updater
	notifier Notifier
	hooks    Hooks
	logger   zerolog.Logger
}

type Option func(*Controller)

func WithNotifier(n Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

func WithHooks(h Hooks) Option {
	return func(c *Controller) { c.hooks = h }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

func New(updater Updater, opts ...Option) *Controller {
	c := &Controller{updater: updater, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetHooks replaces the hooks. The view synchronizer registers itself here
// after both components exist.
func (c *Controller) SetHooks(h Hooks) {
	c.mu.Lock()
	c.hooks = h
	c.mu.Unlock()
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{State: c.state, ReasonDraft: c.draft, Message: c.message}
	if c.subject != nil {
		cp := *c.subject
		s.Subject = &cp
	}
	return s
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// publish must be called without holding mu.
func publish(s Snapshot, onChange func(Snapshot)) {
	if onChange != nil {
		onChange(s)
	}
}

func (c *Controller) notify(level Level, msg string) {
	if c.notifier != nil {
		c.notifier.Notify(level, msg)
	}
}

// transition applies fn under the lock when the current state is from, then
// publishes the result.
func (c *Controller) transition(from State, fn func()) error {
	c.mu.Lock()
	if c.state != from {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: expected %s, in %s", ErrInvalidTransition, from, state)
	}
	fn()
	s, onChange := c.snapshotLocked(), c.hooks.OnChange
	c.mu.Unlock()
	publish(s, onChange)
	return nil
}

// Open loads a under review and asks whether it was attended. Any previous
// subject is discarded.
func (c *Controller) Open(a appointment.Appointment) {
	c.mu.Lock()
	if c.subject != nil && c.state != Closed && c.subject.ID != a.ID {
		c.logger.Debug().Str("previous", c.subject.ID).Str("appointment_id", a.ID).Msg("review preempted")
	}
	c.gen++
	c.state = AwaitingDecision
	c.subject = &a
	c.draft = ""
	c.message = ""
	s, onChange := c.snapshotLocked(), c.hooks.OnChange
	c.mu.Unlock()
	publish(s, onChange)
}

// ConfirmYes records the appointment as done.
func (c *Controller) ConfirmYes(ctx context.Context) error {
	done := appointment.StatusDone
	return c.submit(ctx, AwaitingDecision, func(appointment.Appointment) appointment.Update {
		return appointment.Update{Status: &done}
	}, msgDone, "")
}

// ConfirmNo asks for the reason the appointment did not happen.
func (c *Controller) ConfirmNo() error {
	return c.transition(AwaitingDecision, func() {
		c.state = AwaitingReason
		c.message = ""
	})
}

// CancelReason returns to the yes/no question and clears the draft.
func (c *Controller) CancelReason() error {
	return c.transition(AwaitingReason, func() {
		c.state = AwaitingDecision
		c.draft = ""
		c.message = ""
	})
}

// SetReasonDraft stores text typed into the reason input.
func (c *Controller) SetReasonDraft(text string) error {
	return c.transition(AwaitingReason, func() { c.draft = text })
}

// SubmitReason records the appointment as missed, appending the reason to
// its notes. Blank reasons are rejected without contacting the server.
func (c *Controller) SubmitReason(ctx context.Context, text string) error {
	reason := strings.TrimSpace(text)
	if reason == "" {
		err := c.transition(AwaitingReason, func() {
			c.draft = text
			c.message = msgReasonRequired
		})
		if err != nil {
			return err
		}
		return ErrReasonRequired
	}
	missed := appointment.StatusMissed
	return c.submit(ctx, AwaitingReason, func(a appointment.Appointment) appointment.Update {
		notes := appointment.AppendReason(a.Notes, reason)
		return appointment.Update{Status: &missed, Notes: &notes, NotPerformedReason: &reason}
	}, msgMissed, text)
}

func (c *Controller) submit(ctx context.Context, from State, build func(appointment.Appointment) appointment.Update, okMsg, draft string) error {
	c.mu.Lock()
	if c.state != from {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: expected %s, in %s", ErrInvalidTransition, from, state)
	}
	subject := *c.subject
	gen := c.gen
	c.draft = draft
	c.state = Submitting
	c.message = ""
	update := build(subject)
	s, onChange := c.snapshotLocked(), c.hooks.OnChange
	c.mu.Unlock()
	publish(s, onChange)

	err := c.updater.UpdateAppointment(ctx, subject.ID, update)

	c.mu.Lock()
	current := c.gen == gen
	hooks := c.hooks
	if current {
		if err != nil {
			c.state = from
			c.message = failureMessage(err)
		} else {
			c.state = Closed
			c.subject = nil
			c.draft = ""
			c.message = ""
		}
	}
	s = c.snapshotLocked()
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn().Err(err).Str("appointment_id", subject.ID).Bool("preempted", !current).Msg("appointment review failed")
		c.notify(LevelError, failureMessage(err))
		if current {
			publish(s, hooks.OnChange)
		}
		return err
	}

	c.logger.Info().Str("appointment_id", subject.ID).Str("status", update.Status.Wire()).Msg("appointment reviewed")
	c.notify(LevelSuccess, okMsg)
	if current {
		publish(s, hooks.OnChange)
	}
	if hooks.OnResolved != nil {
		hooks.OnResolved(ctx, subject, *update.Status)
	}
	return nil
}

func failureMessage(err error) string {
	return "Could not update the appointment: " + err.Error()
}

// Close discards whatever is under review. Escape and ClickOutside are the
// same event from other inputs.
func (c *Controller) Close() {
	c.mu.Lock()
	c.gen++
	c.state = Closed
	c.subject = nil
	c.draft = ""
	c.message = ""
	s, onChange := c.snapshotLocked(), c.hooks.OnChange
	c.mu.Unlock()
	publish(s, onChange)
}

func (c *Controller) Escape()       { c.Close() }
func (c *Controller) ClickOutside() { c.Close() }
