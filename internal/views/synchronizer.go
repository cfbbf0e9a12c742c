package views

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/prenatal/agenda/internal/domain/appointment"
	"github.com/prenatal/agenda/internal/workflow"
)

// DefaultAutoSurfaceDelay is how long an expanded calendar day waits before
// opening the review for its earliest pending appointment.
const DefaultAutoSurfaceDelay = 500 * time.Millisecond

// listState is the cache of the agenda or history view. It is replaced
// wholesale on every fetch.
type listState struct {
	items  []appointment.Appointment
	err    error
	seq    uint64
	filter HistoryFilter
}

type calendarState struct {
	month    time.Time
	items    []appointment.Appointment
	err      error
	seq      uint64
	expanded string
	// expansion identifies the current expansion; a nudge fires only if it
	// is still current.
	expansion uint64
	nudge     Timer
}

type Synchronizer struct {
	mu sync.Mutex

	source     Source
	opener     Opener
	renderer   Renderer
	notifier   workflow.Notifier
	classifier *appointment.Classifier
	logger     zerolog.Logger
	now        func() time.Time
	loc        *time.Location
	delay      time.Duration
	afterFunc  func(time.Duration, func()) Timer

	active   Kind
	calendar calendarState
	agenda   listState
	history  listState
	names    map[string]string
}

type Option func(*Synchronizer)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Synchronizer) { s.logger = l }
}

func WithNotifier(n workflow.Notifier) Option {
	return func(s *Synchronizer) { s.notifier = n }
}

// WithClock overrides the wall clock. Appointment dates are read in loc.
func WithClock(now func() time.Time, loc *time.Location) Option {
	return func(s *Synchronizer) {
		s.now = now
		s.loc = loc
	}
}

func WithAutoSurfaceDelay(d time.Duration) Option {
	return func(s *Synchronizer) { s.delay = d }
}

// WithAfterFunc replaces time.AfterFunc for the auto-surface timer.
func WithAfterFunc(fn func(time.Duration, func()) Timer) Option {
	return func(s *Synchronizer) { s.afterFunc = fn }
}

func New(source Source, opener Opener, renderer Renderer, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		source:   source,
		opener:   opener,
		renderer: renderer,
		logger:   zerolog.Nop(),
		now:      time.Now,
		loc:      time.Local,
		delay:    DefaultAutoSurfaceDelay,
		afterFunc: func(d time.Duration, f func()) Timer {
			return time.AfterFunc(d, f)
		},
		names: map[string]string{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.classifier = appointment.NewClassifier(s.logger)
	n := s.clock()
	s.calendar.month = time.Date(n.Year(), n.Month(), 1, 0, 0, 0, 0, s.loc)
	return s
}

// Hooks returns the workflow callbacks that keep the views current after a
// review is recorded.
func (s *Synchronizer) Hooks() workflow.Hooks {
	return workflow.Hooks{
		OnResolved: func(ctx context.Context, _ appointment.Appointment, _ appointment.Status) {
			// Failures are already rendered and notified.
			_ = s.Refresh(ctx)
		},
	}
}

func (s *Synchronizer) clock() time.Time {
	return s.now().In(s.loc)
}

func (s *Synchronizer) notifyError(msg string) {
	if s.notifier != nil {
		s.notifier.Notify(workflow.LevelError, msg)
	}
}

// Activate switches to kind, fetches its data and renders it. A failed
// fetch is rendered as the view's error state and also returned.
func (s *Synchronizer) Activate(ctx context.Context, kind Kind) error {
	switch kind {
	case KindCalendar, KindAgenda, KindHistory:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownView, kind)
	}
	s.mu.Lock()
	if s.active != kind {
		s.collapseLocked()
	}
	s.active = kind
	s.mu.Unlock()
	return s.load(ctx, kind)
}

// Refresh re-fetches and re-renders the active view. An expanded calendar
// day stays expanded but is not nudged again.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	s.mu.Lock()
	kind := s.active
	s.mu.Unlock()
	if kind == "" {
		return nil
	}
	return s.load(ctx, kind)
}

func (s *Synchronizer) load(ctx context.Context, kind Kind) error {
	s.mu.Lock()
	var (
		f   appointment.Filter
		seq uint64
	)
	switch kind {
	case KindCalendar:
		s.calendar.seq++
		seq = s.calendar.seq
		first := s.calendar.month
		f.From = first.Format("2006-01-02")
		f.To = first.AddDate(0, 1, -1).Format("2006-01-02")
	case KindAgenda:
		s.agenda.seq++
		seq = s.agenda.seq
	case KindHistory:
		s.history.seq++
		seq = s.history.seq
	}
	s.mu.Unlock()

	items, err := s.source.ListAppointments(ctx, f)
	if err == nil {
		s.resolveNames(ctx, items)
	}

	s.mu.Lock()
	stale := false
	switch kind {
	case KindCalendar:
		if stale = seq != s.calendar.seq; !stale {
			s.calendar.items, s.calendar.err = items, err
		}
	case KindAgenda:
		if stale = seq != s.agenda.seq; !stale {
			s.agenda.items, s.agenda.err = items, err
		}
	case KindHistory:
		if stale = seq != s.history.seq; !stale {
			s.history.items, s.history.err = items, err
		}
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn().Err(err).Str("view", string(kind)).Msg("failed to load appointments")
		if !stale {
			s.notifyError("Could not load appointments: " + err.Error())
		}
	}
	if !stale {
		s.render()
	}
	return err
}

// resolveNames fills patient names the API left blank. Failures only cost
// the names.
func (s *Synchronizer) resolveNames(ctx context.Context, items []appointment.Appointment) {
	missing := false
	s.mu.Lock()
	for _, a := range items {
		if a.PatientName == "" && s.names[a.PatientID] == "" {
			missing = true
			break
		}
	}
	s.mu.Unlock()
	if missing {
		patients, err := s.source.ListPatients(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Msg("failed to load patients, names left blank")
		} else {
			s.mu.Lock()
			for _, p := range patients {
				s.names[p.ID] = p.Identification.Name
			}
			s.mu.Unlock()
		}
	}
	s.mu.Lock()
	for i := range items {
		if items[i].PatientName == "" {
			items[i].PatientName = s.names[items[i].PatientID]
		}
	}
	s.mu.Unlock()
}

func (s *Synchronizer) render() {
	if s.renderer == nil {
		return
	}
	s.renderer.Render(s.Snapshot())
}

func (s *Synchronizer) rows(items []appointment.Appointment, now time.Time) []Row {
	rows := make([]Row, 0, len(items))
	for _, a := range items {
		c := s.classifier.Classify(a, now)
		rows = append(rows, Row{Appointment: a, Classification: c, Actionable: c.Pending})
	}
	return rows
}

func sorted(items []appointment.Appointment, desc bool) []appointment.Appointment {
	out := append([]appointment.Appointment(nil), items...)
	if desc {
		appointment.SortDescending(out)
	} else {
		appointment.SortAscending(out)
	}
	return out
}

// Snapshot computes the active view from the cache at the current instant.
func (s *Synchronizer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	snap := Snapshot{Kind: s.active, Now: now}

	switch s.active {
	case KindAgenda:
		if s.agenda.err != nil {
			snap.Err = s.agenda.err.Error()
			break
		}
		snap.Rows = s.rows(sorted(s.agenda.items, false), now)
	case KindHistory:
		snap.Filter = s.history.filter
		if s.history.err != nil {
			snap.Err = s.history.err.Error()
			break
		}
		snap.Rows = s.historyRowsLocked(now)
	case KindCalendar:
		snap.Month = s.calendar.month
		snap.ExpandedDay = s.calendar.expanded
		if s.calendar.err != nil {
			snap.Err = s.calendar.err.Error()
			break
		}
		snap.Days = s.daysLocked(now)
		if s.calendar.expanded != "" {
			snap.Rows = s.dayRowsLocked(s.calendar.expanded, now)
		}
	}
	return snap
}

func (s *Synchronizer) historyRowsLocked(now time.Time) []Row {
	var past []appointment.Appointment
	for _, a := range s.history.items {
		if appointment.IsBeforeToday(a, now) {
			past = append(past, a)
		}
	}
	var out []Row
	for _, r := range s.rows(sorted(past, true), now) {
		if s.history.filter.match(r) {
			out = append(out, r)
		}
	}
	return out
}

func (s *Synchronizer) dayRowsLocked(date string, now time.Time) []Row {
	var day []appointment.Appointment
	for _, a := range s.calendar.items {
		if a.Date == date {
			day = append(day, a)
		}
	}
	return s.rows(sorted(day, false), now)
}

func (s *Synchronizer) daysLocked(now time.Time) []DayCell {
	first := s.calendar.month
	last := first.AddDate(0, 1, -1)
	today := now.Format("2006-01-02")
	cells := make([]DayCell, 0, last.Day())
	index := make(map[string]int, last.Day())
	for d := 1; d <= last.Day(); d++ {
		date := time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, s.loc).Format("2006-01-02")
		index[date] = len(cells)
		cells = append(cells, DayCell{Date: date, Day: d, Today: date == today})
	}
	for _, a := range s.calendar.items {
		i, ok := index[a.Date]
		if !ok {
			continue
		}
		cells[i].Count++
		if appointment.IsPending(a, now) {
			cells[i].Pending++
		}
	}
	return cells
}

// collapseLocked closes any expanded day and cancels its pending nudge.
func (s *Synchronizer) collapseLocked() {
	s.calendar.expanded = ""
	s.calendar.expansion++
	if s.calendar.nudge != nil {
		s.calendar.nudge.Stop()
		s.calendar.nudge = nil
	}
}

// SetMonth shows the month of m's calendar date, read in m's own location.
// Navigating collapses the expanded day.
func (s *Synchronizer) SetMonth(ctx context.Context, m time.Time) error {
	s.mu.Lock()
	s.collapseLocked()
	s.calendar.month = time.Date(m.Year(), m.Month(), 1, 0, 0, 0, 0, s.loc)
	s.calendar.items = nil
	s.calendar.err = nil
	active := s.active == KindCalendar
	s.mu.Unlock()
	if !active {
		return nil
	}
	return s.load(ctx, KindCalendar)
}

func (s *Synchronizer) NextMonth(ctx context.Context) error {
	s.mu.Lock()
	m := s.calendar.month.AddDate(0, 1, 0)
	s.mu.Unlock()
	return s.SetMonth(ctx, m)
}

func (s *Synchronizer) PrevMonth(ctx context.Context) error {
	s.mu.Lock()
	m := s.calendar.month.AddDate(0, -1, 0)
	s.mu.Unlock()
	return s.SetMonth(ctx, m)
}

// ExpandDay toggles the calendar day date. Expanding a day with pending
// appointments schedules the review of the earliest one after the
// auto-surface delay.
func (s *Synchronizer) ExpandDay(date string) error {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return fmt.Errorf("day %q must be YYYY-MM-DD", date)
	}
	s.mu.Lock()
	if s.active != KindCalendar {
		s.mu.Unlock()
		return ErrNotCalendar
	}
	if s.calendar.expanded == date {
		s.collapseLocked()
		s.mu.Unlock()
		s.render()
		return nil
	}
	s.collapseLocked()
	s.calendar.expanded = date
	id := s.calendar.expansion
	if _, ok := s.earliestPendingLocked(date); ok {
		s.calendar.nudge = s.afterFunc(s.delay, func() { s.surface(id, date) })
	}
	s.mu.Unlock()
	s.render()
	return nil
}

func (s *Synchronizer) CollapseDay() {
	s.mu.Lock()
	s.collapseLocked()
	s.mu.Unlock()
	s.render()
}

func (s *Synchronizer) earliestPendingLocked(date string) (appointment.Appointment, bool) {
	for _, r := range s.dayRowsLocked(date, s.clock()) {
		if r.Actionable {
			return r.Appointment, true
		}
	}
	return appointment.Appointment{}, false
}

// surface fires once per expansion. The day must still be expanded and
// still have a pending appointment when the timer runs.
func (s *Synchronizer) surface(id uint64, date string) {
	s.mu.Lock()
	if id != s.calendar.expansion || s.calendar.expanded != date || s.active != KindCalendar {
		s.mu.Unlock()
		return
	}
	s.calendar.nudge = nil
	a, ok := s.earliestPendingLocked(date)
	s.mu.Unlock()
	if !ok || s.opener == nil {
		return
	}
	s.logger.Debug().Str("appointment_id", a.ID).Str("day", date).Msg("surfacing pending review")
	s.opener.Open(a)
}

// SetHistoryFilter validates f and re-filters the cached history.
func (s *Synchronizer) SetHistoryFilter(f HistoryFilter) error {
	if err := f.validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.history.filter = f
	active := s.active == KindHistory
	s.mu.Unlock()
	if active {
		s.render()
	}
	return nil
}

// OpenReview opens the review for the visible row with the given id. Only
// pending rows are actionable.
func (s *Synchronizer) OpenReview(id string) error {
	snap := s.Snapshot()
	for _, r := range snap.Rows {
		if r.Appointment.ID != id {
			continue
		}
		if !r.Actionable {
			return fmt.Errorf("%w: %s", ErrNotActionable, id)
		}
		if s.opener != nil {
			s.opener.Open(r.Appointment)
		}
		return nil
	}
	return fmt.Errorf("%w: %s", appointment.ErrNotFound, id)
}
