// Package views keeps the calendar, agenda and history screens in step with
// the API and with the review workflow.
package views

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prenatal/agenda/internal/domain/appointment"
	"github.com/prenatal/agenda/internal/domain/patient"
)

type Kind string

const (
	KindCalendar Kind = "calendar"
	KindAgenda   Kind = "agenda"
	KindHistory  Kind = "history"
)

// FilterPending is the synthetic history status filter matching pending
// appointments.
const FilterPending = "pending"

var (
	ErrUnknownView   = errors.New("views: unknown view")
	ErrNotActionable = errors.New("views: appointment has no pending review")
	ErrNotCalendar   = errors.New("views: days expand only on the calendar")
)

// Source is the read side of the API client.
type Source interface {
	ListAppointments(ctx context.Context, f appointment.Filter) ([]appointment.Appointment, error)
	ListPatients(ctx context.Context) ([]patient.Patient, error)
}

// Opener starts a review. *workflow.Controller implements it.
type Opener interface {
	Open(a appointment.Appointment)
}

type Renderer interface {
	Render(Snapshot)
}

// Timer is the handle returned by AfterFunc.
type Timer interface {
	Stop() bool
}

// Row is one classified appointment as a view shows it.
type Row struct {
	Appointment    appointment.Appointment
	Classification appointment.Classification
	// Actionable rows get the inline action that opens the review.
	Actionable bool
}

// DayCell summarises one day of the calendar month grid.
type DayCell struct {
	Date    string
	Day     int
	Count   int
	Pending int
	Today   bool
}

// HistoryFilter narrows the history list. Status is "", FilterPending or an
// appointment status (wire code or name).
type HistoryFilter struct {
	Status string
	From   string
	To     string
}

func (f HistoryFilter) validate() error {
	if f.Status != "" && f.Status != FilterPending && !appointment.ParseStatus(f.Status).Valid() {
		return fmt.Errorf("unknown status filter %q", f.Status)
	}
	for _, d := range []string{f.From, f.To} {
		if d == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return fmt.Errorf("date filter %q must be YYYY-MM-DD", d)
		}
	}
	if f.From != "" && f.To != "" && f.From > f.To {
		return fmt.Errorf("date filter: %s is after %s", f.From, f.To)
	}
	return nil
}

func (f HistoryFilter) match(r Row) bool {
	a := r.Appointment
	if f.From != "" && a.Date < f.From {
		return false
	}
	if f.To != "" && a.Date > f.To {
		return false
	}
	switch f.Status {
	case "":
		return true
	case FilterPending:
		return r.Classification.Pending
	default:
		return a.Status == appointment.ParseStatus(f.Status)
	}
}

// Snapshot is everything a renderer needs for the active view.
type Snapshot struct {
	Kind Kind
	Now  time.Time
	// Rows is the list for agenda and history, and the expanded day for the
	// calendar.
	Rows []Row
	// Err is the inline error state that replaces the list after a failed
	// fetch.
	Err string

	Month       time.Time
	Days        []DayCell
	ExpandedDay string

	Filter HistoryFilter
}
