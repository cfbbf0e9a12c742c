package appointment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	appointments Repository
}

func NewService(repo Repository) *Service {
	return &Service{appointments: repo}
}

func validateDate(field, s string) error {
	if _, err := time.Parse(dateLayout, s); err != nil {
		return fmt.Errorf("%s must be YYYY-MM-DD", field)
	}
	return nil
}

func validateClock(s string) error {
	if _, _, _, err := parseClock(s); err != nil {
		return fmt.Errorf("hora_consulta must be HH:MM or HH:MM:SS")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, a *Appointment) error {
	if a.PatientID == "" || a.Date == "" || a.Time == "" {
		return fmt.Errorf("missing required fields: paciente_id, data_consulta, hora_consulta")
	}
	if _, err := uuid.Parse(a.PatientID); err != nil {
		return fmt.Errorf("invalid paciente_id")
	}
	if err := validateDate("data_consulta", a.Date); err != nil {
		return err
	}
	if err := validateClock(a.Time); err != nil {
		return err
	}
	if a.Status == "" {
		a.Status = StatusScheduled
	}
	if !a.Status.Valid() {
		return fmt.Errorf("invalid appointment status: %s", a.Status)
	}
	return s.appointments.Create(ctx, a)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.appointments.GetByID(ctx, id)
}

// Update applies the non-nil fields of u to the stored appointment.
func (s *Service) Update(ctx context.Context, id uuid.UUID, u Update) (*Appointment, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Date != nil {
		if err := validateDate("data_consulta", *u.Date); err != nil {
			return nil, err
		}
		a.Date = *u.Date
	}
	if u.Time != nil {
		if *u.Time != "" {
			if err := validateClock(*u.Time); err != nil {
				return nil, err
			}
		}
		a.Time = *u.Time
	}
	if u.Type != nil {
		a.Type = *u.Type
	}
	if u.Status != nil {
		if !u.Status.Valid() {
			return nil, fmt.Errorf("invalid appointment status: %s", *u.Status)
		}
		a.Status = *u.Status
	}
	if u.Notes != nil {
		a.Notes = *u.Notes
	}
	if u.NotPerformedReason != nil {
		a.NotPerformedReason = strings.TrimSpace(*u.NotPerformedReason)
	}
	if err := s.appointments.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.appointments.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter) ([]*Appointment, error) {
	if f.PatientID != "" {
		if _, err := uuid.Parse(f.PatientID); err != nil {
			return nil, fmt.Errorf("invalid paciente_id")
		}
	}
	if f.From != "" {
		if err := validateDate("data_inicio", f.From); err != nil {
			return nil, err
		}
	}
	if f.To != "" {
		if err := validateDate("data_fim", f.To); err != nil {
			return nil, err
		}
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("invalid appointment status: %s", f.Status)
	}
	return s.appointments.List(ctx, f)
}
