package patient

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/prenatal/agenda/internal/domain/appointment"
)

// DefaultDueWindow is the number of days ahead the near-term DPP alert looks.
const DefaultDueWindow = 20

type Service struct {
	patients Repository
	now      func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{patients: repo, now: time.Now}
}

func (s *Service) Create(ctx context.Context, p *Patient) error {
	p.Identification.Name = strings.TrimSpace(p.Identification.Name)
	if p.Identification.Name == "" {
		return fmt.Errorf("nome_gestante is required")
	}
	if lmp := p.Assessment.LastMenstrualPeriod; lmp != "" {
		d, err := time.Parse(dateLayout, lmp)
		if err != nil {
			return fmt.Errorf("dum must be YYYY-MM-DD")
		}
		if p.Assessment.DueDate == "" {
			p.Assessment.DueDate = DueDateFromLMP(d).Format(dateLayout)
		}
	}
	if dpp := p.Assessment.DueDate; dpp != "" {
		if _, err := time.Parse(dateLayout, dpp); err != nil {
			return fmt.Errorf("dpp must be YYYY-MM-DD")
		}
	}
	return s.patients.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter) ([]*Patient, error) {
	return s.patients.List(ctx, f)
}

// NearTerm lists patients whose DPP is between today and today+window days,
// soonest first. A non-positive window falls back to DefaultDueWindow.
func (s *Service) NearTerm(ctx context.Context, window int) ([]NearTerm, error) {
	if window <= 0 {
		window = DefaultDueWindow
	}
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	items, err := s.patients.ListWithDueDateBetween(ctx, today, today.AddDate(0, 0, window))
	if err != nil {
		return nil, err
	}
	out := make([]NearTerm, 0, len(items))
	for _, p := range items {
		dpp, err := time.Parse(dateLayout, p.Assessment.DueDate)
		if err != nil {
			continue
		}
		days := appointment.DaysUntil(dpp, now)
		if days < 0 || days > window {
			continue
		}
		out = append(out, NearTerm{Patient: *p, DaysUntilDue: days})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DaysUntilDue < out[j].DaysUntilDue })
	return out, nil
}
