package patient

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

// -- Mock Repository --

type mockPatientRepo struct {
	patients map[uuid.UUID]*Patient
}

func newMockPatientRepo() *mockPatientRepo {
	return &mockPatientRepo{patients: make(map[uuid.UUID]*Patient)}
}

func (m *mockPatientRepo) Create(_ context.Context, p *Patient) error {
	id := uuid.New()
	p.ID = id.String()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	m.patients[id] = p
	return nil
}

func (m *mockPatientRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (m *mockPatientRepo) List(_ context.Context, f Filter) ([]*Patient, error) {
	var out []*Patient
	for _, p := range m.patients {
		if f.HealthUnit != "" && p.Identification.HealthUnit != f.HealthUnit {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *mockPatientRepo) ListWithDueDateBetween(_ context.Context, from, to time.Time) ([]*Patient, error) {
	var out []*Patient
	for _, p := range m.patients {
		d, err := time.Parse(dateLayout, p.Assessment.DueDate)
		if err != nil || d.Before(from) || d.After(to) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func newTestService() *Service {
	return NewService(newMockPatientRepo())
}

func TestDueDateFromLMP(t *testing.T) {
	tests := []struct {
		lmp, want string
	}{
		{"2024-01-01", "2024-10-08"},
		{"2024-03-25", "2025-01-01"},
		{"2023-05-10", "2024-02-17"},
		{"2024-05-24", "2025-02-28"},
		{"2023-05-23", "2024-02-29"},
		{"2024-07-24", "2025-04-30"},
	}
	for _, tt := range tests {
		lmp, _ := time.Parse(dateLayout, tt.lmp)
		got := DueDateFromLMP(lmp).Format(dateLayout)
		if got != tt.want {
			t.Errorf("DueDateFromLMP(%s) = %s, want %s", tt.lmp, got, tt.want)
		}
	}
}

func TestService_Create_DerivesDueDate(t *testing.T) {
	svc := newTestService()
	p := &Patient{
		Identification: Identification{Name: "  Maria Souza "},
		Assessment:     Assessment{LastMenstrualPeriod: "2024-01-01"},
	}
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Identification.Name != "Maria Souza" {
		t.Errorf("expected trimmed name, got %q", p.Identification.Name)
	}
	if p.Assessment.DueDate != "2024-10-08" {
		t.Errorf("expected derived dpp 2024-10-08, got %q", p.Assessment.DueDate)
	}
	if p.ID == "" {
		t.Error("expected ID to be set")
	}
}

func TestService_Create_KeepsExplicitDueDate(t *testing.T) {
	svc := newTestService()
	p := &Patient{
		Identification: Identification{Name: "Ana"},
		Assessment:     Assessment{LastMenstrualPeriod: "2024-01-01", DueDate: "2024-10-01"},
	}
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Assessment.DueDate != "2024-10-01" {
		t.Errorf("expected explicit dpp kept, got %q", p.Assessment.DueDate)
	}
}

func TestService_Create_Validation(t *testing.T) {
	svc := newTestService()
	cases := map[string]*Patient{
		"missing name": {},
		"bad dum":      {Identification: Identification{Name: "Ana"}, Assessment: Assessment{LastMenstrualPeriod: "01/01/2024"}},
		"bad dpp":      {Identification: Identification{Name: "Ana"}, Assessment: Assessment{DueDate: "2024-13-01"}},
	}
	for name, p := range cases {
		if err := svc.Create(context.Background(), p); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestService_NearTerm(t *testing.T) {
	repo := newMockPatientRepo()
	svc := NewService(repo)
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC) }

	for name, dpp := range map[string]string{
		"today":     "2024-06-01",
		"edge":      "2024-06-21",
		"outside":   "2024-06-22",
		"overdue":   "2024-05-31",
		"next week": "2024-06-08",
	} {
		repo.Create(context.Background(), &Patient{
			Identification: Identification{Name: name},
			Assessment:     Assessment{DueDate: dpp},
		})
	}

	items, err := svc.NearTerm(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 near-term patients, got %d", len(items))
	}
	wantOrder := []string{"today", "next week", "edge"}
	wantDays := []int{0, 7, 20}
	for i, it := range items {
		if it.Identification.Name != wantOrder[i] {
			t.Errorf("item %d: expected %s, got %s", i, wantOrder[i], it.Identification.Name)
		}
		if it.DaysUntilDue != wantDays[i] {
			t.Errorf("item %d: expected %d days, got %d", i, wantDays[i], it.DaysUntilDue)
		}
	}
}

func TestService_NearTerm_CustomWindow(t *testing.T) {
	repo := newMockPatientRepo()
	svc := NewService(repo)
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 23, 30, 0, 0, time.UTC) }
	repo.Create(context.Background(), &Patient{Identification: Identification{Name: "a"}, Assessment: Assessment{DueDate: "2024-06-03"}})
	repo.Create(context.Background(), &Patient{Identification: Identification{Name: "b"}, Assessment: Assessment{DueDate: "2024-06-10"}})

	items, err := svc.NearTerm(context.Background(), 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].DaysUntilDue != 2 {
		t.Fatalf("expected one patient two days out, got %+v", items)
	}
}
