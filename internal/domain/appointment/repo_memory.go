package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo is a Repository kept in process memory. It backs
// `agenda serve --memory` and the HTTP tests.
type MemoryRepo struct {
	mu    sync.RWMutex
	items map[string]Appointment
	names func(patientID string) (name, unit string)
}

// NewMemoryRepo returns an empty repository. names, when non-nil, fills the
// patient columns the SQL repository gets from its join.
func NewMemoryRepo(names func(patientID string) (name, unit string)) *MemoryRepo {
	return &MemoryRepo{items: make(map[string]Appointment), names: names}
}

func (m *MemoryRepo) fill(a Appointment) *Appointment {
	if m.names != nil {
		a.PatientName, a.HealthUnit = m.names(a.PatientID)
	}
	return &a
}

func (m *MemoryRepo) Create(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = uuid.NewString()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	m.items[a.ID] = *a
	return nil
}

func (m *MemoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.items[id.String()]
	if !ok {
		return nil, ErrNotFound
	}
	return m.fill(a), nil
}

func (m *MemoryRepo) Update(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.items[a.ID]
	if !ok {
		return ErrNotFound
	}
	a.CreatedAt = prev.CreatedAt
	a.UpdatedAt = time.Now()
	m.items[a.ID] = *a
	return nil
}

func (m *MemoryRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id.String()]; !ok {
		return ErrNotFound
	}
	delete(m.items, id.String())
	return nil
}

func (m *MemoryRepo) List(_ context.Context, f Filter) ([]*Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*Appointment{}
	for _, a := range m.items {
		if f.PatientID != "" && a.PatientID != f.PatientID {
			continue
		}
		if f.From != "" && a.Date < f.From {
			continue
		}
		if f.To != "" && a.Date > f.To {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		out = append(out, m.fill(a))
	}
	sort.SliceStable(out, func(i, j int) bool {
		ki, kj := sortKey(*out[i]), sortKey(*out[j])
		if ki == kj {
			return out[i].ID < out[j].ID
		}
		return ki < kj
	})
	return out, nil
}
