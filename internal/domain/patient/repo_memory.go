package patient

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo is a Repository kept in process memory.
type MemoryRepo struct {
	mu       sync.RWMutex
	patients map[string]Patient
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{patients: make(map[string]Patient)}
}

func (m *MemoryRepo) Create(_ context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = uuid.NewString()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	m.patients[p.ID] = *p
	return nil
}

func (m *MemoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.patients[id.String()]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *MemoryRepo) List(_ context.Context, f Filter) ([]*Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*Patient{}
	for _, p := range m.patients {
		if f.Name != "" && !strings.Contains(strings.ToLower(p.Identification.Name), strings.ToLower(f.Name)) {
			continue
		}
		if f.HealthUnit != "" && p.Identification.HealthUnit != f.HealthUnit {
			continue
		}
		cp := p
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Identification.Name < out[j].Identification.Name
	})
	return out, nil
}

func (m *MemoryRepo) ListWithDueDateBetween(_ context.Context, from, to time.Time) ([]*Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lo, hi := from.Format(dateLayout), to.Format(dateLayout)
	out := []*Patient{}
	for _, p := range m.patients {
		d := p.Assessment.DueDate
		if d == "" || d < lo || d > hi {
			continue
		}
		cp := p
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Assessment.DueDate < out[j].Assessment.DueDate
	})
	return out, nil
}

// Names resolves a patient id to its display name and health unit, for
// MemoryRepo consumers that need the join the SQL repository performs.
func (m *MemoryRepo) Names(id string) (name, unit string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p := m.patients[id]
	return p.Identification.Name, p.Identification.HealthUnit
}
