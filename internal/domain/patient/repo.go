package patient

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	List(ctx context.Context, f Filter) ([]*Patient, error)
	// ListWithDueDateBetween returns patients whose DPP lies in [from, to].
	ListWithDueDateBetween(ctx context.Context, from, to time.Time) ([]*Patient, error)
}
