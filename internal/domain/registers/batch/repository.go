package batch

import (
	"context"

	"stockcore/internal/core/id"
)

// Repository persists batch headers and the batch sub-ledger.
type Repository interface {
	// Create inserts a header; a taken batch number is a Duplicate error.
	Create(ctx context.Context, b *Batch) error
	Update(ctx context.Context, b *Batch) error
	GetByID(ctx context.Context, batchID id.ID) (*Batch, error)
	GetByNumber(ctx context.Context, number string) (*Batch, error)
	List(ctx context.Context, filter Filter) ([]Batch, error)

	// GetLevel returns nil when the batch never held stock at the key.
	GetLevel(ctx context.Context, key Key) (*Level, error)
	SaveLevel(ctx context.Context, level *Level) error
	ListLevels(ctx context.Context, filter LevelFilter) ([]Level, error)

	AppendMovement(ctx context.Context, m *Movement) error
	// ListMovements returns the movements of a batch in booking order.
	ListMovements(ctx context.Context, batchID id.ID) ([]Movement, error)
}
