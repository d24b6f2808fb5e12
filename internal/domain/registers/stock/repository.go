package stock

import (
	"context"
	"time"

	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
)

// Repository persists levels and movements. Writes are only issued by the
// Ledger while it holds the key lock.
type Repository interface {
	// GetLevel returns the level for key, or nil if the key never saw a movement.
	GetLevel(ctx context.Context, key Key) (*Level, error)

	// GetLevelForUpdate is GetLevel with a row lock when running in a transaction.
	GetLevelForUpdate(ctx context.Context, key Key) (*Level, error)

	// SaveLevel inserts or updates the level.
	SaveLevel(ctx context.Context, level *Level) error

	// AppendMovement inserts one movement. Movements are never updated or deleted.
	AppendMovement(ctx context.Context, m *Movement) error

	// ListLevels returns levels ordered by creation time, then key.
	ListLevels(ctx context.Context, filter LevelFilter) ([]Level, error)

	// ListMovements returns movements ordered by creation time, then sequence.
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)

	// ReplayTotals sums every movement delta booked on key.
	ReplayTotals(ctx context.Context, key Key) (Replay, error)

	// ListKeys returns every key that has a level.
	ListKeys(ctx context.Context) ([]Key, error)

	// LocationOccupancy sums on-hand quantity of all products at a location.
	LocationOccupancy(ctx context.Context, locationID id.ID) (types.Quantity, error)
}

// LevelFilter for filtering level queries.
type LevelFilter struct {
	ProductID   *id.ID
	WarehouseID *id.ID
	LocationID  *id.ID
	// ExcludeEmpty drops levels with zero on-hand quantity
	ExcludeEmpty bool
	// OnlyAvailable keeps levels with available > 0
	OnlyAvailable bool
}

// MovementFilter for filtering movement history.
type MovementFilter struct {
	ProductID   *id.ID
	WarehouseID *id.ID
	LocationID  *id.ID
	BatchID     *id.ID
	DocumentID  *id.ID
	Kind        *MovementKind
	FromDate    *time.Time
	ToDate      *time.Time
	Limit       int
	Offset      int
}

// Replay is the result of folding a key's movements.
type Replay struct {
	Sum         types.Quantity
	Count       int64
	MaxSequence int64
}

// TurnoverFilter for turnover reports.
type TurnoverFilter struct {
	WarehouseID *id.ID
	ProductID   *id.ID
	FromDate    time.Time
	ToDate      time.Time
}

// Turnover represents inbound/outbound totals for a period.
type Turnover struct {
	OpeningBalance types.Quantity `json:"openingBalance"`
	Receipt        types.Quantity `json:"receipt"`
	Expense        types.Quantity `json:"expense"`
	ClosingBalance types.Quantity `json:"closingBalance"`
}

// Discrepancy is one key whose stored level disagrees with its movements.
type Discrepancy struct {
	Key    Key    `json:"key"`
	Reason string `json:"reason"`
}
