// Package batch provides the batch registry: lot identity, expiry and quality
// metadata, and a per-location sub-ledger scoped to each batch.
package batch

import (
	"context"
	"math"
	"strings"
	"time"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/entity"
	"stockcore/internal/core/fsm"
	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
	"stockcore/internal/domain/registers/stock"
)

// QualityStatus is the inspection state of a batch.
type QualityStatus string

const (
	QualityPending    QualityStatus = "pending"
	QualityApproved   QualityStatus = "approved"
	QualityRejected   QualityStatus = "rejected"
	QualityQuarantine QualityStatus = "quarantine"
	QualityReleased   QualityStatus = "released"
)

// Quality transitions. Released and rejected are terminal.
var qualityTable = fsm.New("batch",
	fsm.Edge[QualityStatus]{Event: "approve", From: []QualityStatus{QualityPending, QualityQuarantine}, To: []QualityStatus{QualityApproved}},
	fsm.Edge[QualityStatus]{Event: "reject", From: []QualityStatus{QualityPending, QualityQuarantine}, To: []QualityStatus{QualityRejected}},
	fsm.Edge[QualityStatus]{Event: "quarantine", From: []QualityStatus{QualityPending, QualityApproved}, To: []QualityStatus{QualityQuarantine}},
	fsm.Edge[QualityStatus]{Event: "release", From: []QualityStatus{QualityApproved}, To: []QualityStatus{QualityReleased}},
)

var qualityEvents = map[QualityStatus]string{
	QualityApproved:   "approve",
	QualityRejected:   "reject",
	QualityQuarantine: "quarantine",
	QualityReleased:   "release",
}

// Batch is the header of one lot. BatchNumber is unique.
type Batch struct {
	entity.BaseEntity

	BatchNumber string `db:"batch_number" json:"batchNumber"`
	ProductID   id.ID  `db:"product_id" json:"productId"`
	WarehouseID id.ID  `db:"warehouse_id" json:"warehouseId"`

	ManufacturedAt *time.Time `db:"manufactured_at" json:"manufacturedAt,omitempty"`
	ExpiresAt      *time.Time `db:"expires_at" json:"expiresAt,omitempty"`
	ReceivedAt     *time.Time `db:"received_at" json:"receivedAt,omitempty"`

	QualityStatus QualityStatus `db:"quality_status" json:"qualityStatus"`

	// InitialQuantity grows with every RECEIVE into the batch
	InitialQuantity types.Quantity `db:"initial_quantity" json:"initialQuantity"`
	CurrentQuantity types.Quantity `db:"current_quantity" json:"currentQuantity"`

	UnitCost *types.Money `db:"unit_cost" json:"unitCost,omitempty"`
	Notes    string       `db:"notes" json:"notes,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Validate checks header invariants.
func (b *Batch) Validate(_ context.Context) error {
	if strings.TrimSpace(b.BatchNumber) == "" {
		return apperror.NewValidation("batch number is required")
	}
	if id.IsNil(b.ProductID) || id.IsNil(b.WarehouseID) {
		return apperror.NewValidation("product and warehouse are required").
			WithDetail("batchNumber", b.BatchNumber)
	}
	if b.ManufacturedAt != nil && b.ExpiresAt != nil && b.ExpiresAt.Before(*b.ManufacturedAt) {
		return apperror.NewValidation("expiration date precedes manufacturing date").
			WithDetail("batchNumber", b.BatchNumber)
	}
	if b.CurrentQuantity < 0 || b.CurrentQuantity > b.InitialQuantity {
		return apperror.NewInvariantViolation("batch " + b.BatchNumber + " current quantity outside [0, initial]").
			WithDetail("current", b.CurrentQuantity.Float64()).
			WithDetail("initial", b.InitialQuantity.Float64())
	}
	return nil
}

// IsActive reports whether the batch still holds usable stock.
func (b *Batch) IsActive() bool {
	return b.CurrentQuantity > 0 && b.QualityStatus != QualityRejected
}

// IsExpired reports whether the expiration date has passed.
func (b *Batch) IsExpired(now time.Time) bool {
	return b.ExpiresAt != nil && b.ExpiresAt.Before(now)
}

// DaysUntilExpiration rounds up to whole days; ok is false without an expiration date.
func (b *Batch) DaysUntilExpiration(now time.Time) (days int, ok bool) {
	if b.ExpiresAt == nil {
		return 0, false
	}
	diff := b.ExpiresAt.Sub(now)
	return int(math.Ceil(float64(diff) / float64(24*time.Hour))), true
}

// Key addresses one batch level.
type Key struct {
	BatchID     id.ID `db:"batch_id" json:"batchId"`
	WarehouseID id.ID `db:"warehouse_id" json:"warehouseId"`
	LocationID  id.ID `db:"location_id" json:"locationId"`
}

func (k Key) String() string {
	return k.BatchID.String() + "/" + k.WarehouseID.String() + "/" + k.LocationID.String()
}

// KeyOf derives the batch key a stock change touches.
func KeyOf(batchID id.ID, sk stock.Key) Key {
	return Key{BatchID: batchID, WarehouseID: sk.WarehouseID, LocationID: sk.LocationID}
}

// Level mirrors stock.Level for one batch at one location.
type Level struct {
	Key
	ProductID id.ID `db:"product_id" json:"productId"`

	Quantity types.Quantity `db:"quantity" json:"quantity"`
	Reserved types.Quantity `db:"reserved" json:"reserved"`
	Sequence int64          `db:"sequence" json:"sequence"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

func (l Level) Available() types.Quantity { return l.Quantity - l.Reserved }

// StockKey returns the stock ledger key this batch level is part of.
func (l Level) StockKey() stock.Key {
	return stock.Key{ProductID: l.ProductID, WarehouseID: l.WarehouseID, LocationID: l.LocationID}
}

// Movement is the batch-scoped copy of a stock movement.
type Movement struct {
	entity.MovementBase

	Kind stock.MovementKind `db:"kind" json:"kind"`
	Key
	ProductID       id.ID `db:"product_id" json:"productId"`
	StockMovementID id.ID `db:"stock_movement_id" json:"stockMovementId"`

	Delta         types.Quantity `db:"delta" json:"delta"`
	QuantityAfter types.Quantity `db:"quantity_after" json:"quantityAfter"`
}

// Lot pairs a batch header with one of its levels; the allocation unit for FEFO.
type Lot struct {
	Batch Batch
	Level Level
}

// TimelineEvent is one dated milestone of a batch.
type TimelineEvent struct {
	Event string    `json:"event"`
	At    time.Time `json:"at"`
}

// Trace is the traceability view of one batch.
type Trace struct {
	Batch     Batch           `json:"batch"`
	Levels    []Level         `json:"levels"`
	Movements []Movement      `json:"movements"`
	Timeline  []TimelineEvent `json:"timeline"`
}

// Filter narrows batch listings.
type Filter struct {
	ProductID   *id.ID
	WarehouseID *id.ID
	Status      *QualityStatus
	ActiveOnly  bool
}

// LevelFilter narrows batch level listings.
type LevelFilter struct {
	BatchID     *id.ID
	ProductID   *id.ID
	WarehouseID *id.ID
	LocationID  *id.ID
}
