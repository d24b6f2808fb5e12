// Package stock provides the stock ledger: current quantity and reservation per
// (product, warehouse, location) key plus the append-only movement history.
package stock

import (
	"fmt"
	"time"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/entity"
	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
)

// Key identifies one stock-quantity record. A nil LocationID addresses the
// warehouse-level bucket used when stock is not slotted.
type Key struct {
	ProductID   id.ID `db:"product_id" json:"productId"`
	WarehouseID id.ID `db:"warehouse_id" json:"warehouseId"`
	LocationID  id.ID `db:"location_id" json:"locationId"`
}

// NewKey builds a key; a nil location pointer maps to the warehouse-level bucket.
func NewKey(productID, warehouseID id.ID, locationID *id.ID) Key {
	return Key{ProductID: productID, WarehouseID: warehouseID, LocationID: id.Deref(locationID)}
}

// String renders the key as product/warehouse/location. It is also the lock name.
func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.ProductID, k.WarehouseID, k.LocationID)
}

// Location returns the location pointer or nil for the warehouse-level bucket.
func (k Key) Location() *id.ID {
	if id.IsNil(k.LocationID) {
		return nil
	}
	return id.Ptr(k.LocationID)
}

// Compare orders keys by product, warehouse, location.
func (k Key) Compare(o Key) int {
	if c := id.Compare(k.ProductID, o.ProductID); c != 0 {
		return c
	}
	if c := id.Compare(k.WarehouseID, o.WarehouseID); c != 0 {
		return c
	}
	return id.Compare(k.LocationID, o.LocationID)
}

// Level is the current state of one key.
type Level struct {
	Key

	Quantity types.Quantity `db:"quantity" json:"quantity"`
	Reserved types.Quantity `db:"reserved" json:"reserved"`

	// Sequence is the sequence of the last movement booked on this key
	Sequence int64 `db:"sequence" json:"sequence"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Available is on-hand minus reserved. It is derived, never stored.
func (l Level) Available() types.Quantity {
	return l.Quantity - l.Reserved
}

// CheckInvariant verifies 0 <= reserved <= quantity.
func (l Level) CheckInvariant() error {
	if l.Quantity < 0 || l.Reserved < 0 || l.Reserved > l.Quantity {
		return apperror.NewInvariantViolation(fmt.Sprintf(
			"stock level %s out of bounds: quantity %s, reserved %s", l.Key, l.Quantity, l.Reserved)).
			WithDetail("key", l.Key.String())
	}
	return nil
}

// MovementKind classifies ledger movements.
type MovementKind string

const (
	KindReceive     MovementKind = "RECEIVE"
	KindPick        MovementKind = "PICK"
	KindAdjustment  MovementKind = "ADJUSTMENT"
	KindTransferIn  MovementKind = "TRANSFER_IN"
	KindTransferOut MovementKind = "TRANSFER_OUT"
	KindReturn      MovementKind = "RETURN"
)

// Valid reports whether k is a known kind.
func (k MovementKind) Valid() bool {
	switch k {
	case KindReceive, KindPick, KindAdjustment, KindTransferIn, KindTransferOut, KindReturn:
		return true
	}
	return false
}

// Movement is one immutable ledger row.
type Movement struct {
	entity.MovementBase

	Kind MovementKind `db:"kind" json:"kind"`
	Key

	FromLocationID *id.ID `db:"from_location_id" json:"fromLocationId,omitempty"`
	ToLocationID   *id.ID `db:"to_location_id" json:"toLocationId,omitempty"`
	BatchID        *id.ID `db:"batch_id" json:"batchId,omitempty"`

	// Delta is the signed change of on-hand quantity
	Delta types.Quantity `db:"delta" json:"delta"`
	// QuantityAfter is the key's on-hand quantity once this row applied
	QuantityAfter types.Quantity `db:"quantity_after" json:"quantityAfter"`

	UnitCost  *types.Money `db:"unit_cost" json:"unitCost,omitempty"`
	TotalCost *types.Money `db:"total_cost" json:"totalCost,omitempty"`
}

// Change is one atomic request against a key. QuantityDelta books a movement;
// ReservedDelta only moves the reserved/available split.
type Change struct {
	Key
	QuantityDelta types.Quantity
	ReservedDelta types.Quantity

	Kind     MovementKind
	BatchID  *id.ID
	UnitCost *types.Money
	Recorder entity.DocumentRef
	ActorID  string
	Notes    string

	// CounterLocationID is the other side of an intra-warehouse or transfer move, if any
	CounterLocationID *id.ID

	// Guard, when set, sees the level under the key lock before the change
	// applies; a non-nil error aborts the change.
	Guard func(before Level) error
}

// Validate checks the change is well formed before any lock is taken.
func (c Change) Validate() error {
	if id.IsNil(c.ProductID) || id.IsNil(c.WarehouseID) {
		return apperror.NewValidation("product and warehouse are required")
	}
	if c.QuantityDelta == 0 && c.ReservedDelta == 0 {
		return apperror.NewValidation("change moves nothing").WithDetail("key", c.Key.String())
	}
	if c.QuantityDelta != 0 && !c.Kind.Valid() {
		return apperror.NewValidation("unknown movement kind").WithDetail("kind", string(c.Kind))
	}
	return nil
}

// Result is what one applied change produced.
type Result struct {
	Before   Level
	After    Level
	Movement *Movement
}
