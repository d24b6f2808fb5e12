package reservation

import (
	"context"
	"time"

	"stockcore/internal/core/entity"
	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
	"stockcore/internal/domain/registers/stock"
)

// HandleStatus is OPEN while any line has outstanding quantity.
type HandleStatus string

const (
	HandleOpen   HandleStatus = "OPEN"
	HandleClosed HandleStatus = "CLOSED"
)

// HandleLine is one reserved slice of stock and what has become of it.
type HandleLine struct {
	ProductID   id.ID          `json:"productId"`
	WarehouseID id.ID          `json:"warehouseId"`
	LocationID  id.ID          `json:"locationId"`
	BatchID     *id.ID         `json:"batchId,omitempty"`
	Reserved    types.Quantity `json:"reserved"`
	Consumed    types.Quantity `json:"consumed"`
	Released    types.Quantity `json:"released"`
}

func (l HandleLine) Key() stock.Key {
	return stock.Key{ProductID: l.ProductID, WarehouseID: l.WarehouseID, LocationID: l.LocationID}
}

// Outstanding is reserved quantity not yet consumed or released.
func (l HandleLine) Outstanding() types.Quantity {
	return l.Reserved - l.Consumed - l.Released
}

// Handle records a committed reservation so it can later be consumed or
// released line by line.
type Handle struct {
	entity.BaseEntity

	Reference entity.DocumentRef `json:"reference"`
	Status    HandleStatus       `json:"status"`
	Lines     []HandleLine       `json:"lines"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Outstanding sums the outstanding quantity of every line.
func (h *Handle) Outstanding() types.Quantity {
	var total types.Quantity
	for _, l := range h.Lines {
		total += l.Outstanding()
	}
	return total
}

func (h *Handle) refreshStatus() {
	if h.Outstanding() == 0 {
		h.Status = HandleClosed
	} else {
		h.Status = HandleOpen
	}
}

// HandleRepository persists handles. Update enforces the optimistic version.
type HandleRepository interface {
	Create(ctx context.Context, h *Handle) error
	Update(ctx context.Context, h *Handle) error
	Get(ctx context.Context, handleID id.ID) (*Handle, error)
}

// consumedLine finds the line a consume of qty at key was drawn from, or -1.
func (h *Handle) consumedLine(key stock.Key, batchID *id.ID, qty types.Quantity) int {
	for i, l := range h.Lines {
		if l.Key() == key && sameBatch(l.BatchID, batchID) && l.Consumed >= qty {
			return i
		}
	}
	return -1
}

func sameBatch(a, b *id.ID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
