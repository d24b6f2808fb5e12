// Package catalog declares the collaborator data the stock core reads but
// never writes: products, warehouses with their locations, and purchase orders.
package catalog

import (
	"context"
	"time"

	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
)

// ZoneType classifies storage locations.
type ZoneType string

const (
	ZoneStorage   ZoneType = "STORAGE"
	ZoneBulk      ZoneType = "BULK"
	ZonePicking   ZoneType = "PICKING"
	ZoneReceiving ZoneType = "RECEIVING"
	ZoneShipping  ZoneType = "SHIPPING"
	ZoneCold      ZoneType = "COLD"
)

// Product is the slice of the product catalog the core needs.
type Product struct {
	ID           id.ID          `db:"id" json:"id"`
	SKU          string         `db:"sku" json:"sku"`
	Name         string         `db:"name" json:"name"`
	ReorderPoint types.Quantity `db:"reorder_point" json:"reorderPoint"`
	CostPrice    types.Money    `db:"cost_price" json:"costPrice"`
	// ABCClass is A, B or C; empty when unclassified
	ABCClass string `db:"abc_class" json:"abcClass,omitempty"`
}

type Warehouse struct {
	ID     id.ID  `db:"id" json:"id"`
	Code   string `db:"code" json:"code"`
	Name   string `db:"name" json:"name"`
	Active bool   `db:"is_active" json:"isActive"`
}

// Location is one slot of a warehouse. Capacity 0 means unbounded.
type Location struct {
	ID          id.ID          `db:"id" json:"id"`
	WarehouseID id.ID          `db:"warehouse_id" json:"warehouseId"`
	Code        string         `db:"code" json:"code"`
	Zone        ZoneType       `db:"zone" json:"zone"`
	Capacity    types.Quantity `db:"capacity" json:"capacity"`
	Active      bool           `db:"is_active" json:"isActive"`
	SortOrder   int            `db:"sort_order" json:"sortOrder"`
}

// Fits reports whether occupancy plus qty stays within capacity.
func (l Location) Fits(occupancy, qty types.Quantity) bool {
	return l.Capacity == 0 || occupancy+qty <= l.Capacity
}

type PurchaseOrderLine struct {
	ProductID id.ID          `db:"product_id" json:"productId"`
	Ordered   types.Quantity `db:"ordered_quantity" json:"orderedQuantity"`
	UnitCost  types.Money    `db:"unit_cost" json:"unitCost"`
}

type PurchaseOrder struct {
	ID          id.ID               `db:"id" json:"id"`
	Number      string              `db:"number" json:"number"`
	SupplierID  id.ID               `db:"supplier_id" json:"supplierId"`
	WarehouseID id.ID               `db:"warehouse_id" json:"warehouseId"`
	OrderedAt   time.Time           `db:"ordered_at" json:"orderedAt"`
	Lines       []PurchaseOrderLine `db:"-" json:"lines"`
}

// Line returns the order line for a product.
func (po *PurchaseOrder) Line(productID id.ID) (PurchaseOrderLine, bool) {
	for _, l := range po.Lines {
		if l.ProductID == productID {
			return l, true
		}
	}
	return PurchaseOrderLine{}, false
}

// Directory resolves collaborator records. Lookups of unknown ids return NotFound.
type Directory interface {
	Product(ctx context.Context, productID id.ID) (*Product, error)
	Warehouse(ctx context.Context, warehouseID id.ID) (*Warehouse, error)
	Location(ctx context.Context, locationID id.ID) (*Location, error)
	// Locations lists a warehouse's locations ordered by sort order, then code.
	Locations(ctx context.Context, warehouseID id.ID) ([]Location, error)
	PurchaseOrder(ctx context.Context, orderID id.ID) (*PurchaseOrder, error)
}
