package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/domain/catalog"
)

// Directory is a static catalog.Directory filled by the caller; used by tests
// and by the memory driver, which seeds it from a fixtures file.
// See LoadDirectory.
type Directory struct {
	mu         sync.RWMutex
	products   map[id.ID]catalog.Product
	warehouses map[id.ID]catalog.Warehouse
	locations  map[id.ID]catalog.Location
	orders     map[id.ID]catalog.PurchaseOrder
}

func NewDirectory() *Directory {
	return &Directory{
		products:   make(map[id.ID]catalog.Product),
		warehouses: make(map[id.ID]catalog.Warehouse),
		locations:  make(map[id.ID]catalog.Location),
		orders:     make(map[id.ID]catalog.PurchaseOrder),
	}
}

var _ catalog.Directory = (*Directory)(nil)

func (d *Directory) PutProduct(p catalog.Product) {
	d.mu.Lock()
	d.products[p.ID] = p
	d.mu.Unlock()
}

func (d *Directory) PutWarehouse(w catalog.Warehouse) {
	d.mu.Lock()
	d.warehouses[w.ID] = w
	d.mu.Unlock()
}

func (d *Directory) PutLocation(l catalog.Location) {
	d.mu.Lock()
	d.locations[l.ID] = l
	d.mu.Unlock()
}

func (d *Directory) PutPurchaseOrder(po catalog.PurchaseOrder) {
	d.mu.Lock()
	d.orders[po.ID] = po
	d.mu.Unlock()
}

func (d *Directory) Product(_ context.Context, productID id.ID) (*catalog.Product, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.products[productID]
	if !ok {
		return nil, apperror.NewNotFound("product", productID)
	}
	return &p, nil
}

func (d *Directory) Warehouse(_ context.Context, warehouseID id.ID) (*catalog.Warehouse, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	w, ok := d.warehouses[warehouseID]
	if !ok {
		return nil, apperror.NewNotFound("warehouse", warehouseID)
	}
	return &w, nil
}

func (d *Directory) Location(_ context.Context, locationID id.ID) (*catalog.Location, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	l, ok := d.locations[locationID]
	if !ok {
		return nil, apperror.NewNotFound("location", locationID)
	}
	return &l, nil
}

func (d *Directory) Locations(_ context.Context, warehouseID id.ID) ([]catalog.Location, error) {
	d.mu.RLock()
	var out []catalog.Location
	for _, l := range d.locations {
		if l.WarehouseID == warehouseID {
			out = append(out, l)
		}
	}
	d.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].Code < out[j].Code
	})
	return out, nil
}

func (d *Directory) PurchaseOrder(_ context.Context, orderID id.ID) (*catalog.PurchaseOrder, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	po, ok := d.orders[orderID]
	if !ok {
		return nil, apperror.NewNotFound("purchase order", orderID)
	}
	return &po, nil
}

// Fixtures is the JSON layout accepted by LoadDirectory.
type Fixtures struct {
	Products       []catalog.Product       `json:"products"`
	Warehouses     []catalog.Warehouse     `json:"warehouses"`
	Locations      []catalog.Location      `json:"locations"`
	PurchaseOrders []catalog.PurchaseOrder `json:"purchaseOrders"`
}

// ReadFixtures decodes a fixtures file.
func ReadFixtures(path string) (Fixtures, error) {
	var fx Fixtures
	raw, err := os.ReadFile(path)
	if err != nil {
		return fx, fmt.Errorf("read fixtures: %w", err)
	}
	if err := json.Unmarshal(raw, &fx); err != nil {
		return fx, fmt.Errorf("decode fixtures %s: %w", path, err)
	}
	return fx, nil
}

// LoadDirectory builds a Directory from a fixtures file.
func LoadDirectory(path string) (*Directory, error) {
	fx, err := ReadFixtures(path)
	if err != nil {
		return nil, err
	}
	return NewDirectoryFrom(fx), nil
}

// NewDirectoryFrom builds a Directory holding fx.
func NewDirectoryFrom(fx Fixtures) *Directory {
	d := NewDirectory()
	for _, p := range fx.Products {
		d.PutProduct(p)
	}
	for _, w := range fx.Warehouses {
		d.PutWarehouse(w)
	}
	for _, l := range fx.Locations {
		d.PutLocation(l)
	}
	for _, po := range fx.PurchaseOrders {
		d.PutPurchaseOrder(po)
	}
	return d
}
