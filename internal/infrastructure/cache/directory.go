// Package cache provides caching infrastructure with PostgreSQL LISTEN/NOTIFY support.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"stockcore/internal/core/id"
	"stockcore/internal/domain/catalog"
	"stockcore/pkg/logger"
)

// NotifyChannel is the channel the catalog triggers publish on. The payload
// is "<table>:<id>"; an empty payload invalidates everything.
const NotifyChannel = "catalog_changed"

// Directory caches the catalog lookups of the stock core. Products,
// warehouses and locations change rarely and are read on every posting;
// purchase orders always go to the source.
type Directory struct {
	source catalog.Directory

	mu         sync.RWMutex
	products   map[id.ID]catalog.Product
	warehouses map[id.ID]catalog.Warehouse
	locations  map[id.ID]catalog.Location
	// byWarehouse holds the ordered location list per warehouse
	byWarehouse map[id.ID][]catalog.Location

	lifecycleMu sync.Mutex
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

func NewDirectory(source catalog.Directory) *Directory {
	d := &Directory{source: source}
	d.reset()
	return d
}

var _ catalog.Directory = (*Directory)(nil)

func (d *Directory) reset() {
	d.products = make(map[id.ID]catalog.Product)
	d.warehouses = make(map[id.ID]catalog.Warehouse)
	d.locations = make(map[id.ID]catalog.Location)
	d.byWarehouse = make(map[id.ID][]catalog.Location)
}

func (d *Directory) Product(ctx context.Context, productID id.ID) (*catalog.Product, error) {
	d.mu.RLock()
	p, ok := d.products[productID]
	d.mu.RUnlock()
	if ok {
		return &p, nil
	}

	loaded, err := d.source.Product(ctx, productID)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.products[productID] = *loaded
	d.mu.Unlock()
	return loaded, nil
}

func (d *Directory) Warehouse(ctx context.Context, warehouseID id.ID) (*catalog.Warehouse, error) {
	d.mu.RLock()
	w, ok := d.warehouses[warehouseID]
	d.mu.RUnlock()
	if ok {
		return &w, nil
	}

	loaded, err := d.source.Warehouse(ctx, warehouseID)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.warehouses[warehouseID] = *loaded
	d.mu.Unlock()
	return loaded, nil
}

func (d *Directory) Location(ctx context.Context, locationID id.ID) (*catalog.Location, error) {
	d.mu.RLock()
	l, ok := d.locations[locationID]
	d.mu.RUnlock()
	if ok {
		return &l, nil
	}

	loaded, err := d.source.Location(ctx, locationID)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.locations[locationID] = *loaded
	d.mu.Unlock()
	return loaded, nil
}

// Locations returns a copy; callers may reorder it.
func (d *Directory) Locations(ctx context.Context, warehouseID id.ID) ([]catalog.Location, error) {
	d.mu.RLock()
	list, ok := d.byWarehouse[warehouseID]
	d.mu.RUnlock()
	if ok {
		return append([]catalog.Location(nil), list...), nil
	}

	loaded, err := d.source.Locations(ctx, warehouseID)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.byWarehouse[warehouseID] = loaded
	for _, l := range loaded {
		d.locations[l.ID] = l
	}
	d.mu.Unlock()
	return append([]catalog.Location(nil), loaded...), nil
}

func (d *Directory) PurchaseOrder(ctx context.Context, orderID id.ID) (*catalog.PurchaseOrder, error) {
	return d.source.PurchaseOrder(ctx, orderID)
}

// Invalidate drops the entries a notification payload names. Unknown or
// empty payloads flush the whole cache.
func (d *Directory) Invalidate(payload string) {
	table, raw, _ := strings.Cut(strings.TrimSpace(payload), ":")
	entityID, err := id.Parse(raw)

	d.mu.Lock()
	defer d.mu.Unlock()

	if err != nil {
		d.reset()
		return
	}
	switch table {
	case "cat_products":
		delete(d.products, entityID)
	case "cat_warehouses":
		delete(d.warehouses, entityID)
		delete(d.byWarehouse, entityID)
	case "cat_locations":
		if l, ok := d.locations[entityID]; ok {
			delete(d.byWarehouse, l.WarehouseID)
		} else {
			// a new location: its warehouse is unknown here
			d.byWarehouse = make(map[id.ID][]catalog.Location)
		}
		delete(d.locations, entityID)
	default:
		d.reset()
	}
}

// Listen keeps the cache coherent with NOTIFY events on pool until Stop.
func (d *Directory) Listen(ctx context.Context, pool *pgxpool.Pool) {
	d.lifecycleMu.Lock()
	defer d.lifecycleMu.Unlock()
	if d.cancel != nil {
		return
	}
	ctx, d.cancel = context.WithCancel(ctx)

	d.wg.Add(1)
	go d.listenLoop(ctx, pool)
}

// Stop ends the listener and waits for it.
func (d *Directory) Stop() {
	d.lifecycleMu.Lock()
	cancel := d.cancel
	d.cancel = nil
	d.lifecycleMu.Unlock()

	if cancel != nil {
		cancel()
	}
	d.wg.Wait()
}

func (d *Directory) listenLoop(ctx context.Context, pool *pgxpool.Pool) {
	defer d.wg.Done()

	for ctx.Err() == nil {
		conn, err := pool.Acquire(ctx)
		if err != nil {
			logger.Error(ctx, "failed to acquire connection for LISTEN", "error", err)
			sleep(ctx, time.Second)
			continue
		}

		if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
			logger.Error(ctx, "failed to LISTEN", "error", err)
			conn.Release()
			sleep(ctx, time.Second)
			continue
		}
		// anything may have changed while no connection was listening
		d.Invalidate("")
		logger.Info(ctx, "listening for catalog notifications", "channel", NotifyChannel)

		d.waitForNotifications(ctx, conn)
		conn.Release()
	}
}

func (d *Directory) waitForNotifications(ctx context.Context, conn *pgxpool.Conn) {
	for {
		waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		n, err := conn.Conn().WaitForNotification(waitCtx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if waitCtx.Err() != nil && !conn.Conn().IsClosed() {
				// Timeout is expected, continue listening
				continue
			}
			logger.Warn(ctx, "catalog listener connection lost", "error", err)
			return
		}

		logger.Debug(ctx, "catalog changed", "payload", n.Payload)
		d.Invalidate(n.Payload)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
