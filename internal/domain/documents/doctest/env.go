// Package doctest wires an in-memory inventory core for document workflow tests.
package doctest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"stockcore/internal/core/id"
	"stockcore/internal/core/keylock"
	"stockcore/internal/core/numerator"
	"stockcore/internal/core/tx"
	"stockcore/internal/core/types"
	"stockcore/internal/domain/allocation"
	"stockcore/internal/domain/catalog"
	"stockcore/internal/domain/events"
	"stockcore/internal/domain/putaway"
	"stockcore/internal/domain/registers/batch"
	"stockcore/internal/domain/registers/stock"
	"stockcore/internal/domain/reservation"
	"stockcore/internal/infrastructure/storage/memory"
)

// Env is one warehouse pair with two locations each and a single product.
type Env struct {
	Locks       *keylock.Table
	Ledger      *stock.Ledger
	Batches     *batch.Registry
	Coordinator *reservation.Coordinator
	Planner     *putaway.Planner
	Directory   *memory.Directory
	Numerator   *numerator.Memory
	Events      *events.Recorder

	Product   id.ID
	Warehouse id.ID
	LocA      id.ID
	LocB      id.ID

	Remote     id.ID
	RemoteLocA id.ID
}

func New(t *testing.T) *Env {
	t.Helper()
	locks := keylock.New()
	ledger := stock.NewLedger(memory.NewStockRepo(), tx.Direct{}, locks)
	registry := batch.NewRegistry(memory.NewBatchRepo(), tx.Direct{}, locks)
	ledger.AttachBatches(registry)

	e := &Env{
		Locks:      locks,
		Ledger:     ledger,
		Batches:    registry,
		Directory:  memory.NewDirectory(),
		Numerator:  numerator.NewMemory(),
		Events:     &events.Recorder{},
		Product:    id.New(),
		Warehouse:  id.New(),
		LocA:       id.New(),
		LocB:       id.New(),
		Remote:     id.New(),
		RemoteLocA: id.New(),
	}
	e.Directory.PutProduct(catalog.Product{ID: e.Product, SKU: "SKU-1", Name: "Widget", CostPrice: types.MustMoney("2.50")})
	e.Directory.PutWarehouse(catalog.Warehouse{ID: e.Warehouse, Code: "WH1", Active: true})
	e.Directory.PutWarehouse(catalog.Warehouse{ID: e.Remote, Code: "WH2", Active: true})
	e.Directory.PutLocation(catalog.Location{ID: e.LocA, WarehouseID: e.Warehouse, Code: "A-01", Zone: catalog.ZoneStorage, Active: true, SortOrder: 1})
	e.Directory.PutLocation(catalog.Location{ID: e.LocB, WarehouseID: e.Warehouse, Code: "A-02", Zone: catalog.ZoneStorage, Active: true, SortOrder: 2})
	e.Directory.PutLocation(catalog.Location{ID: e.RemoteLocA, WarehouseID: e.Remote, Code: "R-01", Zone: catalog.ZoneStorage, Active: true, SortOrder: 1})

	e.Coordinator = reservation.NewCoordinator(ledger, allocation.NewResolver(ledger, registry), memory.NewHandleRepo(), e.Directory, locks, e.Events)
	e.Planner = putaway.NewPlanner(memory.NewRuleRepo(), e.Directory, ledger)
	return e
}

// Key is the product at a location of the main warehouse.
func (e *Env) Key(loc id.ID) stock.Key { return stock.NewKey(e.Product, e.Warehouse, &loc) }

// Stock receives units at loc.
func (e *Env) Stock(t *testing.T, loc id.ID, units int64) {
	t.Helper()
	_, err := e.Coordinator.Receive(context.Background(), reservation.ReceiveInput{Key: e.Key(loc), Quantity: types.Units(units)})
	require.NoError(t, err)
}

// Level reads a level, zero if absent.
func (e *Env) Level(t *testing.T, key stock.Key) stock.Level {
	t.Helper()
	lv, _, err := e.Coordinator.GetLevel(context.Background(), key)
	require.NoError(t, err)
	return lv
}

// Verify replays key's movements against its level.
func (e *Env) Verify(t *testing.T, keys ...stock.Key) {
	t.Helper()
	for _, k := range keys {
		require.NoError(t, e.Coordinator.Verify(context.Background(), k))
	}
}
