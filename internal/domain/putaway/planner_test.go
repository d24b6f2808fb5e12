package putaway_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/core/keylock"
	"stockcore/internal/core/tx"
	"stockcore/internal/core/types"
	"stockcore/internal/domain/catalog"
	"stockcore/internal/domain/putaway"
	"stockcore/internal/domain/registers/stock"
	"stockcore/internal/infrastructure/storage/memory"
)

type fixture struct {
	planner   *putaway.Planner
	ledger    *stock.Ledger
	dir       *memory.Directory
	product   id.ID
	warehouse id.ID
	general   id.ID
	bulk      id.ID
	cold      id.ID
	dock      id.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ledger:    stock.NewLedger(memory.NewStockRepo(), tx.Direct{}, keylock.New()),
		dir:       memory.NewDirectory(),
		product:   id.New(),
		warehouse: id.New(),
		general:   id.New(),
		bulk:      id.New(),
		cold:      id.New(),
		dock:      id.New(),
	}
	f.dir.PutProduct(catalog.Product{ID: f.product, SKU: "SKU-1", ABCClass: "A"})
	f.dir.PutWarehouse(catalog.Warehouse{ID: f.warehouse, Code: "WH1", Active: true})
	f.dir.PutLocation(catalog.Location{ID: f.general, WarehouseID: f.warehouse, Code: "A-01", Zone: catalog.ZoneStorage, Capacity: types.Units(10), Active: true, SortOrder: 1})
	f.dir.PutLocation(catalog.Location{ID: f.bulk, WarehouseID: f.warehouse, Code: "B-01", Zone: catalog.ZoneBulk, Active: true, SortOrder: 2})
	f.dir.PutLocation(catalog.Location{ID: f.cold, WarehouseID: f.warehouse, Code: "C-01", Zone: catalog.ZoneCold, Active: true, SortOrder: 3})
	f.dir.PutLocation(catalog.Location{ID: f.dock, WarehouseID: f.warehouse, Code: "D-01", Zone: catalog.ZoneShipping, Active: false, SortOrder: 4})
	f.planner = putaway.NewPlanner(memory.NewRuleRepo(), f.dir, f.ledger)
	return f
}

func (f *fixture) rule(t *testing.T, priority int, s putaway.Strategy) *putaway.Rule {
	t.Helper()
	r, err := f.planner.CreateRule(context.Background(), putaway.CreateRuleInput{
		WarehouseID: f.warehouse, Name: string(s.Kind()), Priority: priority, Active: true, Strategy: s,
	})
	require.NoError(t, err)
	return r
}

func (f *fixture) request(units int64) putaway.Request {
	return putaway.Request{ProductID: f.product, WarehouseID: f.warehouse, Quantity: types.Units(units)}
}

func TestSuggest_HighestPriorityWins(t *testing.T) {
	f := newFixture(t)
	f.rule(t, 1, putaway.FixedLocation{LocationID: f.general})
	cold := f.rule(t, 5, putaway.FixedLocation{LocationID: f.cold})

	d, err := f.planner.Suggest(context.Background(), f.request(3))
	require.NoError(t, err)
	assert.Equal(t, f.cold, d.LocationID)
	require.NotNil(t, d.RuleID)
	assert.Equal(t, cold.ID, *d.RuleID)
	assert.Equal(t, putaway.KindFixedLocation, d.Kind)
}

func TestSuggest_SkipsInactiveLocationAndOtherProducts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.rule(t, 9, putaway.CrossDock{LocationID: f.dock})

	other := id.New()
	_, err := f.planner.CreateRule(ctx, putaway.CreateRuleInput{
		WarehouseID: f.warehouse, ProductID: &other, Priority: 8, Active: true,
		Strategy: putaway.FixedLocation{LocationID: f.cold},
	})
	require.NoError(t, err)
	f.rule(t, 1, putaway.FixedLocation{LocationID: f.bulk})

	d, err := f.planner.Suggest(ctx, f.request(1))
	require.NoError(t, err)
	assert.Equal(t, f.bulk, d.LocationID)
}

func TestSuggest_NearestAvailableRespectsCapacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.ledger.ApplyMovement(ctx, stock.Change{
		Key:           stock.NewKey(f.product, f.warehouse, &f.general),
		Kind:          stock.KindReceive,
		QuantityDelta: types.Units(8),
	})
	require.NoError(t, err)
	f.rule(t, 1, putaway.NearestAvailable{})

	d, err := f.planner.Suggest(ctx, f.request(2))
	require.NoError(t, err)
	assert.Equal(t, f.general, d.LocationID, "8 + 2 still fits a capacity of 10")

	d, err = f.planner.Suggest(ctx, f.request(3))
	require.NoError(t, err)
	assert.Equal(t, f.bulk, d.LocationID)
}

func TestSuggest_FEFOOnlyForShortDatedBatches(t *testing.T) {
	f := newFixture(t)
	f.rule(t, 5, putaway.FEFO{LocationID: f.cold, MaxDaysToExpiry: 30})

	soon := time.Now().UTC().Add(10 * 24 * time.Hour)
	later := time.Now().UTC().Add(90 * 24 * time.Hour)

	req := f.request(1)
	req.BatchExpiresAt = &soon
	d, err := f.planner.Suggest(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, f.cold, d.LocationID)

	req.BatchExpiresAt = &later
	d, err = f.planner.Suggest(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, putaway.KindFallback, d.Kind)
	assert.Equal(t, f.general, d.LocationID)
}

func TestSuggest_ABCAndBulk(t *testing.T) {
	f := newFixture(t)
	f.rule(t, 5, putaway.ABC{Class: "B", Zone: catalog.ZoneCold})
	f.rule(t, 4, putaway.BulkStorage{MinQuantity: types.Units(50)})
	f.rule(t, 3, putaway.ABC{Class: "A", Zone: catalog.ZoneCold})

	d, err := f.planner.Suggest(context.Background(), f.request(60))
	require.NoError(t, err)
	assert.Equal(t, f.bulk, d.LocationID)
	assert.Equal(t, putaway.KindBulkStorage, d.Kind)

	d, err = f.planner.Suggest(context.Background(), f.request(5))
	require.NoError(t, err)
	assert.Equal(t, f.cold, d.LocationID)
	assert.Equal(t, putaway.KindABC, d.Kind)
}

func TestSuggest_NoActiveLocation(t *testing.T) {
	f := newFixture(t)
	empty := id.New()
	f.dir.PutWarehouse(catalog.Warehouse{ID: empty, Code: "WH2", Active: true})

	_, err := f.planner.Suggest(context.Background(), putaway.Request{ProductID: f.product, WarehouseID: empty, Quantity: types.Units(1)})
	assert.True(t, apperror.Is(err, apperror.CodeValidation))
}

func TestCreateRule_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	foreign := id.New()
	f.dir.PutLocation(catalog.Location{ID: foreign, WarehouseID: id.New(), Code: "X", Active: true})

	tests := []struct {
		name     string
		strategy putaway.Strategy
	}{
		{"missing strategy", nil},
		{"fixed without location", putaway.FixedLocation{}},
		{"fefo without horizon", putaway.FEFO{LocationID: f.cold}},
		{"abc bad class", putaway.ABC{Class: "D", Zone: catalog.ZoneCold}},
		{"bulk without minimum", putaway.BulkStorage{}},
		{"location of another warehouse", putaway.FixedLocation{LocationID: foreign}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.planner.CreateRule(ctx, putaway.CreateRuleInput{WarehouseID: f.warehouse, Active: true, Strategy: tt.strategy})
			assert.True(t, apperror.Is(err, apperror.CodeValidation), "got %v", err)
		})
	}
}

func TestRules_DeleteAndOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	low := f.rule(t, 1, putaway.NearestAvailable{})
	high := f.rule(t, 7, putaway.BulkStorage{MinQuantity: types.Units(5)})

	rules, err := f.planner.Rules(ctx, f.warehouse)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, high.ID, rules[0].ID)

	require.NoError(t, f.planner.DeleteRule(ctx, low.ID))
	assert.True(t, apperror.IsNotFound(f.planner.DeleteRule(ctx, low.ID)))
}

func TestRule_JSONEnvelope(t *testing.T) {
	loc := id.New()
	in := putaway.Rule{ID: id.New(), WarehouseID: id.New(), Priority: 3, Active: true,
		Strategy: putaway.FEFO{LocationID: loc, MaxDaysToExpiry: 14}}

	raw, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"kind":"FEFO"`)

	var out putaway.Rule
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, putaway.FEFO{LocationID: loc, MaxDaysToExpiry: 14}, out.Strategy)

	_, err = putaway.Decode(putaway.Envelope{Kind: "TELEPORT"})
	assert.True(t, apperror.Is(err, apperror.CodeValidation))
}
