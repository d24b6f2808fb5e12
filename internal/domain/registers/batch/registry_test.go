package batch_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/core/keylock"
	"stockcore/internal/core/tx"
	"stockcore/internal/core/types"
	"stockcore/internal/domain/events"
	"stockcore/internal/domain/registers/batch"
	"stockcore/internal/domain/registers/stock"
	"stockcore/internal/infrastructure/storage/memory"
)

type fixture struct {
	ledger    *stock.Ledger
	registry  *batch.Registry
	product   id.ID
	warehouse id.ID
	location  id.ID
}

func newFixture() *fixture {
	locks := keylock.New()
	ledger := stock.NewLedger(memory.NewStockRepo(), tx.Direct{}, locks)
	registry := batch.NewRegistry(memory.NewBatchRepo(), tx.Direct{}, locks)
	ledger.AttachBatches(registry)
	return &fixture{
		ledger:    ledger,
		registry:  registry,
		product:   id.New(),
		warehouse: id.New(),
		location:  id.New(),
	}
}

func (f *fixture) key() stock.Key {
	return stock.NewKey(f.product, f.warehouse, &f.location)
}

func (f *fixture) create(t *testing.T, number string, expiresIn time.Duration) *batch.Batch {
	t.Helper()
	in := batch.CreateInput{BatchNumber: number, ProductID: f.product, WarehouseID: f.warehouse}
	if expiresIn != 0 {
		exp := time.Now().UTC().Add(expiresIn)
		in.ExpiresAt = &exp
	}
	b, err := f.registry.Create(context.Background(), in)
	require.NoError(t, err)
	return b
}

func (f *fixture) apply(t *testing.T, b *batch.Batch, kind stock.MovementKind, units int64) error {
	t.Helper()
	_, err := f.ledger.ApplyMovement(context.Background(), stock.Change{
		Key:           f.key(),
		QuantityDelta: types.Units(units),
		Kind:          kind,
		BatchID:       &b.ID,
	})
	return err
}

func TestQualityTransitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	b := f.create(t, "LOT-1", 0)
	assert.Equal(t, batch.QualityPending, b.QualityStatus)

	_, err := f.registry.SetQualityStatus(ctx, b.ID, batch.QualityReleased)
	assert.True(t, apperror.Is(err, apperror.CodeInvalidStateTransition))

	steps := []batch.QualityStatus{batch.QualityQuarantine, batch.QualityApproved, batch.QualityReleased}
	for _, s := range steps {
		got, err := f.registry.SetQualityStatus(ctx, b.ID, s)
		require.NoError(t, err)
		assert.Equal(t, s, got.QualityStatus)
	}

	_, err = f.registry.SetQualityStatus(ctx, b.ID, batch.QualityQuarantine)
	assert.True(t, apperror.Is(err, apperror.CodeInvalidStateTransition))
}

func TestCreate_DuplicateNumber(t *testing.T) {
	f := newFixture()
	f.create(t, "LOT-1", 0)
	_, err := f.registry.Create(context.Background(), batch.CreateInput{
		BatchNumber: "LOT-1", ProductID: f.product, WarehouseID: f.warehouse,
	})
	assert.True(t, apperror.Is(err, apperror.CodeDuplicate))
}

func TestApplyBatch_TracksQuantities(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	b := f.create(t, "LOT-1", 0)

	require.NoError(t, f.apply(t, b, stock.KindReceive, 10))
	require.NoError(t, f.apply(t, b, stock.KindAdjustment, -4))

	got, err := f.registry.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, types.Units(10), got.InitialQuantity)
	assert.Equal(t, types.Units(6), got.CurrentQuantity)
	assert.NotNil(t, got.ReceivedAt)

	levels, err := f.registry.Levels(ctx, batch.LevelFilter{BatchID: &b.ID})
	require.NoError(t, err)
	require.Len(t, levels, 1)
	assert.Equal(t, types.Units(6), levels[0].Quantity)
	assert.Equal(t, int64(2), levels[0].Sequence)
	assert.Equal(t, f.key(), levels[0].StockKey())
}

func TestApplyBatch_FailureLeavesStockUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	lot := f.create(t, "LOT-1", 0)
	other := f.create(t, "LOT-2", 0)

	require.NoError(t, f.apply(t, lot, stock.KindReceive, 5))
	require.NoError(t, f.apply(t, other, stock.KindReceive, 5))

	err := f.apply(t, lot, stock.KindAdjustment, -7)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.CodeInsufficientStock))

	level, _, err := f.ledger.GetLevel(ctx, f.key())
	require.NoError(t, err)
	assert.Equal(t, types.Units(10), level.Quantity)
	require.NoError(t, f.ledger.Verify(ctx, f.key()))
}

func TestApplyBatch_InboundBeyondInitialIsInvariantViolation(t *testing.T) {
	f := newFixture()
	b := f.create(t, "LOT-1", 0)
	require.NoError(t, f.apply(t, b, stock.KindReceive, 3))

	err := f.apply(t, b, stock.KindAdjustment, 1)
	assert.True(t, apperror.Is(err, apperror.CodeInvariantViolation))
}

func TestExpiringAndExpired(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	late := f.create(t, "LATE", 20*24*time.Hour)
	soon := f.create(t, "SOON", 5*24*time.Hour)
	gone := f.create(t, "GONE", -24*time.Hour)
	f.create(t, "EMPTY", 2*24*time.Hour)

	for _, b := range []*batch.Batch{late, soon, gone} {
		require.NoError(t, f.apply(t, b, stock.KindReceive, 1))
	}

	expiring, err := f.registry.Expiring(ctx, 30)
	require.NoError(t, err)
	require.Len(t, expiring, 2)
	assert.Equal(t, "SOON", expiring[0].BatchNumber)
	assert.Equal(t, "LATE", expiring[1].BatchNumber)

	expiring, err = f.registry.Expiring(ctx, 7)
	require.NoError(t, err)
	require.Len(t, expiring, 1)

	expired, err := f.registry.Expired(ctx)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "GONE", expired[0].BatchNumber)
}

func TestDaysUntilExpiration(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	exp := now.Add(36 * time.Hour)
	b := batch.Batch{ExpiresAt: &exp}

	days, ok := b.DaysUntilExpiration(now)
	assert.True(t, ok)
	assert.Equal(t, 2, days)

	_, ok = (&batch.Batch{}).DaysUntilExpiration(now)
	assert.False(t, ok)
}

func TestTraceability(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	made := time.Now().UTC().Add(-48 * time.Hour)
	exp := time.Now().UTC().Add(90 * 24 * time.Hour)
	b, err := f.registry.Create(ctx, batch.CreateInput{
		BatchNumber: "TRACE-1", ProductID: f.product, WarehouseID: f.warehouse,
		ManufacturedAt: &made, ExpiresAt: &exp,
	})
	require.NoError(t, err)

	require.NoError(t, f.apply(t, b, stock.KindReceive, 4))
	require.NoError(t, f.apply(t, b, stock.KindPick, -1))

	trace, err := f.registry.Traceability(ctx, "TRACE-1")
	require.NoError(t, err)
	require.Len(t, trace.Movements, 2)
	assert.Equal(t, stock.KindReceive, trace.Movements[0].Kind)
	assert.Equal(t, stock.KindPick, trace.Movements[1].Kind)

	milestones := make([]string, len(trace.Timeline))
	for i, e := range trace.Timeline {
		milestones[i] = e.Event
	}
	assert.Equal(t, []string{"manufactured", "created", "received", "expiration"}, milestones)

	_, err = f.registry.Traceability(ctx, "MISSING")
	assert.True(t, apperror.IsNotFound(err))
}

func TestReleasedLots(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	released := f.create(t, "REL", 10*24*time.Hour)
	pending := f.create(t, "PEND", 5*24*time.Hour)
	require.NoError(t, f.apply(t, released, stock.KindReceive, 3))
	require.NoError(t, f.apply(t, pending, stock.KindReceive, 3))

	for _, s := range []batch.QualityStatus{batch.QualityApproved, batch.QualityReleased} {
		_, err := f.registry.SetQualityStatus(ctx, released.ID, s)
		require.NoError(t, err)
	}

	lots, err := f.registry.ReleasedLots(ctx, f.product, f.warehouse)
	require.NoError(t, err)
	require.Len(t, lots, 1)
	assert.Equal(t, "REL", lots[0].Batch.BatchNumber)
	assert.Equal(t, types.Units(3), lots[0].Level.Available())
}

func TestNotifyExpiry(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	soon := f.create(t, "SOON", 3*24*time.Hour)
	gone := f.create(t, "GONE", -time.Hour)
	require.NoError(t, f.apply(t, soon, stock.KindReceive, 1))
	require.NoError(t, f.apply(t, gone, stock.KindReceive, 1))

	var rec events.Recorder
	expiring, expired, err := f.registry.NotifyExpiry(ctx, &rec, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, expiring)
	assert.Equal(t, 1, expired)

	require.Len(t, rec.Events(events.TypeBatchExpiring), 1)
	got := rec.Events(events.TypeBatchExpired)
	require.Len(t, got, 1)
	assert.Equal(t, gone.ID, got[0].AggregateID)
}

func TestQualityTransitions_ApprovedBackToQuarantine(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	b := f.create(t, "LOT-2", 0)

	for _, s := range []batch.QualityStatus{batch.QualityApproved, batch.QualityQuarantine, batch.QualityApproved, batch.QualityReleased} {
		got, err := f.registry.SetQualityStatus(ctx, b.ID, s)
		require.NoError(t, err)
		assert.Equal(t, s, got.QualityStatus)
	}
}
