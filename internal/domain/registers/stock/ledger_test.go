package stock_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/core/keylock"
	"stockcore/internal/core/tx"
	"stockcore/internal/core/types"
	"stockcore/internal/domain/registers/stock"
	"stockcore/internal/infrastructure/storage/memory"
)

func newLedger() (*stock.Ledger, *memory.StockRepo) {
	repo := memory.NewStockRepo()
	return stock.NewLedger(repo, tx.Direct{}, keylock.New()), repo
}

func testKey() stock.Key {
	loc := id.New()
	return stock.NewKey(id.New(), id.New(), &loc)
}

func receive(t *testing.T, l *stock.Ledger, key stock.Key, units int64) {
	t.Helper()
	_, err := l.ApplyMovement(context.Background(), stock.Change{
		Key:           key,
		QuantityDelta: types.Units(units),
		Kind:          stock.KindReceive,
	})
	require.NoError(t, err)
}

func TestApplyMovement_CreatesLevelAndMovement(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger()
	key := testKey()
	cost := types.MustMoney("2.50")

	res, err := l.ApplyMovement(ctx, stock.Change{
		Key:           key,
		QuantityDelta: types.Units(4),
		Kind:          stock.KindReceive,
		UnitCost:      &cost,
		ActorID:       "u-1",
	})
	require.NoError(t, err)
	require.NotNil(t, res.Movement)

	assert.Equal(t, int64(1), res.Movement.Sequence)
	assert.Equal(t, types.Units(4), res.Movement.QuantityAfter)
	assert.Equal(t, key.Location(), res.Movement.ToLocationID)
	assert.True(t, res.Movement.TotalCost.Equal(types.MustMoney("10")))
	assert.Equal(t, "u-1", res.Movement.ActorID)

	level, ok, err := l.GetLevel(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, types.Units(4), level.Quantity)
	assert.Equal(t, types.Units(4), level.Available())
}

func TestApplyMovement_InsufficientStockLeavesLevelUnchanged(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger()
	key := testKey()
	receive(t, l, key, 3)

	_, err := l.ApplyMovement(ctx, stock.Change{
		Key:           key,
		QuantityDelta: types.Units(-5),
		Kind:          stock.KindAdjustment,
	})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.CodeInsufficientStock))
	shortfall, ok := apperror.ShortfallOf(err)
	require.True(t, ok)
	assert.Equal(t, 2.0, shortfall)

	level, _, err := l.GetLevel(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, types.Units(3), level.Quantity)
	assert.Equal(t, int64(1), level.Sequence)
}

func TestApplyMovement_ReservationExceedsQuantity(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger()
	key := testKey()
	receive(t, l, key, 2)

	_, err := l.ApplyMovement(ctx, stock.Change{Key: key, ReservedDelta: types.Units(3)})
	assert.True(t, apperror.Is(err, apperror.CodeReservationExceedsQuantity))

	_, err = l.ApplyMovement(ctx, stock.Change{Key: key, ReservedDelta: types.Units(-1)})
	assert.True(t, apperror.Is(err, apperror.CodeInvariantViolation))
}

func TestApplyMovement_RejectsEmptyChange(t *testing.T) {
	_, err := newLedgerOnly().ApplyMovement(context.Background(), stock.Change{Key: testKey()})
	assert.True(t, apperror.Is(err, apperror.CodeValidation))
}

func newLedgerOnly() *stock.Ledger {
	l, _ := newLedger()
	return l
}

func TestVerify_ReplayMatchesQuantity(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger()
	key := testKey()

	receive(t, l, key, 10)
	_, err := l.ApplyMovement(ctx, stock.Change{Key: key, ReservedDelta: types.Units(4)})
	require.NoError(t, err)
	_, err = l.ApplyMovement(ctx, stock.Change{
		Key: key, QuantityDelta: types.Units(-4), ReservedDelta: types.Units(-4), Kind: stock.KindPick,
	})
	require.NoError(t, err)
	receive(t, l, key, 1)

	require.NoError(t, l.Verify(ctx, key))

	movements, err := l.Movements(ctx, stock.MovementFilter{ProductID: &key.ProductID})
	require.NoError(t, err)
	var sum types.Quantity
	for i, m := range movements {
		sum += m.Delta
		assert.Equal(t, int64(i+1), m.Sequence)
	}
	level, _, _ := l.GetLevel(ctx, key)
	assert.Equal(t, level.Quantity, sum)
	assert.Equal(t, types.Units(7), sum)
}

func TestVerify_DetectsTamperedLevel(t *testing.T) {
	ctx := context.Background()
	l, repo := newLedger()
	key := testKey()
	receive(t, l, key, 5)

	tampered := stock.Level{Key: key, Quantity: types.Units(9), Sequence: 1, CreatedAt: time.Now()}
	require.NoError(t, repo.SaveLevel(ctx, &tampered))

	err := l.Verify(ctx, key)
	assert.True(t, apperror.Is(err, apperror.CodeInvariantViolation))

	discrepancies, err := l.ReconcileAll(ctx)
	require.NoError(t, err)
	require.Len(t, discrepancies, 1)
	assert.Equal(t, key, discrepancies[0].Key)
}

func TestApplyMovement_ConcurrentUpdatesAreNotLost(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger()
	key := testKey()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.ApplyMovement(ctx, stock.Change{Key: key, QuantityDelta: types.Units(1), Kind: stock.KindReceive})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	level, _, err := l.GetLevel(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, types.Units(100), level.Quantity)
	assert.Equal(t, int64(100), level.Sequence)
	require.NoError(t, l.Verify(ctx, key))
}

func TestLevels_OrderedByCreation(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger()
	product, warehouse := id.New(), id.New()
	first, second := id.New(), id.New()

	receive(t, l, stock.NewKey(product, warehouse, &first), 1)
	time.Sleep(2 * time.Millisecond)
	receive(t, l, stock.NewKey(product, warehouse, &second), 1)

	levels, err := l.Levels(ctx, stock.LevelFilter{ProductID: &product, WarehouseID: &warehouse})
	require.NoError(t, err)
	require.Len(t, levels, 2)
	assert.Equal(t, first, levels[0].LocationID)
	assert.Equal(t, second, levels[1].LocationID)

	total, err := l.AvailableInWarehouse(ctx, product, warehouse)
	require.NoError(t, err)
	assert.Equal(t, types.Units(2), total)
}

func TestTurnover(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger()
	key := testKey()
	receive(t, l, key, 8)
	_, err := l.ApplyMovement(ctx, stock.Change{Key: key, QuantityDelta: types.Units(-3), Kind: stock.KindAdjustment})
	require.NoError(t, err)

	from := time.Now().Add(-time.Hour)
	turnover, err := l.Turnover(ctx, stock.TurnoverFilter{ProductID: &key.ProductID, FromDate: from, ToDate: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, types.Units(0), turnover.OpeningBalance)
	assert.Equal(t, types.Units(8), turnover.Receipt)
	assert.Equal(t, types.Units(3), turnover.Expense)
	assert.Equal(t, types.Units(5), turnover.ClosingBalance)
}

// fixedBatches reports constant batch totals for every key.
type fixedBatches struct {
	quantity, reserved types.Quantity
}

func (fixedBatches) ApplyBatch(context.Context, stock.Change, *stock.Movement) error { return nil }

func (b fixedBatches) KeyTotals(context.Context, stock.Key) (types.Quantity, types.Quantity, error) {
	return b.quantity, b.reserved, nil
}

func TestApplyMovement_UnbatchedChangeLimitedToUnbatchedShare(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger()
	l.AttachBatches(fixedBatches{quantity: types.Units(6)})
	key := testKey()
	receive(t, l, key, 10)

	_, err := l.ApplyMovement(ctx, stock.Change{Key: key, QuantityDelta: types.Units(-5), Kind: stock.KindAdjustment})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.CodeInsufficientStock))

	_, err = l.ApplyMovement(ctx, stock.Change{Key: key, ReservedDelta: types.Units(5)})
	assert.True(t, apperror.Is(err, apperror.CodeInsufficientStock))

	level, _, err := l.GetLevel(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, types.Units(10), level.Quantity)
	assert.Equal(t, types.Quantity(0), level.Reserved)

	_, err = l.ApplyMovement(ctx, stock.Change{Key: key, QuantityDelta: types.Units(-4), Kind: stock.KindAdjustment})
	require.NoError(t, err)
}

func TestVerify_DetectsBatchesExceedingLevel(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger()
	key := testKey()
	receive(t, l, key, 3)
	l.AttachBatches(fixedBatches{quantity: types.Units(5)})

	err := l.Verify(ctx, key)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.CodeInvariantViolation))

	discrepancies, err := l.ReconcileAll(ctx)
	require.NoError(t, err)
	require.Len(t, discrepancies, 1)
	assert.Equal(t, key, discrepancies[0].Key)
}
