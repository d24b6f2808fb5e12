package stock

import (
	"context"
	"fmt"
	"time"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/entity"
	"stockcore/internal/core/id"
	"stockcore/internal/core/keylock"
	"stockcore/internal/core/tx"
	"stockcore/internal/core/types"
	"stockcore/pkg/logger"
)

// BatchLedger is the batch sub-ledger. The Ledger calls it inside the key's
// critical section for changes that name a batch, before anything is written,
// so a batch-level failure leaves the stock level untouched. KeyTotals sums the
// batch levels that make up one stock key; unbatched changes may only touch
// what is left over.
type BatchLedger interface {
	ApplyBatch(ctx context.Context, change Change, movement *Movement) error
	KeyTotals(ctx context.Context, key Key) (quantity, reserved types.Quantity, err error)
}

// Ledger owns stock levels and movements. Every read-modify-write of a key
// runs under that key's lock; callers that need several keys take them one at
// a time through repeated calls.
type Ledger struct {
	repo    Repository
	txm     tx.Manager
	locks   *keylock.Table
	batches BatchLedger
	now     func() time.Time
}

// NewLedger creates a ledger. locks may be shared with other components as long as their key spaces do not collide.
func NewLedger(repo Repository, txm tx.Manager, locks *keylock.Table) *Ledger {
	return &Ledger{
		repo:  repo,
		txm:   txm,
		locks: locks,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// AttachBatches wires the batch sub-ledger. Called once during startup.
func (l *Ledger) AttachBatches(b BatchLedger) {
	l.batches = b
}

func lockName(k Key) string { return "stock/" + k.String() }

// ApplyMovement atomically applies change to its key: quantity moves by
// QuantityDelta, reserved by ReservedDelta, and a movement is appended when
// quantity changes. It fails with InsufficientStock when quantity would go
// negative and with ReservationExceedsQuantity when reserved would exceed it.
// A change without a batch is limited to the key's unbatched share.
func (l *Ledger) ApplyMovement(ctx context.Context, change Change) (Result, error) {
	if err := change.Validate(); err != nil {
		return Result{}, err
	}

	unlock := l.locks.Lock(lockName(change.Key))
	defer unlock()

	var res Result
	err := l.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		level, err := l.repo.GetLevelForUpdate(ctx, change.Key)
		if err != nil {
			return fmt.Errorf("load level %s: %w", change.Key, err)
		}
		now := l.now()
		if level == nil {
			level = &Level{Key: change.Key, CreatedAt: now}
		}
		before := *level

		if change.Guard != nil {
			if err := change.Guard(before); err != nil {
				return err
			}
		}

		after := before
		after.Quantity += change.QuantityDelta
		after.Reserved += change.ReservedDelta

		if err := checkTransition(change, before, after); err != nil {
			return err
		}

		var mv *Movement
		if change.QuantityDelta != 0 {
			after.Sequence++
			mv = newMovement(change, after, now)
		}

		if l.batches != nil {
			if change.BatchID != nil {
				if err := l.batches.ApplyBatch(ctx, change, mv); err != nil {
					return err
				}
			} else if change.QuantityDelta < 0 || change.ReservedDelta != 0 {
				batchedQty, batchedReserved, err := l.batches.KeyTotals(ctx, change.Key)
				if err != nil {
					return fmt.Errorf("batch totals %s: %w", change.Key, err)
				}
				if err := checkUnbatched(change, before, after, batchedQty, batchedReserved); err != nil {
					return err
				}
			}
		}

		after.UpdatedAt = now
		if mv != nil {
			if err := l.repo.AppendMovement(ctx, mv); err != nil {
				return fmt.Errorf("append movement: %w", err)
			}
		}
		if err := l.repo.SaveLevel(ctx, &after); err != nil {
			return fmt.Errorf("save level: %w", err)
		}

		res = Result{Before: before, After: after, Movement: mv}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	if res.Movement != nil {
		logger.Debug(ctx, "stock movement booked",
			"key", change.Key.String(),
			"kind", res.Movement.Kind,
			"delta", res.Movement.Delta,
			"sequence", res.Movement.Sequence,
		)
	}
	return res, nil
}

func checkTransition(change Change, before, after Level) error {
	key := change.Key.String()
	if after.Quantity < 0 {
		return apperror.NewInsufficientStock(key, change.QuantityDelta.Neg().Float64(), before.Quantity.Float64())
	}
	if after.Reserved < 0 {
		return apperror.NewInvariantViolation(fmt.Sprintf(
			"reserved at %s would drop below zero: reserved %s, change %s", key, before.Reserved, change.ReservedDelta)).
			WithDetail("key", key)
	}
	if after.Reserved > after.Quantity {
		return apperror.NewReservationExceedsQuantity(key, after.Reserved.Float64(), after.Quantity.Float64())
	}
	return nil
}

// checkUnbatched keeps batched stock out of reach of changes that name no
// batch: what is left after the batch levels must stay a valid level itself.
func checkUnbatched(change Change, before, after Level, batchedQty, batchedReserved types.Quantity) error {
	key := change.Key.String()
	freeQty := after.Quantity - batchedQty
	freeReserved := after.Reserved - batchedReserved
	switch {
	case freeQty < 0:
		return apperror.NewInsufficientStock(key, change.QuantityDelta.Neg().Float64(), (before.Quantity - batchedQty).Float64()).
			WithDetail("batched", batchedQty.Float64())
	case freeReserved < 0 && change.QuantityDelta < 0:
		return apperror.NewInsufficientStock(key, change.QuantityDelta.Neg().Float64(), (before.Reserved - batchedReserved).Float64()).
			WithDetail("batchedReserved", batchedReserved.Float64())
	case freeReserved < 0:
		return apperror.NewInvariantViolation(fmt.Sprintf(
			"unbatched reserved at %s would drop below zero: batched reserved %s, change %s", key, batchedReserved, change.ReservedDelta)).
			WithDetail("key", key)
	case freeReserved > freeQty:
		unbatched := (before.Quantity - batchedQty) - (before.Reserved - batchedReserved)
		return apperror.NewInsufficientStock(key, (change.ReservedDelta - change.QuantityDelta).Float64(), unbatched.Float64()).
			WithDetail("batched", batchedQty.Float64())
	}
	return nil
}

func newMovement(change Change, after Level, now time.Time) *Movement {
	mv := &Movement{
		MovementBase:  entity.NewMovementBase(change.Recorder, change.ActorID, change.Notes),
		Kind:          change.Kind,
		Key:           change.Key,
		BatchID:       change.BatchID,
		Delta:         change.QuantityDelta,
		QuantityAfter: after.Quantity,
	}
	mv.Sequence = after.Sequence
	mv.CreatedAt = now

	if change.QuantityDelta > 0 {
		mv.ToLocationID = change.Key.Location()
		mv.FromLocationID = change.CounterLocationID
	} else {
		mv.FromLocationID = change.Key.Location()
		mv.ToLocationID = change.CounterLocationID
	}

	if change.UnitCost != nil {
		unit := *change.UnitCost
		total := types.Cost(unit, change.QuantityDelta)
		mv.UnitCost = &unit
		mv.TotalCost = &total
	}
	return mv
}

// --- Query surface ---

// GetLevel returns the level of key; ok is false when the key never saw a movement.
func (l *Ledger) GetLevel(ctx context.Context, key Key) (Level, bool, error) {
	level, err := l.repo.GetLevel(ctx, key)
	if err != nil {
		return Level{}, false, fmt.Errorf("get level %s: %w", key, err)
	}
	if level == nil {
		return Level{Key: key}, false, nil
	}
	return *level, true, nil
}

// Levels returns levels matching filter.
func (l *Ledger) Levels(ctx context.Context, filter LevelFilter) ([]Level, error) {
	return l.repo.ListLevels(ctx, filter)
}

// Movements returns movement history matching filter.
func (l *Ledger) Movements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	return l.repo.ListMovements(ctx, filter)
}

// AvailableInWarehouse sums available quantity of a product over all locations of a warehouse.
func (l *Ledger) AvailableInWarehouse(ctx context.Context, productID, warehouseID id.ID) (types.Quantity, error) {
	levels, err := l.repo.ListLevels(ctx, LevelFilter{ProductID: &productID, WarehouseID: &warehouseID})
	if err != nil {
		return 0, fmt.Errorf("list levels: %w", err)
	}
	var total types.Quantity
	for _, lv := range levels {
		total += lv.Available()
	}
	return total, nil
}

// LocationOccupancy returns the on-hand quantity stored at a location across products.
func (l *Ledger) LocationOccupancy(ctx context.Context, locationID id.ID) (types.Quantity, error) {
	return l.repo.LocationOccupancy(ctx, locationID)
}

// Turnover folds movements into opening, inbound, outbound and closing totals.
func (l *Ledger) Turnover(ctx context.Context, filter TurnoverFilter) (Turnover, error) {
	if !filter.ToDate.After(filter.FromDate) {
		return Turnover{}, apperror.NewValidation("toDate must be after fromDate")
	}
	to := filter.ToDate
	movements, err := l.repo.ListMovements(ctx, MovementFilter{
		ProductID:   filter.ProductID,
		WarehouseID: filter.WarehouseID,
		ToDate:      &to,
	})
	if err != nil {
		return Turnover{}, fmt.Errorf("list movements: %w", err)
	}

	var t Turnover
	for _, m := range movements {
		if m.CreatedAt.Before(filter.FromDate) {
			t.OpeningBalance += m.Delta
			continue
		}
		if m.Delta > 0 {
			t.Receipt += m.Delta
		} else {
			t.Expense += m.Delta.Neg()
		}
	}
	t.ClosingBalance = t.OpeningBalance + t.Receipt - t.Expense
	return t, nil
}

// --- Reconciliation ---

// Verify replays the movements of key and compares them with the stored level.
// Any mismatch is an InvariantViolation.
func (l *Ledger) Verify(ctx context.Context, key Key) error {
	unlock := l.locks.Lock(lockName(key))
	defer unlock()

	level, err := l.repo.GetLevel(ctx, key)
	if err != nil {
		return fmt.Errorf("get level %s: %w", key, err)
	}
	replay, err := l.repo.ReplayTotals(ctx, key)
	if err != nil {
		return fmt.Errorf("replay %s: %w", key, err)
	}

	if level == nil {
		if replay.Count > 0 {
			return apperror.NewInvariantViolation(fmt.Sprintf("key %s has %d movements but no level", key, replay.Count)).
				WithDetail("key", key.String())
		}
		return l.verifyBatches(ctx, Level{Key: key})
	}

	if err := level.CheckInvariant(); err != nil {
		return err
	}
	if err := l.verifyBatches(ctx, *level); err != nil {
		return err
	}
	if replay.Sum != level.Quantity {
		return apperror.NewInvariantViolation(fmt.Sprintf(
			"replay of %s gives %s, level holds %s", key, replay.Sum, level.Quantity)).
			WithDetail("key", key.String()).
			WithDetail("replayed", replay.Sum.Float64()).
			WithDetail("quantity", level.Quantity.Float64())
	}
	if replay.MaxSequence != level.Sequence || replay.Count != level.Sequence {
		return apperror.NewInvariantViolation(fmt.Sprintf(
			"sequence of %s is not gap-free: level %d, max %d, count %d", key, level.Sequence, replay.MaxSequence, replay.Count)).
			WithDetail("key", key.String())
	}
	return nil
}

// verifyBatches checks that the batch levels of a key fit inside its stock level.
func (l *Ledger) verifyBatches(ctx context.Context, level Level) error {
	if l.batches == nil {
		return nil
	}
	qty, reserved, err := l.batches.KeyTotals(ctx, level.Key)
	if err != nil {
		return fmt.Errorf("batch totals %s: %w", level.Key, err)
	}
	if qty > level.Quantity || reserved > level.Reserved {
		return apperror.NewInvariantViolation(fmt.Sprintf(
			"batches at %s hold %s (reserved %s), level holds %s (reserved %s)",
			level.Key, qty, reserved, level.Quantity, level.Reserved)).
			WithDetail("key", level.Key.String()).
			WithDetail("batched", qty.Float64()).
			WithDetail("quantity", level.Quantity.Float64())
	}
	return nil
}

// ReconcileAll verifies every key and reports the ones that fail.
func (l *Ledger) ReconcileAll(ctx context.Context) ([]Discrepancy, error) {
	keys, err := l.repo.ListKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}

	var out []Discrepancy
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if err := l.Verify(ctx, k); err != nil {
			if !apperror.Is(err, apperror.CodeInvariantViolation) {
				return out, err
			}
			logger.Error(ctx, "ledger invariant violated", "key", k.String(), "error", err)
			out = append(out, Discrepancy{Key: k, Reason: err.Error()})
		}
	}
	return out, nil
}
