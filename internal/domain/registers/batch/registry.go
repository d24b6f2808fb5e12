package batch

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/entity"
	"stockcore/internal/core/id"
	"stockcore/internal/core/keylock"
	"stockcore/internal/core/tx"
	"stockcore/internal/core/types"
	"stockcore/internal/domain/registers/stock"
	"stockcore/pkg/logger"
)

// Registry owns batch headers and batch levels. It plugs into the stock
// ledger as its BatchLedger, so batch quantities move in the same critical
// section as the stock key they belong to.
type Registry struct {
	repo  Repository
	txm   tx.Manager
	locks *keylock.Table
	now   func() time.Time
}

// NewRegistry creates a registry.
func NewRegistry(repo Repository, txm tx.Manager, locks *keylock.Table) *Registry {
	return &Registry{
		repo:  repo,
		txm:   txm,
		locks: locks,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

var _ stock.BatchLedger = (*Registry)(nil)

func lockName(batchID id.ID) string { return "batch/" + batchID.String() }

// CreateInput carries the fields a caller may set on a new batch.
type CreateInput struct {
	BatchNumber    string
	ProductID      id.ID
	WarehouseID    id.ID
	ManufacturedAt *time.Time
	ExpiresAt      *time.Time
	QualityStatus  QualityStatus
	Notes          string
}

// Create registers an empty batch header. Quantities arrive through the ledger.
func (r *Registry) Create(ctx context.Context, in CreateInput) (*Batch, error) {
	now := r.now()
	b := &Batch{
		BaseEntity:     entity.NewBaseEntity(),
		BatchNumber:    strings.TrimSpace(in.BatchNumber),
		ProductID:      in.ProductID,
		WarehouseID:    in.WarehouseID,
		ManufacturedAt: in.ManufacturedAt,
		ExpiresAt:      in.ExpiresAt,
		QualityStatus:  in.QualityStatus,
		Notes:          in.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if b.QualityStatus == "" {
		b.QualityStatus = QualityPending
	}
	if err := b.Validate(ctx); err != nil {
		return nil, err
	}
	if err := r.repo.Create(ctx, b); err != nil {
		return nil, err
	}
	logger.Info(ctx, "batch created", "batch_id", b.ID, "batch_number", b.BatchNumber)
	return b, nil
}

// Ensure returns the batch with in.BatchNumber, creating it when absent.
// An existing batch must belong to the same product and warehouse.
func (r *Registry) Ensure(ctx context.Context, in CreateInput) (*Batch, error) {
	existing, err := r.repo.GetByNumber(ctx, strings.TrimSpace(in.BatchNumber))
	switch {
	case err == nil:
		if existing.ProductID != in.ProductID || existing.WarehouseID != in.WarehouseID {
			return nil, apperror.NewValidation("batch number belongs to another product or warehouse").
				WithDetail("batchNumber", in.BatchNumber)
		}
		return existing, nil
	case apperror.IsNotFound(err):
		b, err := r.Create(ctx, in)
		if apperror.Is(err, apperror.CodeDuplicate) {
			// lost a race with a concurrent creator
			return r.repo.GetByNumber(ctx, strings.TrimSpace(in.BatchNumber))
		}
		return b, err
	default:
		return nil, err
	}
}

// Get loads a batch header.
func (r *Registry) Get(ctx context.Context, batchID id.ID) (*Batch, error) {
	return r.repo.GetByID(ctx, batchID)
}

// GetByNumber loads a batch by its unique number.
func (r *Registry) GetByNumber(ctx context.Context, number string) (*Batch, error) {
	return r.repo.GetByNumber(ctx, number)
}

// List returns batch headers matching filter.
func (r *Registry) List(ctx context.Context, filter Filter) ([]Batch, error) {
	return r.repo.List(ctx, filter)
}

// Levels returns batch levels matching filter.
func (r *Registry) Levels(ctx context.Context, filter LevelFilter) ([]Level, error) {
	return r.repo.ListLevels(ctx, filter)
}

// SetQualityStatus moves a batch along the quality state machine.
func (r *Registry) SetQualityStatus(ctx context.Context, batchID id.ID, status QualityStatus) (*Batch, error) {
	event, ok := qualityEvents[status]
	if !ok {
		return nil, apperror.NewValidation("unknown quality status").WithDetail("status", string(status))
	}

	unlock := r.locks.Lock(lockName(batchID))
	defer unlock()

	b, err := r.repo.GetByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if err := qualityTable.Check(event, b.QualityStatus); err != nil {
		return nil, err
	}

	from := b.QualityStatus
	b.QualityStatus = status
	b.UpdatedAt = r.now()
	if err := r.repo.Update(ctx, b); err != nil {
		return nil, fmt.Errorf("update batch %s: %w", batchID, err)
	}

	logger.Info(ctx, "batch quality changed",
		"batch_id", batchID, "from", from, "to", status)
	return b, nil
}

// ApplyBatch moves the batch level and header by the same deltas as change.
// It runs inside the stock key's critical section; every check happens
// before the first write.
func (r *Registry) ApplyBatch(ctx context.Context, change stock.Change, mv *stock.Movement) error {
	batchID := *change.BatchID

	unlock := r.locks.Lock(lockName(batchID))
	defer unlock()

	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		b, err := r.repo.GetByID(ctx, batchID)
		if err != nil {
			return err
		}
		if b.ProductID != change.ProductID || b.WarehouseID != change.WarehouseID {
			return apperror.NewValidation("batch belongs to another product or warehouse").
				WithDetail("batchNumber", b.BatchNumber).
				WithDetail("key", change.Key.String())
		}
		if change.QuantityDelta > 0 && b.QualityStatus == QualityRejected {
			return apperror.NewValidation("cannot add stock to a rejected batch").
				WithDetail("batchNumber", b.BatchNumber)
		}

		key := KeyOf(batchID, change.Key)
		now := r.now()
		level, err := r.repo.GetLevel(ctx, key)
		if err != nil {
			return fmt.Errorf("load batch level %s: %w", key, err)
		}
		if level == nil {
			level = &Level{Key: key, ProductID: change.ProductID, CreatedAt: now}
		}
		before := *level
		after := before
		after.Quantity += change.QuantityDelta
		after.Reserved += change.ReservedDelta

		switch {
		case after.Quantity < 0:
			return apperror.NewInsufficientStock(key.String(), change.QuantityDelta.Neg().Float64(), before.Quantity.Float64()).
				WithDetail("batchNumber", b.BatchNumber)
		case after.Reserved < 0:
			return apperror.NewInvariantViolation("batch reservation would drop below zero at " + key.String())
		case after.Reserved > after.Quantity:
			return apperror.NewReservationExceedsQuantity(key.String(), after.Reserved.Float64(), after.Quantity.Float64()).
				WithDetail("batchNumber", b.BatchNumber)
		}

		header := *b
		header.CurrentQuantity += change.QuantityDelta
		if change.QuantityDelta > 0 && change.Kind == stock.KindReceive {
			header.InitialQuantity += change.QuantityDelta
			if header.ReceivedAt == nil {
				header.ReceivedAt = &now
			}
		}
		if header.CurrentQuantity < 0 || header.CurrentQuantity > header.InitialQuantity {
			return apperror.NewInvariantViolation(fmt.Sprintf(
				"batch %s would hold %s of initial %s", b.BatchNumber, header.CurrentQuantity, header.InitialQuantity)).
				WithDetail("batchNumber", b.BatchNumber)
		}

		if mv != nil {
			after.Sequence++
			bm := &Movement{
				MovementBase:    entity.NewMovementBase(mv.Recorder, mv.ActorID, mv.Notes),
				Kind:            mv.Kind,
				Key:             key,
				ProductID:       change.ProductID,
				StockMovementID: mv.ID,
				Delta:           change.QuantityDelta,
				QuantityAfter:   after.Quantity,
			}
			bm.Sequence = after.Sequence
			bm.CreatedAt = mv.CreatedAt
			if err := r.repo.AppendMovement(ctx, bm); err != nil {
				return fmt.Errorf("append batch movement: %w", err)
			}
		}

		after.UpdatedAt = now
		if err := r.repo.SaveLevel(ctx, &after); err != nil {
			return fmt.Errorf("save batch level: %w", err)
		}
		if change.QuantityDelta != 0 {
			header.UpdatedAt = now
			if err := r.repo.Update(ctx, &header); err != nil {
				return fmt.Errorf("update batch %s: %w", b.BatchNumber, err)
			}
		}
		return nil
	})
}

// KeyTotals sums quantity and reserved over the batch levels of one stock key.
// Called inside the key's critical section.
func (r *Registry) KeyTotals(ctx context.Context, key stock.Key) (quantity, reserved types.Quantity, err error) {
	levels, err := r.repo.ListLevels(ctx, LevelFilter{
		ProductID:   &key.ProductID,
		WarehouseID: &key.WarehouseID,
		LocationID:  &key.LocationID,
	})
	if err != nil {
		return 0, 0, fmt.Errorf("list batch levels %s: %w", key, err)
	}
	for _, lv := range levels {
		quantity += lv.Quantity
		reserved += lv.Reserved
	}
	return quantity, reserved, nil
}

// ReleasedLots returns levels with available stock of released batches for a
// product in a warehouse. Order is unspecified; the allocation resolver sorts.
func (r *Registry) ReleasedLots(ctx context.Context, productID, warehouseID id.ID) ([]Lot, error) {
	levels, err := r.repo.ListLevels(ctx, LevelFilter{ProductID: &productID, WarehouseID: &warehouseID})
	if err != nil {
		return nil, fmt.Errorf("list batch levels: %w", err)
	}

	headers := make(map[id.ID]*Batch)
	var out []Lot
	for _, lv := range levels {
		if lv.Available() <= 0 {
			continue
		}
		b, ok := headers[lv.BatchID]
		if !ok {
			if b, err = r.repo.GetByID(ctx, lv.BatchID); err != nil {
				return nil, err
			}
			headers[lv.BatchID] = b
		}
		if b.QualityStatus != QualityReleased {
			continue
		}
		out = append(out, Lot{Batch: *b, Level: lv})
	}
	return out, nil
}

// Expiring returns active batches whose expiration falls within [now, now+days],
// soonest first.
func (r *Registry) Expiring(ctx context.Context, days int) ([]Batch, error) {
	if days < 0 {
		return nil, apperror.NewValidation("days must not be negative")
	}
	now := r.now()
	horizon := now.Add(time.Duration(days) * 24 * time.Hour)

	batches, err := r.repo.List(ctx, Filter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	var out []Batch
	for _, b := range batches {
		if b.ExpiresAt == nil || b.ExpiresAt.Before(now) || b.ExpiresAt.After(horizon) {
			continue
		}
		out = append(out, b)
	}
	sortByExpiration(out)
	return out, nil
}

// Expired returns active batches whose expiration date has passed.
func (r *Registry) Expired(ctx context.Context) ([]Batch, error) {
	now := r.now()
	batches, err := r.repo.List(ctx, Filter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	var out []Batch
	for _, b := range batches {
		if b.IsExpired(now) {
			out = append(out, b)
		}
	}
	sortByExpiration(out)
	return out, nil
}

func sortByExpiration(bs []Batch) {
	sort.SliceStable(bs, func(i, j int) bool {
		return bs[i].ExpiresAt.Before(*bs[j].ExpiresAt)
	})
}

// Traceability returns a batch header with its levels, ordered movements and
// a chronological timeline of its dated milestones.
func (r *Registry) Traceability(ctx context.Context, number string) (*Trace, error) {
	b, err := r.repo.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	levels, err := r.repo.ListLevels(ctx, LevelFilter{BatchID: &b.ID})
	if err != nil {
		return nil, fmt.Errorf("list batch levels: %w", err)
	}
	movements, err := r.repo.ListMovements(ctx, b.ID)
	if err != nil {
		return nil, fmt.Errorf("list batch movements: %w", err)
	}

	timeline := []TimelineEvent{{Event: "created", At: b.CreatedAt}}
	if b.ManufacturedAt != nil {
		timeline = append(timeline, TimelineEvent{Event: "manufactured", At: *b.ManufacturedAt})
	}
	if b.ReceivedAt != nil {
		timeline = append(timeline, TimelineEvent{Event: "received", At: *b.ReceivedAt})
	}
	if b.ExpiresAt != nil {
		timeline = append(timeline, TimelineEvent{Event: "expiration", At: *b.ExpiresAt})
	}
	sort.SliceStable(timeline, func(i, j int) bool { return timeline[i].At.Before(timeline[j].At) })

	return &Trace{Batch: *b, Levels: levels, Movements: movements, Timeline: timeline}, nil
}
