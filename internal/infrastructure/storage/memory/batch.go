package memory

import (
	"context"
	"sort"
	"sync"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/domain/registers/batch"
)

// BatchRepo is an in-memory batch.Repository.
type BatchRepo struct {
	mu        sync.RWMutex
	batches   map[id.ID]batch.Batch
	byNumber  map[string]id.ID
	levels    map[batch.Key]batch.Level
	movements []batch.Movement
}

func NewBatchRepo() *BatchRepo {
	return &BatchRepo{
		batches:  make(map[id.ID]batch.Batch),
		byNumber: make(map[string]id.ID),
		levels:   make(map[batch.Key]batch.Level),
	}
}

var _ batch.Repository = (*BatchRepo)(nil)

func (r *BatchRepo) Create(_ context.Context, b *batch.Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.byNumber[b.BatchNumber]; taken {
		return apperror.NewDuplicate("batch", "batchNumber", b.BatchNumber)
	}
	r.batches[b.ID] = *b
	r.byNumber[b.BatchNumber] = b.ID
	return nil
}

func (r *BatchRepo) Update(_ context.Context, b *batch.Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.batches[b.ID]; !ok {
		return apperror.NewNotFound("batch", b.ID)
	}
	b.Version++
	r.batches[b.ID] = *b
	return nil
}

func (r *BatchRepo) GetByID(_ context.Context, batchID id.ID) (*batch.Batch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.batches[batchID]
	if !ok {
		return nil, apperror.NewNotFound("batch", batchID)
	}
	return &b, nil
}

func (r *BatchRepo) GetByNumber(_ context.Context, number string) (*batch.Batch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bid, ok := r.byNumber[number]
	if !ok {
		return nil, apperror.NewNotFound("batch", number)
	}
	b := r.batches[bid]
	return &b, nil
}

func (r *BatchRepo) List(_ context.Context, f batch.Filter) ([]batch.Batch, error) {
	r.mu.RLock()
	out := make([]batch.Batch, 0, len(r.batches))
	for _, b := range r.batches {
		if f.ProductID != nil && b.ProductID != *f.ProductID {
			continue
		}
		if f.WarehouseID != nil && b.WarehouseID != *f.WarehouseID {
			continue
		}
		if f.Status != nil && b.QualityStatus != *f.Status {
			continue
		}
		if f.ActiveOnly && !b.IsActive() {
			continue
		}
		out = append(out, b)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return id.Compare(out[i].ID, out[j].ID) < 0 })
	return out, nil
}

func (r *BatchRepo) GetLevel(_ context.Context, key batch.Key) (*batch.Level, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lv, ok := r.levels[key]
	if !ok {
		return nil, nil
	}
	return &lv, nil
}

func (r *BatchRepo) SaveLevel(_ context.Context, level *batch.Level) error {
	r.mu.Lock()
	r.levels[level.Key] = *level
	r.mu.Unlock()
	return nil
}

func (r *BatchRepo) ListLevels(_ context.Context, f batch.LevelFilter) ([]batch.Level, error) {
	r.mu.RLock()
	var out []batch.Level
	for _, lv := range r.levels {
		switch {
		case f.BatchID != nil && lv.BatchID != *f.BatchID,
			f.ProductID != nil && lv.ProductID != *f.ProductID,
			f.WarehouseID != nil && lv.WarehouseID != *f.WarehouseID,
			f.LocationID != nil && lv.LocationID != *f.LocationID:
			continue
		}
		out = append(out, lv)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Key.String() < out[j].Key.String()
	})
	return out, nil
}

func (r *BatchRepo) AppendMovement(_ context.Context, m *batch.Movement) error {
	r.mu.Lock()
	r.movements = append(r.movements, *m)
	r.mu.Unlock()
	return nil
}

func (r *BatchRepo) ListMovements(_ context.Context, batchID id.ID) ([]batch.Movement, error) {
	r.mu.RLock()
	var out []batch.Movement
	for _, m := range r.movements {
		if m.BatchID == batchID {
			out = append(out, m)
		}
	}
	r.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
