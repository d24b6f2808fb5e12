// Package memory provides the in-process storage driver. It keeps the same
// contracts as the postgres driver and serves tests and single-node demos.
package memory

import (
	"context"
	"sort"
	"sync"

	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
	"stockcore/internal/domain/registers/stock"
)

// StockRepo is an in-memory stock.Repository.
type StockRepo struct {
	mu        sync.RWMutex
	levels    map[stock.Key]stock.Level
	movements []stock.Movement
}

// NewStockRepo creates an empty repository.
func NewStockRepo() *StockRepo {
	return &StockRepo{levels: make(map[stock.Key]stock.Level)}
}

var _ stock.Repository = (*StockRepo)(nil)

func (r *StockRepo) GetLevel(_ context.Context, key stock.Key) (*stock.Level, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lv, ok := r.levels[key]
	if !ok {
		return nil, nil
	}
	return &lv, nil
}

// GetLevelForUpdate relies on the ledger's key lock for exclusivity.
func (r *StockRepo) GetLevelForUpdate(ctx context.Context, key stock.Key) (*stock.Level, error) {
	return r.GetLevel(ctx, key)
}

func (r *StockRepo) SaveLevel(_ context.Context, level *stock.Level) error {
	r.mu.Lock()
	r.levels[level.Key] = *level
	r.mu.Unlock()
	return nil
}

func (r *StockRepo) AppendMovement(_ context.Context, m *stock.Movement) error {
	r.mu.Lock()
	r.movements = append(r.movements, *m)
	r.mu.Unlock()
	return nil
}

func (r *StockRepo) ListLevels(_ context.Context, f stock.LevelFilter) ([]stock.Level, error) {
	r.mu.RLock()
	out := make([]stock.Level, 0, len(r.levels))
	for _, lv := range r.levels {
		if f.ProductID != nil && lv.ProductID != *f.ProductID {
			continue
		}
		if f.WarehouseID != nil && lv.WarehouseID != *f.WarehouseID {
			continue
		}
		if f.LocationID != nil && lv.LocationID != *f.LocationID {
			continue
		}
		if f.ExcludeEmpty && lv.Quantity == 0 {
			continue
		}
		if f.OnlyAvailable && lv.Available() <= 0 {
			continue
		}
		out = append(out, lv)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Key.Compare(out[j].Key) < 0
	})
	return out, nil
}

func (r *StockRepo) ListMovements(_ context.Context, f stock.MovementFilter) ([]stock.Movement, error) {
	r.mu.RLock()
	var out []stock.Movement
	for _, m := range r.movements {
		if matchMovement(m, f) {
			out = append(out, m)
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Sequence < out[j].Sequence
	})
	return paginate(out, f.Offset, f.Limit), nil
}

func matchMovement(m stock.Movement, f stock.MovementFilter) bool {
	switch {
	case f.ProductID != nil && m.ProductID != *f.ProductID:
		return false
	case f.WarehouseID != nil && m.WarehouseID != *f.WarehouseID:
		return false
	case f.LocationID != nil && m.LocationID != *f.LocationID:
		return false
	case f.BatchID != nil && (m.BatchID == nil || *m.BatchID != *f.BatchID):
		return false
	case f.DocumentID != nil && m.Recorder.ID != *f.DocumentID:
		return false
	case f.Kind != nil && m.Kind != *f.Kind:
		return false
	case f.FromDate != nil && m.CreatedAt.Before(*f.FromDate):
		return false
	case f.ToDate != nil && !m.CreatedAt.Before(*f.ToDate):
		return false
	}
	return true
}

func (r *StockRepo) ReplayTotals(_ context.Context, key stock.Key) (stock.Replay, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var rep stock.Replay
	for _, m := range r.movements {
		if m.Key != key {
			continue
		}
		rep.Sum += m.Delta
		rep.Count++
		if m.Sequence > rep.MaxSequence {
			rep.MaxSequence = m.Sequence
		}
	}
	return rep, nil
}

func (r *StockRepo) ListKeys(_ context.Context) ([]stock.Key, error) {
	r.mu.RLock()
	keys := make([]stock.Key, 0, len(r.levels))
	for k := range r.levels {
		keys = append(keys, k)
	}
	r.mu.RUnlock()
	sort.Slice(keys, func(i, j int) bool { return keys[i].Compare(keys[j]) < 0 })
	return keys, nil
}

func (r *StockRepo) LocationOccupancy(_ context.Context, locationID id.ID) (types.Quantity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var total types.Quantity
	for k, lv := range r.levels {
		if k.LocationID == locationID {
			total += lv.Quantity
		}
	}
	return total, nil
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
