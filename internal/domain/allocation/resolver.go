// Package allocation decides which stock satisfies a demand. It only reads;
// the reservation coordinator re-validates every line when it commits.
package allocation

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
	"stockcore/internal/domain/registers/batch"
	"stockcore/internal/domain/registers/stock"
)

// Strategy selects the candidate ordering.
type Strategy string

const (
	FIFO      Strategy = "FIFO"
	FEFO      Strategy = "FEFO"
	LIFO      Strategy = "LIFO"
	Manual    Strategy = "MANUAL"
	ZoneBased Strategy = "ZONE_BASED"
)

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case FIFO, FEFO, LIFO, Manual, ZoneBased:
		return true
	}
	return false
}

// Demand asks for quantity of a product in a warehouse. LocationID is
// honored by MANUAL and ZONE_BASED only; BatchID restricts every strategy to
// that batch.
type Demand struct {
	ProductID   id.ID          `json:"productId"`
	WarehouseID id.ID          `json:"warehouseId"`
	Quantity    types.Quantity `json:"quantity"`
	Strategy    Strategy       `json:"strategy"`
	LocationID  *id.ID         `json:"locationId,omitempty"`
	BatchID     *id.ID         `json:"batchId,omitempty"`
}

// Line is one (location, batch?, quantity) slice of a plan.
type Line struct {
	LocationID *id.ID         `json:"locationId,omitempty"`
	BatchID    *id.ID         `json:"batchId,omitempty"`
	Quantity   types.Quantity `json:"quantity"`
}

// Plan is the ordered result of Resolve.
type Plan struct {
	ProductID   id.ID          `json:"productId"`
	WarehouseID id.ID          `json:"warehouseId"`
	Strategy    Strategy       `json:"strategy"`
	Requested   types.Quantity `json:"requested"`
	Lines       []Line         `json:"lines"`
}

// KeyOf returns the ledger key of a plan line.
func (p Plan) KeyOf(l Line) stock.Key {
	return stock.NewKey(p.ProductID, p.WarehouseID, l.LocationID)
}

// Allocated sums the line quantities.
func (p Plan) Allocated() types.Quantity {
	var total types.Quantity
	for _, l := range p.Lines {
		total += l.Quantity
	}
	return total
}

// Shortfall is what the plan could not cover.
func (p Plan) Shortfall() types.Quantity {
	if s := p.Requested - p.Allocated(); s > 0 {
		return s
	}
	return 0
}

// StockReader is the ledger query surface the resolver needs.
type StockReader interface {
	Levels(ctx context.Context, filter stock.LevelFilter) ([]stock.Level, error)
	GetLevel(ctx context.Context, key stock.Key) (stock.Level, bool, error)
}

// LotReader is the batch registry query surface the resolver needs.
type LotReader interface {
	ReleasedLots(ctx context.Context, productID, warehouseID id.ID) ([]batch.Lot, error)
	Levels(ctx context.Context, filter batch.LevelFilter) ([]batch.Level, error)
}

// Resolver turns demands into allocation plans.
type Resolver struct {
	stock StockReader
	lots  LotReader
}

// NewResolver creates a resolver over the stock ledger and the batch registry.
func NewResolver(levels StockReader, lots LotReader) *Resolver {
	return &Resolver{stock: levels, lots: lots}
}

// Resolve builds a plan for d. When candidates cannot cover the demand it
// returns the partial plan together with InsufficientAvailableStock, so a
// caller may short-allocate.
func (r *Resolver) Resolve(ctx context.Context, d Demand) (Plan, error) {
	if err := validate(d); err != nil {
		return Plan{}, err
	}
	plan := Plan{ProductID: d.ProductID, WarehouseID: d.WarehouseID, Strategy: d.Strategy, Requested: d.Quantity}

	var err error
	switch d.Strategy {
	case FIFO, LIFO:
		plan.Lines, err = r.byCreation(ctx, d)
	case FEFO:
		plan.Lines, err = r.byExpiration(ctx, d)
	case Manual, ZoneBased:
		plan.Lines, err = r.direct(ctx, d)
	}
	if err != nil {
		return Plan{}, err
	}

	if plan.Shortfall() > 0 {
		return plan, apperror.NewInsufficientAvailableStock(
			fmt.Sprintf("%s/%s", d.ProductID, d.WarehouseID),
			d.Quantity.Float64(), plan.Allocated().Float64()).
			WithDetail("strategy", string(d.Strategy))
	}
	return plan, nil
}

func validate(d Demand) error {
	if id.IsNil(d.ProductID) || id.IsNil(d.WarehouseID) {
		return apperror.NewValidation("product and warehouse are required")
	}
	if d.Quantity <= 0 {
		return apperror.NewValidation("quantity must be positive").WithDetail("quantity", d.Quantity.Float64())
	}
	if !d.Strategy.Valid() {
		return apperror.NewValidation("unknown allocation strategy").WithDetail("strategy", string(d.Strategy))
	}
	return nil
}

// byCreation walks stock levels oldest first (newest first for LIFO) and
// splits each into its released lots and its unbatched share.
func (r *Resolver) byCreation(ctx context.Context, d Demand) ([]Line, error) {
	levels, err := r.stock.Levels(ctx, stock.LevelFilter{
		ProductID:     &d.ProductID,
		WarehouseID:   &d.WarehouseID,
		OnlyAvailable: true,
	})
	if err != nil {
		return nil, fmt.Errorf("list levels: %w", err)
	}
	newestFirst := d.Strategy == LIFO
	if newestFirst {
		slices.Reverse(levels)
	}
	idx, err := r.lotIndex(ctx, d.ProductID, d.WarehouseID, nil)
	if err != nil {
		return nil, err
	}

	var lines []Line
	remaining := d.Quantity
	for _, lv := range levels {
		if remaining == 0 {
			break
		}
		for _, l := range idx.split(lv, d.BatchID, remaining, newestFirst) {
			lines = append(lines, l)
			remaining -= l.Quantity
		}
	}
	return lines, nil
}

func (r *Resolver) byExpiration(ctx context.Context, d Demand) ([]Line, error) {
	lots, err := r.lots.ReleasedLots(ctx, d.ProductID, d.WarehouseID)
	if err != nil {
		return nil, err
	}
	levels, err := r.stock.Levels(ctx, stock.LevelFilter{ProductID: &d.ProductID, WarehouseID: &d.WarehouseID})
	if err != nil {
		return nil, fmt.Errorf("list levels: %w", err)
	}

	// a batch line may never claim more than its stock level still has free
	free := make(map[id.ID]types.Quantity, len(levels))
	for _, lv := range levels {
		free[lv.LocationID] = lv.Available()
	}

	sortLots(lots)

	var lines []Line
	remaining := d.Quantity
	for _, lot := range lots {
		if remaining == 0 {
			break
		}
		if d.BatchID != nil && lot.Batch.ID != *d.BatchID {
			continue
		}
		loc := lot.Level.LocationID
		take := types.MinQuantity(types.MinQuantity(lot.Level.Available(), free[loc]), remaining)
		if take <= 0 {
			continue
		}
		batchID := lot.Batch.ID
		lines = append(lines, Line{LocationID: lot.Level.StockKey().Location(), BatchID: &batchID, Quantity: take})
		free[loc] -= take
		remaining -= take
	}
	return lines, nil
}

// sortLots orders expiring lots by expiration, then lots without one in FIFO order.
func sortLots(lots []batch.Lot) {
	sort.SliceStable(lots, func(i, j int) bool {
		a, b := lots[i], lots[j]
		ae, be := a.Batch.ExpiresAt, b.Batch.ExpiresAt
		switch {
		case ae != nil && be == nil:
			return true
		case ae == nil && be != nil:
			return false
		case ae != nil && be != nil && !ae.Equal(*be):
			return ae.Before(*be)
		}
		if !a.Level.CreatedAt.Equal(b.Level.CreatedAt) {
			return a.Level.CreatedAt.Before(b.Level.CreatedAt)
		}
		return a.Batch.BatchNumber < b.Batch.BatchNumber
	})
}

// direct validates the single key the demand names. Without a batch the key
// is split like FIFO does; with one only that batch's level at the key counts.
func (r *Resolver) direct(ctx context.Context, d Demand) ([]Line, error) {
	key := stock.NewKey(d.ProductID, d.WarehouseID, d.LocationID)
	level, _, err := r.stock.GetLevel(ctx, key)
	if err != nil {
		return nil, err
	}
	if d.BatchID == nil {
		idx, err := r.lotIndex(ctx, d.ProductID, d.WarehouseID, &key.LocationID)
		if err != nil {
			return nil, err
		}
		return idx.split(level, nil, d.Quantity, false), nil
	}

	blevels, err := r.lots.Levels(ctx, batch.LevelFilter{BatchID: d.BatchID, LocationID: &key.LocationID})
	if err != nil {
		return nil, fmt.Errorf("list batch levels: %w", err)
	}
	var batchAvail types.Quantity
	for _, bl := range blevels {
		if bl.WarehouseID == d.WarehouseID {
			batchAvail += bl.Available()
		}
	}

	take := types.MinQuantity(types.MinQuantity(level.Available(), batchAvail), d.Quantity)
	if take <= 0 {
		return nil, nil
	}
	return []Line{{LocationID: key.Location(), BatchID: d.BatchID, Quantity: take}}, nil
}

// keyLots is the batch picture of one stock key.
type keyLots struct {
	batchedQty      types.Quantity
	batchedReserved types.Quantity
	// released lots with stock still free, in receipt order
	released []batch.Level
}

// lotIndex maps a location to its batch picture.
type lotIndex map[id.ID]*keyLots

func (r *Resolver) lotIndex(ctx context.Context, productID, warehouseID id.ID, locationID *id.ID) (lotIndex, error) {
	levels, err := r.lots.Levels(ctx, batch.LevelFilter{ProductID: &productID, WarehouseID: &warehouseID, LocationID: locationID})
	if err != nil {
		return nil, fmt.Errorf("list batch levels: %w", err)
	}
	lots, err := r.lots.ReleasedLots(ctx, productID, warehouseID)
	if err != nil {
		return nil, err
	}

	idx := make(lotIndex)
	at := func(loc id.ID) *keyLots {
		k, ok := idx[loc]
		if !ok {
			k = &keyLots{}
			idx[loc] = k
		}
		return k
	}
	for _, bl := range levels {
		k := at(bl.LocationID)
		k.batchedQty += bl.Quantity
		k.batchedReserved += bl.Reserved
	}
	for _, lot := range lots {
		if locationID != nil && lot.Level.LocationID != *locationID {
			continue
		}
		k := at(lot.Level.LocationID)
		k.released = append(k.released, lot.Level)
	}
	for _, k := range idx {
		sort.SliceStable(k.released, func(i, j int) bool {
			a, b := k.released[i], k.released[j]
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.BatchID.String() < b.BatchID.String()
		})
	}
	return idx, nil
}

// split draws up to want from one stock level: released lots first, then the
// stock no batch accounts for. With batchID set only that lot is drawn.
func (idx lotIndex) split(lv stock.Level, batchID *id.ID, want types.Quantity, newestFirst bool) []Line {
	k := idx[lv.LocationID]
	free := lv.Available()

	var lines []Line
	take := func(b *id.ID, avail types.Quantity) {
		q := types.MinQuantity(types.MinQuantity(avail, free), want)
		if q <= 0 {
			return
		}
		lines = append(lines, Line{LocationID: lv.Location(), BatchID: b, Quantity: q})
		free -= q
		want -= q
	}

	unbatched := free
	if k != nil {
		released := k.released
		if newestFirst {
			released = slices.Clone(released)
			slices.Reverse(released)
		}
		for _, bl := range released {
			if batchID != nil && bl.BatchID != *batchID {
				continue
			}
			lotID := bl.BatchID
			take(&lotID, bl.Available())
		}
		unbatched = (lv.Quantity - k.batchedQty) - (lv.Reserved - k.batchedReserved)
	}
	if batchID == nil {
		take(nil, unbatched)
	}
	return lines
}
