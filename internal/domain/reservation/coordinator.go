// Package reservation is the only writer of the stock ledger. It implements
// reserve, consume, release, receive and adjust as single-key atomic changes,
// and multi-line reservations with compensation on partial failure.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/entity"
	"stockcore/internal/core/id"
	"stockcore/internal/core/keylock"
	"stockcore/internal/core/types"
	"stockcore/internal/domain/allocation"
	"stockcore/internal/domain/catalog"
	"stockcore/internal/domain/events"
	"stockcore/internal/domain/registers/stock"
	"stockcore/pkg/logger"
)

// Op carries the provenance of a ledger change.
type Op struct {
	Recorder entity.DocumentRef
	ActorID  string
	Notes    string
}

// Line is one key-scoped quantity to reserve.
type Line struct {
	Key      stock.Key
	BatchID  *id.ID
	Quantity types.Quantity
}

// ReceiveInput describes inbound stock.
type ReceiveInput struct {
	Key               stock.Key
	BatchID           *id.ID
	Quantity          types.Quantity
	Kind              stock.MovementKind
	UnitCost          *types.Money
	CounterLocationID *id.ID
	Op
}

// AdjustInput is a manual correction outside any reservation.
type AdjustInput struct {
	ProductID   id.ID
	WarehouseID id.ID
	LocationID  *id.ID
	BatchID     *id.ID
	Delta       types.Quantity
	UnitCost    *types.Money
	Op
}

// Coordinator serializes every ledger write and owns reservation handles.
type Coordinator struct {
	ledger   *stock.Ledger
	resolver *allocation.Resolver
	handles  HandleRepository
	catalog  catalog.Directory
	locks    *keylock.Table
	events   events.Publisher
	now      func() time.Time
}

// NewCoordinator wires the coordinator. A nil publisher drops events.
func NewCoordinator(
	ledger *stock.Ledger,
	resolver *allocation.Resolver,
	handles HandleRepository,
	directory catalog.Directory,
	locks *keylock.Table,
	pub events.Publisher,
) *Coordinator {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Coordinator{
		ledger:   ledger,
		resolver: resolver,
		handles:  handles,
		catalog:  directory,
		locks:    locks,
		events:   pub,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// --- Single-key operations ---

// Reserve moves qty from available to reserved.
func (c *Coordinator) Reserve(ctx context.Context, key stock.Key, batchID *id.ID, qty types.Quantity, op Op) error {
	if qty <= 0 {
		return apperror.NewValidation("reserve quantity must be positive")
	}
	_, err := c.apply(ctx, stock.Change{
		Key:           key,
		ReservedDelta: qty,
		BatchID:       batchID,
		Recorder:      op.Recorder,
		ActorID:       op.ActorID,
		Guard: func(before stock.Level) error {
			if before.Available() < qty {
				return apperror.NewInsufficientStock(key.String(), qty.Float64(), before.Available().Float64())
			}
			return nil
		},
	})
	return err
}

// Consume deducts reserved stock: quantity and reserved both drop by qty.
func (c *Coordinator) Consume(ctx context.Context, key stock.Key, batchID *id.ID, qty types.Quantity, kind stock.MovementKind, op Op) (*stock.Movement, error) {
	if qty <= 0 {
		return nil, apperror.NewValidation("consume quantity must be positive")
	}
	res, err := c.apply(ctx, stock.Change{
		Key:           key,
		QuantityDelta: qty.Neg(),
		ReservedDelta: qty.Neg(),
		Kind:          kind,
		BatchID:       batchID,
		Recorder:      op.Recorder,
		ActorID:       op.ActorID,
		Notes:         op.Notes,
		Guard: func(before stock.Level) error {
			if before.Reserved < qty {
				return apperror.NewInsufficientStock(key.String(), qty.Float64(), before.Reserved.Float64()).
					WithDetail("reserved", before.Reserved.Float64())
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return res.Movement, nil
}

// Release returns reserved stock to available.
func (c *Coordinator) Release(ctx context.Context, key stock.Key, batchID *id.ID, qty types.Quantity, op Op) error {
	if qty <= 0 {
		return apperror.NewValidation("release quantity must be positive")
	}
	_, err := c.apply(ctx, stock.Change{
		Key:           key,
		ReservedDelta: qty.Neg(),
		BatchID:       batchID,
		Recorder:      op.Recorder,
		ActorID:       op.ActorID,
	})
	return err
}

// Receive books inbound stock unconditionally.
func (c *Coordinator) Receive(ctx context.Context, in ReceiveInput) (*stock.Movement, error) {
	if in.Quantity <= 0 {
		return nil, apperror.NewValidation("receive quantity must be positive")
	}
	if in.Kind == "" {
		in.Kind = stock.KindReceive
	}
	res, err := c.apply(ctx, stock.Change{
		Key:               in.Key,
		QuantityDelta:     in.Quantity,
		Kind:              in.Kind,
		BatchID:           in.BatchID,
		UnitCost:          in.UnitCost,
		CounterLocationID: in.CounterLocationID,
		Recorder:          in.Recorder,
		ActorID:           in.ActorID,
		Notes:             in.Notes,
	})
	if err != nil {
		return nil, err
	}
	return res.Movement, nil
}

// Adjust applies a manual correction. Unit cost defaults to the product's cost price.
func (c *Coordinator) Adjust(ctx context.Context, in AdjustInput) (*stock.Movement, error) {
	if in.Delta == 0 {
		return nil, apperror.NewValidation("adjustment delta must not be zero")
	}
	product, err := c.catalog.Product(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}
	if _, err := c.catalog.Warehouse(ctx, in.WarehouseID); err != nil {
		return nil, err
	}
	if in.LocationID != nil {
		loc, err := c.catalog.Location(ctx, *in.LocationID)
		if err != nil {
			return nil, err
		}
		if loc.WarehouseID != in.WarehouseID {
			return nil, apperror.NewValidation("location belongs to another warehouse").
				WithDetail("locationId", loc.ID.String())
		}
	}

	unitCost := in.UnitCost
	if unitCost == nil {
		cost := product.CostPrice
		unitCost = &cost
	}

	res, err := c.apply(ctx, stock.Change{
		Key:           stock.NewKey(in.ProductID, in.WarehouseID, in.LocationID),
		QuantityDelta: in.Delta,
		Kind:          stock.KindAdjustment,
		BatchID:       in.BatchID,
		UnitCost:      unitCost,
		Recorder:      in.Recorder,
		ActorID:       in.ActorID,
		Notes:         in.Notes,
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "stock adjusted",
		"key", res.Movement.Key.String(),
		"delta", in.Delta,
		"movement_id", res.Movement.ID,
	)
	return res.Movement, nil
}

// Reverse books the exact opposite of mv.
func (c *Coordinator) Reverse(ctx context.Context, mv stock.Movement, op Op) (*stock.Movement, error) {
	return c.reverse(ctx, mv, 0, op)
}

// reverse books the opposite of mv and moves reserved by reservedDelta in the same step.
func (c *Coordinator) reverse(ctx context.Context, mv stock.Movement, reservedDelta types.Quantity, op Op) (*stock.Movement, error) {
	res, err := c.apply(ctx, stock.Change{
		Key:           mv.Key,
		QuantityDelta: mv.Delta.Neg(),
		ReservedDelta: reservedDelta,
		Kind:          mv.Kind,
		BatchID:       mv.BatchID,
		UnitCost:      mv.UnitCost,
		Recorder:      mv.Recorder,
		ActorID:       op.ActorID,
		Notes:         "reversal of " + mv.ID.String(),
	})
	if err != nil {
		return nil, err
	}
	return res.Movement, nil
}

func (c *Coordinator) apply(ctx context.Context, change stock.Change) (stock.Result, error) {
	res, err := c.ledger.ApplyMovement(ctx, change)
	if err != nil {
		return res, err
	}
	c.checkStockLow(ctx, change.Key, res)
	return res, nil
}

// checkStockLow publishes STOCK_LOW when this change took the warehouse total
// across the reorder point. The key lock is already released here.
func (c *Coordinator) checkStockLow(ctx context.Context, key stock.Key, res stock.Result) {
	drop := res.Before.Available() - res.After.Available()
	if drop <= 0 {
		return
	}
	product, err := c.catalog.Product(ctx, key.ProductID)
	if err != nil {
		logger.Debug(ctx, "stock low check skipped", "product_id", key.ProductID, "error", err)
		return
	}
	after, err := c.ledger.AvailableInWarehouse(ctx, key.ProductID, key.WarehouseID)
	if err != nil {
		logger.Warn(ctx, "stock low check failed", "key", key.String(), "error", err)
		return
	}
	before := after + drop
	if before <= product.ReorderPoint || after > product.ReorderPoint {
		return
	}

	e, err := events.New(events.TypeStockLow, "product", key.ProductID, events.StockLowPayload{
		ProductID:    key.ProductID,
		SKU:          product.SKU,
		WarehouseID:  key.WarehouseID,
		Available:    after,
		ReorderPoint: product.ReorderPoint,
	})
	if err != nil {
		logger.Error(ctx, "build stock low event", "error", err)
		return
	}
	c.events.Publish(ctx, e)
}

// --- Plans and handles ---

// ReserveForDemand resolves a demand into an allocation plan without reserving.
func (c *Coordinator) ReserveForDemand(ctx context.Context, d allocation.Demand) (allocation.Plan, error) {
	return c.resolver.Resolve(ctx, d)
}

// CommitReservation reserves every line of plan.
func (c *Coordinator) CommitReservation(ctx context.Context, plan allocation.Plan, op Op) (*Handle, error) {
	lines := make([]Line, len(plan.Lines))
	for i, l := range plan.Lines {
		lines[i] = Line{Key: plan.KeyOf(l), BatchID: l.BatchID, Quantity: l.Quantity}
	}
	return c.CommitLines(ctx, lines, op)
}

// CommitLines reserves lines one key at a time in key order. If a line fails,
// the lines already reserved are released before the error is returned.
func (c *Coordinator) CommitLines(ctx context.Context, lines []Line, op Op) (*Handle, error) {
	if len(lines) == 0 {
		return nil, apperror.NewValidation("reservation has no lines")
	}
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, apperror.NewValidation("reservation line quantity must be positive").
				WithDetail("key", l.Key.String())
		}
	}

	order := indexes(len(lines))
	sort.SliceStable(order, func(a, b int) bool {
		return lines[order[a]].Key.Compare(lines[order[b]].Key) < 0
	})

	done := make([]int, 0, len(lines))
	for _, i := range order {
		l := lines[i]
		if err := c.Reserve(ctx, l.Key, l.BatchID, l.Quantity, op); err != nil {
			return nil, c.compensateReserve(ctx, lines, done, op, err)
		}
		done = append(done, i)
	}
	return c.openHandle(ctx, lines, done, op)
}

// openHandle stores a handle over lines that are already reserved.
func (c *Coordinator) openHandle(ctx context.Context, lines []Line, done []int, op Op) (*Handle, error) {
	now := c.now()
	h := &Handle{
		BaseEntity: entity.NewBaseEntity(),
		Reference:  op.Recorder,
		Status:     HandleOpen,
		Lines:      make([]HandleLine, len(lines)),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for i, l := range lines {
		h.Lines[i] = HandleLine{
			ProductID:   l.Key.ProductID,
			WarehouseID: l.Key.WarehouseID,
			LocationID:  l.Key.LocationID,
			BatchID:     l.BatchID,
			Reserved:    l.Quantity,
		}
	}
	if err := c.handles.Create(ctx, h); err != nil {
		return nil, c.compensateReserve(ctx, lines, done, op, fmt.Errorf("save reservation: %w", err))
	}

	logger.Info(ctx, "reservation committed",
		"handle_id", h.ID,
		"lines", len(h.Lines),
		"reference", op.Recorder.Number,
	)
	return h, nil
}

// Request is one document line to source: a product with an optional
// location and batch.
type Request struct {
	ProductID   id.ID
	WarehouseID id.ID
	LocationID  *id.ID
	BatchID     *id.ID
	Quantity    types.Quantity
	// Strategy picks locations when LocationID is nil; FIFO when empty
	Strategy allocation.Strategy
}

// Allocate splits a request into reservable lines without reserving. A
// located request stays at its location but is split over the batches stored
// there; an unlocated one is resolved across the warehouse. A shortfall is
// InsufficientStock, returned together with the lines that could be covered.
func (c *Coordinator) Allocate(ctx context.Context, r Request) ([]Line, error) {
	d := allocation.Demand{
		ProductID:   r.ProductID,
		WarehouseID: r.WarehouseID,
		Quantity:    r.Quantity,
		Strategy:    r.Strategy,
		LocationID:  r.LocationID,
		BatchID:     r.BatchID,
	}
	switch {
	case r.LocationID != nil:
		d.Strategy = allocation.Manual
	case d.Strategy == "" || d.Strategy == allocation.Manual || d.Strategy == allocation.ZoneBased:
		d.Strategy = allocation.FIFO
	}

	plan, err := c.resolver.Resolve(ctx, d)
	lines := make([]Line, len(plan.Lines))
	for i, l := range plan.Lines {
		lines[i] = Line{Key: plan.KeyOf(l), BatchID: l.BatchID, Quantity: l.Quantity}
	}
	if apperror.Is(err, apperror.CodeInsufficientAvailableStock) {
		key := stock.NewKey(r.ProductID, r.WarehouseID, r.LocationID)
		return lines, apperror.NewInsufficientStock(key.String(), r.Quantity.Float64(), plan.Allocated().Float64())
	}
	if err != nil {
		return nil, err
	}
	return lines, nil
}

// CommitRequests allocates and reserves requests in order, so each request
// sees what the earlier ones took. spans[i] lists the handle lines of
// requests[i]. On failure everything reserved so far is released.
func (c *Coordinator) CommitRequests(ctx context.Context, requests []Request, op Op) (h *Handle, spans [][]int, err error) {
	if len(requests) == 0 {
		return nil, nil, apperror.NewValidation("reservation has no lines")
	}

	var lines []Line
	spans = make([][]int, len(requests))
	for i, r := range requests {
		if r.Quantity <= 0 {
			return nil, nil, c.compensateReserve(ctx, lines, indexes(len(lines)), op,
				apperror.NewValidation("reservation line quantity must be positive").WithDetail("productId", r.ProductID.String()))
		}
		alloc, err := c.Allocate(ctx, r)
		if err != nil {
			return nil, nil, c.compensateReserve(ctx, lines, indexes(len(lines)), op, err)
		}
		for _, l := range alloc {
			if err := c.Reserve(ctx, l.Key, l.BatchID, l.Quantity, op); err != nil {
				return nil, nil, c.compensateReserve(ctx, lines, indexes(len(lines)), op, err)
			}
			spans[i] = append(spans[i], len(lines))
			lines = append(lines, l)
		}
	}

	h, err = c.openHandle(ctx, lines, indexes(len(lines)), op)
	if err != nil {
		return nil, nil, err
	}
	return h, spans, nil
}

func indexes(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func (c *Coordinator) compensateReserve(ctx context.Context, lines []Line, done []int, op Op, cause error) error {
	var errs []error
	for i := len(done) - 1; i >= 0; i-- {
		l := lines[done[i]]
		if err := c.Release(ctx, l.Key, l.BatchID, l.Quantity, op); err != nil {
			errs = append(errs, fmt.Errorf("release %s: %w", l.Key, err))
		}
	}
	if len(done) > 0 {
		logger.Warn(ctx, "reservation compensated", "released_lines", len(done), "cause", cause)
	}
	if len(errs) > 0 {
		logger.Error(ctx, "reservation compensation failed", "error", errors.Join(errs...))
		return errors.Join(append([]error{cause}, errs...)...)
	}
	return cause
}

// GetHandle loads a reservation handle.
func (c *Coordinator) GetHandle(ctx context.Context, handleID id.ID) (*Handle, error) {
	return c.handles.Get(ctx, handleID)
}

// ConsumeReservation consumes qty from the handle's lines in plan order.
func (c *Coordinator) ConsumeReservation(ctx context.Context, handleID id.ID, qty types.Quantity, kind stock.MovementKind, op Op) (*Handle, []stock.Movement, error) {
	return c.drawDown(ctx, handleID, -1, qty, true, kind, op)
}

// ReleaseReservation releases qty from the handle's lines in plan order.
func (c *Coordinator) ReleaseReservation(ctx context.Context, handleID id.ID, qty types.Quantity, op Op) (*Handle, error) {
	h, _, err := c.drawDown(ctx, handleID, -1, qty, false, "", op)
	return h, err
}

// ConsumeLine consumes qty from one line of the handle.
func (c *Coordinator) ConsumeLine(ctx context.Context, handleID id.ID, line int, qty types.Quantity, kind stock.MovementKind, op Op) (*Handle, []stock.Movement, error) {
	return c.drawDown(ctx, handleID, line, qty, true, kind, op)
}

// ReleaseLine releases qty from one line of the handle.
func (c *Coordinator) ReleaseLine(ctx context.Context, handleID id.ID, line int, qty types.Quantity, op Op) (*Handle, error) {
	h, _, err := c.drawDown(ctx, handleID, line, qty, false, "", op)
	return h, err
}

// ReleaseAll releases everything still outstanding on the handle. A closed
// handle is returned unchanged.
func (c *Coordinator) ReleaseAll(ctx context.Context, handleID id.ID, op Op) (*Handle, error) {
	h, err := c.handles.Get(ctx, handleID)
	if err != nil {
		return nil, err
	}
	if h.Outstanding() == 0 {
		return h, nil
	}
	return c.ReleaseReservation(ctx, handleID, h.Outstanding(), op)
}

type drawn struct {
	line int
	qty  types.Quantity
	mv   *stock.Movement
}

func (c *Coordinator) drawDown(ctx context.Context, handleID id.ID, line int, qty types.Quantity, consume bool, kind stock.MovementKind, op Op) (*Handle, []stock.Movement, error) {
	action := "release"
	if consume {
		action = "consume"
	}
	if qty <= 0 {
		return nil, nil, apperror.NewValidation(action + " quantity must be positive")
	}

	unlock := c.locks.Lock("handle/" + handleID.String())
	defer unlock()

	h, err := c.handles.Get(ctx, handleID)
	if err != nil {
		return nil, nil, err
	}
	if h.Status == HandleClosed {
		return nil, nil, apperror.NewInvalidStateTransition("reservation", action, string(h.Status))
	}

	candidates := make([]int, 0, len(h.Lines))
	if line < 0 {
		for i := range h.Lines {
			candidates = append(candidates, i)
		}
	} else {
		if line >= len(h.Lines) {
			return nil, nil, apperror.NewValidation("reservation line out of range").WithDetail("line", line)
		}
		candidates = append(candidates, line)
	}

	var outstanding types.Quantity
	for _, i := range candidates {
		outstanding += h.Lines[i].Outstanding()
	}
	if outstanding < qty {
		return nil, nil, apperror.NewInsufficientStock("handle/"+handleID.String(), qty.Float64(), outstanding.Float64())
	}

	var applied []drawn
	remaining := qty
	for _, i := range candidates {
		if remaining == 0 {
			break
		}
		hl := h.Lines[i]
		take := types.MinQuantity(hl.Outstanding(), remaining)
		if take <= 0 {
			continue
		}
		var mv *stock.Movement
		if consume {
			mv, err = c.Consume(ctx, hl.Key(), hl.BatchID, take, kind, op)
		} else {
			err = c.Release(ctx, hl.Key(), hl.BatchID, take, op)
		}
		if err != nil {
			return nil, nil, c.undoDrawDown(ctx, h, applied, op, err)
		}
		applied = append(applied, drawn{line: i, qty: take, mv: mv})
		remaining -= take
	}

	for _, d := range applied {
		if consume {
			h.Lines[d.line].Consumed += d.qty
		} else {
			h.Lines[d.line].Released += d.qty
		}
	}
	h.refreshStatus()
	h.UpdatedAt = c.now()
	if err := c.handles.Update(ctx, h); err != nil {
		return nil, nil, c.undoDrawDown(ctx, h, applied, op, fmt.Errorf("save reservation: %w", err))
	}

	var movements []stock.Movement
	for _, d := range applied {
		if d.mv != nil {
			movements = append(movements, *d.mv)
		}
	}
	return h, movements, nil
}

// undoDrawDown restores the reservation of lines drawn before a failure.
func (c *Coordinator) undoDrawDown(ctx context.Context, h *Handle, applied []drawn, op Op, cause error) error {
	var errs []error
	for i := len(applied) - 1; i >= 0; i-- {
		d := applied[i]
		hl := h.Lines[d.line]
		if d.mv != nil {
			if _, err := c.reverse(ctx, *d.mv, d.qty, op); err != nil {
				errs = append(errs, fmt.Errorf("reverse %s: %w", d.mv.ID, err))
			}
			continue
		}
		if err := c.Reserve(ctx, hl.Key(), hl.BatchID, d.qty, op); err != nil {
			errs = append(errs, fmt.Errorf("re-reserve %s: %w", hl.Key(), err))
		}
	}
	if len(applied) > 0 {
		logger.Warn(ctx, "reservation draw-down compensated", "handle_id", h.ID, "lines", len(applied), "cause", cause)
	}
	if len(errs) > 0 {
		logger.Error(ctx, "reservation draw-down compensation failed", "handle_id", h.ID, "error", errors.Join(errs...))
		return errors.Join(append([]error{cause}, errs...)...)
	}
	return cause
}

// Reinstate undoes consumes drawn from the handle: each movement is reversed
// with its reservation restored and the matching line is credited back.
// Workflows use it to compensate a transition that failed after picking.
func (c *Coordinator) Reinstate(ctx context.Context, handleID id.ID, movements []stock.Movement, op Op) (*Handle, error) {
	unlock := c.locks.Lock("handle/" + handleID.String())
	defer unlock()

	h, err := c.handles.Get(ctx, handleID)
	if err != nil {
		return nil, err
	}
	for _, mv := range movements {
		qty := mv.Delta.Neg()
		i := h.consumedLine(mv.Key, mv.BatchID, qty)
		if i < 0 {
			return nil, apperror.NewInvariantViolation("movement " + mv.ID.String() + " was not drawn from reservation " + handleID.String())
		}
		if _, err := c.reverse(ctx, mv, qty, op); err != nil {
			return nil, fmt.Errorf("reinstate %s: %w", mv.ID, err)
		}
		h.Lines[i].Consumed -= qty
	}
	h.refreshStatus()
	h.UpdatedAt = c.now()
	if err := c.handles.Update(ctx, h); err != nil {
		return nil, fmt.Errorf("save reservation: %w", err)
	}
	return h, nil
}

// Rereserve undoes a release of qty on one line of the handle.
func (c *Coordinator) Rereserve(ctx context.Context, handleID id.ID, line int, qty types.Quantity, op Op) (*Handle, error) {
	unlock := c.locks.Lock("handle/" + handleID.String())
	defer unlock()

	h, err := c.handles.Get(ctx, handleID)
	if err != nil {
		return nil, err
	}
	if line < 0 || line >= len(h.Lines) || h.Lines[line].Released < qty {
		return nil, apperror.NewInvariantViolation("nothing to re-reserve on reservation " + handleID.String())
	}
	hl := h.Lines[line]
	if err := c.Reserve(ctx, hl.Key(), hl.BatchID, qty, op); err != nil {
		return nil, err
	}
	h.Lines[line].Released -= qty
	h.refreshStatus()
	h.UpdatedAt = c.now()
	if err := c.handles.Update(ctx, h); err != nil {
		return nil, fmt.Errorf("save reservation: %w", err)
	}
	return h, nil
}

// --- Query surface ---

// StockLevels lists levels for the optional product and warehouse.
func (c *Coordinator) StockLevels(ctx context.Context, filter stock.LevelFilter) ([]stock.Level, error) {
	return c.ledger.Levels(ctx, filter)
}

// Movements returns movement history matching filter.
func (c *Coordinator) Movements(ctx context.Context, filter stock.MovementFilter) ([]stock.Movement, error) {
	return c.ledger.Movements(ctx, filter)
}

// GetLevel returns the level of key; ok is false when the key never saw a movement.
func (c *Coordinator) GetLevel(ctx context.Context, key stock.Key) (stock.Level, bool, error) {
	return c.ledger.GetLevel(ctx, key)
}

// AvailableInWarehouse sums available quantity over a warehouse's locations.
func (c *Coordinator) AvailableInWarehouse(ctx context.Context, productID, warehouseID id.ID) (types.Quantity, error) {
	return c.ledger.AvailableInWarehouse(ctx, productID, warehouseID)
}

// Turnover reports opening, inbound, outbound and closing totals for a period.
func (c *Coordinator) Turnover(ctx context.Context, filter stock.TurnoverFilter) (stock.Turnover, error) {
	return c.ledger.Turnover(ctx, filter)
}

// Verify replays one key.
func (c *Coordinator) Verify(ctx context.Context, key stock.Key) error {
	return c.ledger.Verify(ctx, key)
}
