package goods_receipt

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/core/keylock"
	"stockcore/internal/core/numerator"
	"stockcore/internal/core/types"
	"stockcore/internal/domain"
	"stockcore/internal/domain/catalog"
	"stockcore/internal/domain/documents"
	"stockcore/internal/domain/events"
	"stockcore/internal/domain/putaway"
	"stockcore/internal/domain/registers/batch"
	"stockcore/internal/domain/registers/stock"
	"stockcore/internal/domain/reservation"
)

// Service provides the goods receipt workflow.
type Service struct {
	engine    *documents.Engine[Status, *GoodsReceipt]
	coord     *reservation.Coordinator
	batches   *batch.Registry
	planner   *putaway.Planner
	directory catalog.Directory
}

// Deps groups the collaborators of the service.
type Deps struct {
	Repo        Repository
	Numerator   numerator.Generator
	Locks       *keylock.Table
	Events      events.Publisher
	Coordinator *reservation.Coordinator
	Batches     *batch.Registry
	Planner     *putaway.Planner
	Directory   catalog.Directory
}

// NewService creates a goods receipt service.
func NewService(d Deps) *Service {
	return &Service{
		engine: documents.NewEngine(documents.Config[Status]{
			Entity:   "GoodsReceipt",
			Prefix:   "GR",
			Strategy: NumeratorStrategy,
			Initial:  StatusDraft,
		}, transitions, d.Repo, d.Numerator, d.Locks, d.Events),
		coord:     d.Coordinator,
		batches:   d.Batches,
		planner:   d.Planner,
		directory: d.Directory,
	}
}

// ItemInput is one line of a new receipt.
type ItemInput struct {
	ProductID        id.ID
	OrderedQuantity  types.Quantity
	ReceivedQuantity types.Quantity
	UnitCost         *types.Money
	BatchNumber      string
	ManufacturedAt   *time.Time
	ExpiresAt        *time.Time
}

type CreateInput struct {
	WarehouseID     id.ID
	SupplierID      *id.ID
	PurchaseOrderID *id.ID
	Comment         string
	Items           []ItemInput
}

// Create stores a draft receipt after checking its references.
func (s *Service) Create(ctx context.Context, in CreateInput, actorID string) (*GoodsReceipt, error) {
	if _, err := s.directory.Warehouse(ctx, in.WarehouseID); err != nil {
		return nil, err
	}
	doc := NewGoodsReceipt(actorID, in.WarehouseID)
	doc.SupplierID = in.SupplierID
	doc.PurchaseOrderID = in.PurchaseOrderID
	doc.Comment = in.Comment
	for _, it := range in.Items {
		if _, err := s.directory.Product(ctx, it.ProductID); err != nil {
			return nil, err
		}
		doc.AddItem(Item{
			ProductID:        it.ProductID,
			OrderedQuantity:  it.OrderedQuantity,
			ReceivedQuantity: it.ReceivedQuantity,
			UnitCost:         it.UnitCost,
			BatchNumber:      strings.TrimSpace(it.BatchNumber),
			ManufacturedAt:   it.ManufacturedAt,
			ExpiresAt:        it.ExpiresAt,
		})
	}
	if err := s.engine.Create(ctx, doc, actorID); err != nil {
		return nil, err
	}
	return doc, nil
}

// CreateFromPurchaseOrder seeds a draft with the order's lines, assuming the
// full ordered quantity arrived. received overrides per product.
func (s *Service) CreateFromPurchaseOrder(ctx context.Context, orderID id.ID, received map[id.ID]types.Quantity, actorID string) (*GoodsReceipt, error) {
	po, err := s.directory.PurchaseOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	in := CreateInput{
		WarehouseID:     po.WarehouseID,
		SupplierID:      &po.SupplierID,
		PurchaseOrderID: &po.ID,
		Comment:         "from purchase order " + po.Number,
	}
	for _, l := range po.Lines {
		qty := l.Ordered
		if q, ok := received[l.ProductID]; ok {
			qty = q
		}
		if qty <= 0 {
			continue
		}
		cost := l.UnitCost
		in.Items = append(in.Items, ItemInput{
			ProductID:        l.ProductID,
			OrderedQuantity:  l.Ordered,
			ReceivedQuantity: qty,
			UnitCost:         &cost,
		})
	}
	return s.Create(ctx, in, actorID)
}

// Get loads a goods receipt.
func (s *Service) Get(ctx context.Context, docID id.ID) (*GoodsReceipt, error) {
	return s.engine.Get(ctx, docID)
}

// List pages through goods receipts.
func (s *Service) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*GoodsReceipt], error) {
	return s.engine.List(ctx, filter)
}

func (s *Service) Submit(ctx context.Context, docID id.ID, actorID string) (*GoodsReceipt, error) {
	return s.engine.Fire(ctx, docID, EventSubmit, actorID, nil)
}

// StartInspection assigns the actor as inspector.
func (s *Service) StartInspection(ctx context.Context, docID id.ID, actorID string) (*GoodsReceipt, error) {
	return s.engine.Fire(ctx, docID, EventStartInspection, actorID,
		func(_ context.Context, doc *GoodsReceipt, _ *documents.Undos) (Status, error) {
			doc.InspectorID = actorID
			return "", nil
		})
}

// InspectInput records the inspection result of one item.
type InspectInput struct {
	LineID   id.ID
	Accepted types.Quantity
	Rejected types.Quantity
	Reason   string
}

// InspectItem records accepted and rejected quantities; it has no ledger effect.
func (s *Service) InspectItem(ctx context.Context, docID id.ID, in InspectInput, actorID string) (*GoodsReceipt, error) {
	return s.engine.Fire(ctx, docID, EventInspect, actorID,
		func(_ context.Context, doc *GoodsReceipt, _ *documents.Undos) (Status, error) {
			it, err := doc.Item(in.LineID)
			if err != nil {
				return "", err
			}
			if in.Accepted < 0 || in.Rejected < 0 || in.Accepted+in.Rejected != it.ReceivedQuantity {
				return "", apperror.NewValidation("accepted plus rejected must equal received").
					WithDetail("lineNo", it.LineNo).
					WithDetail("received", it.ReceivedQuantity.String())
			}
			it.AcceptedQuantity = in.Accepted
			it.RejectedQuantity = in.Rejected
			it.RejectionReason = strings.TrimSpace(in.Reason)
			switch {
			case in.Rejected == 0:
				it.InspectionStatus = InspectionApproved
			case in.Accepted == 0:
				it.InspectionStatus = InspectionRejected
			default:
				it.InspectionStatus = InspectionPartial
			}
			return "", nil
		})
}

// CompleteInspection sets the header status from the item results.
func (s *Service) CompleteInspection(ctx context.Context, docID id.ID, actorID string) (*GoodsReceipt, error) {
	return s.engine.Fire(ctx, docID, EventCompleteInspection, actorID,
		func(_ context.Context, doc *GoodsReceipt, _ *documents.Undos) (Status, error) {
			return doc.InspectionOutcome()
		})
}

// PutAwayInput selects what to store. A nil LineID stores every item still
// awaiting put-away; LocationID overrides the rule decision for a single line.
type PutAwayInput struct {
	LineID     *id.ID
	LocationID *id.ID
}

// PutAway receives accepted stock into locations. Once every accepted item
// is stored the receipt completes.
func (s *Service) PutAway(ctx context.Context, docID id.ID, in PutAwayInput, actorID string) (*GoodsReceipt, error) {
	if in.LineID == nil && in.LocationID != nil {
		return nil, apperror.NewValidation("a location override needs a line")
	}
	return s.engine.Fire(ctx, docID, EventPutAway, actorID,
		func(ctx context.Context, doc *GoodsReceipt, undo *documents.Undos) (Status, error) {
			var targets []*Item
			if in.LineID != nil {
				it, err := doc.Item(*in.LineID)
				if err != nil {
					return "", err
				}
				if !it.AwaitingPutAway() {
					return "", apperror.NewValidation("item has nothing to put away").WithDetail("lineNo", it.LineNo)
				}
				targets = append(targets, it)
			} else {
				for i := range doc.Items {
					if doc.Items[i].AwaitingPutAway() {
						targets = append(targets, &doc.Items[i])
					}
				}
			}

			op := reservation.Op{Recorder: documents.Ref(doc), ActorID: actorID}
			for _, it := range targets {
				if err := s.store(ctx, doc, it, in.LocationID, op, undo); err != nil {
					return "", fmt.Errorf("put away line %d: %w", it.LineNo, err)
				}
			}

			for _, it := range doc.Items {
				if it.AwaitingPutAway() {
					return doc.Status, nil
				}
			}
			return StatusCompleted, nil
		})
}

func (s *Service) store(ctx context.Context, doc *GoodsReceipt, it *Item, override *id.ID, op reservation.Op, undo *documents.Undos) error {
	var batchID *id.ID
	if it.BatchNumber != "" {
		// inspection already passed, so the lot is allocatable at once
		b, err := s.batches.Ensure(ctx, batch.CreateInput{
			BatchNumber:    it.BatchNumber,
			ProductID:      it.ProductID,
			WarehouseID:    doc.WarehouseID,
			ManufacturedAt: it.ManufacturedAt,
			ExpiresAt:      it.ExpiresAt,
			QualityStatus:  batch.QualityReleased,
		})
		if err != nil {
			return err
		}
		batchID = &b.ID
	}

	locationID, err := s.locate(ctx, doc, it, override)
	if err != nil {
		return err
	}

	mv, err := s.coord.Receive(ctx, reservation.ReceiveInput{
		Key:      stock.NewKey(it.ProductID, doc.WarehouseID, &locationID),
		BatchID:  batchID,
		Quantity: it.AcceptedQuantity,
		Kind:     stock.KindReceive,
		UnitCost: it.UnitCost,
		Op:       op,
	})
	if err != nil {
		return err
	}
	undo.Add(func(ctx context.Context) error {
		_, err := s.coord.Reverse(ctx, *mv, op)
		return err
	})

	it.PutAway = true
	it.LocationID = &locationID
	it.BatchID = batchID
	it.MovementID = &mv.ID
	return nil
}

func (s *Service) locate(ctx context.Context, doc *GoodsReceipt, it *Item, override *id.ID) (id.ID, error) {
	if override != nil {
		loc, err := s.directory.Location(ctx, *override)
		if err != nil {
			return id.Nil(), err
		}
		if loc.WarehouseID != doc.WarehouseID || !loc.Active {
			return id.Nil(), apperror.NewValidation("location is not an active location of the receiving warehouse").
				WithDetail("locationId", override.String())
		}
		return loc.ID, nil
	}
	d, err := s.planner.Suggest(ctx, putaway.Request{
		ProductID:      it.ProductID,
		WarehouseID:    doc.WarehouseID,
		Quantity:       it.AcceptedQuantity,
		BatchExpiresAt: it.ExpiresAt,
	})
	if err != nil {
		return id.Nil(), err
	}
	return d.LocationID, nil
}

// Cancel abandons a receipt before inspection starts.
func (s *Service) Cancel(ctx context.Context, docID id.ID, actorID string) (*GoodsReceipt, error) {
	return s.engine.Fire(ctx, docID, EventCancel, actorID, nil)
}
