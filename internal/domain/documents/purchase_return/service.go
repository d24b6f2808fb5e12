package purchase_return

import (
	"context"
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
	"stockcore/internal/domain/registers/stock"
	"stockcore/internal/domain/reservation"
	"stockcore/pkg/logger"
)

// Repository persists purchase returns.
type Repository = documents.Repository[*PurchaseReturn]

// Service runs the purchase return workflow.
type Service struct {
	engine    *documents.Engine[Status, *PurchaseReturn]
	coord     *reservation.Coordinator
	directory catalog.Directory
}

// Deps are the collaborators of Service.
type Deps struct {
	Repo        Repository
	Numerator   numerator.Generator
	Locks       *keylock.Table
	Events      events.Publisher
	Coordinator *reservation.Coordinator
	Directory   catalog.Directory
}

// NewService creates a purchase return service.
func NewService(d Deps) *Service {
	return &Service{
		engine: documents.NewEngine(documents.Config[Status]{
			Entity:   "PurchaseReturn",
			Prefix:   "PR",
			Strategy: NumeratorStrategy,
			Initial:  StatusDraft,
		}, transitions, d.Repo, d.Numerator, d.Locks, d.Events),
		coord:     d.Coordinator,
		directory: d.Directory,
	}
}

// ItemInput is one line to return. A nil LocationID is resolved when the
// return is processed.
type ItemInput struct {
	ProductID  id.ID
	LocationID *id.ID
	BatchID    *id.ID
	Quantity   types.Quantity
	// UnitCost defaults to the product's cost price
	UnitCost *types.Money
	Note     string
}

// CreateInput describes a new draft return.
type CreateInput struct {
	WarehouseID     id.ID
	SupplierID      id.ID
	PurchaseOrderID *id.ID
	Reason          Reason
	RequestRefund   bool
	Comment         string
	Items           []ItemInput
}

func (s *Service) Create(ctx context.Context, in CreateInput, actorID string) (*PurchaseReturn, error) {
	if _, err := s.directory.Warehouse(ctx, in.WarehouseID); err != nil {
		return nil, err
	}
	doc := NewPurchaseReturn(actorID, in.WarehouseID, in.SupplierID, in.Reason)
	doc.PurchaseOrderID = in.PurchaseOrderID
	doc.RefundRequested = in.RequestRefund
	doc.Comment = in.Comment

	for _, it := range in.Items {
		product, err := s.directory.Product(ctx, it.ProductID)
		if err != nil {
			return nil, err
		}
		if it.LocationID != nil {
			loc, err := s.directory.Location(ctx, *it.LocationID)
			if err != nil {
				return nil, err
			}
			if loc.WarehouseID != in.WarehouseID {
				return nil, apperror.NewValidation("location belongs to another warehouse").
					WithDetail("locationId", loc.ID.String())
			}
		}
		cost := product.CostPrice
		if it.UnitCost != nil {
			cost = *it.UnitCost
		}
		doc.AddItem(Item{
			ProductID:  it.ProductID,
			LocationID: it.LocationID,
			BatchID:    it.BatchID,
			Quantity:   it.Quantity,
			UnitCost:   cost,
			Note:       strings.TrimSpace(it.Note),
		})
	}
	if err := s.engine.Create(ctx, doc, actorID); err != nil {
		return nil, err
	}
	return doc, nil
}

// CreateFromPurchaseOrder seeds a return with the order's supplier, warehouse
// and unit costs. quantities selects the products to return.
func (s *Service) CreateFromPurchaseOrder(ctx context.Context, orderID id.ID, quantities map[id.ID]types.Quantity, reason Reason, requestRefund bool, actorID string) (*PurchaseReturn, error) {
	po, err := s.directory.PurchaseOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	for productID := range quantities {
		if _, ok := po.Line(productID); !ok {
			return nil, apperror.NewValidation("product is not on the purchase order").WithDetail("productId", productID.String())
		}
	}
	in := CreateInput{
		WarehouseID:     po.WarehouseID,
		SupplierID:      po.SupplierID,
		PurchaseOrderID: &po.ID,
		Reason:          reason,
		RequestRefund:   requestRefund,
		Comment:         "return against purchase order " + po.Number,
	}
	for _, l := range po.Lines {
		qty, ok := quantities[l.ProductID]
		if !ok || qty <= 0 {
			continue
		}
		if qty > l.Ordered {
			return nil, apperror.NewValidation("return exceeds ordered quantity").
				WithDetail("productId", l.ProductID.String()).
				WithDetail("ordered", l.Ordered.String())
		}
		cost := l.UnitCost
		in.Items = append(in.Items, ItemInput{ProductID: l.ProductID, Quantity: qty, UnitCost: &cost})
	}
	return s.Create(ctx, in, actorID)
}

// Get loads a purchase return.
func (s *Service) Get(ctx context.Context, docID id.ID) (*PurchaseReturn, error) {
	return s.engine.Get(ctx, docID)
}

// List pages through purchase returns.
func (s *Service) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*PurchaseReturn], error) {
	return s.engine.List(ctx, filter)
}

// Submit sends a draft for approval.
func (s *Service) Submit(ctx context.Context, docID id.ID, actorID string) (*PurchaseReturn, error) {
	return s.engine.Fire(ctx, docID, EventSubmit, actorID, nil)
}

// Approve records the approver.
func (s *Service) Approve(ctx context.Context, docID id.ID, actorID string) (*PurchaseReturn, error) {
	return s.engine.Fire(ctx, docID, EventApprove, actorID,
		func(_ context.Context, doc *PurchaseReturn, _ *documents.Undos) (Status, error) {
			doc.ApprovedBy = actorID
			return "", nil
		})
}

func (s *Service) Reject(ctx context.Context, docID id.ID, reason, actorID string) (*PurchaseReturn, error) {
	return s.engine.Fire(ctx, docID, EventReject, actorID,
		func(_ context.Context, doc *PurchaseReturn, _ *documents.Undos) (Status, error) {
			doc.RejectionReason = strings.TrimSpace(reason)
			return "", nil
		})
}

// Process takes every line not yet adjusted out of the returning warehouse
// as a RETURN movement. Lines are reserved first so that a shortfall on any
// line leaves the ledger untouched. A line without a location is taken from
// wherever the product is stored, oldest stock first.
func (s *Service) Process(ctx context.Context, docID id.ID, actorID string) (*PurchaseReturn, error) {
	return s.engine.Fire(ctx, docID, EventProcess, actorID,
		func(ctx context.Context, doc *PurchaseReturn, undo *documents.Undos) (Status, error) {
			op := reservation.Op{Recorder: documents.Ref(doc), ActorID: actorID, Notes: "return to supplier"}

			var (
				requests []reservation.Request
				items    []int
			)
			for i, it := range doc.Items {
				if it.StockAdjusted {
					continue
				}
				requests = append(requests, reservation.Request{
					ProductID:   it.ProductID,
					WarehouseID: doc.WarehouseID,
					LocationID:  it.LocationID,
					BatchID:     it.BatchID,
					Quantity:    it.Quantity,
				})
				items = append(items, i)
			}
			if len(requests) > 0 {
				h, spans, err := s.coord.CommitRequests(ctx, requests, op)
				if err != nil {
					return "", err
				}
				undo.Add(func(ctx context.Context) error {
					_, err := s.coord.ReleaseAll(ctx, h.ID, op)
					return err
				})

				for n, i := range items {
					it := &doc.Items[i]
					var first *id.ID
					for _, line := range spans[n] {
						_, mvs, err := s.coord.ConsumeLine(ctx, h.ID, line, h.Lines[line].Reserved, stock.KindReturn, op)
						if err != nil {
							return "", err
						}
						undo.Add(func(ctx context.Context) error {
							_, err := s.coord.Reinstate(ctx, h.ID, mvs, op)
							return err
						})
						if first == nil && len(mvs) > 0 {
							first = &mvs[0].ID
						}
					}
					it.StockAdjusted = true
					it.MovementID = first
				}
			}

			now := time.Now().UTC()
			doc.ProcessedAt = &now
			return "", nil
		})
}

// Refund marks the supplier refund as processed. It requires a requested
// refund and succeeds only once.
func (s *Service) Refund(ctx context.Context, docID id.ID, actorID string) (*PurchaseReturn, error) {
	return s.engine.Fire(ctx, docID, EventRefund, actorID,
		func(ctx context.Context, doc *PurchaseReturn, _ *documents.Undos) (Status, error) {
			if !doc.RefundRequested {
				return "", apperror.NewValidation("refund was not requested for this return")
			}
			if doc.RefundProcessed {
				return "", apperror.NewInvalidStateTransition("PurchaseReturn", EventRefund, string(doc.Status)).
					WithDetail("reason", "refund already processed")
			}
			now := time.Now().UTC()
			amount := doc.Total()
			doc.RefundProcessed = true
			doc.RefundedAt = &now
			doc.RefundAmount = &amount
			logger.Info(ctx, "purchase return refunded",
				"number", doc.Number,
				"amount", amount.String())
			return "", nil
		})
}

// Cancel abandons a return that has not been processed; it has no ledger effect.
func (s *Service) Cancel(ctx context.Context, docID id.ID, actorID string) (*PurchaseReturn, error) {
	return s.engine.Fire(ctx, docID, EventCancel, actorID, nil)
}
