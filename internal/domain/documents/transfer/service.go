package transfer

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
	"stockcore/internal/domain/registers/stock"
	"stockcore/internal/domain/reservation"
)

// Repository persists transfers.
type Repository = documents.Repository[*Transfer]

// Service runs the transfer workflow against the reservation coordinator.
type Service struct {
	engine    *documents.Engine[Status, *Transfer]
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

// NewService creates a transfer service.
func NewService(d Deps) *Service {
	return &Service{
		engine: documents.NewEngine(documents.Config[Status]{
			Entity:   "Transfer",
			Prefix:   "TR",
			Strategy: NumeratorStrategy,
			Initial:  StatusDraft,
		}, transitions, d.Repo, d.Numerator, d.Locks, d.Events),
		coord:     d.Coordinator,
		directory: d.Directory,
	}
}

// ItemInput is one requested line. A nil FromLocationID lets the transfer
// draw from any location of the source warehouse, oldest stock first.
type ItemInput struct {
	ProductID      id.ID
	FromLocationID *id.ID
	ToLocationID   *id.ID
	BatchID        *id.ID
	Quantity       types.Quantity
}

// CreateInput describes a new draft transfer.
type CreateInput struct {
	FromWarehouseID id.ID
	ToWarehouseID   id.ID
	Comment         string
	Items           []ItemInput
}

func (s *Service) Create(ctx context.Context, in CreateInput, actorID string) (*Transfer, error) {
	for _, wh := range []id.ID{in.FromWarehouseID, in.ToWarehouseID} {
		if _, err := s.directory.Warehouse(ctx, wh); err != nil {
			return nil, err
		}
	}
	doc := NewTransfer(actorID, in.FromWarehouseID, in.ToWarehouseID)
	doc.Comment = in.Comment
	for _, it := range in.Items {
		if _, err := s.directory.Product(ctx, it.ProductID); err != nil {
			return nil, err
		}
		if err := s.checkLocation(ctx, it.FromLocationID, in.FromWarehouseID); err != nil {
			return nil, err
		}
		if err := s.checkLocation(ctx, it.ToLocationID, in.ToWarehouseID); err != nil {
			return nil, err
		}
		doc.AddItem(Item{
			ProductID:      it.ProductID,
			FromLocationID: it.FromLocationID,
			ToLocationID:   it.ToLocationID,
			BatchID:        it.BatchID,
			Requested:      it.Quantity,
		})
	}
	if err := s.engine.Create(ctx, doc, actorID); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Service) checkLocation(ctx context.Context, locationID *id.ID, warehouseID id.ID) error {
	if locationID == nil {
		return nil
	}
	loc, err := s.directory.Location(ctx, *locationID)
	if err != nil {
		return err
	}
	if loc.WarehouseID != warehouseID {
		return apperror.NewValidation("location belongs to another warehouse").WithDetail("locationId", locationID.String())
	}
	return nil
}

// Get loads a transfer.
func (s *Service) Get(ctx context.Context, docID id.ID) (*Transfer, error) {
	return s.engine.Get(ctx, docID)
}

// List pages through transfers.
func (s *Service) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Transfer], error) {
	return s.engine.List(ctx, filter)
}

// sourceRequest is what a line asks of the source warehouse.
func (t *Transfer) sourceRequest(it Item) reservation.Request {
	return reservation.Request{
		ProductID:   it.ProductID,
		WarehouseID: t.FromWarehouseID,
		LocationID:  it.FromLocationID,
		BatchID:     it.BatchID,
		Quantity:    it.Requested,
	}
}

type sourceGroup struct {
	productID  id.ID
	locationID id.ID
	batchID    id.ID
}

// Submit checks that the source holds enough available stock for every line.
// Lines drawing on the same product, location and batch are checked together.
// Nothing is reserved: the check is repeated when the transfer ships.
func (s *Service) Submit(ctx context.Context, docID id.ID, actorID string) (*Transfer, error) {
	return s.engine.Fire(ctx, docID, EventSubmit, actorID,
		func(ctx context.Context, doc *Transfer, _ *documents.Undos) (Status, error) {
			need := make(map[sourceGroup]reservation.Request)
			var order []sourceGroup
			for _, it := range doc.Items {
				g := sourceGroup{productID: it.ProductID, locationID: id.Deref(it.FromLocationID), batchID: id.Deref(it.BatchID)}
				r, seen := need[g]
				if !seen {
					order = append(order, g)
					r = doc.sourceRequest(it)
					r.Quantity = 0
				}
				r.Quantity += it.Requested
				need[g] = r
			}
			for _, g := range order {
				if _, err := s.coord.Allocate(ctx, need[g]); err != nil {
					return "", err
				}
			}
			return "", nil
		})
}

// Approve records the approver; stock is checked again when the transfer ships.
func (s *Service) Approve(ctx context.Context, docID id.ID, actorID string) (*Transfer, error) {
	return s.engine.Fire(ctx, docID, EventApprove, actorID,
		func(_ context.Context, doc *Transfer, _ *documents.Undos) (Status, error) {
			doc.ApprovedBy = actorID
			return "", nil
		})
}

func (s *Service) Reject(ctx context.Context, docID id.ID, reason, actorID string) (*Transfer, error) {
	return s.engine.Fire(ctx, docID, EventReject, actorID,
		func(_ context.Context, doc *Transfer, _ *documents.Undos) (Status, error) {
			doc.RejectionReason = strings.TrimSpace(reason)
			return "", nil
		})
}

// Ship reserves every line at the source, re-validating availability, and
// consumes the reservation as TRANSFER_OUT. Lines without a source location
// are sourced across the warehouse and split by batch.
func (s *Service) Ship(ctx context.Context, docID id.ID, actorID string) (*Transfer, error) {
	return s.engine.Fire(ctx, docID, EventShip, actorID,
		func(ctx context.Context, doc *Transfer, undo *documents.Undos) (Status, error) {
			op := reservation.Op{Recorder: documents.Ref(doc), ActorID: actorID}
			requests := make([]reservation.Request, len(doc.Items))
			var total types.Quantity
			for i, it := range doc.Items {
				requests[i] = doc.sourceRequest(it)
				total += it.Requested
			}

			h, _, err := s.coord.CommitRequests(ctx, requests, op)
			if err != nil {
				return "", err
			}
			_, mvs, err := s.coord.ConsumeReservation(ctx, h.ID, total, stock.KindTransferOut, op)
			if err != nil {
				if _, relErr := s.coord.ReleaseAll(ctx, h.ID, op); relErr != nil {
					return "", fmt.Errorf("%w; release after failed ship: %v", err, relErr)
				}
				return "", err
			}
			undo.Add(func(ctx context.Context) error {
				if _, err := s.coord.Reinstate(ctx, h.ID, mvs, op); err != nil {
					return err
				}
				_, err := s.coord.ReleaseAll(ctx, h.ID, op)
				return err
			})

			now := time.Now().UTC()
			doc.ReservationID = &h.ID
			doc.ShippedAt = &now
			for i := range doc.Items {
				doc.Items[i].Shipped = doc.Items[i].Requested
				doc.Items[i].Status = ItemInTransit
			}
			return "", nil
		})
}

// ReceiveLine reports what arrived for one line.
type ReceiveLine struct {
	LineID   id.ID
	Quantity types.Quantity
	Damaged  types.Quantity
}

// Receive books arrived quantities into the destination as TRANSFER_IN. An
// empty lines list receives everything still outstanding. The transfer
// completes once every line received what was shipped; until then it stays
// RECEIVED and may receive again.
func (s *Service) Receive(ctx context.Context, docID id.ID, lines []ReceiveLine, actorID string) (*Transfer, error) {
	return s.engine.Fire(ctx, docID, EventReceive, actorID,
		func(ctx context.Context, doc *Transfer, undo *documents.Undos) (Status, error) {
			if len(lines) == 0 {
				for _, it := range doc.Items {
					if rest := it.Shipped - it.Received; rest > 0 {
						lines = append(lines, ReceiveLine{LineID: it.LineID, Quantity: rest})
					}
				}
			}

			op := reservation.Op{Recorder: documents.Ref(doc), ActorID: actorID}
			for _, rl := range lines {
				it, err := doc.Item(rl.LineID)
				if err != nil {
					return "", err
				}
				if rl.Quantity < 0 || rl.Damaged < 0 || rl.Damaged > rl.Quantity {
					return "", apperror.NewValidation("received and damaged quantities are inconsistent").WithDetail("lineNo", it.LineNo)
				}
				if it.Received+rl.Quantity > it.Shipped {
					return "", apperror.NewValidation("received exceeds shipped").
						WithDetail("lineNo", it.LineNo).
						WithDetail("shipped", it.Shipped.String())
				}
				if rl.Quantity == 0 {
					continue
				}

				mv, err := s.coord.Receive(ctx, reservation.ReceiveInput{
					Key:               stock.NewKey(it.ProductID, doc.ToWarehouseID, it.ToLocationID),
					Quantity:          rl.Quantity,
					Kind:              stock.KindTransferIn,
					CounterLocationID: it.FromLocationID,
					Op:                op,
				})
				if err != nil {
					return "", fmt.Errorf("receive line %d: %w", it.LineNo, err)
				}
				undo.Add(func(ctx context.Context) error {
					_, err := s.coord.Reverse(ctx, *mv, op)
					return err
				})

				it.Received += rl.Quantity
				it.Damaged += rl.Damaged
				it.Status = ItemReceived
			}

			now := time.Now().UTC()
			doc.ReceivedAt = &now
			if doc.FullyReceived() {
				return StatusCompleted, nil
			}
			return StatusReceived, nil
		})
}

// Cancel abandons a transfer before it ships. Nothing was reserved, so there is no ledger effect.
func (s *Service) Cancel(ctx context.Context, docID id.ID, actorID string) (*Transfer, error) {
	return s.engine.Fire(ctx, docID, EventCancel, actorID, nil)
}
