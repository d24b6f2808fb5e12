package picking

import (
	"context"
	"fmt"
	"time"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/entity"
	"stockcore/internal/core/id"
	"stockcore/internal/core/keylock"
	"stockcore/internal/core/numerator"
	"stockcore/internal/core/types"
	"stockcore/internal/domain"
	"stockcore/internal/domain/allocation"
	"stockcore/internal/domain/catalog"
	"stockcore/internal/domain/documents"
	"stockcore/internal/domain/events"
	"stockcore/internal/domain/registers/stock"
	"stockcore/internal/domain/reservation"
	"stockcore/pkg/logger"
)

// Repository persists picking lists.
type Repository = documents.Repository[*PickingList]

// ShipmentRepository persists shipments.
type ShipmentRepository = documents.Repository[*Shipment]

// Service runs picking lists and their shipments.
type Service struct {
	lists     *documents.Engine[Status, *PickingList]
	shipments *documents.Engine[ShipmentStatus, *Shipment]
	coord     *reservation.Coordinator
	directory catalog.Directory
}

// Deps are the collaborators of Service.
type Deps struct {
	Lists       Repository
	Shipments   ShipmentRepository
	Numerator   numerator.Generator
	Locks       *keylock.Table
	Events      events.Publisher
	Coordinator *reservation.Coordinator
	Directory   catalog.Directory
}

// NewService creates a picking list service.
func NewService(d Deps) *Service {
	return &Service{
		lists: documents.NewEngine(documents.Config[Status]{
			Entity:   "PickingList",
			Prefix:   "PL",
			Strategy: numerator.StrategyCached,
			Initial:  StatusDraft,
		}, transitions, d.Lists, d.Numerator, d.Locks, d.Events),
		shipments: documents.NewEngine(documents.Config[ShipmentStatus]{
			Entity:   "Shipment",
			Prefix:   "SH",
			Strategy: numerator.StrategyCached,
			Initial:  ShipmentPending,
		}, shipmentTransitions, d.Shipments, d.Numerator, d.Locks, d.Events),
		coord:     d.Coordinator,
		directory: d.Directory,
	}
}

// LineInput is one requested product. A set LocationID pins the pick;
// otherwise the list's strategy suggests locations, possibly splitting the line.
type LineInput struct {
	ProductID  id.ID
	Quantity   types.Quantity
	LocationID *id.ID
	BatchID    *id.ID
}

type CreateInput struct {
	WarehouseID id.ID
	Strategy    allocation.Strategy
	Priority    int
	OrderRef    string
	Lines       []LineInput
}

// Create stores a draft list. Nothing is reserved until release.
func (s *Service) Create(ctx context.Context, in CreateInput, actorID string) (*PickingList, error) {
	if _, err := s.directory.Warehouse(ctx, in.WarehouseID); err != nil {
		return nil, err
	}
	doc := NewPickingList(actorID, in.WarehouseID, in.Strategy)
	doc.Priority = in.Priority
	doc.OrderRef = in.OrderRef

	for _, l := range in.Lines {
		if _, err := s.directory.Product(ctx, l.ProductID); err != nil {
			return nil, err
		}
		if l.LocationID != nil {
			if err := s.addLocated(ctx, doc, l); err != nil {
				return nil, err
			}
			continue
		}
		plan, err := s.coord.ReserveForDemand(ctx, allocation.Demand{
			ProductID:   l.ProductID,
			WarehouseID: in.WarehouseID,
			Quantity:    l.Quantity,
			Strategy:    doc.Strategy,
			BatchID:     l.BatchID,
		})
		if err != nil {
			return nil, err
		}
		for _, pl := range plan.Lines {
			doc.AddItem(Item{ProductID: l.ProductID, LocationID: pl.LocationID, BatchID: pl.BatchID, Requested: pl.Quantity})
		}
	}

	if err := s.lists.Create(ctx, doc, actorID); err != nil {
		return nil, err
	}
	return doc, nil
}

// addLocated adds a line at its given location, split over the batches stored
// there. A line the location cannot cover stays whole so Release reports it.
func (s *Service) addLocated(ctx context.Context, doc *PickingList, l LineInput) error {
	whole := Item{ProductID: l.ProductID, LocationID: l.LocationID, BatchID: l.BatchID, Requested: l.Quantity}
	if l.BatchID != nil {
		doc.AddItem(whole)
		return nil
	}
	lines, err := s.coord.Allocate(ctx, reservation.Request{
		ProductID:   l.ProductID,
		WarehouseID: doc.WarehouseID,
		LocationID:  l.LocationID,
		Quantity:    l.Quantity,
	})
	switch {
	case apperror.Is(err, apperror.CodeInsufficientStock):
		doc.AddItem(whole)
		return nil
	case err != nil:
		return err
	}
	for _, rl := range lines {
		doc.AddItem(Item{ProductID: l.ProductID, LocationID: l.LocationID, BatchID: rl.BatchID, Requested: rl.Quantity})
	}
	return nil
}

// Get loads a picking list.
func (s *Service) Get(ctx context.Context, docID id.ID) (*PickingList, error) {
	return s.lists.Get(ctx, docID)
}

// List pages through picking lists.
func (s *Service) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*PickingList], error) {
	return s.lists.List(ctx, filter)
}

// Release reserves every line. Any line whose location lacks available stock
// fails the release and leaves nothing reserved.
func (s *Service) Release(ctx context.Context, docID id.ID, actorID string) (*PickingList, error) {
	return s.lists.Fire(ctx, docID, EventRelease, actorID,
		func(ctx context.Context, doc *PickingList, undo *documents.Undos) (Status, error) {
			lines := make([]reservation.Line, len(doc.Items))
			for i, it := range doc.Items {
				lines[i] = reservation.Line{
					Key:      stock.NewKey(it.ProductID, doc.WarehouseID, it.LocationID),
					BatchID:  it.BatchID,
					Quantity: it.Requested,
				}
			}
			op := reservation.Op{Recorder: documents.Ref(doc), ActorID: actorID}
			h, err := s.coord.CommitLines(ctx, lines, op)
			if err != nil {
				return "", err
			}
			undo.Add(func(ctx context.Context) error {
				_, err := s.coord.ReleaseAll(ctx, h.ID, op)
				return err
			})

			doc.ReservationID = &h.ID
			for i := range doc.Items {
				doc.Items[i].HandleLine = i
			}
			return "", nil
		})
}

// Start assigns a picker; an empty pickerID assigns the actor.
func (s *Service) Start(ctx context.Context, docID id.ID, pickerID, actorID string) (*PickingList, error) {
	if pickerID == "" {
		pickerID = actorID
	}
	return s.lists.Fire(ctx, docID, EventStart, actorID,
		func(_ context.Context, doc *PickingList, _ *documents.Undos) (Status, error) {
			doc.PickerID = pickerID
			return "", nil
		})
}

type PickInput struct {
	LineID   id.ID
	Quantity types.Quantity
}

// Pick consumes the picked quantity of one item and releases the unpicked
// remainder. A partial pick marks the item SHORT_PICKED.
func (s *Service) Pick(ctx context.Context, docID id.ID, in PickInput, actorID string) (*PickingList, error) {
	return s.lists.Fire(ctx, docID, EventPick, actorID,
		func(ctx context.Context, doc *PickingList, undo *documents.Undos) (Status, error) {
			it, err := doc.Item(in.LineID)
			if err != nil {
				return "", err
			}
			if it.Status != ItemPending {
				return "", apperror.NewInvalidStateTransition("picking item", EventPick, string(it.Status))
			}
			if in.Quantity < 0 || in.Quantity > it.Requested {
				return "", apperror.NewValidation("picked quantity must be between zero and requested").
					WithDetail("lineNo", it.LineNo).
					WithDetail("requested", it.Requested.String())
			}
			if doc.ReservationID == nil {
				return "", apperror.NewInvariantViolation("released picking list " + doc.Number + " has no reservation")
			}
			handleID := *doc.ReservationID
			op := reservation.Op{Recorder: documents.Ref(doc), ActorID: actorID}

			if in.Quantity > 0 {
				_, mvs, err := s.coord.ConsumeLine(ctx, handleID, it.HandleLine, in.Quantity, stock.KindPick, op)
				if err != nil {
					return "", err
				}
				undo.Add(func(ctx context.Context) error {
					_, err := s.coord.Reinstate(ctx, handleID, mvs, op)
					return err
				})
				if len(mvs) > 0 {
					it.MovementID = &mvs[0].ID
				}
			}
			if rest := it.Requested - in.Quantity; rest > 0 {
				if _, err := s.coord.ReleaseLine(ctx, handleID, it.HandleLine, rest, op); err != nil {
					return "", err
				}
				undo.Add(func(ctx context.Context) error {
					_, err := s.coord.Rereserve(ctx, handleID, it.HandleLine, rest, op)
					return err
				})
			}

			now := time.Now().UTC()
			it.Picked = in.Quantity
			it.PickedAt = &now
			if in.Quantity == it.Requested {
				it.Status = ItemPicked
			} else {
				it.Status = ItemShortPicked
				logger.Info(ctx, "short pick", "number", doc.Number, "line", it.LineNo, "picked", in.Quantity, "requested", it.Requested)
			}
			return "", nil
		})
}

// Complete closes picking once no item is pending.
func (s *Service) Complete(ctx context.Context, docID id.ID, actorID string) (*PickingList, error) {
	return s.lists.Fire(ctx, docID, EventComplete, actorID,
		func(_ context.Context, doc *PickingList, _ *documents.Undos) (Status, error) {
			if n := doc.Pending(); n > 0 {
				return "", apperror.NewValidation("items are still pending").WithDetail("pending", n)
			}
			return "", nil
		})
}

// ShipOut creates the shipment from the picked quantities and packs the list.
func (s *Service) ShipOut(ctx context.Context, docID id.ID, actorID string) (*PickingList, *Shipment, error) {
	var shipment *Shipment
	list, err := s.lists.Fire(ctx, docID, EventShipOut, actorID,
		func(ctx context.Context, doc *PickingList, undo *documents.Undos) (Status, error) {
			sh := &Shipment{
				BaseDocument:  entity.NewBaseDocument(actorID),
				PickingListID: doc.ID,
				WarehouseID:   doc.WarehouseID,
			}
			for _, it := range doc.Items {
				if it.Picked > 0 {
					sh.Items = append(sh.Items, ShipmentItem{
						ProductID:  it.ProductID,
						LocationID: it.LocationID,
						BatchID:    it.BatchID,
						Quantity:   it.Picked,
					})
				}
			}
			if err := s.shipments.Create(ctx, sh, actorID); err != nil {
				return "", err
			}
			undo.Add(func(ctx context.Context) error {
				_, err := s.shipments.Fire(ctx, sh.ID, EventShipmentCancel, actorID, nil)
				return err
			})
			doc.ShipmentID = &sh.ID
			shipment = sh
			return "", nil
		})
	if err != nil {
		return nil, nil, err
	}
	return list, shipment, nil
}

// Cancel abandons a list before picking starts; a released list gives its reservation back.
func (s *Service) Cancel(ctx context.Context, docID id.ID, actorID string) (*PickingList, error) {
	return s.lists.Fire(ctx, docID, EventCancel, actorID,
		func(ctx context.Context, doc *PickingList, undo *documents.Undos) (Status, error) {
			if doc.ReservationID == nil {
				return "", nil
			}
			handleID := *doc.ReservationID
			op := reservation.Op{Recorder: documents.Ref(doc), ActorID: actorID}
			before, err := s.coord.GetHandle(ctx, handleID)
			if err != nil {
				return "", err
			}
			if _, err := s.coord.ReleaseAll(ctx, handleID, op); err != nil {
				return "", err
			}
			undo.Add(func(ctx context.Context) error {
				for i, l := range before.Lines {
					if q := l.Outstanding(); q > 0 {
						if _, err := s.coord.Rereserve(ctx, handleID, i, q, op); err != nil {
							return err
						}
					}
				}
				return nil
			})
			return "", nil
		})
}

// --- Shipments ---

func (s *Service) GetShipment(ctx context.Context, shipmentID id.ID) (*Shipment, error) {
	return s.shipments.Get(ctx, shipmentID)
}

type ShipInput struct {
	Carrier        string
	TrackingNumber string
}

// Ship dispatches the shipment, then marks its picking list SHIPPED.
func (s *Service) Ship(ctx context.Context, shipmentID id.ID, in ShipInput, actorID string) (*Shipment, error) {
	sh, err := s.shipments.Fire(ctx, shipmentID, EventShipmentShip, actorID,
		func(_ context.Context, doc *Shipment, _ *documents.Undos) (ShipmentStatus, error) {
			now := time.Now().UTC()
			doc.Carrier = in.Carrier
			doc.TrackingNumber = in.TrackingNumber
			doc.ShippedAt = &now
			return "", nil
		})
	if err != nil {
		return nil, err
	}
	if _, err := s.lists.Fire(ctx, sh.PickingListID, EventShip, actorID, nil); err != nil {
		logger.Error(ctx, "picking list not marked shipped", "shipment", sh.Number, "picking_list_id", sh.PickingListID, "error", err)
		return nil, fmt.Errorf("mark picking list shipped: %w", err)
	}
	return sh, nil
}

func (s *Service) Deliver(ctx context.Context, shipmentID id.ID, actorID string) (*Shipment, error) {
	return s.shipments.Fire(ctx, shipmentID, EventShipmentDeliver, actorID,
		func(_ context.Context, doc *Shipment, _ *documents.Undos) (ShipmentStatus, error) {
			now := time.Now().UTC()
			doc.DeliveredAt = &now
			return "", nil
		})
}

// CancelShipment voids a pending shipment. Picked stock stays consumed.
func (s *Service) CancelShipment(ctx context.Context, shipmentID id.ID, actorID string) (*Shipment, error) {
	return s.shipments.Fire(ctx, shipmentID, EventShipmentCancel, actorID, nil)
}
