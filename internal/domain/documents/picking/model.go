// Package picking provides the PickingList document and the Shipment that
// carries its picked goods out of the warehouse.
package picking

import (
	"context"
	"time"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/entity"
	"stockcore/internal/core/fsm"
	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
	"stockcore/internal/domain/allocation"
)

// Status of a picking list.
type Status string

const (
	StatusDraft      Status = "DRAFT"
	StatusReleased   Status = "RELEASED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusPicked     Status = "PICKED"
	StatusPacked     Status = "PACKED"
	StatusShipped    Status = "SHIPPED"
	StatusCancelled  Status = "CANCELLED"
)

const (
	EventRelease  = "release"
	EventStart    = "start"
	EventPick     = "pick"
	EventComplete = "complete"
	EventShipOut  = "ship_out"
	EventShip     = "ship"
	EventCancel   = "cancel"
)

var transitions = fsm.New("PickingList",
	fsm.Edge[Status]{Event: EventRelease, From: []Status{StatusDraft}, To: []Status{StatusReleased}},
	fsm.Edge[Status]{Event: EventStart, From: []Status{StatusReleased}, To: []Status{StatusInProgress}},
	fsm.Edge[Status]{Event: EventPick, From: []Status{StatusInProgress}, To: []Status{StatusInProgress}},
	fsm.Edge[Status]{Event: EventComplete, From: []Status{StatusInProgress}, To: []Status{StatusPicked}},
	fsm.Edge[Status]{Event: EventShipOut, From: []Status{StatusPicked}, To: []Status{StatusPacked}},
	fsm.Edge[Status]{Event: EventShip, From: []Status{StatusPacked}, To: []Status{StatusShipped}},
	fsm.Edge[Status]{Event: EventCancel, From: []Status{StatusDraft, StatusReleased}, To: []Status{StatusCancelled}},
)

// Transitions returns the picking list transition table.
func Transitions() *fsm.Table[Status] { return transitions }

// ItemStatus of one picking line.
type ItemStatus string

const (
	ItemPending     ItemStatus = "PENDING"
	ItemPicked      ItemStatus = "PICKED"
	ItemShortPicked ItemStatus = "SHORT_PICKED"
)

// PickingList collects the stock an outbound order needs.
type PickingList struct {
	entity.BaseDocument

	Status Status `json:"status"`

	WarehouseID id.ID               `json:"warehouseId"`
	Strategy    allocation.Strategy `json:"strategy"`
	Priority    int                 `json:"priority"`
	OrderRef    string              `json:"orderRef,omitempty"`
	PickerID    string              `json:"pickerId,omitempty"`

	ReservationID *id.ID `json:"reservationId,omitempty"`
	ShipmentID    *id.ID `json:"shipmentId,omitempty"`

	Items []Item `json:"items"`
}

// Item is one location-scoped pick.
type Item struct {
	LineID     id.ID  `json:"lineId"`
	LineNo     int    `json:"lineNo"`
	ProductID  id.ID  `json:"productId"`
	LocationID *id.ID `json:"locationId,omitempty"`
	BatchID    *id.ID `json:"batchId,omitempty"`

	Requested types.Quantity `json:"requestedQuantity"`
	Picked    types.Quantity `json:"pickedQuantity"`
	Status    ItemStatus     `json:"status"`

	// HandleLine indexes the item's line in the reservation
	HandleLine int        `json:"handleLine"`
	MovementID *id.ID     `json:"movementId,omitempty"`
	PickedAt   *time.Time `json:"pickedAt,omitempty"`
}

func NewPickingList(actorID string, warehouseID id.ID, strategy allocation.Strategy) *PickingList {
	if strategy == "" {
		strategy = allocation.FIFO
	}
	return &PickingList{
		BaseDocument: entity.NewBaseDocument(actorID),
		Status:       StatusDraft,
		WarehouseID:  warehouseID,
		Strategy:     strategy,
	}
}

func (p *PickingList) AddItem(item Item) {
	item.LineID = id.New()
	item.LineNo = len(p.Items) + 1
	item.Status = ItemPending
	item.HandleLine = -1
	p.Items = append(p.Items, item)
}

func (p *PickingList) Item(lineID id.ID) (*Item, error) {
	for i := range p.Items {
		if p.Items[i].LineID == lineID {
			return &p.Items[i], nil
		}
	}
	return nil, apperror.NewNotFound("picking item", lineID)
}

// Pending counts items not yet picked.
func (p *PickingList) Pending() int {
	n := 0
	for _, it := range p.Items {
		if it.Status == ItemPending {
			n++
		}
	}
	return n
}

func (p *PickingList) Validate(ctx context.Context) error {
	if id.IsNil(p.WarehouseID) {
		return apperror.NewValidation("warehouse is required").WithDetail("field", "warehouseId")
	}
	if !p.Strategy.Valid() {
		return apperror.NewValidation("unknown allocation strategy").WithDetail("strategy", string(p.Strategy))
	}
	if len(p.Items) == 0 {
		return apperror.NewValidation("at least one item is required").WithDetail("field", "items")
	}
	for _, it := range p.Items {
		if id.IsNil(it.ProductID) {
			return apperror.NewValidation("product is required").WithDetail("lineNo", it.LineNo)
		}
		if it.Requested <= 0 {
			return apperror.NewValidation("requested quantity must be positive").WithDetail("lineNo", it.LineNo)
		}
		if it.Picked < 0 || it.Picked > it.Requested {
			return apperror.NewValidation("picked quantity must be between zero and requested").WithDetail("lineNo", it.LineNo)
		}
	}
	return nil
}

func (p *PickingList) Header() *entity.BaseDocument { return &p.BaseDocument }
func (p *PickingList) DocumentType() string         { return "PickingList" }
func (p *PickingList) StatusName() string           { return string(p.Status) }
func (p *PickingList) CurrentStatus() Status        { return p.Status }
func (p *PickingList) SetStatus(s Status)           { p.Status = s }
func (p *PickingList) Warehouses() []id.ID          { return []id.ID{p.WarehouseID} }

// NewPickingListDoc returns an empty list for decoding.
func NewPickingListDoc() *PickingList { return &PickingList{} }

// --- Shipment ---

// ShipmentStatus of a shipment.
type ShipmentStatus string

const (
	ShipmentPending   ShipmentStatus = "PENDING"
	ShipmentInTransit ShipmentStatus = "IN_TRANSIT"
	ShipmentDelivered ShipmentStatus = "DELIVERED"
	ShipmentCancelled ShipmentStatus = "CANCELLED"
)

const (
	EventShipmentShip    = "ship"
	EventShipmentDeliver = "deliver"
	EventShipmentCancel  = "cancel"
)

var shipmentTransitions = fsm.New("Shipment",
	fsm.Edge[ShipmentStatus]{Event: EventShipmentShip, From: []ShipmentStatus{ShipmentPending}, To: []ShipmentStatus{ShipmentInTransit}},
	fsm.Edge[ShipmentStatus]{Event: EventShipmentDeliver, From: []ShipmentStatus{ShipmentInTransit}, To: []ShipmentStatus{ShipmentDelivered}},
	fsm.Edge[ShipmentStatus]{Event: EventShipmentCancel, From: []ShipmentStatus{ShipmentPending}, To: []ShipmentStatus{ShipmentCancelled}},
)

// ShipmentTransitions returns the shipment transition table.
func ShipmentTransitions() *fsm.Table[ShipmentStatus] { return shipmentTransitions }

// Shipment carries picked goods to the customer.
type Shipment struct {
	entity.BaseDocument

	Status ShipmentStatus `json:"status"`

	PickingListID  id.ID      `json:"pickingListId"`
	WarehouseID    id.ID      `json:"warehouseId"`
	Carrier        string     `json:"carrier,omitempty"`
	TrackingNumber string     `json:"trackingNumber,omitempty"`
	ShippedAt      *time.Time `json:"shippedAt,omitempty"`
	DeliveredAt    *time.Time `json:"deliveredAt,omitempty"`

	Items []ShipmentItem `json:"items"`
}

type ShipmentItem struct {
	ProductID  id.ID          `json:"productId"`
	LocationID *id.ID         `json:"locationId,omitempty"`
	BatchID    *id.ID         `json:"batchId,omitempty"`
	Quantity   types.Quantity `json:"quantity"`
}

func (s *Shipment) Validate(ctx context.Context) error {
	if id.IsNil(s.PickingListID) {
		return apperror.NewValidation("picking list is required").WithDetail("field", "pickingListId")
	}
	if len(s.Items) == 0 {
		return apperror.NewValidation("shipment has nothing to ship")
	}
	if s.Status == ShipmentInTransit && s.Carrier == "" {
		return apperror.NewValidation("carrier is required to ship").WithDetail("field", "carrier")
	}
	return nil
}

func (s *Shipment) Header() *entity.BaseDocument  { return &s.BaseDocument }
func (s *Shipment) DocumentType() string          { return "Shipment" }
func (s *Shipment) StatusName() string            { return string(s.Status) }
func (s *Shipment) CurrentStatus() ShipmentStatus { return s.Status }
func (s *Shipment) SetStatus(st ShipmentStatus)   { s.Status = st }
func (s *Shipment) Warehouses() []id.ID           { return []id.ID{s.WarehouseID} }

// NewShipmentDoc returns an empty shipment for decoding.
func NewShipmentDoc() *Shipment { return &Shipment{} }
