// Package transfer provides the Transfer document that moves stock between warehouses.
package transfer

import (
	"context"
	"time"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/entity"
	"stockcore/internal/core/fsm"
	"stockcore/internal/core/id"
	"stockcore/internal/core/numerator"
	"stockcore/internal/core/types"
)

type Status string

const (
	StatusDraft           Status = "DRAFT"
	StatusPendingApproval Status = "PENDING_APPROVAL"
	StatusApproved        Status = "APPROVED"
	StatusRejected        Status = "REJECTED"
	StatusInTransit       Status = "IN_TRANSIT"
	StatusReceived        Status = "RECEIVED"
	StatusCompleted       Status = "COMPLETED"
	StatusCancelled       Status = "CANCELLED"
)

const (
	EventSubmit  = "submit"
	EventApprove = "approve"
	EventReject  = "reject"
	EventShip    = "ship"
	EventReceive = "receive"
	EventCancel  = "cancel"
)

var transitions = fsm.New("Transfer",
	fsm.Edge[Status]{Event: EventSubmit, From: []Status{StatusDraft}, To: []Status{StatusPendingApproval}},
	fsm.Edge[Status]{Event: EventApprove, From: []Status{StatusPendingApproval}, To: []Status{StatusApproved}},
	fsm.Edge[Status]{Event: EventReject, From: []Status{StatusPendingApproval}, To: []Status{StatusRejected}},
	fsm.Edge[Status]{Event: EventShip, From: []Status{StatusApproved}, To: []Status{StatusInTransit}},
	fsm.Edge[Status]{
		Event: EventReceive,
		From:  []Status{StatusInTransit, StatusReceived},
		To:    []Status{StatusReceived, StatusCompleted},
	},
	fsm.Edge[Status]{
		Event: EventCancel,
		From:  []Status{StatusDraft, StatusPendingApproval, StatusApproved},
		To:    []Status{StatusCancelled},
	},
)

// Transitions returns the transfer transition table.
func Transitions() *fsm.Table[Status] { return transitions }

// NumeratorStrategy for transfers; internal documents tolerate gaps.
const NumeratorStrategy = numerator.StrategyCached

type ItemStatus string

const (
	ItemPending   ItemStatus = "PENDING"
	ItemInTransit ItemStatus = "IN_TRANSIT"
	ItemReceived  ItemStatus = "RECEIVED"
)

// Transfer moves stock from one warehouse to another.
type Transfer struct {
	entity.BaseDocument

	Status Status `json:"status"`

	FromWarehouseID id.ID `json:"fromWarehouseId"`
	ToWarehouseID   id.ID `json:"toWarehouseId"`

	ApprovedBy      string     `json:"approvedBy,omitempty"`
	RejectionReason string     `json:"rejectionReason,omitempty"`
	ShippedAt       *time.Time `json:"shippedAt,omitempty"`
	ReceivedAt      *time.Time `json:"receivedAt,omitempty"`

	ReservationID *id.ID `json:"reservationId,omitempty"`

	Items []Item `json:"items"`
}

type Item struct {
	LineID         id.ID  `json:"lineId"`
	LineNo         int    `json:"lineNo"`
	ProductID      id.ID  `json:"productId"`
	FromLocationID *id.ID `json:"fromLocationId,omitempty"`
	ToLocationID   *id.ID `json:"toLocationId,omitempty"`
	BatchID        *id.ID `json:"batchId,omitempty"`

	Requested types.Quantity `json:"requestedQuantity"`
	Shipped   types.Quantity `json:"shippedQuantity"`
	Received  types.Quantity `json:"receivedQuantity"`
	// Damaged is the part of Received that arrived damaged; it is not ledgered separately
	Damaged types.Quantity `json:"damagedQuantity"`
	Status  ItemStatus     `json:"status"`
}

func NewTransfer(actorID string, from, to id.ID) *Transfer {
	return &Transfer{
		BaseDocument:    entity.NewBaseDocument(actorID),
		Status:          StatusDraft,
		FromWarehouseID: from,
		ToWarehouseID:   to,
	}
}

func (t *Transfer) AddItem(item Item) {
	item.LineID = id.New()
	item.LineNo = len(t.Items) + 1
	item.Status = ItemPending
	t.Items = append(t.Items, item)
}

func (t *Transfer) Item(lineID id.ID) (*Item, error) {
	for i := range t.Items {
		if t.Items[i].LineID == lineID {
			return &t.Items[i], nil
		}
	}
	return nil, apperror.NewNotFound("transfer item", lineID)
}

// FullyReceived reports whether every line received what was shipped.
func (t *Transfer) FullyReceived() bool {
	for _, it := range t.Items {
		if it.Received != it.Shipped {
			return false
		}
	}
	return true
}

func (t *Transfer) Validate(ctx context.Context) error {
	if id.IsNil(t.FromWarehouseID) || id.IsNil(t.ToWarehouseID) {
		return apperror.NewValidation("source and destination warehouses are required")
	}
	if t.FromWarehouseID == t.ToWarehouseID {
		return apperror.NewValidation("source and destination warehouses must differ")
	}
	if len(t.Items) == 0 {
		return apperror.NewValidation("at least one item is required").WithDetail("field", "items")
	}
	for _, it := range t.Items {
		if id.IsNil(it.ProductID) {
			return apperror.NewValidation("product is required").WithDetail("lineNo", it.LineNo)
		}
		if it.Requested <= 0 {
			return apperror.NewValidation("requested quantity must be positive").WithDetail("lineNo", it.LineNo)
		}
		if it.Received > it.Shipped {
			return apperror.NewValidation("received exceeds shipped").WithDetail("lineNo", it.LineNo)
		}
		if it.Damaged < 0 || it.Damaged > it.Received {
			return apperror.NewValidation("damaged must be between zero and received").WithDetail("lineNo", it.LineNo)
		}
	}
	return nil
}

func (t *Transfer) Header() *entity.BaseDocument { return &t.BaseDocument }
func (t *Transfer) DocumentType() string         { return "Transfer" }
func (t *Transfer) StatusName() string           { return string(t.Status) }
func (t *Transfer) CurrentStatus() Status        { return t.Status }
func (t *Transfer) SetStatus(s Status)           { t.Status = s }
func (t *Transfer) Warehouses() []id.ID          { return []id.ID{t.FromWarehouseID, t.ToWarehouseID} }

// New returns an empty transfer for decoding.
func New() *Transfer { return &Transfer{} }
