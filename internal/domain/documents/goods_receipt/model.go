// Package goods_receipt provides the GoodsReceipt document: inbound goods are
// inspected, then put away into locations chosen by the put-away rules.
package goods_receipt

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

// Status of a goods receipt.
type Status string

const (
	StatusDraft             Status = "DRAFT"
	StatusPendingInspection Status = "PENDING_INSPECTION"
	StatusInspecting        Status = "INSPECTING"
	StatusApproved          Status = "APPROVED"
	StatusPartiallyApproved Status = "PARTIALLY_APPROVED"
	StatusRejected          Status = "REJECTED"
	StatusCompleted         Status = "COMPLETED"
	StatusCancelled         Status = "CANCELLED"
)

// Events.
const (
	EventSubmit             = "submit"
	EventStartInspection    = "start_inspection"
	EventInspect            = "inspect"
	EventCompleteInspection = "complete_inspection"
	EventPutAway            = "put_away"
	EventCancel             = "cancel"
)

var transitions = fsm.New("GoodsReceipt",
	fsm.Edge[Status]{Event: EventSubmit, From: []Status{StatusDraft}, To: []Status{StatusPendingInspection}},
	fsm.Edge[Status]{Event: EventStartInspection, From: []Status{StatusPendingInspection}, To: []Status{StatusInspecting}},
	fsm.Edge[Status]{Event: EventInspect, From: []Status{StatusInspecting}, To: []Status{StatusInspecting}},
	fsm.Edge[Status]{
		Event: EventCompleteInspection,
		From:  []Status{StatusInspecting},
		To:    []Status{StatusApproved, StatusPartiallyApproved, StatusRejected},
	},
	fsm.Edge[Status]{
		Event: EventPutAway,
		From:  []Status{StatusApproved, StatusPartiallyApproved},
		To:    []Status{StatusCompleted, StatusApproved, StatusPartiallyApproved},
	},
	fsm.Edge[Status]{Event: EventCancel, From: []Status{StatusDraft, StatusPendingInspection}, To: []Status{StatusCancelled}},
)

// Transitions returns the goods receipt transition table.
func Transitions() *fsm.Table[Status] { return transitions }

// NumeratorStrategy: a goods receipt is an accounting document, numbers must not have gaps.
const NumeratorStrategy = numerator.StrategyStrict

// InspectionStatus of one item.
type InspectionStatus string

const (
	InspectionPending  InspectionStatus = "PENDING"
	InspectionApproved InspectionStatus = "APPROVED"
	InspectionPartial  InspectionStatus = "PARTIALLY_APPROVED"
	InspectionRejected InspectionStatus = "REJECTED"
)

// GoodsReceipt records goods arriving at a warehouse.
type GoodsReceipt struct {
	entity.BaseDocument

	Status Status `json:"status"`

	WarehouseID     id.ID     `json:"warehouseId"`
	SupplierID      *id.ID    `json:"supplierId,omitempty"`
	PurchaseOrderID *id.ID    `json:"purchaseOrderId,omitempty"`
	ReceivedAt      time.Time `json:"receivedAt"`
	InspectorID     string    `json:"inspectorId,omitempty"`

	Items []Item `json:"items"`
}

// Item is one received product line.
type Item struct {
	LineID    id.ID `json:"lineId"`
	LineNo    int   `json:"lineNo"`
	ProductID id.ID `json:"productId"`

	OrderedQuantity  types.Quantity `json:"orderedQuantity"`
	ReceivedQuantity types.Quantity `json:"receivedQuantity"`
	AcceptedQuantity types.Quantity `json:"acceptedQuantity"`
	RejectedQuantity types.Quantity `json:"rejectedQuantity"`
	UnitCost         *types.Money   `json:"unitCost,omitempty"`

	// Batch data; an empty BatchNumber receives unbatched stock
	BatchNumber    string     `json:"batchNumber,omitempty"`
	ManufacturedAt *time.Time `json:"manufacturedAt,omitempty"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`

	InspectionStatus InspectionStatus `json:"inspectionStatus"`
	RejectionReason  string           `json:"rejectionReason,omitempty"`

	// Put-away outcome
	PutAway    bool   `json:"putAway"`
	LocationID *id.ID `json:"locationId,omitempty"`
	BatchID    *id.ID `json:"batchId,omitempty"`
	MovementID *id.ID `json:"movementId,omitempty"`
}

// AwaitingPutAway reports whether the item has accepted stock not yet stored.
func (it Item) AwaitingPutAway() bool {
	return it.AcceptedQuantity > 0 && !it.PutAway
}

// NewGoodsReceipt creates an empty draft.
func NewGoodsReceipt(actorID string, warehouseID id.ID) *GoodsReceipt {
	return &GoodsReceipt{
		BaseDocument: entity.NewBaseDocument(actorID),
		Status:       StatusDraft,
		WarehouseID:  warehouseID,
		ReceivedAt:   time.Now().UTC(),
	}
}

// AddItem appends a line.
func (g *GoodsReceipt) AddItem(item Item) {
	item.LineID = id.New()
	item.LineNo = len(g.Items) + 1
	item.InspectionStatus = InspectionPending
	if item.OrderedQuantity == 0 {
		item.OrderedQuantity = item.ReceivedQuantity
	}
	g.Items = append(g.Items, item)
}

// Item finds a line by id.
func (g *GoodsReceipt) Item(lineID id.ID) (*Item, error) {
	for i := range g.Items {
		if g.Items[i].LineID == lineID {
			return &g.Items[i], nil
		}
	}
	return nil, apperror.NewNotFound("goods receipt item", lineID)
}

// InspectionOutcome derives the header status from per-item results.
func (g *GoodsReceipt) InspectionOutcome() (Status, error) {
	approved, rejected := 0, 0
	for _, it := range g.Items {
		switch it.InspectionStatus {
		case InspectionPending:
			return "", apperror.NewValidation("item is not inspected").WithDetail("lineNo", it.LineNo)
		case InspectionApproved:
			approved++
		case InspectionRejected:
			rejected++
		}
	}
	switch {
	case approved == len(g.Items):
		return StatusApproved, nil
	case rejected == len(g.Items):
		return StatusRejected, nil
	default:
		return StatusPartiallyApproved, nil
	}
}

// Validate implements entity.Validatable.
func (g *GoodsReceipt) Validate(ctx context.Context) error {
	if id.IsNil(g.WarehouseID) {
		return apperror.NewValidation("warehouse is required").WithDetail("field", "warehouseId")
	}
	if len(g.Items) == 0 {
		return apperror.NewValidation("at least one item is required").WithDetail("field", "items")
	}
	for _, it := range g.Items {
		if id.IsNil(it.ProductID) {
			return apperror.NewValidation("product is required").WithDetail("lineNo", it.LineNo)
		}
		if it.ReceivedQuantity <= 0 {
			return apperror.NewValidation("received quantity must be positive").WithDetail("lineNo", it.LineNo)
		}
		if it.AcceptedQuantity < 0 || it.RejectedQuantity < 0 {
			return apperror.NewValidation("inspected quantities cannot be negative").WithDetail("lineNo", it.LineNo)
		}
		if it.InspectionStatus != InspectionPending && it.AcceptedQuantity+it.RejectedQuantity != it.ReceivedQuantity {
			return apperror.NewValidation("accepted plus rejected must equal received").
				WithDetail("lineNo", it.LineNo).
				WithDetail("received", it.ReceivedQuantity.String())
		}
		if it.ExpiresAt != nil && it.ManufacturedAt != nil && it.ExpiresAt.Before(*it.ManufacturedAt) {
			return apperror.NewValidation("expiration precedes manufacturing").WithDetail("lineNo", it.LineNo)
		}
	}
	return nil
}

// --- documents.Document implementation ---

func (g *GoodsReceipt) Header() *entity.BaseDocument { return &g.BaseDocument }
func (g *GoodsReceipt) DocumentType() string         { return "GoodsReceipt" }
func (g *GoodsReceipt) StatusName() string           { return string(g.Status) }
func (g *GoodsReceipt) CurrentStatus() Status        { return g.Status }
func (g *GoodsReceipt) SetStatus(s Status)           { g.Status = s }
func (g *GoodsReceipt) Warehouses() []id.ID          { return []id.ID{g.WarehouseID} }
