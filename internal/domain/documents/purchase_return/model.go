// Package purchase_return provides the PurchaseReturn document: stock sent
// back to a supplier, optionally refunded once the return is processed.
package purchase_return

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
	StatusCompleted       Status = "COMPLETED"
	StatusCancelled       Status = "CANCELLED"
)

const (
	EventSubmit  = "submit"
	EventApprove = "approve"
	EventReject  = "reject"
	EventProcess = "process"
	EventRefund  = "refund"
	EventCancel  = "cancel"
)

var transitions = fsm.New("PurchaseReturn",
	fsm.Edge[Status]{Event: EventSubmit, From: []Status{StatusDraft}, To: []Status{StatusPendingApproval}},
	fsm.Edge[Status]{Event: EventApprove, From: []Status{StatusPendingApproval}, To: []Status{StatusApproved}},
	fsm.Edge[Status]{Event: EventReject, From: []Status{StatusPendingApproval}, To: []Status{StatusRejected}},
	fsm.Edge[Status]{Event: EventProcess, From: []Status{StatusApproved}, To: []Status{StatusCompleted}},
	fsm.Edge[Status]{Event: EventRefund, From: []Status{StatusCompleted}, To: []Status{StatusCompleted}},
	fsm.Edge[Status]{
		Event: EventCancel,
		From:  []Status{StatusDraft, StatusPendingApproval, StatusApproved},
		To:    []Status{StatusCancelled},
	},
)

// Transitions returns the purchase return transition table.
func Transitions() *fsm.Table[Status] { return transitions }

// NumeratorStrategy: returns are settled with the supplier, so numbering is gapless.
const NumeratorStrategy = numerator.StrategyStrict

// Reason classifies why goods go back.
type Reason string

const (
	ReasonDefective Reason = "DEFECTIVE"
	ReasonDamaged   Reason = "DAMAGED"
	ReasonWrongItem Reason = "WRONG_ITEM"
	ReasonExcess    Reason = "EXCESS"
	ReasonExpired   Reason = "EXPIRED"
	ReasonOther     Reason = "OTHER"
)

func (r Reason) Valid() bool {
	switch r {
	case ReasonDefective, ReasonDamaged, ReasonWrongItem, ReasonExcess, ReasonExpired, ReasonOther:
		return true
	}
	return false
}

// PurchaseReturn sends stock of one warehouse back to a supplier.
type PurchaseReturn struct {
	entity.BaseDocument

	Status Status `json:"status"`

	WarehouseID     id.ID  `json:"warehouseId"`
	SupplierID      id.ID  `json:"supplierId"`
	PurchaseOrderID *id.ID `json:"purchaseOrderId,omitempty"`
	Reason          Reason `json:"reason"`

	ApprovedBy      string     `json:"approvedBy,omitempty"`
	RejectionReason string     `json:"rejectionReason,omitempty"`
	ProcessedAt     *time.Time `json:"processedAt,omitempty"`

	RefundRequested bool         `json:"isRefundRequested"`
	RefundProcessed bool         `json:"isRefundProcessed"`
	RefundedAt      *time.Time   `json:"refundedAt,omitempty"`
	RefundAmount    *types.Money `json:"refundAmount,omitempty"`

	Items []Item `json:"items"`
}

type Item struct {
	LineID     id.ID  `json:"lineId"`
	LineNo     int    `json:"lineNo"`
	ProductID  id.ID  `json:"productId"`
	LocationID *id.ID `json:"locationId,omitempty"`
	BatchID    *id.ID `json:"batchId,omitempty"`

	Quantity types.Quantity `json:"quantity"`
	UnitCost types.Money    `json:"unitCost"`
	Note     string         `json:"note,omitempty"`

	// StockAdjusted is set once the line's quantity left the ledger
	StockAdjusted bool   `json:"isStockAdjusted"`
	MovementID    *id.ID `json:"movementId,omitempty"`
}

// Amount is quantity times unit cost.
func (it Item) Amount() types.Money { return types.Cost(it.UnitCost, it.Quantity) }

func NewPurchaseReturn(actorID string, warehouseID, supplierID id.ID, reason Reason) *PurchaseReturn {
	return &PurchaseReturn{
		BaseDocument: entity.NewBaseDocument(actorID),
		Status:       StatusDraft,
		WarehouseID:  warehouseID,
		SupplierID:   supplierID,
		Reason:       reason,
	}
}

func (p *PurchaseReturn) AddItem(item Item) {
	item.LineID = id.New()
	item.LineNo = len(p.Items) + 1
	p.Items = append(p.Items, item)
}

// Total sums the line amounts.
func (p *PurchaseReturn) Total() types.Money {
	total := types.Zero()
	for _, it := range p.Items {
		total = total.Add(it.Amount())
	}
	return total
}

func (p *PurchaseReturn) Validate(ctx context.Context) error {
	if id.IsNil(p.WarehouseID) {
		return apperror.NewValidation("warehouse is required").WithDetail("field", "warehouseId")
	}
	if id.IsNil(p.SupplierID) {
		return apperror.NewValidation("supplier is required").WithDetail("field", "supplierId")
	}
	if !p.Reason.Valid() {
		return apperror.NewValidation("unknown return reason").WithDetail("reason", string(p.Reason))
	}
	if len(p.Items) == 0 {
		return apperror.NewValidation("at least one item is required").WithDetail("field", "items")
	}
	for _, it := range p.Items {
		if id.IsNil(it.ProductID) {
			return apperror.NewValidation("product is required").WithDetail("lineNo", it.LineNo)
		}
		if it.Quantity <= 0 {
			return apperror.NewValidation("return quantity must be positive").WithDetail("lineNo", it.LineNo)
		}
		if it.UnitCost.IsNegative() {
			return apperror.NewValidation("unit cost cannot be negative").WithDetail("lineNo", it.LineNo)
		}
	}
	if p.Status == StatusCompleted {
		for _, it := range p.Items {
			if !it.StockAdjusted {
				return apperror.NewInvariantViolation("completed return has a line still in stock").WithDetail("lineNo", it.LineNo)
			}
		}
	}
	if p.RefundProcessed && !p.RefundRequested {
		return apperror.NewValidation("refund processed without being requested")
	}
	return nil
}

func (p *PurchaseReturn) Header() *entity.BaseDocument { return &p.BaseDocument }
func (p *PurchaseReturn) DocumentType() string         { return "PurchaseReturn" }
func (p *PurchaseReturn) StatusName() string           { return string(p.Status) }
func (p *PurchaseReturn) CurrentStatus() Status        { return p.Status }
func (p *PurchaseReturn) SetStatus(s Status)           { p.Status = s }
func (p *PurchaseReturn) Warehouses() []id.ID          { return []id.ID{p.WarehouseID} }

// New returns an empty return for decoding.
func New() *PurchaseReturn { return &PurchaseReturn{} }
