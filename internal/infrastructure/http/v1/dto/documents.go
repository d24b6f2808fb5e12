package dto

import (
	"time"

	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
	"stockcore/internal/domain/allocation"
	"stockcore/internal/domain/documents/goods_receipt"
	"stockcore/internal/domain/documents/picking"
	"stockcore/internal/domain/documents/purchase_return"
	"stockcore/internal/domain/documents/transfer"
)

// --- Goods receipt ---

// CreateGoodsReceiptRequest creates a receipt from explicit items, or from a
// purchase order when PurchaseOrderID is set and Items is empty. Received
// then maps product ids to the quantities that arrived.
type CreateGoodsReceiptRequest struct {
	WarehouseID     id.ID                     `json:"warehouseId"`
	SupplierID      *id.ID                    `json:"supplierId,omitempty"`
	PurchaseOrderID *id.ID                    `json:"purchaseOrderId,omitempty"`
	Comment         string                    `json:"comment,omitempty"`
	Items           []GoodsReceiptItemRequest `json:"items" binding:"dive"`
	Received        map[id.ID]types.Quantity  `json:"received,omitempty"`
}

type GoodsReceiptItemRequest struct {
	ProductID        id.ID          `json:"productId" binding:"required"`
	OrderedQuantity  types.Quantity `json:"orderedQuantity"`
	ReceivedQuantity types.Quantity `json:"receivedQuantity" binding:"required"`
	UnitCost         *types.Money   `json:"unitCost,omitempty"`
	BatchNumber      string         `json:"batchNumber,omitempty"`
	ManufacturedAt   *time.Time     `json:"manufacturedAt,omitempty"`
	ExpiresAt        *time.Time     `json:"expiresAt,omitempty"`
}

// FromPurchaseOrder reports whether the receipt is built from the order lines.
func (r CreateGoodsReceiptRequest) FromPurchaseOrder() bool {
	return r.PurchaseOrderID != nil && len(r.Items) == 0
}

func (r CreateGoodsReceiptRequest) ToInput() goods_receipt.CreateInput {
	in := goods_receipt.CreateInput{
		WarehouseID:     r.WarehouseID,
		SupplierID:      r.SupplierID,
		PurchaseOrderID: r.PurchaseOrderID,
		Comment:         r.Comment,
		Items:           make([]goods_receipt.ItemInput, len(r.Items)),
	}
	for i, it := range r.Items {
		in.Items[i] = goods_receipt.ItemInput{
			ProductID:        it.ProductID,
			OrderedQuantity:  it.OrderedQuantity,
			ReceivedQuantity: it.ReceivedQuantity,
			UnitCost:         it.UnitCost,
			BatchNumber:      it.BatchNumber,
			ManufacturedAt:   it.ManufacturedAt,
			ExpiresAt:        it.ExpiresAt,
		}
	}
	return in
}

// InspectRequest records the inspection result of one item.
type InspectRequest struct {
	LineID   id.ID          `json:"lineId" binding:"required"`
	Accepted types.Quantity `json:"accepted"`
	Rejected types.Quantity `json:"rejected"`
	Reason   string         `json:"reason,omitempty"`
}

func (r InspectRequest) ToInput() goods_receipt.InspectInput {
	return goods_receipt.InspectInput{LineID: r.LineID, Accepted: r.Accepted, Rejected: r.Rejected, Reason: r.Reason}
}

// PutAwayRequest stores one line, or every waiting line when LineID is nil.
type PutAwayRequest struct {
	LineID     *id.ID `json:"lineId,omitempty"`
	LocationID *id.ID `json:"locationId,omitempty"`
}

func (r PutAwayRequest) ToInput() goods_receipt.PutAwayInput {
	return goods_receipt.PutAwayInput{LineID: r.LineID, LocationID: r.LocationID}
}

// --- Picking list and shipment ---

type CreatePickingListRequest struct {
	WarehouseID id.ID                    `json:"warehouseId" binding:"required"`
	Strategy    allocation.Strategy      `json:"strategy,omitempty"`
	Priority    int                      `json:"priority"`
	OrderRef    string                   `json:"orderRef,omitempty"`
	Lines       []PickingListLineRequest `json:"lines" binding:"required,min=1,dive"`
}

type PickingListLineRequest struct {
	ProductID  id.ID          `json:"productId" binding:"required"`
	Quantity   types.Quantity `json:"quantity" binding:"required"`
	LocationID *id.ID         `json:"locationId,omitempty"`
	BatchID    *id.ID         `json:"batchId,omitempty"`
}

func (r CreatePickingListRequest) ToInput() picking.CreateInput {
	in := picking.CreateInput{
		WarehouseID: r.WarehouseID,
		Strategy:    r.Strategy,
		Priority:    r.Priority,
		OrderRef:    r.OrderRef,
		Lines:       make([]picking.LineInput, len(r.Lines)),
	}
	for i, l := range r.Lines {
		in.Lines[i] = picking.LineInput{ProductID: l.ProductID, Quantity: l.Quantity, LocationID: l.LocationID, BatchID: l.BatchID}
	}
	return in
}

// StartPickingRequest names the picker; empty assigns the caller.
type StartPickingRequest struct {
	PickerID string `json:"pickerId,omitempty"`
}

type PickRequest struct {
	LineID   id.ID          `json:"lineId" binding:"required"`
	Quantity types.Quantity `json:"quantity"`
}

func (r PickRequest) ToInput() picking.PickInput {
	return picking.PickInput{LineID: r.LineID, Quantity: r.Quantity}
}

// ShipOutResponse is the shipped picking list and its new shipment.
type ShipOutResponse struct {
	PickingList *picking.PickingList `json:"pickingList"`
	Shipment    *picking.Shipment    `json:"shipment"`
}

type ShipRequest struct {
	Carrier        string `json:"carrier,omitempty"`
	TrackingNumber string `json:"trackingNumber,omitempty"`
}

func (r ShipRequest) ToInput() picking.ShipInput {
	return picking.ShipInput{Carrier: r.Carrier, TrackingNumber: r.TrackingNumber}
}

// --- Transfer ---

type CreateTransferRequest struct {
	FromWarehouseID id.ID                 `json:"fromWarehouseId" binding:"required"`
	ToWarehouseID   id.ID                 `json:"toWarehouseId" binding:"required"`
	Comment         string                `json:"comment,omitempty"`
	Items           []TransferItemRequest `json:"items" binding:"required,min=1,dive"`
}

type TransferItemRequest struct {
	ProductID      id.ID          `json:"productId" binding:"required"`
	FromLocationID *id.ID         `json:"fromLocationId,omitempty"`
	ToLocationID   *id.ID         `json:"toLocationId,omitempty"`
	BatchID        *id.ID         `json:"batchId,omitempty"`
	Quantity       types.Quantity `json:"quantity" binding:"required"`
}

func (r CreateTransferRequest) ToInput() transfer.CreateInput {
	in := transfer.CreateInput{
		FromWarehouseID: r.FromWarehouseID,
		ToWarehouseID:   r.ToWarehouseID,
		Comment:         r.Comment,
		Items:           make([]transfer.ItemInput, len(r.Items)),
	}
	for i, it := range r.Items {
		in.Items[i] = transfer.ItemInput{
			ProductID:      it.ProductID,
			FromLocationID: it.FromLocationID,
			ToLocationID:   it.ToLocationID,
			BatchID:        it.BatchID,
			Quantity:       it.Quantity,
		}
	}
	return in
}

// ReceiveTransferRequest lists what arrived; no lines receives everything
// still outstanding.
type ReceiveTransferRequest struct {
	Lines []ReceiveTransferLine `json:"lines,omitempty" binding:"dive"`
}

type ReceiveTransferLine struct {
	LineID   id.ID          `json:"lineId" binding:"required"`
	Quantity types.Quantity `json:"quantity"`
	Damaged  types.Quantity `json:"damaged"`
}

func (r ReceiveTransferRequest) ToInput() []transfer.ReceiveLine {
	out := make([]transfer.ReceiveLine, len(r.Lines))
	for i, l := range r.Lines {
		out[i] = transfer.ReceiveLine{LineID: l.LineID, Quantity: l.Quantity, Damaged: l.Damaged}
	}
	return out
}

// --- Purchase return ---

// CreatePurchaseReturnRequest creates a return from explicit items, or from a
// purchase order when PurchaseOrderID is set and Items is empty.
type CreatePurchaseReturnRequest struct {
	WarehouseID     id.ID                       `json:"warehouseId"`
	SupplierID      id.ID                       `json:"supplierId"`
	PurchaseOrderID *id.ID                      `json:"purchaseOrderId,omitempty"`
	Reason          purchase_return.Reason      `json:"reason" binding:"required"`
	RequestRefund   bool                        `json:"requestRefund"`
	Comment         string                      `json:"comment,omitempty"`
	Items           []PurchaseReturnItemRequest `json:"items" binding:"dive"`
	Quantities      map[id.ID]types.Quantity    `json:"quantities,omitempty"`
}

type PurchaseReturnItemRequest struct {
	ProductID  id.ID          `json:"productId" binding:"required"`
	LocationID *id.ID         `json:"locationId,omitempty"`
	BatchID    *id.ID         `json:"batchId,omitempty"`
	Quantity   types.Quantity `json:"quantity" binding:"required"`
	UnitCost   *types.Money   `json:"unitCost,omitempty"`
	Note       string         `json:"note,omitempty"`
}

func (r CreatePurchaseReturnRequest) FromPurchaseOrder() bool {
	return r.PurchaseOrderID != nil && len(r.Items) == 0
}

func (r CreatePurchaseReturnRequest) ToInput() purchase_return.CreateInput {
	in := purchase_return.CreateInput{
		WarehouseID:     r.WarehouseID,
		SupplierID:      r.SupplierID,
		PurchaseOrderID: r.PurchaseOrderID,
		Reason:          r.Reason,
		RequestRefund:   r.RequestRefund,
		Comment:         r.Comment,
		Items:           make([]purchase_return.ItemInput, len(r.Items)),
	}
	for i, it := range r.Items {
		in.Items[i] = purchase_return.ItemInput{
			ProductID:  it.ProductID,
			LocationID: it.LocationID,
			BatchID:    it.BatchID,
			Quantity:   it.Quantity,
			UnitCost:   it.UnitCost,
			Note:       it.Note,
		}
	}
	return in
}
