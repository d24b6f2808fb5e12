package handlers

import (
	"github.com/gin-gonic/gin"

	"stockcore/internal/domain/documents/goods_receipt"
	"stockcore/internal/infrastructure/http/v1/dto"
)

type GoodsReceiptHandler struct {
	*BaseDocumentHandler[*goods_receipt.GoodsReceipt]
	service *goods_receipt.Service
}

func NewGoodsReceiptHandler(base *BaseHandler, service *goods_receipt.Service) *GoodsReceiptHandler {
	return &GoodsReceiptHandler{
		BaseDocumentHandler: NewBaseDocumentHandler[*goods_receipt.GoodsReceipt](base, service),
		service:             service,
	}
}

// RegisterRoutes mounts the receipt routes on rg.
func (h *GoodsReceiptHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.POST("/:id/submit", h.Fire(h.service.Submit))
	rg.POST("/:id/start-inspection", h.Fire(h.service.StartInspection))
	rg.POST("/:id/inspect", h.Inspect)
	rg.POST("/:id/complete-inspection", h.Fire(h.service.CompleteInspection))
	rg.POST("/:id/put-away", h.PutAway)
	rg.POST("/:id/cancel", h.Fire(h.service.Cancel))
}

// Create handles POST /documents/goods-receipts
func (h *GoodsReceiptHandler) Create(c *gin.Context) {
	var req dto.CreateGoodsReceiptRequest
	if !h.BindJSON(c, &req) {
		return
	}

	var (
		doc *goods_receipt.GoodsReceipt
		err error
	)
	if req.FromPurchaseOrder() {
		doc, err = h.service.CreateFromPurchaseOrder(c.Request.Context(), *req.PurchaseOrderID, req.Received, h.ActorID(c))
	} else {
		doc, err = h.service.Create(c.Request.Context(), req.ToInput(), h.ActorID(c))
	}
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, doc)
}

// Inspect handles POST /:id/inspect
func (h *GoodsReceiptHandler) Inspect(c *gin.Context) {
	docID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.InspectRequest
	if !h.BindJSON(c, &req) {
		return
	}
	doc, err := h.service.InspectItem(c.Request.Context(), docID, req.ToInput(), h.ActorID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, doc)
}

// PutAway handles POST /:id/put-away. An empty body stores every waiting line.
func (h *GoodsReceiptHandler) PutAway(c *gin.Context) {
	docID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.PutAwayRequest
	if !h.BindOptionalJSON(c, &req) {
		return
	}
	doc, err := h.service.PutAway(c.Request.Context(), docID, req.ToInput(), h.ActorID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, doc)
}
