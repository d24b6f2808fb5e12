package handlers

import (
	"github.com/gin-gonic/gin"

	"stockcore/internal/domain/documents/purchase_return"
	"stockcore/internal/infrastructure/http/v1/dto"
)

type PurchaseReturnHandler struct {
	*BaseDocumentHandler[*purchase_return.PurchaseReturn]
	service *purchase_return.Service
}

func NewPurchaseReturnHandler(base *BaseHandler, service *purchase_return.Service) *PurchaseReturnHandler {
	return &PurchaseReturnHandler{
		BaseDocumentHandler: NewBaseDocumentHandler[*purchase_return.PurchaseReturn](base, service),
		service:             service,
	}
}

func (h *PurchaseReturnHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.POST("/:id/submit", h.Fire(h.service.Submit))
	rg.POST("/:id/approve", h.Fire(h.service.Approve))
	rg.POST("/:id/reject", h.Reject(h.service.Reject))
	rg.POST("/:id/process", h.Fire(h.service.Process))
	rg.POST("/:id/refund", h.Fire(h.service.Refund))
	rg.POST("/:id/cancel", h.Fire(h.service.Cancel))
}

func (h *PurchaseReturnHandler) Create(c *gin.Context) {
	var req dto.CreatePurchaseReturnRequest
	if !h.BindJSON(c, &req) {
		return
	}

	var (
		doc *purchase_return.PurchaseReturn
		err error
	)
	if req.FromPurchaseOrder() {
		doc, err = h.service.CreateFromPurchaseOrder(c.Request.Context(), *req.PurchaseOrderID, req.Quantities,
			req.Reason, req.RequestRefund, h.ActorID(c))
	} else {
		doc, err = h.service.Create(c.Request.Context(), req.ToInput(), h.ActorID(c))
	}
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, doc)
}
