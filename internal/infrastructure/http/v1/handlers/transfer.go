package handlers

import (
	"github.com/gin-gonic/gin"

	"stockcore/internal/domain/documents/transfer"
	"stockcore/internal/infrastructure/http/v1/dto"
)

type TransferHandler struct {
	*BaseDocumentHandler[*transfer.Transfer]
	service *transfer.Service
}

func NewTransferHandler(base *BaseHandler, service *transfer.Service) *TransferHandler {
	return &TransferHandler{
		BaseDocumentHandler: NewBaseDocumentHandler[*transfer.Transfer](base, service),
		service:             service,
	}
}

func (h *TransferHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.POST("/:id/submit", h.Fire(h.service.Submit))
	rg.POST("/:id/approve", h.Fire(h.service.Approve))
	rg.POST("/:id/reject", h.Reject(h.service.Reject))
	rg.POST("/:id/ship", h.Fire(h.service.Ship))
	rg.POST("/:id/receive", h.Receive)
	rg.POST("/:id/cancel", h.Fire(h.service.Cancel))
}

func (h *TransferHandler) Create(c *gin.Context) {
	var req dto.CreateTransferRequest
	if !h.BindJSON(c, &req) {
		return
	}
	doc, err := h.service.Create(c.Request.Context(), req.ToInput(), h.ActorID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, doc)
}

// Receive handles POST /:id/receive. An empty body receives everything shipped.
func (h *TransferHandler) Receive(c *gin.Context) {
	docID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.ReceiveTransferRequest
	if !h.BindOptionalJSON(c, &req) {
		return
	}
	doc, err := h.service.Receive(c.Request.Context(), docID, req.ToInput(), h.ActorID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, doc)
}
