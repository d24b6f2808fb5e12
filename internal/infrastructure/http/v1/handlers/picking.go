package handlers

import (
	"github.com/gin-gonic/gin"

	"stockcore/internal/domain/documents/picking"
	"stockcore/internal/infrastructure/http/v1/dto"
)

type PickingListHandler struct {
	*BaseDocumentHandler[*picking.PickingList]
	service *picking.Service
}

func NewPickingListHandler(base *BaseHandler, service *picking.Service) *PickingListHandler {
	return &PickingListHandler{
		BaseDocumentHandler: NewBaseDocumentHandler[*picking.PickingList](base, service),
		service:             service,
	}
}

func (h *PickingListHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.POST("/:id/release", h.Fire(h.service.Release))
	rg.POST("/:id/start", h.Start)
	rg.POST("/:id/pick", h.Pick)
	rg.POST("/:id/complete", h.Fire(h.service.Complete))
	rg.POST("/:id/ship-out", h.ShipOut)
	rg.POST("/:id/cancel", h.Fire(h.service.Cancel))
}

func (h *PickingListHandler) Create(c *gin.Context) {
	var req dto.CreatePickingListRequest
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

func (h *PickingListHandler) Start(c *gin.Context) {
	docID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.StartPickingRequest
	if !h.BindOptionalJSON(c, &req) {
		return
	}
	doc, err := h.service.Start(c.Request.Context(), docID, req.PickerID, h.ActorID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, doc)
}

func (h *PickingListHandler) Pick(c *gin.Context) {
	docID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.PickRequest
	if !h.BindJSON(c, &req) {
		return
	}
	doc, err := h.service.Pick(c.Request.Context(), docID, req.ToInput(), h.ActorID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, doc)
}

// ShipOut handles POST /:id/ship-out: the list moves on and a shipment is opened.
func (h *PickingListHandler) ShipOut(c *gin.Context) {
	docID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	list, shipment, err := h.service.ShipOut(c.Request.Context(), docID, h.ActorID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.ShipOutResponse{PickingList: list, Shipment: shipment})
}

// ShipmentHandler serves the shipments opened by picking lists.
type ShipmentHandler struct {
	*BaseHandler
	service *picking.Service
}

func NewShipmentHandler(base *BaseHandler, service *picking.Service) *ShipmentHandler {
	return &ShipmentHandler{BaseHandler: base, service: service}
}

func (h *ShipmentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:id", h.Get)
	rg.POST("/:id/ship", h.Ship)
	rg.POST("/:id/deliver", h.Deliver)
	rg.POST("/:id/cancel", h.Cancel)
}

func (h *ShipmentHandler) Get(c *gin.Context) {
	shipmentID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	s, err := h.service.GetShipment(c.Request.Context(), shipmentID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, s)
}

func (h *ShipmentHandler) Ship(c *gin.Context) {
	shipmentID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.ShipRequest
	if !h.BindOptionalJSON(c, &req) {
		return
	}
	s, err := h.service.Ship(c.Request.Context(), shipmentID, req.ToInput(), h.ActorID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, s)
}

func (h *ShipmentHandler) Deliver(c *gin.Context) {
	shipmentID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	s, err := h.service.Deliver(c.Request.Context(), shipmentID, h.ActorID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, s)
}

func (h *ShipmentHandler) Cancel(c *gin.Context) {
	shipmentID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	s, err := h.service.CancelShipment(c.Request.Context(), shipmentID, h.ActorID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, s)
}
