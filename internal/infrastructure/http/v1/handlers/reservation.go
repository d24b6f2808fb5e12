package handlers

import (
	"github.com/gin-gonic/gin"

	"stockcore/internal/domain/allocation"
	"stockcore/internal/domain/registers/stock"
	"stockcore/internal/domain/reservation"
	"stockcore/internal/infrastructure/http/v1/dto"
)

type ReservationHandler struct {
	*BaseHandler
	coordinator *reservation.Coordinator
}

func NewReservationHandler(base *BaseHandler, coordinator *reservation.Coordinator) *ReservationHandler {
	return &ReservationHandler{BaseHandler: base, coordinator: coordinator}
}

func (h *ReservationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/plan", h.Plan)
	rg.POST("", h.Commit)
	rg.GET("/:id", h.Get)
	rg.POST("/:id/consume", h.Consume)
	rg.POST("/:id/release", h.Release)
}

// Plan handles POST /reservations/plan. Nothing is reserved.
func (h *ReservationHandler) Plan(c *gin.Context) {
	var req allocation.Demand
	if !h.BindJSON(c, &req) {
		return
	}
	plan, err := h.coordinator.ReserveForDemand(c.Request.Context(), req)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewPlanResponse(plan))
}

// Commit handles POST /reservations
func (h *ReservationHandler) Commit(c *gin.Context) {
	var req dto.CommitReservationRequest
	if !h.BindJSON(c, &req) {
		return
	}
	handle, err := h.coordinator.CommitReservation(c.Request.Context(), req.Plan, req.Op(h.ActorID(c)))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, handle)
}

func (h *ReservationHandler) Get(c *gin.Context) {
	handleID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	handle, err := h.coordinator.GetHandle(c.Request.Context(), handleID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, handle)
}

// Consume handles POST /reservations/:id/consume
func (h *ReservationHandler) Consume(c *gin.Context) {
	handleID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.DrawRequest
	if !h.BindJSON(c, &req) {
		return
	}
	op := reservation.Op{ActorID: h.ActorID(c), Notes: req.Notes}

	var (
		handle    *reservation.Handle
		movements []stock.Movement
		err       error
	)
	if req.Line != nil {
		handle, movements, err = h.coordinator.ConsumeLine(c.Request.Context(), handleID, *req.Line, req.Quantity, req.MovementKind(), op)
	} else {
		handle, movements, err = h.coordinator.ConsumeReservation(c.Request.Context(), handleID, req.Quantity, req.MovementKind(), op)
	}
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.HandleResponse{Handle: handle, Movements: movements})
}

// Release handles POST /reservations/:id/release
func (h *ReservationHandler) Release(c *gin.Context) {
	handleID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.DrawRequest
	if !h.BindJSON(c, &req) {
		return
	}
	op := reservation.Op{ActorID: h.ActorID(c), Notes: req.Notes}

	var (
		handle *reservation.Handle
		err    error
	)
	if req.Line != nil {
		handle, err = h.coordinator.ReleaseLine(c.Request.Context(), handleID, *req.Line, req.Quantity, op)
	} else {
		handle, err = h.coordinator.ReleaseReservation(c.Request.Context(), handleID, req.Quantity, op)
	}
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, handle)
}
