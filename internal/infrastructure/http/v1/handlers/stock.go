package handlers

import (
	"github.com/gin-gonic/gin"

	"stockcore/internal/domain/reservation"
	"stockcore/internal/infrastructure/http/v1/dto"
)

// StockHandler exposes the ledger: levels, history, manual adjustments and
// the replay check.
type StockHandler struct {
	*BaseHandler
	coordinator *reservation.Coordinator
}

func NewStockHandler(base *BaseHandler, coordinator *reservation.Coordinator) *StockHandler {
	return &StockHandler{BaseHandler: base, coordinator: coordinator}
}

func (h *StockHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/levels", h.Levels)
	rg.GET("/movements", h.Movements)
	rg.GET("/turnover", h.Turnover)
	rg.POST("/adjustments", h.Adjust)
	rg.POST("/verify", h.Verify)
}

// Levels handles GET /stock/levels
func (h *StockHandler) Levels(c *gin.Context) {
	var q dto.KeyQuery
	if !h.BindQuery(c, &q) {
		return
	}
	filter, err := q.ToLevelFilter()
	if err != nil {
		h.Error(c, err)
		return
	}
	levels, err := h.coordinator.StockLevels(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"items": dto.NewLevelResponses(levels)})
}

// Movements handles GET /stock/movements
func (h *StockHandler) Movements(c *gin.Context) {
	var q dto.MovementQuery
	if !h.BindQuery(c, &q) {
		return
	}
	filter, err := q.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}
	movements, err := h.coordinator.Movements(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"items": movements, "limit": filter.Limit, "offset": filter.Offset})
}

// Turnover handles GET /stock/turnover
func (h *StockHandler) Turnover(c *gin.Context) {
	var q dto.TurnoverQuery
	if !h.BindQuery(c, &q) {
		return
	}
	filter, err := q.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}
	turnover, err := h.coordinator.Turnover(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, turnover)
}

// Adjust handles POST /stock/adjustments
func (h *StockHandler) Adjust(c *gin.Context) {
	var req dto.AdjustmentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	mv, err := h.coordinator.Adjust(c.Request.Context(), req.ToInput(h.ActorID(c)))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, mv)
}

// Verify handles POST /stock/verify
func (h *StockHandler) Verify(c *gin.Context) {
	var req dto.KeyRequest
	if !h.BindJSON(c, &req) {
		return
	}
	key := req.Key()
	if err := h.coordinator.Verify(c.Request.Context(), key); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.VerifyResponse{Key: key, Consistent: true})
}
