package handlers

import (
	"github.com/gin-gonic/gin"

	"stockcore/internal/domain/registers/batch"
	"stockcore/internal/infrastructure/http/v1/dto"
)

type BatchHandler struct {
	*BaseHandler
	registry *batch.Registry
	// expiringDays applies when the request names no window
	expiringDays int
}

func NewBatchHandler(base *BaseHandler, registry *batch.Registry, expiringDays int) *BatchHandler {
	return &BatchHandler{BaseHandler: base, registry: registry, expiringDays: expiringDays}
}

func (h *BatchHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("/expiring", h.Expiring)
	rg.GET("/expired", h.Expired)
	rg.GET("/trace/:number", h.Trace)
	rg.GET("/:id", h.Get)
	rg.POST("/:id/quality", h.SetQuality)
}

func (h *BatchHandler) Create(c *gin.Context) {
	var req dto.CreateBatchRequest
	if !h.BindJSON(c, &req) {
		return
	}
	b, err := h.registry.Create(c.Request.Context(), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, b)
}

func (h *BatchHandler) Get(c *gin.Context) {
	batchID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	b, err := h.registry.Get(c.Request.Context(), batchID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, b)
}

// SetQuality handles POST /batches/:id/quality
func (h *BatchHandler) SetQuality(c *gin.Context) {
	batchID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.QualityRequest
	if !h.BindJSON(c, &req) {
		return
	}
	b, err := h.registry.SetQualityStatus(c.Request.Context(), batchID, req.Status)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, b)
}

// Expiring handles GET /batches/expiring?days=N
func (h *BatchHandler) Expiring(c *gin.Context) {
	var q dto.ExpiringQuery
	if !h.BindQuery(c, &q) {
		return
	}
	days := q.Days
	if c.Query("days") == "" {
		days = h.expiringDays
	}
	batches, err := h.registry.Expiring(c.Request.Context(), days)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"items": batches, "days": days})
}

func (h *BatchHandler) Expired(c *gin.Context) {
	batches, err := h.registry.Expired(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"items": batches})
}

// Trace handles GET /batches/trace/:number
func (h *BatchHandler) Trace(c *gin.Context) {
	trace, err := h.registry.Traceability(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, trace)
}
