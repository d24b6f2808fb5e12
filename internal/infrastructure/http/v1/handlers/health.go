package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Pinger checks a storage backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	driver string
	// storage is nil for the memory driver
	storage Pinger
}

func NewHealthHandler(driver string, storage Pinger) *HealthHandler {
	return &HealthHandler{driver: driver, storage: storage}
}

// Health handles GET /health: process and storage in one answer.
func (h *HealthHandler) Health(c *gin.Context) {
	checks := map[string]string{"storage": "healthy"}
	if h.storage != nil {
		if err := h.storage.Ping(c.Request.Context()); err != nil {
			checks["storage"] = "unhealthy: " + err.Error()
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "driver": h.driver, "checks": checks})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "driver": h.driver, "checks": checks})
}

// Live handles GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
