package handlers

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"stockcore/internal/core/id"
	"stockcore/internal/infrastructure/storage/postgres"
)

// AuditReader returns the transition trail of a document.
type AuditReader interface {
	History(ctx context.Context, entityID id.ID, limit int) ([]postgres.AuditEntry, error)
}

// AuditHandler serves document transition history. Only the postgres driver
// keeps one.
type AuditHandler struct {
	*BaseHandler
	reader AuditReader
}

func NewAuditHandler(base *BaseHandler, reader AuditReader) *AuditHandler {
	return &AuditHandler{BaseHandler: base, reader: reader}
}

// History handles GET /audit/:documentId?limit=N
func (h *AuditHandler) History(c *gin.Context) {
	docID, ok := h.ParamID(c, "documentId")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	entries, err := h.reader.History(c.Request.Context(), docID, limit)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"items": entries})
}
