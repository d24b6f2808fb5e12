package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"stockcore/internal/core/id"
	"stockcore/internal/domain"
	"stockcore/internal/infrastructure/http/v1/dto"
)

// DocumentReader is the read side every document service offers.
type DocumentReader[D any] interface {
	Get(ctx context.Context, docID id.ID) (D, error)
	List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[D], error)
}

// Transition is a body-less state change of one document.
type Transition[D any] func(ctx context.Context, docID id.ID, actorID string) (D, error)

// BaseDocumentHandler serves get, list and simple transitions for one kind.
type BaseDocumentHandler[D any] struct {
	*BaseHandler
	reader DocumentReader[D]
}

func NewBaseDocumentHandler[D any](base *BaseHandler, reader DocumentReader[D]) *BaseDocumentHandler[D] {
	return &BaseDocumentHandler[D]{BaseHandler: base, reader: reader}
}

// Get handles GET /:id
func (h *BaseDocumentHandler[D]) Get(c *gin.Context) {
	docID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	doc, err := h.reader.Get(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, doc)
}

// List handles GET /
func (h *BaseDocumentHandler[D]) List(c *gin.Context) {
	var q dto.ListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	filter, err := q.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}
	result, err := h.reader.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// Fire adapts a body-less transition to POST /:id/<event>.
func (h *BaseDocumentHandler[D]) Fire(t Transition[D]) gin.HandlerFunc {
	return func(c *gin.Context) {
		docID, ok := h.ParamID(c, "id")
		if !ok {
			return
		}
		doc, err := t(c.Request.Context(), docID, h.ActorID(c))
		if err != nil {
			h.Error(c, err)
			return
		}
		h.OK(c, doc)
	}
}

// Reject adapts a transition that needs a reason.
func (h *BaseDocumentHandler[D]) Reject(t func(ctx context.Context, docID id.ID, reason, actorID string) (D, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		docID, ok := h.ParamID(c, "id")
		if !ok {
			return
		}
		var req dto.RejectRequest
		if !h.BindJSON(c, &req) {
			return
		}
		doc, err := t(c.Request.Context(), docID, req.Reason, h.ActorID(c))
		if err != nil {
			h.Error(c, err)
			return
		}
		h.OK(c, doc)
	}
}
