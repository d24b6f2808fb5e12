package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/domain"
	"stockcore/internal/domain/documents"
)

// DocumentRepo stores one document kind as JSON snapshots, so callers never
// share memory with the store.
type DocumentRepo[D documents.Record] struct {
	mu       sync.RWMutex
	entity   string
	newDoc   func() D
	rows     map[id.ID][]byte
	order    []id.ID
	byNumber map[string]id.ID
}

// NewDocumentRepo creates a repo; newDoc returns an empty document to decode into.
func NewDocumentRepo[D documents.Record](entity string, newDoc func() D) *DocumentRepo[D] {
	return &DocumentRepo[D]{
		entity:   entity,
		newDoc:   newDoc,
		rows:     make(map[id.ID][]byte),
		byNumber: make(map[string]id.ID),
	}
}

func (r *DocumentRepo[D]) decode(raw []byte) (D, error) {
	doc := r.newDoc()
	if err := json.Unmarshal(raw, doc); err != nil {
		var zero D
		return zero, fmt.Errorf("decode %s: %w", r.entity, err)
	}
	return doc, nil
}

func (r *DocumentRepo[D]) Create(_ context.Context, doc D) error {
	h := doc.Header()
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", r.entity, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[h.ID]; ok {
		return apperror.NewDuplicate(r.entity, "id", h.ID.String())
	}
	if _, ok := r.byNumber[h.Number]; ok && h.Number != "" {
		return apperror.NewDuplicate(r.entity, "number", h.Number)
	}
	r.rows[h.ID] = raw
	r.order = append(r.order, h.ID)
	if h.Number != "" {
		r.byNumber[h.Number] = h.ID
	}
	return nil
}

func (r *DocumentRepo[D]) Get(_ context.Context, docID id.ID) (D, error) {
	r.mu.RLock()
	raw, ok := r.rows[docID]
	r.mu.RUnlock()
	if !ok {
		var zero D
		return zero, apperror.NewNotFound(r.entity, docID)
	}
	return r.decode(raw)
}

func (r *DocumentRepo[D]) Update(_ context.Context, doc D) error {
	h := doc.Header()

	r.mu.Lock()
	defer r.mu.Unlock()
	raw, ok := r.rows[h.ID]
	if !ok {
		return apperror.NewNotFound(r.entity, h.ID)
	}
	var stored struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(raw, &stored); err != nil {
		return fmt.Errorf("decode %s version: %w", r.entity, err)
	}
	if stored.Version != h.Version {
		return apperror.NewConcurrentModification(r.entity, h.ID)
	}

	h.Version++
	next, err := json.Marshal(doc)
	if err != nil {
		h.Version--
		return fmt.Errorf("encode %s: %w", r.entity, err)
	}
	r.rows[h.ID] = next
	return nil
}

// List returns documents in creation order.
func (r *DocumentRepo[D]) List(_ context.Context, f domain.ListFilter) (domain.ListResult[D], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []D
	for _, docID := range r.order {
		doc, err := r.decode(r.rows[docID])
		if err != nil {
			return domain.ListResult[D]{}, err
		}
		if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, doc.StatusName()) {
			continue
		}
		if f.WarehouseID != nil && !slices.Contains(doc.Warehouses(), *f.WarehouseID) {
			continue
		}
		if f.Search != "" && !strings.HasPrefix(doc.Header().Number, f.Search) {
			continue
		}
		matched = append(matched, doc)
	}

	return domain.ListResult[D]{
		Items:      paginate(matched, f.Offset, f.Limit),
		TotalCount: int64(len(matched)),
		Limit:      f.Limit,
		Offset:     f.Offset,
	}, nil
}
