package memory

import (
	"context"
	"slices"
	"sync"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/domain/reservation"
)

// HandleRepo is an in-memory reservation.HandleRepository.
type HandleRepo struct {
	mu      sync.RWMutex
	handles map[id.ID]reservation.Handle
}

func NewHandleRepo() *HandleRepo {
	return &HandleRepo{handles: make(map[id.ID]reservation.Handle)}
}

var _ reservation.HandleRepository = (*HandleRepo)(nil)

func cloneHandle(h reservation.Handle) reservation.Handle {
	h.Lines = slices.Clone(h.Lines)
	return h
}

func (r *HandleRepo) Create(_ context.Context, h *reservation.Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handles[h.ID]; ok {
		return apperror.NewDuplicate("reservation", "id", h.ID.String())
	}
	r.handles[h.ID] = cloneHandle(*h)
	return nil
}

func (r *HandleRepo) Update(_ context.Context, h *reservation.Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.handles[h.ID]
	if !ok {
		return apperror.NewNotFound("reservation", h.ID)
	}
	if cur.Version != h.Version {
		return apperror.NewConcurrentModification("reservation", h.ID)
	}
	h.Version++
	r.handles[h.ID] = cloneHandle(*h)
	return nil
}

func (r *HandleRepo) Get(_ context.Context, handleID id.ID) (*reservation.Handle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[handleID]
	if !ok {
		return nil, apperror.NewNotFound("reservation", handleID)
	}
	h = cloneHandle(h)
	return &h, nil
}
