// Package dto provides the request bodies and query parameters of the v1 API.
// Responses are the domain types, which carry their own JSON tags.
package dto

import (
	"strings"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/domain"
)

// IDResponse is returned when only an identifier is meaningful.
type IDResponse struct {
	ID string `json:"id"`
}

// ListQuery holds the document list parameters. Status is comma-separated.
type ListQuery struct {
	Status      string `form:"status"`
	WarehouseID string `form:"warehouseId"`
	Search      string `form:"search"`
	Limit       int    `form:"limit" binding:"omitempty,min=0,max=500"`
	Offset      int    `form:"offset" binding:"omitempty,min=0"`
}

// ToFilter converts the query into a normalized list filter.
func (q ListQuery) ToFilter() (domain.ListFilter, error) {
	f := domain.DefaultListFilter()
	warehouseID, err := parseID("warehouseId", q.WarehouseID)
	if err != nil {
		return f, err
	}
	f.WarehouseID = warehouseID
	f.Search = strings.TrimSpace(q.Search)
	for _, s := range strings.Split(q.Status, ",") {
		if s = strings.TrimSpace(s); s != "" {
			f.Statuses = append(f.Statuses, strings.ToUpper(s))
		}
	}
	if q.Limit > 0 {
		f.Limit = q.Limit
	}
	f.Offset = q.Offset
	f.Normalize()
	return f, nil
}

// RejectRequest carries the reason of a reject transition.
type RejectRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// parseID parses an optional id parameter; empty yields nil.
func parseID(name, raw string) (*id.ID, error) {
	v, err := id.ParseOptional(strings.TrimSpace(raw))
	if err != nil {
		return nil, apperror.NewValidation("invalid id").WithDetail("parameter", name).WithCause(err)
	}
	return v, nil
}
