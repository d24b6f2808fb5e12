package dto

import (
	"stockcore/internal/core/id"
	"stockcore/internal/domain/putaway"
)

// CreateRuleRequest defines a put-away rule. Strategy is the tagged form
// {"kind": "FEFO", "params": {...}}.
type CreateRuleRequest struct {
	WarehouseID id.ID            `json:"warehouseId" binding:"required"`
	ProductID   *id.ID           `json:"productId,omitempty"`
	Name        string           `json:"name" binding:"required"`
	Priority    int              `json:"priority"`
	Active      *bool            `json:"isActive,omitempty"`
	Strategy    putaway.Envelope `json:"strategy"`
}

func (r CreateRuleRequest) ToInput() (putaway.CreateRuleInput, error) {
	s, err := putaway.Decode(r.Strategy)
	if err != nil {
		return putaway.CreateRuleInput{}, err
	}
	active := true
	if r.Active != nil {
		active = *r.Active
	}
	return putaway.CreateRuleInput{
		WarehouseID: r.WarehouseID,
		ProductID:   r.ProductID,
		Name:        r.Name,
		Priority:    r.Priority,
		Active:      active,
		Strategy:    s,
	}, nil
}

// RuleQuery selects the warehouse whose rules to list.
type RuleQuery struct {
	WarehouseID string `form:"warehouseId" binding:"required"`
}

func (q RuleQuery) Warehouse() (id.ID, error) {
	v, err := parseID("warehouseId", q.WarehouseID)
	if err != nil {
		return id.Nil(), err
	}
	return *v, nil
}
