package memory

import (
	"context"
	"sync"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/domain/putaway"
)

// RuleRepo is an in-memory putaway.RuleRepository.
type RuleRepo struct {
	mu    sync.RWMutex
	rules map[id.ID]putaway.Rule
}

func NewRuleRepo() *RuleRepo {
	return &RuleRepo{rules: make(map[id.ID]putaway.Rule)}
}

var _ putaway.RuleRepository = (*RuleRepo)(nil)

func (r *RuleRepo) Create(_ context.Context, rule *putaway.Rule) error {
	r.mu.Lock()
	r.rules[rule.ID] = *rule
	r.mu.Unlock()
	return nil
}

func (r *RuleRepo) Delete(_ context.Context, ruleID id.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rules[ruleID]; !ok {
		return apperror.NewNotFound("put-away rule", ruleID)
	}
	delete(r.rules, ruleID)
	return nil
}

func (r *RuleRepo) List(_ context.Context, warehouseID id.ID) ([]putaway.Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []putaway.Rule
	for _, rule := range r.rules {
		if rule.WarehouseID == warehouseID {
			out = append(out, rule)
		}
	}
	return out, nil
}
