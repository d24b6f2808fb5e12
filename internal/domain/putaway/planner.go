package putaway

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
	"stockcore/internal/domain/catalog"
	"stockcore/pkg/logger"
)

// Rule is one prioritized put-away rule of a warehouse. A nil ProductID
// applies the rule to every product.
type Rule struct {
	ID          id.ID
	WarehouseID id.ID
	ProductID   *id.ID
	Name        string
	Priority    int
	Active      bool
	Strategy    Strategy
	CreatedAt   time.Time
}

type ruleJSON struct {
	ID          id.ID     `json:"id"`
	WarehouseID id.ID     `json:"warehouseId"`
	ProductID   *id.ID    `json:"productId,omitempty"`
	Name        string    `json:"name"`
	Priority    int       `json:"priority"`
	Active      bool      `json:"isActive"`
	Strategy    Envelope  `json:"strategy"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (r Rule) MarshalJSON() ([]byte, error) {
	env, err := Encode(r.Strategy)
	if err != nil {
		return nil, err
	}
	return json.Marshal(ruleJSON{
		ID: r.ID, WarehouseID: r.WarehouseID, ProductID: r.ProductID, Name: r.Name,
		Priority: r.Priority, Active: r.Active, Strategy: env, CreatedAt: r.CreatedAt,
	})
}

func (r *Rule) UnmarshalJSON(data []byte) error {
	var raw ruleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s, err := Decode(raw.Strategy)
	if err != nil {
		return err
	}
	*r = Rule{
		ID: raw.ID, WarehouseID: raw.WarehouseID, ProductID: raw.ProductID, Name: raw.Name,
		Priority: raw.Priority, Active: raw.Active, Strategy: s, CreatedAt: raw.CreatedAt,
	}
	return nil
}

func (r Rule) appliesTo(productID id.ID) bool {
	return r.Active && (r.ProductID == nil || *r.ProductID == productID)
}

// RuleRepository persists rules.
type RuleRepository interface {
	Create(ctx context.Context, rule *Rule) error
	Delete(ctx context.Context, ruleID id.ID) error
	// List returns the rules of a warehouse in any order.
	List(ctx context.Context, warehouseID id.ID) ([]Rule, error)
}

// Occupancy reports on-hand quantity stored at a location.
type Occupancy interface {
	LocationOccupancy(ctx context.Context, locationID id.ID) (types.Quantity, error)
}

// Request describes stock waiting for a location.
type Request struct {
	ProductID      id.ID
	WarehouseID    id.ID
	Quantity       types.Quantity
	BatchExpiresAt *time.Time
}

// Decision is the chosen location and the rule that chose it.
type Decision struct {
	LocationID id.ID  `json:"locationId"`
	RuleID     *id.ID `json:"ruleId,omitempty"`
	Kind       Kind   `json:"kind"`
}

type Planner struct {
	rules     RuleRepository
	directory catalog.Directory
	occupancy Occupancy
	now       func() time.Time
}

func NewPlanner(rules RuleRepository, directory catalog.Directory, occupancy Occupancy) *Planner {
	return &Planner{
		rules:     rules,
		directory: directory,
		occupancy: occupancy,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateRuleInput is the caller-settable part of a rule.
type CreateRuleInput struct {
	WarehouseID id.ID
	ProductID   *id.ID
	Name        string
	Priority    int
	Active      bool
	Strategy    Strategy
}

func (p *Planner) CreateRule(ctx context.Context, in CreateRuleInput) (*Rule, error) {
	if in.Strategy == nil {
		return nil, apperror.NewValidation("strategy is required")
	}
	if err := in.Strategy.Validate(); err != nil {
		return nil, err
	}
	if _, err := p.directory.Warehouse(ctx, in.WarehouseID); err != nil {
		return nil, err
	}
	if locID, ok := targetLocation(in.Strategy); ok {
		loc, err := p.directory.Location(ctx, locID)
		if err != nil {
			return nil, err
		}
		if loc.WarehouseID != in.WarehouseID {
			return nil, apperror.NewValidation("rule location belongs to another warehouse").
				WithDetail("locationId", locID.String())
		}
	}

	rule := &Rule{
		ID:          id.New(),
		WarehouseID: in.WarehouseID,
		ProductID:   in.ProductID,
		Name:        strings.TrimSpace(in.Name),
		Priority:    in.Priority,
		Active:      in.Active,
		Strategy:    in.Strategy,
		CreatedAt:   p.now(),
	}
	if err := p.rules.Create(ctx, rule); err != nil {
		return nil, fmt.Errorf("create put-away rule: %w", err)
	}
	return rule, nil
}

func (p *Planner) DeleteRule(ctx context.Context, ruleID id.ID) error {
	return p.rules.Delete(ctx, ruleID)
}

// Rules returns a warehouse's rules by descending priority.
func (p *Planner) Rules(ctx context.Context, warehouseID id.ID) ([]Rule, error) {
	rules, err := p.rules.List(ctx, warehouseID)
	if err != nil {
		return nil, err
	}
	sortRules(rules)
	return rules, nil
}

func sortRules(rules []Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority > rules[j].Priority
		}
		return rules[i].CreatedAt.Before(rules[j].CreatedAt)
	})
}

func targetLocation(s Strategy) (id.ID, bool) {
	switch v := s.(type) {
	case FixedLocation:
		return v.LocationID, true
	case FEFO:
		return v.LocationID, true
	case CrossDock:
		return v.LocationID, true
	}
	return id.Nil(), false
}

// Suggest evaluates active rules by descending priority and returns the
// first match; with no match it falls back to the warehouse's first active location.
func (p *Planner) Suggest(ctx context.Context, req Request) (Decision, error) {
	if req.Quantity <= 0 {
		return Decision{}, apperror.NewValidation("put-away quantity must be positive")
	}
	rules, err := p.Rules(ctx, req.WarehouseID)
	if err != nil {
		return Decision{}, err
	}
	locations, err := p.directory.Locations(ctx, req.WarehouseID)
	if err != nil {
		return Decision{}, err
	}
	active := locations[:0:0]
	for _, l := range locations {
		if l.Active {
			active = append(active, l)
		}
	}

	var product *catalog.Product
	for _, rule := range rules {
		if !rule.appliesTo(req.ProductID) {
			continue
		}
		if _, isABC := rule.Strategy.(ABC); isABC && product == nil {
			if product, err = p.directory.Product(ctx, req.ProductID); err != nil {
				return Decision{}, err
			}
		}
		locID, ok, err := p.evaluate(ctx, rule.Strategy, req, active, product)
		if err != nil {
			return Decision{}, err
		}
		if ok {
			ruleID := rule.ID
			logger.Debug(ctx, "put-away rule matched", "rule_id", rule.ID, "kind", rule.Strategy.Kind(), "location_id", locID)
			return Decision{LocationID: locID, RuleID: &ruleID, Kind: rule.Strategy.Kind()}, nil
		}
	}

	if len(active) == 0 {
		return Decision{}, apperror.NewValidation("warehouse has no active location").
			WithDetail("warehouseId", req.WarehouseID.String())
	}
	return Decision{LocationID: active[0].ID, Kind: KindFallback}, nil
}

func (p *Planner) evaluate(ctx context.Context, s Strategy, req Request, active []catalog.Location, product *catalog.Product) (id.ID, bool, error) {
	switch v := s.(type) {
	case FixedLocation:
		return v.LocationID, isActive(active, v.LocationID), nil
	case CrossDock:
		return v.LocationID, isActive(active, v.LocationID), nil
	case FEFO:
		if req.BatchExpiresAt == nil || !isActive(active, v.LocationID) {
			return id.Nil(), false, nil
		}
		horizon := p.now().Add(time.Duration(v.MaxDaysToExpiry) * 24 * time.Hour)
		return v.LocationID, !req.BatchExpiresAt.After(horizon), nil
	case NearestAvailable:
		return p.firstFit(ctx, active, v.Zone, req.Quantity)
	case ABC:
		if product == nil || product.ABCClass != v.Class {
			return id.Nil(), false, nil
		}
		return p.firstFit(ctx, active, v.Zone, req.Quantity)
	case BulkStorage:
		if req.Quantity < v.MinQuantity {
			return id.Nil(), false, nil
		}
		return p.firstFit(ctx, active, catalog.ZoneBulk, req.Quantity)
	}
	return id.Nil(), false, nil
}

// firstFit returns the first location of zone whose occupancy leaves room for qty.
func (p *Planner) firstFit(ctx context.Context, active []catalog.Location, zone catalog.ZoneType, qty types.Quantity) (id.ID, bool, error) {
	for _, l := range active {
		if zone != "" && l.Zone != zone {
			continue
		}
		occ, err := p.occupancy.LocationOccupancy(ctx, l.ID)
		if err != nil {
			return id.Nil(), false, fmt.Errorf("occupancy of %s: %w", l.Code, err)
		}
		if l.Fits(occ, qty) {
			return l.ID, true, nil
		}
	}
	return id.Nil(), false, nil
}

func isActive(active []catalog.Location, locationID id.ID) bool {
	for _, l := range active {
		if l.ID == locationID {
			return true
		}
	}
	return false
}
