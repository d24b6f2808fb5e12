package catalog_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/domain/putaway"
	"stockcore/internal/infrastructure/storage/postgres"
)

const putawayRulesTable = "cfg_putaway_rules"

// RuleRepo implements putaway.RuleRepository. The strategy variant is stored
// as its kind plus JSONB params.
type RuleRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

func NewRuleRepo(txm *postgres.TxManager) *RuleRepo {
	return &RuleRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var _ putaway.RuleRepository = (*RuleRepo)(nil)

type ruleRow struct {
	ID          id.ID        `db:"id"`
	WarehouseID id.ID        `db:"warehouse_id"`
	ProductID   *id.ID       `db:"product_id"`
	Name        string       `db:"name"`
	Priority    int          `db:"priority"`
	Active      bool         `db:"is_active"`
	Kind        putaway.Kind `db:"kind"`
	Params      []byte       `db:"params"`
	CreatedAt   time.Time    `db:"created_at"`
}

func (r *RuleRepo) Create(ctx context.Context, rule *putaway.Rule) error {
	env, err := putaway.Encode(rule.Strategy)
	if err != nil {
		return err
	}
	sql, args, err := r.builder.Insert(putawayRulesTable).
		Columns("id", "warehouse_id", "product_id", "name", "priority", "is_active", "kind", "params", "created_at").
		Values(rule.ID, rule.WarehouseID, rule.ProductID, rule.Name, rule.Priority, rule.Active,
			env.Kind, []byte(env.Params), rule.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.Translate(fmt.Errorf("insert put-away rule: %w", err))
	}
	return nil
}

func (r *RuleRepo) Delete(ctx context.Context, ruleID id.ID) error {
	sql, args, err := r.builder.Delete(putawayRulesTable).Where(squirrel.Eq{"id": ruleID}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete put-away rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("put-away rule", ruleID)
	}
	return nil
}

func (r *RuleRepo) List(ctx context.Context, warehouseID id.ID) ([]putaway.Rule, error) {
	sql, args, err := r.builder.
		Select("id", "warehouse_id", "product_id", "name", "priority", "is_active", "kind", "params", "created_at").
		From(putawayRulesTable).
		Where(squirrel.Eq{"warehouse_id": warehouseID}).
		OrderBy("priority", "created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []ruleRow
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select put-away rules: %w", err)
	}

	out := make([]putaway.Rule, 0, len(rows))
	for _, row := range rows {
		s, err := putaway.Decode(putaway.Envelope{Kind: row.Kind, Params: row.Params})
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", row.ID, err)
		}
		out = append(out, putaway.Rule{
			ID:          row.ID,
			WarehouseID: row.WarehouseID,
			ProductID:   row.ProductID,
			Name:        row.Name,
			Priority:    row.Priority,
			Active:      row.Active,
			Strategy:    s,
			CreatedAt:   row.CreatedAt,
		})
	}
	return out, nil
}
