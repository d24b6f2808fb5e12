// Package register_repo provides PostgreSQL implementations of the stock and
// batch ledgers and of reservation handles.
package register_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockcore/internal/core/entity"
	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
	"stockcore/internal/domain/registers/stock"
	"stockcore/internal/infrastructure/storage/postgres"
)

const (
	stockLevelsTable    = "reg_stock_levels"
	stockMovementsTable = "reg_stock_movements"
)

var levelColumns = []string{
	"product_id", "warehouse_id", "location_id",
	"quantity", "reserved", "sequence", "created_at", "updated_at",
}

var movementColumns = []string{
	"id", "sequence", "kind", "product_id", "warehouse_id", "location_id",
	"from_location_id", "to_location_id", "batch_id",
	"delta", "quantity_after", "unit_cost", "total_cost",
	"document_type", "document_id", "document_number",
	"actor_id", "notes", "created_at",
}

// StockRepo implements stock.Repository.
type StockRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewStockRepo creates a new stock register repository.
func NewStockRepo(txm *postgres.TxManager) *StockRepo {
	return &StockRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var _ stock.Repository = (*StockRepo)(nil)

// movementRow flattens the document reference, which the domain type keeps
// as a nested struct.
type movementRow struct {
	stock.Movement
	DocumentType   string `db:"document_type"`
	DocumentID     id.ID  `db:"document_id"`
	DocumentNumber string `db:"document_number"`
}

func (r movementRow) toDomain() stock.Movement {
	m := r.Movement
	m.Recorder = entity.DocumentRef{Type: r.DocumentType, ID: r.DocumentID, Number: r.DocumentNumber}
	return m
}

func (r *StockRepo) getLevel(ctx context.Context, key stock.Key, forUpdate bool) (*stock.Level, error) {
	q := r.builder.Select(levelColumns...).
		From(stockLevelsTable).
		Where(squirrel.Eq{
			"product_id":   key.ProductID,
			"warehouse_id": key.WarehouseID,
			"location_id":  key.LocationID,
		})
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var level stock.Level
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &level, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get level: %w", err)
	}
	return &level, nil
}

func (r *StockRepo) GetLevel(ctx context.Context, key stock.Key) (*stock.Level, error) {
	return r.getLevel(ctx, key, false)
}

// GetLevelForUpdate locks the row for the rest of the transaction. A key
// without a row is serialized by the ledger's key lock and the unique index.
func (r *StockRepo) GetLevelForUpdate(ctx context.Context, key stock.Key) (*stock.Level, error) {
	return r.getLevel(ctx, key, true)
}

func (r *StockRepo) SaveLevel(ctx context.Context, level *stock.Level) error {
	sql, args, err := r.builder.Insert(stockLevelsTable).
		Columns(levelColumns...).
		Values(
			level.ProductID, level.WarehouseID, level.LocationID,
			level.Quantity, level.Reserved, level.Sequence, level.CreatedAt, level.UpdatedAt,
		).
		Suffix(`ON CONFLICT (product_id, warehouse_id, location_id) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			reserved = EXCLUDED.reserved,
			sequence = EXCLUDED.sequence,
			updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.Translate(fmt.Errorf("save level: %w", err))
	}
	return nil
}

func (r *StockRepo) AppendMovement(ctx context.Context, m *stock.Movement) error {
	sql, args, err := r.builder.Insert(stockMovementsTable).
		Columns(movementColumns...).
		Values(
			m.ID, m.Sequence, m.Kind, m.ProductID, m.WarehouseID, m.LocationID,
			m.FromLocationID, m.ToLocationID, m.BatchID,
			m.Delta, m.QuantityAfter, m.UnitCost, m.TotalCost,
			m.Recorder.Type, m.Recorder.ID, m.Recorder.Number,
			m.ActorID, m.Notes, m.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.Translate(fmt.Errorf("insert movement: %w", err))
	}
	return nil
}

func (r *StockRepo) ListLevels(ctx context.Context, f stock.LevelFilter) ([]stock.Level, error) {
	q := r.builder.Select(levelColumns...).From(stockLevelsTable)

	if f.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *f.ProductID})
	}
	if f.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"warehouse_id": *f.WarehouseID})
	}
	if f.LocationID != nil {
		q = q.Where(squirrel.Eq{"location_id": *f.LocationID})
	}
	if f.ExcludeEmpty {
		q = q.Where(squirrel.NotEq{"quantity": int64(0)})
	}
	if f.OnlyAvailable {
		q = q.Where("quantity > reserved")
	}
	q = q.OrderBy("created_at", "product_id", "warehouse_id", "location_id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var levels []stock.Level
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &levels, sql, args...); err != nil {
		return nil, fmt.Errorf("select levels: %w", err)
	}
	return levels, nil
}

func (r *StockRepo) ListMovements(ctx context.Context, f stock.MovementFilter) ([]stock.Movement, error) {
	q := r.builder.Select(movementColumns...).From(stockMovementsTable)

	if f.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *f.ProductID})
	}
	if f.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"warehouse_id": *f.WarehouseID})
	}
	if f.LocationID != nil {
		q = q.Where(squirrel.Eq{"location_id": *f.LocationID})
	}
	if f.BatchID != nil {
		q = q.Where(squirrel.Eq{"batch_id": *f.BatchID})
	}
	if f.DocumentID != nil {
		q = q.Where(squirrel.Eq{"document_id": *f.DocumentID})
	}
	if f.Kind != nil {
		q = q.Where(squirrel.Eq{"kind": *f.Kind})
	}
	if f.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *f.FromDate})
	}
	if f.ToDate != nil {
		q = q.Where(squirrel.Lt{"created_at": *f.ToDate})
	}

	q = q.OrderBy("created_at", "sequence")

	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []movementRow
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select movements: %w", err)
	}
	out := make([]stock.Movement, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

func (r *StockRepo) ReplayTotals(ctx context.Context, key stock.Key) (stock.Replay, error) {
	sql := `
		SELECT COALESCE(SUM(delta), 0), COUNT(*), COALESCE(MAX(sequence), 0)
		FROM reg_stock_movements
		WHERE product_id = $1 AND warehouse_id = $2 AND location_id = $3
	`
	var (
		sum int64
		rep stock.Replay
	)
	err := r.txm.GetQuerier(ctx).
		QueryRow(ctx, sql, key.ProductID, key.WarehouseID, key.LocationID).
		Scan(&sum, &rep.Count, &rep.MaxSequence)
	if err != nil {
		return stock.Replay{}, fmt.Errorf("replay %s: %w", key, err)
	}
	rep.Sum = types.Quantity(sum)
	return rep, nil
}

func (r *StockRepo) ListKeys(ctx context.Context) ([]stock.Key, error) {
	sql, args, err := r.builder.Select("product_id", "warehouse_id", "location_id").
		From(stockLevelsTable).
		OrderBy("product_id", "warehouse_id", "location_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var keys []stock.Key
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &keys, sql, args...); err != nil {
		return nil, fmt.Errorf("select keys: %w", err)
	}
	return keys, nil
}

func (r *StockRepo) LocationOccupancy(ctx context.Context, locationID id.ID) (types.Quantity, error) {
	var total int64
	err := r.txm.GetQuerier(ctx).
		QueryRow(ctx, `SELECT COALESCE(SUM(quantity), 0) FROM reg_stock_levels WHERE location_id = $1`, locationID).
		Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("location occupancy: %w", err)
	}
	return types.Quantity(total), nil
}
