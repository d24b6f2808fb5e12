package register_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/entity"
	"stockcore/internal/core/id"
	"stockcore/internal/domain/registers/batch"
	"stockcore/internal/infrastructure/storage/postgres"
)

const (
	batchesTable        = "cat_batches"
	batchLevelsTable    = "reg_batch_levels"
	batchMovementsTable = "reg_batch_movements"
)

var batchColumns = []string{
	"id", "version", "batch_number", "product_id", "warehouse_id",
	"manufactured_at", "expires_at", "received_at", "quality_status",
	"initial_quantity", "current_quantity", "unit_cost", "notes",
	"created_at", "updated_at",
}

var batchLevelColumns = []string{
	"batch_id", "warehouse_id", "location_id", "product_id",
	"quantity", "reserved", "sequence", "created_at", "updated_at",
}

var batchMovementColumns = []string{
	"id", "sequence", "kind", "batch_id", "warehouse_id", "location_id", "product_id",
	"stock_movement_id", "delta", "quantity_after",
	"document_type", "document_id", "document_number",
	"actor_id", "notes", "created_at",
}

// BatchRepo implements batch.Repository.
type BatchRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

func NewBatchRepo(txm *postgres.TxManager) *BatchRepo {
	return &BatchRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var _ batch.Repository = (*BatchRepo)(nil)

func (r *BatchRepo) Create(ctx context.Context, b *batch.Batch) error {
	sql, args, err := r.builder.Insert(batchesTable).
		Columns(batchColumns...).
		Values(
			b.ID, b.Version, b.BatchNumber, b.ProductID, b.WarehouseID,
			b.ManufacturedAt, b.ExpiresAt, b.ReceivedAt, b.QualityStatus,
			b.InitialQuantity, b.CurrentQuantity, b.UnitCost, b.Notes,
			b.CreatedAt, b.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if postgres.IsUniqueViolation(err) {
			return apperror.NewDuplicate("batch", "batchNumber", b.BatchNumber).WithCause(err)
		}
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

// Update writes the header and bumps its version.
func (r *BatchRepo) Update(ctx context.Context, b *batch.Batch) error {
	sql, args, err := r.builder.Update(batchesTable).
		SetMap(map[string]any{
			"version":          squirrel.Expr("version + 1"),
			"manufactured_at":  b.ManufacturedAt,
			"expires_at":       b.ExpiresAt,
			"received_at":      b.ReceivedAt,
			"quality_status":   b.QualityStatus,
			"initial_quantity": b.InitialQuantity,
			"current_quantity": b.CurrentQuantity,
			"unit_cost":        b.UnitCost,
			"notes":            b.Notes,
			"updated_at":       b.UpdatedAt,
		}).
		Where(squirrel.Eq{"id": b.ID}).
		Suffix("RETURNING version").
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&b.Version); err != nil {
		if pgxscan.NotFound(err) {
			return apperror.NewNotFound("batch", b.ID)
		}
		return fmt.Errorf("update batch: %w", err)
	}
	return nil
}

func (r *BatchRepo) get(ctx context.Context, where squirrel.Eq, ref any) (*batch.Batch, error) {
	sql, args, err := r.builder.Select(batchColumns...).From(batchesTable).Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var b batch.Batch
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &b, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("batch", ref)
		}
		return nil, fmt.Errorf("get batch: %w", err)
	}
	return &b, nil
}

func (r *BatchRepo) GetByID(ctx context.Context, batchID id.ID) (*batch.Batch, error) {
	return r.get(ctx, squirrel.Eq{"id": batchID}, batchID)
}

func (r *BatchRepo) GetByNumber(ctx context.Context, number string) (*batch.Batch, error) {
	return r.get(ctx, squirrel.Eq{"batch_number": number}, number)
}

func (r *BatchRepo) List(ctx context.Context, f batch.Filter) ([]batch.Batch, error) {
	q := r.builder.Select(batchColumns...).From(batchesTable)
	if f.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *f.ProductID})
	}
	if f.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"warehouse_id": *f.WarehouseID})
	}
	if f.Status != nil {
		q = q.Where(squirrel.Eq{"quality_status": *f.Status})
	}
	if f.ActiveOnly {
		q = q.Where(squirrel.Gt{"current_quantity": int64(0)}).
			Where(squirrel.NotEq{"quality_status": batch.QualityRejected})
	}
	sql, args, err := q.OrderBy("id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []batch.Batch
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("select batches: %w", err)
	}
	return out, nil
}

func (r *BatchRepo) GetLevel(ctx context.Context, key batch.Key) (*batch.Level, error) {
	sql, args, err := r.builder.Select(batchLevelColumns...).
		From(batchLevelsTable).
		Where(squirrel.Eq{
			"batch_id":     key.BatchID,
			"warehouse_id": key.WarehouseID,
			"location_id":  key.LocationID,
		}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lv batch.Level
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &lv, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get batch level: %w", err)
	}
	return &lv, nil
}

func (r *BatchRepo) SaveLevel(ctx context.Context, lv *batch.Level) error {
	sql, args, err := r.builder.Insert(batchLevelsTable).
		Columns(batchLevelColumns...).
		Values(
			lv.BatchID, lv.WarehouseID, lv.LocationID, lv.ProductID,
			lv.Quantity, lv.Reserved, lv.Sequence, lv.CreatedAt, lv.UpdatedAt,
		).
		Suffix(`ON CONFLICT (batch_id, warehouse_id, location_id) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			reserved = EXCLUDED.reserved,
			sequence = EXCLUDED.sequence,
			updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.Translate(fmt.Errorf("save batch level: %w", err))
	}
	return nil
}

func (r *BatchRepo) ListLevels(ctx context.Context, f batch.LevelFilter) ([]batch.Level, error) {
	q := r.builder.Select(batchLevelColumns...).From(batchLevelsTable)
	if f.BatchID != nil {
		q = q.Where(squirrel.Eq{"batch_id": *f.BatchID})
	}
	if f.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *f.ProductID})
	}
	if f.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"warehouse_id": *f.WarehouseID})
	}
	if f.LocationID != nil {
		q = q.Where(squirrel.Eq{"location_id": *f.LocationID})
	}
	sql, args, err := q.OrderBy("created_at", "batch_id", "location_id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []batch.Level
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("select batch levels: %w", err)
	}
	return out, nil
}

func (r *BatchRepo) AppendMovement(ctx context.Context, m *batch.Movement) error {
	sql, args, err := r.builder.Insert(batchMovementsTable).
		Columns(batchMovementColumns...).
		Values(
			m.ID, m.Sequence, m.Kind, m.BatchID, m.WarehouseID, m.LocationID, m.ProductID,
			m.StockMovementID, m.Delta, m.QuantityAfter,
			m.Recorder.Type, m.Recorder.ID, m.Recorder.Number,
			m.ActorID, m.Notes, m.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert batch movement: %w", err)
	}
	return nil
}

type batchMovementRow struct {
	batch.Movement
	DocumentType   string `db:"document_type"`
	DocumentID     id.ID  `db:"document_id"`
	DocumentNumber string `db:"document_number"`
}

func (r *BatchRepo) ListMovements(ctx context.Context, batchID id.ID) ([]batch.Movement, error) {
	sql, args, err := r.builder.Select(batchMovementColumns...).
		From(batchMovementsTable).
		Where(squirrel.Eq{"batch_id": batchID}).
		OrderBy("created_at", "sequence").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []batchMovementRow
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select batch movements: %w", err)
	}
	out := make([]batch.Movement, len(rows))
	for i, row := range rows {
		m := row.Movement
		m.Recorder = entity.DocumentRef{Type: row.DocumentType, ID: row.DocumentID, Number: row.DocumentNumber}
		out[i] = m
	}
	return out, nil
}
