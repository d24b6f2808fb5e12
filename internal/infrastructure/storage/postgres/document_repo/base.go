// Package document_repo provides the PostgreSQL document store. Every
// document kind lives in its own table: header columns for filtering plus the
// whole document as a JSONB body.
package document_repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/domain"
	"stockcore/internal/domain/documents"
	"stockcore/internal/infrastructure/storage/postgres"
)

// Tables of the document kinds.
const (
	GoodsReceiptsTable   = "doc_goods_receipts"
	PickingListsTable    = "doc_picking_lists"
	ShipmentsTable       = "doc_shipments"
	TransfersTable       = "doc_transfers"
	PurchaseReturnsTable = "doc_purchase_returns"
)

// Repo implements documents.Repository for one document kind.
type Repo[D documents.Record] struct {
	txm     *postgres.TxManager
	table   string
	entity  string
	newDoc  func() D
	builder squirrel.StatementBuilderType
}

// NewRepo creates a repository over table; newDoc returns an empty document to decode into.
func NewRepo[D documents.Record](txm *postgres.TxManager, table, entity string, newDoc func() D) *Repo[D] {
	return &Repo[D]{
		txm:     txm,
		table:   table,
		entity:  entity,
		newDoc:  newDoc,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var _ documents.Repository[documents.Record] = (*Repo[documents.Record])(nil)

func (r *Repo[D]) Create(ctx context.Context, doc D) error {
	h := doc.Header()
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", r.entity, err)
	}

	sql, args, err := r.builder.Insert(r.table).
		Columns("id", "number", "status", "version", "warehouse_ids", "body", "created_at", "updated_at").
		Values(h.ID, h.Number, doc.StatusName(), h.Version, doc.Warehouses(), body, h.CreatedAt, h.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if postgres.IsUniqueViolation(err) {
			return apperror.NewDuplicate(r.entity, "number", h.Number).WithCause(err)
		}
		return fmt.Errorf("insert %s: %w", r.table, err)
	}
	return nil
}

func (r *Repo[D]) Get(ctx context.Context, docID id.ID) (D, error) {
	var zero D
	sql, args, err := r.builder.Select("body").
		From(r.table).
		Where(squirrel.Eq{"id": docID}).
		ToSql()
	if err != nil {
		return zero, fmt.Errorf("build query: %w", err)
	}

	var body []byte
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&body); err != nil {
		if pgxscan.NotFound(err) {
			return zero, apperror.NewNotFound(r.entity, docID)
		}
		return zero, fmt.Errorf("get %s: %w", r.table, err)
	}
	return r.decode(body)
}

// Update writes the document when the stored version still matches and
// advances the version on the document.
func (r *Repo[D]) Update(ctx context.Context, doc D) error {
	h := doc.Header()
	expected := h.Version

	h.Version++
	body, err := json.Marshal(doc)
	if err != nil {
		h.Version = expected
		return fmt.Errorf("encode %s: %w", r.entity, err)
	}

	sql, args, err := r.builder.Update(r.table).
		Set("status", doc.StatusName()).
		Set("version", h.Version).
		Set("warehouse_ids", doc.Warehouses()).
		Set("body", body).
		Set("updated_at", h.UpdatedAt).
		Where(squirrel.Eq{"id": h.ID, "version": expected}).
		ToSql()
	if err != nil {
		h.Version = expected
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		h.Version = expected
		return fmt.Errorf("update %s: %w", r.table, err)
	}
	if tag.RowsAffected() == 0 {
		h.Version = expected
		return apperror.NewConcurrentModification(r.entity, h.ID)
	}
	return nil
}

// List returns documents in creation order.
func (r *Repo[D]) List(ctx context.Context, f domain.ListFilter) (domain.ListResult[D], error) {
	result := domain.ListResult[D]{Limit: f.Limit, Offset: f.Offset}

	where := squirrel.And{}
	if len(f.Statuses) > 0 {
		where = append(where, squirrel.Eq{"status": f.Statuses})
	}
	if f.WarehouseID != nil {
		where = append(where, squirrel.Expr("? = ANY(warehouse_ids)", *f.WarehouseID))
	}
	if f.Search != "" {
		where = append(where, squirrel.Like{"number": f.Search + "%"})
	}

	countSQL, countArgs, err := r.builder.Select("COUNT(*)").From(r.table).Where(where).ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}
	querier := r.txm.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count %s: %w", r.table, err)
	}

	q := r.builder.Select("body").From(r.table).Where(where).OrderBy("created_at", "id")
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	rows, err := querier.Query(ctx, sql, args...)
	if err != nil {
		return result, fmt.Errorf("list %s: %w", r.table, err)
	}
	bodies, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return result, fmt.Errorf("scan %s: %w", r.table, err)
	}
	result.Items = make([]D, 0, len(bodies))
	for _, body := range bodies {
		doc, err := r.decode(body)
		if err != nil {
			return result, err
		}
		result.Items = append(result.Items, doc)
	}
	return result, nil
}

func (r *Repo[D]) decode(body []byte) (D, error) {
	doc := r.newDoc()
	if err := json.Unmarshal(body, doc); err != nil {
		var zero D
		return zero, fmt.Errorf("decode %s: %w", r.entity, err)
	}
	return doc, nil
}
