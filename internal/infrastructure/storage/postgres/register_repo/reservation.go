package register_repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/entity"
	"stockcore/internal/core/id"
	"stockcore/internal/domain/reservation"
	"stockcore/internal/infrastructure/storage/postgres"
)

const reservationsTable = "reg_reservations"

// HandleRepo implements reservation.HandleRepository. Lines are stored as a
// JSONB array in plan order.
type HandleRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

func NewHandleRepo(txm *postgres.TxManager) *HandleRepo {
	return &HandleRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var _ reservation.HandleRepository = (*HandleRepo)(nil)

type handleRow struct {
	ID             id.ID                    `db:"id"`
	Version        int                      `db:"version"`
	DocumentType   string                   `db:"document_type"`
	DocumentID     id.ID                    `db:"document_id"`
	DocumentNumber string                   `db:"document_number"`
	Status         reservation.HandleStatus `db:"status"`
	Lines          []byte                   `db:"lines"`
	CreatedAt      time.Time                `db:"created_at"`
	UpdatedAt      time.Time                `db:"updated_at"`
}

func (r *HandleRepo) Create(ctx context.Context, h *reservation.Handle) error {
	lines, err := json.Marshal(h.Lines)
	if err != nil {
		return fmt.Errorf("encode reservation lines: %w", err)
	}
	sql, args, err := r.builder.Insert(reservationsTable).
		Columns("id", "version", "document_type", "document_id", "document_number",
			"status", "lines", "created_at", "updated_at").
		Values(h.ID, h.Version, h.Reference.Type, h.Reference.ID, h.Reference.Number,
			h.Status, lines, h.CreatedAt, h.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.Translate(fmt.Errorf("insert reservation: %w", err))
	}
	return nil
}

// Update applies only when the stored version matches h.Version.
func (r *HandleRepo) Update(ctx context.Context, h *reservation.Handle) error {
	lines, err := json.Marshal(h.Lines)
	if err != nil {
		return fmt.Errorf("encode reservation lines: %w", err)
	}
	sql, args, err := r.builder.Update(reservationsTable).
		Set("version", squirrel.Expr("version + 1")).
		Set("status", h.Status).
		Set("lines", lines).
		Set("updated_at", h.UpdatedAt).
		Where(squirrel.Eq{"id": h.ID, "version": h.Version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update reservation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("reservation", h.ID)
	}
	h.Version++
	return nil
}

func (r *HandleRepo) Get(ctx context.Context, handleID id.ID) (*reservation.Handle, error) {
	sql, args, err := r.builder.Select("id", "version", "document_type", "document_id", "document_number",
		"status", "lines", "created_at", "updated_at").
		From(reservationsTable).
		Where(squirrel.Eq{"id": handleID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var row handleRow
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("reservation", handleID)
		}
		return nil, fmt.Errorf("get reservation: %w", err)
	}

	h := &reservation.Handle{
		BaseEntity: entity.BaseEntity{ID: row.ID, Version: row.Version},
		Reference:  entity.DocumentRef{Type: row.DocumentType, ID: row.DocumentID, Number: row.DocumentNumber},
		Status:     row.Status,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
	if err := json.Unmarshal(row.Lines, &h.Lines); err != nil {
		return nil, fmt.Errorf("decode reservation lines: %w", err)
	}
	return h, nil
}
