package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"stockcore/internal/core/id"
	"stockcore/internal/domain/events"
)

// CompressionAlgo specifies how an audit payload is stored.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// AuditEntry is one row of sys_audit: a document transition.
type AuditEntry struct {
	ID         id.ID     `db:"id" json:"id"`
	EntityType string    `db:"entity_type" json:"entityType"`
	EntityID   id.ID     `db:"entity_id" json:"entityId"`
	Event      string    `db:"event" json:"event"`
	FromStatus string    `db:"from_status" json:"fromStatus"`
	ToStatus   string    `db:"to_status" json:"toStatus"`
	ActorID    string    `db:"actor_id" json:"actorId"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`

	Changes           json.RawMessage `db:"changes" json:"changes,omitempty"`
	ChangesCompressed []byte          `db:"changes_compressed" json:"-"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo" json:"-"`
}

// AuditSink is the events.Sink that keeps an audit trail of document
// transitions. Payloads above the threshold are stored zstd-compressed.
type AuditSink struct {
	txm               *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

func NewAuditSink(txm *TxManager) (*AuditSink, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &AuditSink{
		txm:               txm,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: 4 * 1024,
	}, nil
}

var _ events.Sink = (*AuditSink)(nil)

func (*AuditSink) Name() string { return "audit" }

// Deliver records DOCUMENT_TRANSITIONED events and ignores the rest.
func (s *AuditSink) Deliver(ctx context.Context, e events.Event) error {
	if e.Type != events.TypeDocumentTransitioned {
		return nil
	}
	var p events.TransitionPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return fmt.Errorf("decode transition payload: %w", err)
	}

	entry := AuditEntry{
		ID:              e.ID,
		EntityType:      p.DocumentType,
		EntityID:        p.DocumentID,
		Event:           p.Event,
		FromStatus:      p.From,
		ToStatus:        p.To,
		ActorID:         p.ActorID,
		CreatedAt:       e.OccurredAt,
		Changes:         e.Payload,
		CompressionAlgo: CompressionNone,
	}
	if len(entry.Changes) > s.compressThreshold {
		entry.ChangesCompressed = s.encoder.EncodeAll(entry.Changes, nil)
		entry.Changes = nil
		entry.CompressionAlgo = CompressionZstd
	}

	_, err := s.txm.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO sys_audit (
			id, entity_type, entity_id, event, from_status, to_status, actor_id,
			changes, changes_compressed, compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`,
		entry.ID, entry.EntityType, entry.EntityID, entry.Event, entry.FromStatus, entry.ToStatus, entry.ActorID,
		[]byte(entry.Changes), entry.ChangesCompressed, entry.CompressionAlgo, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// History returns the newest transitions of a document first.
func (s *AuditSink) History(ctx context.Context, entityID id.ID, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.txm.GetQuerier(ctx).Query(ctx, `
		SELECT id, entity_type, entity_id, event, from_status, to_status, actor_id,
		       changes, changes_compressed, compression_algo, created_at
		FROM sys_audit
		WHERE entity_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var (
			e       AuditEntry
			changes []byte
		)
		err := rows.Scan(
			&e.ID, &e.EntityType, &e.EntityID, &e.Event, &e.FromStatus, &e.ToStatus, &e.ActorID,
			&changes, &e.ChangesCompressed, &e.CompressionAlgo, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Changes = changes

		if e.CompressionAlgo == CompressionZstd && len(e.ChangesCompressed) > 0 {
			plain, err := s.decoder.DecodeAll(e.ChangesCompressed, nil)
			if err != nil {
				return nil, fmt.Errorf("decompress changes: %w", err)
			}
			e.Changes = plain
			e.ChangesCompressed = nil
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
