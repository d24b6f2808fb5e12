package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"

	"stockcore/internal/core/id"
	"stockcore/internal/domain/events"
	"stockcore/pkg/logger"
)

// OutboxStatus represents the state of an outbox message.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// OutboxMessage is one row of sys_outbox.
type OutboxMessage struct {
	ID            id.ID        `db:"id"`
	AggregateType string       `db:"aggregate_type"`
	AggregateID   id.ID        `db:"aggregate_id"`
	EventType     string       `db:"event_type"`
	Payload       []byte       `db:"payload"`
	Status        OutboxStatus `db:"status"`
	RetryCount    int          `db:"retry_count"`
	LastError     *string      `db:"last_error"`
	NextRetryAt   *time.Time   `db:"next_retry_at"`
	CreatedAt     time.Time    `db:"created_at"`
	PublishedAt   *time.Time   `db:"published_at"`
}

// Event rebuilds the domain event the message was written from. The event id
// is the message id, so consumers can deduplicate redeliveries.
func (m *OutboxMessage) Event() events.Event {
	return events.Event{
		ID:            m.ID,
		Type:          events.Type(m.EventType),
		AggregateType: m.AggregateType,
		AggregateID:   m.AggregateID,
		OccurredAt:    m.CreatedAt,
		Payload:       m.Payload,
	}
}

// OutboxSink is the events.Sink that persists events to sys_outbox for the
// worker's relay to deliver.
type OutboxSink struct {
	txm *TxManager
}

func NewOutboxSink(txm *TxManager) *OutboxSink {
	return &OutboxSink{txm: txm}
}

var _ events.Sink = (*OutboxSink)(nil)

func (*OutboxSink) Name() string { return "outbox" }

func (s *OutboxSink) Deliver(ctx context.Context, e events.Event) error {
	_, err := s.txm.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO sys_outbox (id, aggregate_type, aggregate_id, event_type, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`, e.ID, e.AggregateType, e.AggregateID, string(e.Type), []byte(e.Payload), OutboxStatusPending, e.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}
	return nil
}

// RelayConfig tunes the outbox relay.
type RelayConfig struct {
	BatchSize  int
	MaxRetries int
	// Backoff is multiplied by the attempt number
	Backoff time.Duration
}

func DefaultRelayConfig() RelayConfig {
	return RelayConfig{BatchSize: 100, MaxRetries: 5, Backoff: time.Minute}
}

// OutboxRelay reads pending messages and hands each to every sink. A message
// counts as published only when all sinks accept it.
type OutboxRelay struct {
	txm   *TxManager
	cfg   RelayConfig
	sinks []events.Sink
	now   func() time.Time
}

func NewOutboxRelay(txm *TxManager, cfg RelayConfig, sinks ...events.Sink) *OutboxRelay {
	def := DefaultRelayConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = def.Backoff
	}
	return &OutboxRelay{txm: txm, cfg: cfg, sinks: sinks, now: func() time.Time { return time.Now().UTC() }}
}

// ProcessBatch delivers one batch of due messages and returns how many were
// published. Rows stay locked (SKIP LOCKED) for the batch, so several workers
// can run side by side.
func (r *OutboxRelay) ProcessBatch(ctx context.Context) (int, error) {
	published := 0
	err := r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var messages []*OutboxMessage
		err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &messages, `
			SELECT id, aggregate_type, aggregate_id, event_type, payload, status,
			       retry_count, last_error, next_retry_at, created_at, published_at
			FROM sys_outbox
			WHERE status = $1
			  AND (next_retry_at IS NULL OR next_retry_at <= $2)
			ORDER BY created_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		`, OutboxStatusPending, r.now(), r.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("fetch outbox messages: %w", err)
		}

		for _, msg := range messages {
			ok, err := r.process(ctx, msg)
			if err != nil {
				return err
			}
			if ok {
				published++
			}
		}
		return nil
	})
	return published, err
}

func (r *OutboxRelay) process(ctx context.Context, msg *OutboxMessage) (bool, error) {
	e := msg.Event()
	for _, s := range r.sinks {
		if err := s.Deliver(ctx, e); err != nil {
			return false, r.fail(ctx, msg, s.Name(), err)
		}
	}

	_, err := r.txm.GetQuerier(ctx).Exec(ctx, `
		UPDATE sys_outbox SET status = $1, published_at = $2 WHERE id = $3
	`, OutboxStatusPublished, r.now(), msg.ID)
	if err != nil {
		return false, fmt.Errorf("mark published: %w", err)
	}
	return true, nil
}

func (r *OutboxRelay) fail(ctx context.Context, msg *OutboxMessage, sink string, cause error) error {
	attempt := msg.RetryCount + 1
	status := OutboxStatusPending
	if attempt >= r.cfg.MaxRetries {
		status = OutboxStatusFailed
	}
	logger.Warn(ctx, "outbox delivery failed",
		"message_id", msg.ID,
		"event_type", msg.EventType,
		"sink", sink,
		"attempt", attempt,
		"error", cause)

	errStr := sink + ": " + cause.Error()
	_, err := r.txm.GetQuerier(ctx).Exec(ctx, `
		UPDATE sys_outbox
		SET retry_count = $1, last_error = $2, next_retry_at = $3, status = $4
		WHERE id = $5
	`, attempt, errStr, r.now().Add(time.Duration(attempt)*r.cfg.Backoff), status, msg.ID)
	if err != nil {
		return fmt.Errorf("record delivery failure: %w", err)
	}
	return nil
}

// MoveToDLQ moves messages that exhausted their retries to sys_outbox_dlq.
func (r *OutboxRelay) MoveToDLQ(ctx context.Context) (int64, error) {
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, `
		WITH moved AS (
			DELETE FROM sys_outbox
			WHERE status = $1
			RETURNING id, aggregate_type, aggregate_id, event_type, payload, retry_count, last_error, created_at
		)
		INSERT INTO sys_outbox_dlq (id, aggregate_type, aggregate_id, event_type, payload, retry_count, failure_reason, created_at, failed_at)
		SELECT id, aggregate_type, aggregate_id, event_type, payload, retry_count, last_error, created_at, NOW()
		FROM moved
	`, OutboxStatusFailed)
	if err != nil {
		return 0, fmt.Errorf("move to DLQ: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Run polls until ctx ends.
func (r *OutboxRelay) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		n, err := r.ProcessBatch(ctx)
		if err != nil {
			logger.Error(ctx, "outbox batch failed", "error", err)
		} else if n > 0 {
			logger.Debug(ctx, "outbox batch published", "count", n)
		}
		if moved, err := r.MoveToDLQ(ctx); err != nil {
			logger.Error(ctx, "outbox DLQ move failed", "error", err)
		} else if moved > 0 {
			logger.Warn(ctx, "outbox messages moved to DLQ", "count", moved)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
