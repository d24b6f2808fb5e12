package batch

import (
	"context"
	"time"

	"stockcore/internal/domain/events"
	"stockcore/pkg/logger"
)

// NotifyExpiry publishes BATCH_EXPIRING for active batches expiring within
// days and BATCH_EXPIRED for active batches already past their date.
func (r *Registry) NotifyExpiry(ctx context.Context, pub events.Publisher, days int) (expiring, expired int, err error) {
	soon, err := r.Expiring(ctx, days)
	if err != nil {
		return 0, 0, err
	}
	past, err := r.Expired(ctx)
	if err != nil {
		return 0, 0, err
	}

	now := r.now()
	publish := func(t events.Type, b Batch) {
		remaining, _ := b.DaysUntilExpiration(now)
		e, err := events.New(t, "batch", b.ID, events.BatchExpiryPayload{
			BatchID:         b.ID,
			BatchNumber:     b.BatchNumber,
			ProductID:       b.ProductID,
			WarehouseID:     b.WarehouseID,
			ExpiresAt:       *b.ExpiresAt,
			DaysRemaining:   remaining,
			CurrentQuantity: b.CurrentQuantity,
		})
		if err != nil {
			logger.Error(ctx, "build expiry event", "batch_id", b.ID, "error", err)
			return
		}
		pub.Publish(ctx, e)
	}

	for _, b := range soon {
		publish(events.TypeBatchExpiring, b)
	}
	for _, b := range past {
		publish(events.TypeBatchExpired, b)
	}
	return len(soon), len(past), nil
}

// RunExpiryScan calls NotifyExpiry every interval until ctx ends.
func (r *Registry) RunExpiryScan(ctx context.Context, pub events.Publisher, interval time.Duration, days int) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		expiring, expired, err := r.NotifyExpiry(ctx, pub, days)
		if err != nil {
			logger.Error(ctx, "batch expiry scan failed", "error", err)
		} else if expiring+expired > 0 {
			logger.Info(ctx, "batch expiry scan", "expiring", expiring, "expired", expired)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
