// Package services – QueueService
//
// This file implements the outbound delivery worker and the queue
// introspection API. The worker moves items pending → processing →
// {sent | failed} with attempt counting and exponential backoff; the
// guarded repo transitions make overlapping worker runs safe without any
// in-process coordination.
package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/domain"
	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/repo"
)

// ProcessStats summarizes one worker batch.
type ProcessStats struct {
	Taken   int
	Sent    int
	Retried int
	Failed  int
}

// QueueService delivers queued replies and exposes queue introspection.
type QueueService struct {
	DB       *gorm.DB
	Provider Provider

	// MaxAttempts bounds delivery retries before an item goes to its
	// failed terminal state. Defaults to 5.
	MaxAttempts int

	// BaseBackoff is the first retry delay; each subsequent failure
	// doubles it. Defaults to 1 minute.
	BaseBackoff time.Duration

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

func (s *QueueService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *QueueService) maxAttempts() int {
	if s.MaxAttempts > 0 {
		return s.MaxAttempts
	}
	return 5
}

// backoff returns the delay before the n-th retry (attempts already made).
func (s *QueueService) backoff(attempts int) time.Duration {
	base := s.BaseBackoff
	if base <= 0 {
		base = time.Minute
	}
	d := base
	for i := 1; i < attempts; i++ {
		d *= 2
	}
	return d
}

// ProcessDue runs one delivery batch of up to limit due items. Each item is
// claimed via the guarded pending→processing transition; items another
// worker claimed first are skipped silently.
func (s *QueueService) ProcessDue(ctx context.Context, limit int) (ProcessStats, error) {
	tr := otel.Tracer("services/QueueService")
	ctx, span := tr.Start(ctx, "ProcessDue")
	defer span.End()

	var stats ProcessStats
	if limit <= 0 {
		limit = 50
	}
	now := s.now().UTC()

	items, err := repo.ListDue(ctx, s.DB, now, limit)
	if err != nil {
		return stats, err
	}

	for i := range items {
		item := &items[i]
		taken, err := repo.TakeProcessing(ctx, s.DB, item.ID)
		if err != nil {
			log.Error().Err(err).Str("item_id", item.ID).Msg("queue take failed")
			continue
		}
		if !taken {
			continue
		}
		stats.Taken++
		s.deliver(ctx, item, &stats)
	}

	span.SetAttributes(
		attribute.Int("queue.taken", stats.Taken),
		attribute.Int("queue.sent", stats.Sent),
		attribute.Int("queue.failed", stats.Failed),
	)
	return stats, nil
}

// deliver sends one claimed item and records the outcome. Lookup of the
// shop domain and the provider call are both per-item; a failure here never
// aborts the batch.
func (s *QueueService) deliver(ctx context.Context, item *domain.OutboundQueueItem, stats *ProcessStats) {
	shop, err := repo.GetShop(ctx, s.DB, item.ShopID)
	if err != nil {
		s.recordFailure(ctx, item, stats, "shop lookup: "+err.Error())
		return
	}

	if err := s.Provider.SendDM(ctx, shop.Domain, item.RecipientID, item.Text); err != nil {
		s.recordFailure(ctx, item, stats, err.Error())
		return
	}

	if err := repo.MarkSent(ctx, s.DB, item.ID); err != nil {
		log.Error().Err(err).
			Str("shop_id", item.ShopID).
			Str("item_id", item.ID).
			Msg("queue mark sent failed")
		return
	}
	stats.Sent++
	queueDeliveries.WithLabelValues("sent").Inc()
}

// recordFailure applies retry bookkeeping: back to pending with backoff, or
// failed terminal once attempts are exhausted.
func (s *QueueService) recordFailure(ctx context.Context, item *domain.OutboundQueueItem, stats *ProcessStats, reason string) {
	attempts := item.Attempts + 1
	if attempts >= s.maxAttempts() {
		if err := repo.MarkFailed(ctx, s.DB, item.ID, attempts, reason); err != nil {
			log.Error().Err(err).Str("item_id", item.ID).Msg("queue mark failed failed")
			return
		}
		stats.Failed++
		queueDeliveries.WithLabelValues("failed").Inc()
		log.Warn().
			Str("shop_id", item.ShopID).
			Str("item_id", item.ID).
			Int("attempts", attempts).
			Str("reason", reason).
			Msg("outbound delivery exhausted retries")
		return
	}

	notBefore := s.now().UTC().Add(s.backoff(attempts))
	if err := repo.MarkRetry(ctx, s.DB, item.ID, attempts, notBefore, reason); err != nil {
		log.Error().Err(err).Str("item_id", item.ID).Msg("queue mark retry failed")
		return
	}
	stats.Retried++
	queueDeliveries.WithLabelValues("retried").Inc()
}

// Overview returns the aggregation for the introspection API. An invalid
// status filter is rejected before touching the store.
func (s *QueueService) Overview(ctx context.Context, f repo.QueueFilter) (*repo.QueueOverview, error) {
	if err := validateStatus(f.Status); err != nil {
		return nil, err
	}
	return repo.Overview(ctx, s.DB, f)
}

// ListItems returns a bounded, most-recent-first page of queue items.
func (s *QueueService) ListItems(ctx context.Context, f repo.QueueFilter, limit int) ([]domain.OutboundQueueItem, error) {
	if err := validateStatus(f.Status); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	return repo.ListItems(ctx, s.DB, f, limit)
}

// validateStatus accepts the empty filter or one of the queue states.
func validateStatus(status string) error {
	switch status {
	case "", domain.QueuePending, domain.QueueProcessing, domain.QueueSent, domain.QueueFailed:
		return nil
	default:
		return ErrInvalidStatus
	}
}
