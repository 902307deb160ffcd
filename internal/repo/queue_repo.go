// Package repo – outbound delivery queue repository.
//
// Queue rows are created when a reply is claimed and mutated only by the
// queue worker. Transitions are guarded UPDATEs (status in the WHERE
// clause), so two overlapping worker runs cannot both take the same item:
// the loser sees RowsAffected == 0 and moves on.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/domain"
)

// QueueFilter narrows Overview and ListItems to a shop and/or status.
// Zero values mean "no filter".
type QueueFilter struct {
	ShopID string
	Status string
}

// QueueOverview is the aggregation returned by Overview: total rows,
// per-status counts, and the most recent update across matching rows.
type QueueOverview struct {
	Total         int64            `json:"total"`
	ByStatus      map[string]int64 `json:"by_status"`
	LastUpdatedAt *time.Time       `json:"last_updated_at,omitempty"`
}

// Enqueue creates a pending queue item for delivery to recipientID.
func Enqueue(ctx context.Context, db *gorm.DB, shopID, recipientID, text string) (*domain.OutboundQueueItem, error) {
	now := time.Now().UTC()
	item := &domain.OutboundQueueItem{
		ID:          uuid.NewString(),
		ShopID:      shopID,
		RecipientID: recipientID,
		Text:        text,
		Status:      domain.QueuePending,
		NotBefore:   now,
		CreatedAt:   now,
	}
	if err := db.WithContext(ctx).Create(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}

// ListDue returns up to limit pending items whose not_before has passed,
// oldest first.
func ListDue(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]domain.OutboundQueueItem, error) {
	var out []domain.OutboundQueueItem
	err := db.WithContext(ctx).
		Where("status = ? AND not_before <= ?", domain.QueuePending, now.UTC()).
		Order("created_at asc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// TakeProcessing transitions a pending item to processing. The guarded
// UPDATE is the claim: false means another worker took it first.
func TakeProcessing(ctx context.Context, db *gorm.DB, id string) (bool, error) {
	res := db.WithContext(ctx).Model(&domain.OutboundQueueItem{}).
		Where("id = ? AND status = ?", id, domain.QueuePending).
		Update("status", domain.QueueProcessing)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkSent transitions a processing item to its sent terminal state.
func MarkSent(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Model(&domain.OutboundQueueItem{}).
		Where("id = ? AND status = ?", id, domain.QueueProcessing).
		Update("status", domain.QueueSent)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkRetry records a failed attempt and returns the item to pending with
// the next eligible retry time.
func MarkRetry(ctx context.Context, db *gorm.DB, id string, attempts int, notBefore time.Time, lastError string) error {
	res := db.WithContext(ctx).Model(&domain.OutboundQueueItem{}).
		Where("id = ? AND status = ?", id, domain.QueueProcessing).
		Updates(map[string]any{
			"status":     domain.QueuePending,
			"attempts":   attempts,
			"not_before": notBefore.UTC(),
			"last_error": lastError,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkFailed transitions a processing item to its failed terminal state,
// retaining attempt bookkeeping for the introspection API.
func MarkFailed(ctx context.Context, db *gorm.DB, id string, attempts int, lastError string) error {
	res := db.WithContext(ctx).Model(&domain.OutboundQueueItem{}).
		Where("id = ? AND status = ?", id, domain.QueueProcessing).
		Updates(map[string]any{
			"status":     domain.QueueFailed,
			"attempts":   attempts,
			"last_error": lastError,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Overview returns aggregate queue metadata for the filter. Read-only
// count queries; safe to call frequently.
func Overview(ctx context.Context, db *gorm.DB, f QueueFilter) (*QueueOverview, error) {
	base := func() *gorm.DB {
		q := db.WithContext(ctx).Model(&domain.OutboundQueueItem{})
		if f.ShopID != "" {
			q = q.Where("shop_id = ?", f.ShopID)
		}
		if f.Status != "" {
			q = q.Where("status = ?", f.Status)
		}
		return q
	}

	ov := &QueueOverview{ByStatus: map[string]int64{}}
	if err := base().Count(&ov.Total).Error; err != nil {
		return nil, err
	}
	if ov.Total == 0 {
		return ov, nil
	}

	var rows []struct {
		Status string
		N      int64
	}
	if err := base().Select("status, count(*) as n").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		ov.ByStatus[r.Status] = r.N
	}

	// Latest updated_at (avoid MAX() -> TEXT in SQLite).
	var row struct {
		UpdatedAt time.Time
	}
	if err := base().Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return nil, err
	}
	ov.LastUpdatedAt = &row.UpdatedAt
	return ov, nil
}

// ListItems returns up to limit queue items for the filter, most recent
// first.
func ListItems(ctx context.Context, db *gorm.DB, f QueueFilter, limit int) ([]domain.OutboundQueueItem, error) {
	q := db.WithContext(ctx).Model(&domain.OutboundQueueItem{})
	if f.ShopID != "" {
		q = q.Where("shop_id = ?", f.ShopID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var out []domain.OutboundQueueItem
	err := q.Order("created_at desc").Limit(limit).Find(&out).Error
	return out, err
}
