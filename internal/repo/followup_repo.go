// Package repo – follow-up repository.
//
// The followups table mirrors the claim-ledger pattern applied to delayed
// nudges: the unique index on (shop_id, message_id, link_id) is the
// authoritative exactly-once guard, claimed before the provider call fires.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/domain"
)

// CreateFollowup claims the follow-up for (shopID, messageID, linkID).
// ErrDuplicate means an overlapping run already claimed it.
func CreateFollowup(ctx context.Context, db *gorm.DB, shopID, messageID, linkID string, at time.Time) (*domain.Followup, error) {
	f := &domain.Followup{
		ID:        uuid.NewString(),
		ShopID:    shopID,
		MessageID: messageID,
		LinkID:    linkID,
		SentAt:    at.UTC(),
	}
	if err := db.WithContext(ctx).Create(f).Error; err != nil {
		if isDuplicateErr(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return f, nil
}

// HasFollowup reports whether a follow-up exists for the triple. Advisory
// pre-check only; CreateFollowup is the atomic guard.
func HasFollowup(ctx context.Context, db *gorm.DB, shopID, messageID, linkID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Followup{}).
		Where("shop_id = ? AND message_id = ? AND link_id = ?", shopID, messageID, linkID).
		Count(&n).Error
	return n > 0, err
}

// ListFollowupsForMessages returns follow-ups for shopID whose message id is
// in messageIDs. Empty input yields an empty result without a query.
func ListFollowupsForMessages(ctx context.Context, db *gorm.DB, shopID string, messageIDs []string) ([]domain.Followup, error) {
	if len(messageIDs) == 0 {
		return []domain.Followup{}, nil
	}
	var out []domain.Followup
	err := db.WithContext(ctx).
		Where("shop_id = ? AND message_id IN ?", shopID, messageIDs).
		Find(&out).Error
	return out, err
}
