// Package repo – reply-claim ledger repository.
//
// The links_sent table owns the invariant "at most one committed reply per
// inbound event". The insert attempt IS the concurrency control: the
// per-shop unique index on link_id decides the winner between concurrent
// deliveries, and a constraint violation maps to ErrDuplicate ("someone
// already claimed this, do nothing further"). No read-then-write sequence
// may replace it; the existence checks below are cheap pre-checks only.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/domain"
)

// CreateLinkSent attempts the single-row ledger insert. It returns
// ErrDuplicate when (shopID, linkID) already exists; any other error is a
// transient store failure that callers must treat as "do not send".
func CreateLinkSent(ctx context.Context, db *gorm.DB, row *domain.LinkSent) error {
	if err := db.WithContext(ctx).Create(row).Error; err != nil {
		if isDuplicateErr(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// HasLinkForMessage reports whether any ledger row references messageID.
// Race-prone by nature; never the sole dedup mechanism.
func HasLinkForMessage(ctx context.Context, db *gorm.DB, messageID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.LinkSent{}).
		Where("message_id = ?", messageID).
		Count(&n).Error
	return n > 0, err
}

// HasLink reports whether a ledger row exists for (shopID, linkID). Because
// the link id is derived deterministically from the external id, this check
// survives duplicate Message rows for the same external event.
func HasLink(ctx context.Context, db *gorm.DB, shopID, linkID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.LinkSent{}).
		Where("shop_id = ? AND link_id = ?", shopID, linkID).
		Count(&n).Error
	return n > 0, err
}

// GetLinkByID fetches the ledger row carrying linkID (any shop), or
// ErrNotFound. Used by the redirect endpoint to resolve the destination.
func GetLinkByID(ctx context.Context, db *gorm.DB, linkID string) (*domain.LinkSent, error) {
	var row domain.LinkSent
	if err := db.WithContext(ctx).Where("link_id = ?", linkID).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// LatestLinkForMessage returns the most recent ledger row referencing
// messageID, tie-broken by highest row id. ErrNotFound when none exists.
func LatestLinkForMessage(ctx context.Context, db *gorm.DB, messageID string) (*domain.LinkSent, error) {
	var row domain.LinkSent
	err := db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("id desc").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ListLinksSentInRange returns ledger rows for shopID with sent_at in
// [from, to), oldest first.
func ListLinksSentInRange(ctx context.Context, db *gorm.DB, shopID string, from, to time.Time) ([]domain.LinkSent, error) {
	var out []domain.LinkSent
	err := db.WithContext(ctx).
		Where("shop_id = ? AND sent_at >= ? AND sent_at < ?", shopID, from.UTC(), to.UTC()).
		Order("sent_at asc").
		Find(&out).Error
	return out, err
}
