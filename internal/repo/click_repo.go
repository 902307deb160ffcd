// Package repo – click and attribution repositories. Both tables are
// append-only; writes never update and reads never lock.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/domain"
)

// CreateClick appends a click event for linkID. userAgent and ip are
// optional and stored as NULL when empty.
func CreateClick(ctx context.Context, db *gorm.DB, linkID, userAgent, ip string) (*domain.Click, error) {
	c := &domain.Click{
		LinkID:    linkID,
		CreatedAt: time.Now().UTC(),
	}
	if userAgent != "" {
		c.UserAgent = &userAgent
	}
	if ip != "" {
		c.IP = &ip
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// HasClick reports whether any click exists for linkID.
func HasClick(ctx context.Context, db *gorm.DB, linkID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Click{}).
		Where("link_id = ?", linkID).
		Count(&n).Error
	return n > 0, err
}

// ListClicksForLinks returns all clicks whose link id is in linkIDs.
func ListClicksForLinks(ctx context.Context, db *gorm.DB, linkIDs []string) ([]domain.Click, error) {
	if len(linkIDs) == 0 {
		return []domain.Click{}, nil
	}
	var out []domain.Click
	err := db.WithContext(ctx).
		Where("link_id IN ?", linkIDs).
		Find(&out).Error
	return out, err
}

// CreateAttribution appends a purchase attribution record. linkID and
// channel are optional; empty strings are stored as NULL.
func CreateAttribution(ctx context.Context, db *gorm.DB, shopID, orderID, linkID, channel string, amount float64, currency string) (*domain.Attribution, error) {
	a := &domain.Attribution{
		ID:        uuid.NewString(),
		ShopID:    shopID,
		OrderID:   orderID,
		Amount:    amount,
		Currency:  currency,
		CreatedAt: time.Now().UTC(),
	}
	if linkID != "" {
		a.LinkID = &linkID
	}
	if channel != "" {
		a.Channel = &channel
	}
	if err := db.WithContext(ctx).Create(a).Error; err != nil {
		return nil, err
	}
	return a, nil
}

// ListAttributionsForLinks returns attribution rows for shopID whose link id
// is in linkIDs.
func ListAttributionsForLinks(ctx context.Context, db *gorm.DB, shopID string, linkIDs []string) ([]domain.Attribution, error) {
	if len(linkIDs) == 0 {
		return []domain.Attribution{}, nil
	}
	var out []domain.Attribution
	err := db.WithContext(ctx).
		Where("shop_id = ? AND link_id IN ?", shopID, linkIDs).
		Find(&out).Error
	return out, err
}
