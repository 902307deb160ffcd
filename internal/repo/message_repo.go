// Package repo – inbound message repository.
//
// Messages are near-immutable: the row is created once per
// (shop_id, external_id) and the only allowed post-hoc update is the
// classifier output. Duplicate webhook delivery must resolve to the same
// row, which UpsertInbound guarantees via the unique index rather than a
// read-then-write sequence.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/domain"
)

// UpsertInbound inserts a Message row for (shopID, externalID), or returns
// the existing row when a duplicate delivery races or repeats. The boolean
// reports whether this call created the row.
func UpsertInbound(ctx context.Context, db *gorm.DB, shopID, channel, externalID, senderID, text string, at time.Time) (*domain.Message, bool, error) {
	m := &domain.Message{
		ID:                uuid.NewString(),
		ShopID:            shopID,
		Channel:           channel,
		ExternalID:        externalID,
		SenderID:          senderID,
		Text:              text,
		LastUserMessageAt: at.UTC(),
		CreatedAt:         time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		if !isDuplicateErr(err) {
			return nil, false, err
		}
		var existing domain.Message
		if gerr := db.WithContext(ctx).
			Where("shop_id = ? AND external_id = ?", shopID, externalID).
			First(&existing).Error; gerr != nil {
			return nil, false, gerr
		}
		return &existing, false, nil
	}
	return m, true, nil
}

// GetMessage fetches a message by id, or ErrNotFound.
func GetMessage(ctx context.Context, db *gorm.DB, id string) (*domain.Message, error) {
	var m domain.Message
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateClassification fills in the classifier output for a message.
// This is the one permitted mutation of an inbound message row.
func UpdateClassification(ctx context.Context, db *gorm.DB, id string, intent string, confidence float64, sentiment string) error {
	res := db.WithContext(ctx).Model(&domain.Message{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"ai_intent":     intent,
			"ai_confidence": confidence,
			"ai_sentiment":  sentiment,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListFollowupWindow returns DM-channel messages for shopID whose
// last_user_message_at falls in the half-open window [from, to). The caller
// passes a one-hour sliding window so a tenant processed hourly sees each
// eligible message exactly once under normal operation.
func ListFollowupWindow(ctx context.Context, db *gorm.DB, shopID string, from, to time.Time) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("shop_id = ? AND channel = ? AND last_user_message_at >= ? AND last_user_message_at < ?",
			shopID, domain.ChannelDM, from.UTC(), to.UTC()).
		Order("last_user_message_at asc").
		Find(&out).Error
	return out, err
}

// ListMessagesInRange returns all messages for shopID created in
// [from, to), oldest first. Used by the analytics aggregator.
func ListMessagesInRange(ctx context.Context, db *gorm.DB, shopID string, from, to time.Time) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("shop_id = ? AND created_at >= ? AND created_at < ?", shopID, from.UTC(), to.UTC()).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}
