// Package repo – per-shop settings repository. Plan gating is a service
// concern (services.ApplyPlanGate); this file only persists the stored row.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/domain"
)

// GetSettings returns the stored settings for shopID, falling back to
// defaults (DM automation on, everything else off) when no row exists yet.
func GetSettings(ctx context.Context, db *gorm.DB, shopID string) (*domain.Settings, error) {
	var s domain.Settings
	err := db.WithContext(ctx).Where("shop_id = ?", shopID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &domain.Settings{
			ShopID:              shopID,
			DMAutomationEnabled: true,
			Tone:                "friendly",
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// SaveSettings upserts the settings row for s.ShopID.
func SaveSettings(ctx context.Context, db *gorm.DB, s *domain.Settings) error {
	s.UpdatedAt = time.Now().UTC()
	var existing domain.Settings
	err := db.WithContext(ctx).Where("shop_id = ?", s.ShopID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.CreatedAt = s.UpdatedAt
		if cerr := db.WithContext(ctx).Create(s).Error; cerr != nil {
			if isDuplicateErr(cerr) {
				// Concurrent first save; fall through to the update path.
				return db.WithContext(ctx).Model(&domain.Settings{}).
					Where("shop_id = ?", s.ShopID).
					Updates(settingsColumns(s)).Error
			}
			return cerr
		}
		return nil
	}
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Model(&domain.Settings{}).
		Where("shop_id = ?", s.ShopID).
		Updates(settingsColumns(s)).Error
}

// settingsColumns spells the updatable columns out so zero-valued booleans
// are written (gorm's struct Updates skips zero values).
func settingsColumns(s *domain.Settings) map[string]any {
	return map[string]any{
		"dm_automation_enabled":      s.DMAutomationEnabled,
		"comment_automation_enabled": s.CommentAutomationEnabled,
		"followup_enabled":           s.FollowupEnabled,
		"tone":                       s.Tone,
		"custom_instruction":         s.CustomInstruction,
		"updated_at":                 s.UpdatedAt,
	}
}
