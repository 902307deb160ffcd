// Package services – SettingsService and plan gating.
//
// Plan gating is applied on BOTH read and write: the stored row may carry
// toggles the tenant's tier no longer permits (e.g. after a downgrade), and
// gating on read means those are silently off without a migration. Gating
// on write keeps the stored row honest going forward.
package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/domain"
	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/repo"
)

// ApplyPlanGate forces higher-tier-only toggles off for lower tiers,
// mutating s in place:
//
//	free:   comment automation off, follow-ups off
//	growth: follow-ups off
//	pro:    nothing forced
func ApplyPlanGate(plan string, s *domain.Settings) {
	switch plan {
	case domain.PlanFree:
		s.CommentAutomationEnabled = false
		s.FollowupEnabled = false
	case domain.PlanGrowth:
		s.FollowupEnabled = false
	}
}

// SettingsService reads and writes per-shop automation settings with plan
// gating applied.
type SettingsService struct {
	DB *gorm.DB
}

// Get returns the effective settings for shopID: stored values with the
// shop's plan gate applied. The shop read also lazily repairs the monthly
// usage counter (first read of a new month resets it).
func (s *SettingsService) Get(ctx context.Context, shopID string) (*domain.Settings, *domain.Shop, error) {
	shop, err := repo.GetShop(ctx, s.DB, shopID)
	if err != nil {
		if err == repo.ErrNotFound {
			return nil, nil, ErrShopNotFound
		}
		return nil, nil, err
	}
	shop, err = repo.RepairUsageMonth(ctx, s.DB, shop, time.Now())
	if err != nil {
		return nil, nil, err
	}

	settings, err := repo.GetSettings(ctx, s.DB, shopID)
	if err != nil {
		return nil, nil, err
	}
	ApplyPlanGate(shop.Plan, settings)
	return settings, shop, nil
}

// Update validates and persists new settings for shopID. The plan gate is
// applied before the write, so a free-tier tenant storing
// followup_enabled=true simply stores false.
func (s *SettingsService) Update(ctx context.Context, shopID string, in *domain.Settings) (*domain.Settings, error) {
	switch in.Tone {
	case ToneFriendly, ToneExpert, ToneCasual:
	case "":
		in.Tone = ToneFriendly
	default:
		return nil, ErrInvalidTone
	}

	shop, err := repo.GetShop(ctx, s.DB, shopID)
	if err != nil {
		if err == repo.ErrNotFound {
			return nil, ErrShopNotFound
		}
		return nil, err
	}

	in.ShopID = shopID
	ApplyPlanGate(shop.Plan, in)
	if err := repo.SaveSettings(ctx, s.DB, in); err != nil {
		return nil, err
	}
	return in, nil
}
