// Package repo – shop repository.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the thin-repository approach:
// no business logic, only CRUD persistence and query composition.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/domain"
)

// EnsureShop returns the shop for the given store domain, creating it on
// first install and reactivating (not recreating) it on reinstall.
func EnsureShop(ctx context.Context, db *gorm.DB, storeDomain, plan string) (*domain.Shop, error) {
	var s domain.Shop
	err := db.WithContext(ctx).Where("domain = ?", storeDomain).First(&s).Error
	switch {
	case err == nil:
		if !s.Active {
			res := db.WithContext(ctx).Model(&domain.Shop{}).
				Where("id = ?", s.ID).
				Update("active", true)
			if res.Error != nil {
				return nil, res.Error
			}
			s.Active = true
		}
		return &s, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		s = domain.Shop{
			ID:         uuid.NewString(),
			Domain:     storeDomain,
			Plan:       plan,
			UsageMonth: time.Now().UTC().Format("2006-01"),
			Active:     true,
			CreatedAt:  time.Now().UTC(),
		}
		if cerr := db.WithContext(ctx).Create(&s).Error; cerr != nil {
			// Concurrent installs race on the domain index; the loser
			// re-reads the winner's row.
			if isDuplicateErr(cerr) {
				var again domain.Shop
				if rerr := db.WithContext(ctx).Where("domain = ?", storeDomain).First(&again).Error; rerr == nil {
					return &again, nil
				}
			}
			return nil, cerr
		}
		return &s, nil
	default:
		return nil, err
	}
}

// GetShop fetches a shop by id, or ErrNotFound.
func GetShop(ctx context.Context, db *gorm.DB, id string) (*domain.Shop, error) {
	var s domain.Shop
	if err := db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// GetShopByDomain fetches a shop by its store domain, or ErrNotFound.
func GetShopByDomain(ctx context.Context, db *gorm.DB, storeDomain string) (*domain.Shop, error) {
	var s domain.Shop
	if err := db.WithContext(ctx).Where("domain = ?", storeDomain).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// RepairUsageMonth lazily rolls the usage counter over to the current
// calendar month. Called on first read each month (read-repair, no
// background job). Returns the possibly-updated shop.
func RepairUsageMonth(ctx context.Context, db *gorm.DB, s *domain.Shop, now time.Time) (*domain.Shop, error) {
	month := now.UTC().Format("2006-01")
	if s.UsageMonth == month {
		return s, nil
	}
	res := db.WithContext(ctx).Model(&domain.Shop{}).
		Where("id = ? AND usage_month = ?", s.ID, s.UsageMonth).
		Updates(map[string]any{"usage_count": 0, "usage_month": month})
	if res.Error != nil {
		return nil, res.Error
	}
	// RowsAffected == 0 means another reader repaired it first; either way
	// the row now carries the current month.
	s.UsageCount = 0
	s.UsageMonth = month
	return s, nil
}

// IncrementUsage bumps the shop's monthly reply counter by one.
func IncrementUsage(ctx context.Context, db *gorm.DB, shopID string) error {
	res := db.WithContext(ctx).Model(&domain.Shop{}).
		Where("id = ?", shopID).
		Update("usage_count", gorm.Expr("usage_count + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeactivateShop marks a shop inactive (uninstall). The row is retained so a
// reinstall reactivates it with history intact.
func DeactivateShop(ctx context.Context, db *gorm.DB, shopID string) error {
	res := db.WithContext(ctx).Model(&domain.Shop{}).
		Where("id = ?", shopID).
		Update("active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListActiveShopsOnPlans returns active shops whose plan is in plans,
// ordered by creation time. Used by the follow-up scheduler to select
// entitled tenants.
func ListActiveShopsOnPlans(ctx context.Context, db *gorm.DB, plans []string) ([]domain.Shop, error) {
	var out []domain.Shop
	err := db.WithContext(ctx).
		Where("active = ? AND plan IN ?", true, plans).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}
