package services

import (
	"context"
	"testing"

	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/domain"
)

func TestApplyPlanGate(t *testing.T) {
	full := func() *domain.Settings {
		return &domain.Settings{
			DMAutomationEnabled:      true,
			CommentAutomationEnabled: true,
			FollowupEnabled:          true,
		}
	}

	s := full()
	ApplyPlanGate(domain.PlanFree, s)
	if !s.DMAutomationEnabled || s.CommentAutomationEnabled || s.FollowupEnabled {
		t.Fatalf("free gate: %+v", s)
	}

	s = full()
	ApplyPlanGate(domain.PlanGrowth, s)
	if !s.DMAutomationEnabled || !s.CommentAutomationEnabled || s.FollowupEnabled {
		t.Fatalf("growth gate: %+v", s)
	}

	s = full()
	ApplyPlanGate(domain.PlanPro, s)
	if !s.DMAutomationEnabled || !s.CommentAutomationEnabled || !s.FollowupEnabled {
		t.Fatalf("pro gate: %+v", s)
	}
}

func TestSettingsGet_GatesStoredRow(t *testing.T) {
	db := newTestDB(t)
	shop := seedShop(t, db, "acme.myshopify.com", domain.PlanFree)
	svc := &SettingsService{DB: db}
	ctx := context.Background()

	// Simulate a downgrade: the stored row still carries pro-tier toggles.
	db.Create(&domain.Settings{
		ShopID:                   shop.ID,
		DMAutomationEnabled:      true,
		CommentAutomationEnabled: true,
		FollowupEnabled:          true,
		Tone:                     ToneExpert,
	})

	settings, gotShop, err := svc.Get(ctx, shop.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if gotShop.ID != shop.ID {
		t.Fatalf("wrong shop: %+v", gotShop)
	}
	if settings.CommentAutomationEnabled || settings.FollowupEnabled {
		t.Fatalf("free tier observed ungated settings: %+v", settings)
	}
	if settings.Tone != ToneExpert {
		t.Fatalf("tone must pass through: %+v", settings)
	}

	if _, _, err := svc.Get(ctx, "missing"); err != ErrShopNotFound {
		t.Fatalf("missing shop: got %v", err)
	}
}

func TestSettingsUpdate_GatesBeforeWrite(t *testing.T) {
	db := newTestDB(t)
	shop := seedShop(t, db, "acme.myshopify.com", domain.PlanGrowth)
	svc := &SettingsService{DB: db}
	ctx := context.Background()

	updated, err := svc.Update(ctx, shop.ID, &domain.Settings{
		DMAutomationEnabled:      true,
		CommentAutomationEnabled: true,
		FollowupEnabled:          true, // growth tier: must be forced off
		Tone:                     ToneCasual,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.FollowupEnabled {
		t.Fatalf("gate not applied before write: %+v", updated)
	}
	if !updated.CommentAutomationEnabled {
		t.Fatalf("growth tier allows comment automation: %+v", updated)
	}

	// The stored row also carries the gated value.
	var stored domain.Settings
	db.Where("shop_id = ?", shop.ID).First(&stored)
	if stored.FollowupEnabled {
		t.Fatalf("stored row escaped the gate: %+v", stored)
	}
}

func TestSettingsUpdate_Validation(t *testing.T) {
	db := newTestDB(t)
	shop := seedShop(t, db, "acme.myshopify.com", domain.PlanPro)
	svc := &SettingsService{DB: db}
	ctx := context.Background()

	if _, err := svc.Update(ctx, shop.ID, &domain.Settings{Tone: "shouty"}); err != ErrInvalidTone {
		t.Fatalf("bad tone: got %v", err)
	}

	// Empty tone defaults to friendly.
	got, err := svc.Update(ctx, shop.ID, &domain.Settings{DMAutomationEnabled: true})
	if err != nil || got.Tone != ToneFriendly {
		t.Fatalf("default tone: %+v err=%v", got, err)
	}

	if _, err := svc.Update(ctx, "missing", &domain.Settings{Tone: ToneFriendly}); err != ErrShopNotFound {
		t.Fatalf("missing shop: got %v", err)
	}
}
