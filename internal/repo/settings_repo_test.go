package repo

import (
	"context"
	"testing"

	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/domain"
)

func TestGetSettings_DefaultsWhenMissing(t *testing.T) {
	db := newTestDB(t)

	s, err := GetSettings(context.Background(), db, "shop-1")
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if !s.DMAutomationEnabled || s.CommentAutomationEnabled || s.FollowupEnabled {
		t.Fatalf("unexpected defaults: %+v", s)
	}
	if s.Tone != "friendly" {
		t.Fatalf("default tone = %q", s.Tone)
	}
}

func TestSaveSettings_UpsertAndZeroBooleans(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first := &domain.Settings{
		ShopID:                   "shop-1",
		DMAutomationEnabled:      true,
		CommentAutomationEnabled: true,
		FollowupEnabled:          true,
		Tone:                     "expert",
		CustomInstruction:        "mention free shipping",
	}
	if err := SaveSettings(ctx, db, first); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Turning everything off must persist the false values; a struct-based
	// update would silently skip them.
	second := &domain.Settings{ShopID: "shop-1", Tone: "casual"}
	if err := SaveSettings(ctx, db, second); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, _ := GetSettings(ctx, db, "shop-1")
	if got.DMAutomationEnabled || got.CommentAutomationEnabled || got.FollowupEnabled {
		t.Fatalf("false toggles not persisted: %+v", got)
	}
	if got.Tone != "casual" || got.CustomInstruction != "" {
		t.Fatalf("text fields not updated: %+v", got)
	}
}
