package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/domain"
	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/repo"
	"gorm.io/gorm"
)

// seedThread creates an inbound DM with a claimed reply link at the given
// message age relative to now.
func seedThread(t *testing.T, db *gorm.DB, shop *domain.Shop, externalID string, now time.Time, age time.Duration) (*domain.Message, string) {
	t.Helper()
	ctx := context.Background()

	msg, _, err := repo.UpsertInbound(ctx, db, shop.ID, domain.ChannelDM, externalID, "sender-"+externalID, "want it", now.Add(-age))
	if err != nil {
		t.Fatalf("seed message: %v", err)
	}
	linkID := DeriveClaimKey(domain.ChannelDM, externalID)
	row := &domain.LinkSent{
		ShopID:    shop.ID,
		MessageID: &msg.ID,
		LinkID:    linkID,
		ReplyText: "link sent",
		SentAt:    now.Add(-age),
	}
	if err := repo.CreateLinkSent(ctx, db, row); err != nil {
		t.Fatalf("seed link: %v", err)
	}
	return msg, linkID
}

// enableFollowups stores opted-in settings for the shop.
func enableFollowups(t *testing.T, db *gorm.DB, shopID string) {
	t.Helper()
	err := repo.SaveSettings(context.Background(), db, &domain.Settings{
		ShopID:              shopID,
		DMAutomationEnabled: true,
		FollowupEnabled:     true,
		Tone:                ToneFriendly,
	})
	if err != nil {
		t.Fatalf("seed settings: %v", err)
	}
}

func newFollowupService(db *gorm.DB, p Provider, now time.Time) *FollowupService {
	return &FollowupService{
		DB:       db,
		Provider: p,
		Now:      func() time.Time { return now },
	}
}

func TestFollowupRun_WindowBoundaries(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	shop := seedShop(t, db, "acme.myshopify.com", domain.PlanPro)
	enableFollowups(t, db, shop.ID)

	seedThread(t, db, shop, "in-window", now, 23*time.Hour+30*time.Minute) // eligible
	seedThread(t, db, shop, "too-fresh", now, 22*time.Hour)                // not yet
	seedThread(t, db, shop, "too-old", now, 25*time.Hour)                  // missed

	p := &fakeProvider{}
	stats, err := newFollowupService(db, p, now).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Sent != 1 || p.count() != 1 {
		t.Fatalf("sent=%d provider=%d; want 1 each (%+v)", stats.Sent, p.count(), stats)
	}
	if p.sends[0].RecipientID != "sender-in-window" {
		t.Fatalf("nudged the wrong thread: %+v", p.sends[0])
	}
}

func TestFollowupRun_ExactlyOnceAcrossRuns(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	shop := seedShop(t, db, "acme.myshopify.com", domain.PlanPro)
	enableFollowups(t, db, shop.ID)
	seedThread(t, db, shop, "once", now, 23*time.Hour+30*time.Minute)

	p := &fakeProvider{}
	svc := newFollowupService(db, p, now)

	for i := 0; i < 3; i++ {
		if _, err := svc.Run(context.Background()); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	if p.count() != 1 {
		t.Fatalf("provider sends = %d; want exactly 1", p.count())
	}
}

func TestFollowupRun_ClickSuppressesNudge(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	shop := seedShop(t, db, "acme.myshopify.com", domain.PlanPro)
	enableFollowups(t, db, shop.ID)
	_, linkID := seedThread(t, db, shop, "clicked", now, 23*time.Hour+30*time.Minute)

	if _, err := repo.CreateClick(context.Background(), db, linkID, "", ""); err != nil {
		t.Fatalf("seed click: %v", err)
	}

	p := &fakeProvider{}
	stats, err := newFollowupService(db, p, now).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if p.count() != 0 || stats.Skipped != 1 {
		t.Fatalf("clicked thread was nudged: provider=%d stats=%+v", p.count(), stats)
	}
}

func TestFollowupRun_NoLinkNoNudge(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	shop := seedShop(t, db, "acme.myshopify.com", domain.PlanPro)
	enableFollowups(t, db, shop.ID)

	// Message in window but never replied to with a link.
	_, _, err := repo.UpsertInbound(context.Background(), db, shop.ID, domain.ChannelDM, "silent", "s", "hmm", now.Add(-23*time.Hour-30*time.Minute))
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	p := &fakeProvider{}
	stats, err := newFollowupService(db, p, now).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if p.count() != 0 || stats.Eligible != 0 {
		t.Fatalf("unexpected nudge: provider=%d stats=%+v", p.count(), stats)
	}
}

func TestFollowupRun_PlanAndSettingsGate(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	// Growth tier stores followup_enabled=true but the plan gate wins.
	growth := seedShop(t, db, "growth.myshopify.com", domain.PlanGrowth)
	enableFollowups(t, db, growth.ID)
	seedThread(t, db, growth, "g1", now, 23*time.Hour+30*time.Minute)

	// Pro tier but opted out.
	optedOut := seedShop(t, db, "out.myshopify.com", domain.PlanPro)
	seedThread(t, db, optedOut, "o1", now, 23*time.Hour+30*time.Minute)

	p := &fakeProvider{}
	stats, err := newFollowupService(db, p, now).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if p.count() != 0 || stats.Sent != 0 {
		t.Fatalf("gated tenants were nudged: provider=%d stats=%+v", p.count(), stats)
	}
}

func TestFollowupRun_FailedSendKeepsClaim(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	shop := seedShop(t, db, "acme.myshopify.com", domain.PlanPro)
	enableFollowups(t, db, shop.ID)
	msg, linkID := seedThread(t, db, shop, "flaky", now, 23*time.Hour+30*time.Minute)

	p := &fakeProvider{}
	p.setFail(true)
	svc := newFollowupService(db, p, now)

	stats, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Failed != 1 {
		t.Fatalf("failed send not counted: %+v", stats)
	}

	// The claim row survives, so the provider recovering does not cause a
	// second nudge.
	if done, _ := repo.HasFollowup(context.Background(), db, shop.ID, msg.ID, linkID); !done {
		t.Fatal("claim row missing after failed send")
	}
	p.setFail(false)
	_, _ = svc.Run(context.Background())
	if p.count() != 0 {
		t.Fatalf("recovered provider re-sent a claimed nudge: %d", p.count())
	}
}

func TestFollowupText(t *testing.T) {
	text := FollowupText(ToneExpert, "", "acme-store.myshopify.com")
	if !strings.Contains(text, "Acme Store") {
		t.Fatalf("display name missing: %q", text)
	}

	withCI := FollowupText(ToneCasual, "Mention the weekend sale.", "acme.myshopify.com")
	if !strings.HasPrefix(withCI, "Mention the weekend sale.\n") {
		t.Fatalf("custom instruction not prefixed: %q", withCI)
	}

	// Unknown tone falls back to friendly.
	fallback := FollowupText("sarcastic", "", "acme.myshopify.com")
	if fallback != FollowupText(ToneFriendly, "", "acme.myshopify.com") {
		t.Fatalf("unknown tone did not fall back: %q", fallback)
	}
}
