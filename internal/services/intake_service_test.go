package services

import (
	"context"
	"testing"
	"time"

	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/domain"
	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/repo"
	"gorm.io/gorm"
)

func newIntake(db *gorm.DB) *IntakeService {
	return &IntakeService{DB: db, Claims: &ClaimService{DB: db}}
}

func buyEvent(shopDomain, externalID string) InboundEvent {
	return InboundEvent{
		ShopDomain: shopDomain,
		Channel:    domain.ChannelDM,
		ExternalID: externalID,
		SenderID:   "ig_9",
		Text:       "how do I buy this?",
		OccurredAt: time.Now().UTC(),
		Intent:     "purchase_intent",
		Confidence: 0.92,
		Sentiment:  "positive",
	}
}

func TestHandleInbound_RepliesOnceAcrossDuplicates(t *testing.T) {
	db := newTestDB(t)
	seedShop(t, db, "acme.myshopify.com", domain.PlanFree)
	svc := newIntake(db)
	ctx := context.Background()

	first, err := svc.HandleInbound(ctx, buyEvent("acme.myshopify.com", "mid.1"))
	if err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if !first.Created || !first.Replied || first.LinkID != "msg_mid.1" {
		t.Fatalf("first delivery: %+v", first)
	}

	second, err := svc.HandleInbound(ctx, buyEvent("acme.myshopify.com", "mid.1"))
	if err != nil {
		t.Fatalf("duplicate delivery: %v", err)
	}
	if second.Created || second.Replied {
		t.Fatalf("duplicate delivery acted twice: %+v", second)
	}
	if second.MessageID != first.MessageID {
		t.Fatal("duplicate delivery produced a second message row")
	}

	// Exactly one ledger row and one queued reply.
	var links int64
	db.Model(&domain.LinkSent{}).Count(&links)
	if links != 1 {
		t.Fatalf("ledger rows = %d; want 1", links)
	}
	items, _ := repo.ListItems(ctx, db, repo.QueueFilter{}, 10)
	if len(items) != 1 {
		t.Fatalf("queue items = %d; want 1", len(items))
	}
}

func TestHandleInbound_ClassifierGates(t *testing.T) {
	db := newTestDB(t)
	seedShop(t, db, "acme.myshopify.com", domain.PlanFree)
	svc := newIntake(db)
	ctx := context.Background()

	// Low confidence: recorded but no reply.
	ev := buyEvent("acme.myshopify.com", "low-conf")
	ev.Confidence = 0.5
	res, err := svc.HandleInbound(ctx, ev)
	if err != nil || res.Replied {
		t.Fatalf("low confidence replied: %+v err=%v", res, err)
	}

	// Wrong intent: recorded but no reply.
	ev = buyEvent("acme.myshopify.com", "question")
	ev.Intent = "question"
	res, err = svc.HandleInbound(ctx, ev)
	if err != nil || res.Replied {
		t.Fatalf("non-purchase intent replied: %+v err=%v", res, err)
	}

	// Classification stored either way.
	msg, _ := repo.GetMessage(ctx, db, res.MessageID)
	if msg.AIIntent == nil || *msg.AIIntent != "question" {
		t.Fatalf("classification not stored: %+v", msg)
	}
}

func TestHandleInbound_ChannelTogglesAndPlanGate(t *testing.T) {
	db := newTestDB(t)
	// Free tier: comment automation is force-disabled even when stored on.
	shop := seedShop(t, db, "acme.myshopify.com", domain.PlanFree)
	err := repo.SaveSettings(context.Background(), db, &domain.Settings{
		ShopID:                   shop.ID,
		DMAutomationEnabled:      true,
		CommentAutomationEnabled: true,
		Tone:                     ToneFriendly,
	})
	if err != nil {
		t.Fatalf("seed settings: %v", err)
	}
	svc := newIntake(db)
	ctx := context.Background()

	ev := buyEvent("acme.myshopify.com", "c.1")
	ev.Channel = domain.ChannelComment
	res, err := svc.HandleInbound(ctx, ev)
	if err != nil || res.Replied {
		t.Fatalf("free tier replied to a comment: %+v err=%v", res, err)
	}

	// DM automation switched off: no reply on the dm channel either.
	err = repo.SaveSettings(ctx, db, &domain.Settings{ShopID: shop.ID, Tone: ToneFriendly})
	if err != nil {
		t.Fatalf("update settings: %v", err)
	}
	res, err = svc.HandleInbound(ctx, buyEvent("acme.myshopify.com", "mid.2"))
	if err != nil || res.Replied {
		t.Fatalf("disabled dm automation replied: %+v err=%v", res, err)
	}
}

func TestHandleInbound_TenantErrors(t *testing.T) {
	db := newTestDB(t)
	svc := newIntake(db)
	ctx := context.Background()

	if _, err := svc.HandleInbound(ctx, buyEvent("ghost.myshopify.com", "x")); err != ErrShopNotFound {
		t.Fatalf("unknown shop: got %v", err)
	}

	shop := seedShop(t, db, "gone.myshopify.com", domain.PlanFree)
	if err := repo.DeactivateShop(ctx, db, shop.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := svc.HandleInbound(ctx, buyEvent("gone.myshopify.com", "x")); err != ErrShopInactive {
		t.Fatalf("inactive shop: got %v", err)
	}

	ev := buyEvent("gone.myshopify.com", "x")
	ev.Channel = "story"
	if _, err := svc.HandleInbound(ctx, ev); err != ErrInvalidChannel {
		t.Fatalf("bad channel: got %v", err)
	}
}

func TestReplyText(t *testing.T) {
	if replyText(ToneCasual, "") != replyTemplates[ToneCasual] {
		t.Fatal("casual template not used")
	}
	got := replyText(ToneFriendly, "Be brief.")
	if got != "Be brief.\n"+replyTemplates[ToneFriendly] {
		t.Fatalf("custom instruction placement: %q", got)
	}
	if replyText("unknown", "") != replyTemplates[ToneFriendly] {
		t.Fatal("unknown tone did not fall back")
	}
}
