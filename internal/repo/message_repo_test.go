package repo

import (
	"context"
	"testing"
	"time"

	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/domain"
)

func TestUpsertInbound_DuplicateDeliveryConverges(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	at := time.Now().UTC()

	m1, created, err := UpsertInbound(ctx, db, "shop-1", domain.ChannelDM, "mid.1", "sender-1", "hello", at)
	if err != nil || !created {
		t.Fatalf("first upsert: created=%v err=%v", created, err)
	}

	m2, created, err := UpsertInbound(ctx, db, "shop-1", domain.ChannelDM, "mid.1", "sender-1", "hello again", at.Add(time.Minute))
	if err != nil {
		t.Fatalf("duplicate upsert: %v", err)
	}
	if created {
		t.Fatal("duplicate delivery reported created=true")
	}
	if m2.ID != m1.ID {
		t.Fatalf("duplicate delivery produced a second row: %s vs %s", m2.ID, m1.ID)
	}
	if m2.Text != "hello" {
		t.Fatalf("duplicate delivery mutated the original row: %q", m2.Text)
	}

	// Same external id under another shop is a distinct event.
	m3, created, err := UpsertInbound(ctx, db, "shop-2", domain.ChannelDM, "mid.1", "sender-1", "hi", at)
	if err != nil || !created || m3.ID == m1.ID {
		t.Fatalf("cross-shop upsert: created=%v err=%v", created, err)
	}
}

func TestUpdateClassification(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	m, _, _ := UpsertInbound(ctx, db, "shop-1", domain.ChannelDM, "mid.1", "s", "how much?", time.Now())
	if err := UpdateClassification(ctx, db, m.ID, "purchase_intent", 0.93, "positive"); err != nil {
		t.Fatalf("UpdateClassification: %v", err)
	}

	got, _ := GetMessage(ctx, db, m.ID)
	if got.AIIntent == nil || *got.AIIntent != "purchase_intent" {
		t.Fatalf("intent not stored: %+v", got)
	}
	if got.AIConfidence == nil || *got.AIConfidence != 0.93 {
		t.Fatalf("confidence not stored: %+v", got)
	}

	if err := UpdateClassification(ctx, db, "missing", "x", 0, ""); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListFollowupWindow_HalfOpenBounds(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	from := base
	to := base.Add(time.Hour)

	mkMsg := func(ext string, at time.Time, channel string) {
		if _, _, err := UpsertInbound(ctx, db, "shop-1", channel, ext, "s", "txt", at); err != nil {
			t.Fatalf("seed %s: %v", ext, err)
		}
	}

	mkMsg("at-from", from, domain.ChannelDM)                       // included: lower bound closed
	mkMsg("inside", from.Add(30*time.Minute), domain.ChannelDM)    // included
	mkMsg("at-to", to, domain.ChannelDM)                           // excluded: upper bound open
	mkMsg("before", from.Add(-time.Second), domain.ChannelDM)      // excluded
	mkMsg("comment", from.Add(time.Minute), domain.ChannelComment) // excluded: DM only

	got, err := ListFollowupWindow(ctx, db, "shop-1", from, to)
	if err != nil {
		t.Fatalf("ListFollowupWindow: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("window selected %d messages; want 2 (%+v)", len(got), got)
	}
	if got[0].ExternalID != "at-from" || got[1].ExternalID != "inside" {
		t.Fatalf("unexpected window ordering: %s, %s", got[0].ExternalID, got[1].ExternalID)
	}
}

func TestListMessagesInRange(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, _, _ = UpsertInbound(ctx, db, "shop-1", domain.ChannelDM, "a", "s", "x", time.Now())
	_, _, _ = UpsertInbound(ctx, db, "shop-1", domain.ChannelComment, "b", "s", "y", time.Now())
	_, _, _ = UpsertInbound(ctx, db, "shop-2", domain.ChannelDM, "c", "s", "z", time.Now())

	from := time.Now().Add(-time.Hour)
	to := time.Now().Add(time.Hour)
	got, err := ListMessagesInRange(ctx, db, "shop-1", from, to)
	if err != nil || len(got) != 2 {
		t.Fatalf("ListMessagesInRange: len=%d err=%v", len(got), err)
	}
}
