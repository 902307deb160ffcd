package services

import (
	"context"
	"testing"
	"time"

	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/domain"
	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/repo"
)

func TestProcessDue_DeliversAndMarksSent(t *testing.T) {
	db := newTestDB(t)
	shop := seedShop(t, db, "acme.myshopify.com", domain.PlanFree)
	ctx := context.Background()

	item, _ := repo.Enqueue(ctx, db, shop.ID, "ig_9", "your link")
	p := &fakeProvider{}
	svc := &QueueService{DB: db, Provider: p}

	stats, err := svc.ProcessDue(ctx, 10)
	if err != nil {
		t.Fatalf("ProcessDue: %v", err)
	}
	if stats.Taken != 1 || stats.Sent != 1 || stats.Failed != 0 {
		t.Fatalf("stats: %+v", stats)
	}
	if p.count() != 1 || p.sends[0].ShopDomain != "acme.myshopify.com" || p.sends[0].RecipientID != "ig_9" {
		t.Fatalf("provider call: %+v", p.sends)
	}

	var got domain.OutboundQueueItem
	db.First(&got, "id = ?", item.ID)
	if got.Status != domain.QueueSent {
		t.Fatalf("status = %q", got.Status)
	}

	// Nothing left to do.
	stats, _ = svc.ProcessDue(ctx, 10)
	if stats.Taken != 0 {
		t.Fatalf("second run took items: %+v", stats)
	}
}

func TestProcessDue_RetryWithBackoffThenTerminalFailure(t *testing.T) {
	db := newTestDB(t)
	shop := seedShop(t, db, "acme.myshopify.com", domain.PlanFree)
	ctx := context.Background()

	item, _ := repo.Enqueue(ctx, db, shop.ID, "ig_9", "text")

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	p := &fakeProvider{}
	p.setFail(true)
	svc := &QueueService{
		DB:          db,
		Provider:    p,
		MaxAttempts: 2,
		BaseBackoff: time.Minute,
		Now:         func() time.Time { return now },
	}

	// First attempt: retried with backoff.
	stats, err := svc.ProcessDue(ctx, 10)
	if err != nil {
		t.Fatalf("ProcessDue: %v", err)
	}
	if stats.Retried != 1 || stats.Failed != 0 {
		t.Fatalf("first failure stats: %+v", stats)
	}

	var got domain.OutboundQueueItem
	db.First(&got, "id = ?", item.ID)
	if got.Status != domain.QueuePending || got.Attempts != 1 {
		t.Fatalf("retry bookkeeping: %+v", got)
	}
	if !got.NotBefore.After(now) {
		t.Fatalf("no backoff applied: %+v", got)
	}

	// Not due until the backoff elapses.
	stats, _ = svc.ProcessDue(ctx, 10)
	if stats.Taken != 0 {
		t.Fatalf("backed-off item processed early: %+v", stats)
	}

	// Second attempt after the backoff: exhausts MaxAttempts, terminal.
	svc.Now = func() time.Time { return now.Add(2 * time.Minute) }
	stats, _ = svc.ProcessDue(ctx, 10)
	if stats.Failed != 1 {
		t.Fatalf("terminal failure stats: %+v", stats)
	}
	db.First(&got, "id = ?", item.ID)
	if got.Status != domain.QueueFailed || got.Attempts != 2 {
		t.Fatalf("terminal bookkeeping: %+v", got)
	}
	if got.LastError == nil || *got.LastError == "" {
		t.Fatalf("last error not recorded: %+v", got)
	}

	// Terminal means terminal: a recovered provider changes nothing.
	p.setFail(false)
	stats, _ = svc.ProcessDue(ctx, 10)
	if stats.Taken != 0 || p.count() != 0 {
		t.Fatalf("failed item was retried: %+v", stats)
	}
}

func TestQueueBackoffDoubles(t *testing.T) {
	svc := &QueueService{BaseBackoff: time.Minute}
	if svc.backoff(1) != time.Minute {
		t.Fatalf("backoff(1) = %v", svc.backoff(1))
	}
	if svc.backoff(2) != 2*time.Minute {
		t.Fatalf("backoff(2) = %v", svc.backoff(2))
	}
	if svc.backoff(4) != 8*time.Minute {
		t.Fatalf("backoff(4) = %v", svc.backoff(4))
	}
}

func TestQueueOverviewAndListValidation(t *testing.T) {
	db := newTestDB(t)
	svc := &QueueService{DB: db, Provider: &fakeProvider{}}
	ctx := context.Background()

	if _, err := svc.Overview(ctx, repo.QueueFilter{Status: "bogus"}); err != ErrInvalidStatus {
		t.Fatalf("Overview bad status: got %v", err)
	}
	if _, err := svc.ListItems(ctx, repo.QueueFilter{Status: "bogus"}, 10); err != ErrInvalidStatus {
		t.Fatalf("ListItems bad status: got %v", err)
	}

	ov, err := svc.Overview(ctx, repo.QueueFilter{Status: domain.QueuePending})
	if err != nil || ov.Total != 0 {
		t.Fatalf("empty overview: %+v err=%v", ov, err)
	}
}
