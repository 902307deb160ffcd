// Package services – FollowupService
//
// This file implements the delayed-nudge batch: one follow-up DM per thread
// that received a checkout link and shows no click signal, sent 23–24 hours
// after the last inbound message, only for tenants both entitled (plan tier)
// and opted in (settings).
//
// The batch is idempotent across overlapping runs. The advisory pre-checks
// (existing follow-up, existing click) keep the run cheap, but the
// authoritative exactly-once guard is the unique insert into the followups
// table, claimed before the provider call fires. It is the same
// claim-then-act pattern the reply ledger uses.
//
// A per-message failure is caught and logged with shop/message context and
// never aborts sibling messages or tenants.
package services

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/domain"
	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/repo"
)

// Follow-up tones.
const (
	ToneFriendly = "friendly"
	ToneExpert   = "expert"
	ToneCasual   = "casual"
)

// followupTemplates holds the nudge copy per tone. The %s is replaced with
// the shop's display name.
var followupTemplates = map[string]string{
	ToneFriendly: "Hey! Just checking in — the checkout link we sent is still waiting for you. Let us know if any questions came up! — %s",
	ToneExpert:   "Following up on the product link we shared yesterday. It remains available should you wish to proceed; we are happy to advise further. — %s",
	ToneCasual:   "Still thinking it over? No rush — your link is right there when you're ready. — %s",
}

// RunStats summarizes one scheduler batch.
type RunStats struct {
	Tenants  int
	Eligible int
	Sent     int
	Skipped  int
	Failed   int
}

// FollowupService selects eligible threads and sends at most one follow-up
// per (shop, message, link) triple.
type FollowupService struct {
	DB       *gorm.DB
	Provider Provider

	// Now is injectable for window tests; defaults to time.Now.
	Now func() time.Time

	// WindowFarAge / WindowNearAge bound the half-open eligibility window
	// [now-far, now-near). Defaults: 24h and 23h, a one-hour sliding
	// window so an hourly batch sees each message exactly once.
	WindowFarAge  time.Duration
	WindowNearAge time.Duration
}

func (s *FollowupService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *FollowupService) window(now time.Time) (from, to time.Time) {
	far, near := s.WindowFarAge, s.WindowNearAge
	if far <= 0 {
		far = 24 * time.Hour
	}
	if near <= 0 {
		near = 23 * time.Hour
	}
	return now.Add(-far), now.Add(-near)
}

// Run executes one batch over all entitled, opted-in tenants. Errors
// selecting tenants abort the run; everything below that level is isolated
// per tenant and per message.
func (s *FollowupService) Run(ctx context.Context) (RunStats, error) {
	tr := otel.Tracer("services/FollowupService")
	ctx, span := tr.Start(ctx, "Run")
	defer span.End()

	var stats RunStats
	now := s.now().UTC()

	// Follow-ups are a top-tier feature: lower tiers are gated off in
	// settings regardless of what is stored (see ApplyPlanGate).
	shops, err := repo.ListActiveShopsOnPlans(ctx, s.DB, []string{domain.PlanPro})
	if err != nil {
		return stats, err
	}

	for _, shop := range shops {
		if err := s.runShop(ctx, &shop, now, &stats); err != nil {
			stats.Failed++
			log.Error().Err(err).
				Str("shop_id", shop.ID).
				Str("shop_domain", shop.Domain).
				Msg("follow-up batch failed for tenant")
		}
	}

	span.SetAttributes(
		attribute.Int("followup.tenants", stats.Tenants),
		attribute.Int("followup.sent", stats.Sent),
		attribute.Int("followup.failed", stats.Failed),
	)
	followupRuns.Inc()
	followupsSent.Add(float64(stats.Sent))
	return stats, nil
}

// runShop processes one tenant's eligibility window.
func (s *FollowupService) runShop(ctx context.Context, shop *domain.Shop, now time.Time, stats *RunStats) error {
	settings, err := repo.GetSettings(ctx, s.DB, shop.ID)
	if err != nil {
		return err
	}
	ApplyPlanGate(shop.Plan, settings)
	if !settings.FollowupEnabled {
		return nil
	}
	stats.Tenants++

	from, to := s.window(now)
	msgs, err := repo.ListFollowupWindow(ctx, s.DB, shop.ID, from, to)
	if err != nil {
		return err
	}

	for i := range msgs {
		msg := &msgs[i]
		if err := s.processMessage(ctx, shop, settings, msg, now, stats); err != nil {
			stats.Failed++
			log.Error().Err(err).
				Str("shop_id", shop.ID).
				Str("message_id", msg.ID).
				Msg("follow-up failed for message")
		}
	}
	return nil
}

// processMessage decides and executes the nudge for a single thread.
func (s *FollowupService) processMessage(ctx context.Context, shop *domain.Shop, settings *domain.Settings, msg *domain.Message, now time.Time, stats *RunStats) error {
	link, err := repo.LatestLinkForMessage(ctx, s.DB, msg.ID)
	if err != nil {
		if err == repo.ErrNotFound {
			return nil // never replied with a link; nothing to nudge
		}
		return err
	}
	stats.Eligible++

	// Advisory pre-checks. Cheap, race-prone, and fine: the followup
	// insert below is what actually decides.
	if done, err := repo.HasFollowup(ctx, s.DB, shop.ID, msg.ID, link.LinkID); err != nil {
		return err
	} else if done {
		stats.Skipped++
		return nil
	}
	if clicked, err := repo.HasClick(ctx, s.DB, link.LinkID); err != nil {
		return err
	} else if clicked {
		stats.Skipped++ // conversion already happened; no nudge needed
		return nil
	}

	// Claim-then-act: the unique triple insert fires before the provider
	// call, so overlapping runs converge to one send.
	if _, err := repo.CreateFollowup(ctx, s.DB, shop.ID, msg.ID, link.LinkID, now); err != nil {
		if err == repo.ErrDuplicate {
			stats.Skipped++
			return nil
		}
		return err
	}

	text := FollowupText(settings.Tone, settings.CustomInstruction, shop.Domain)
	if err := s.Provider.SendDM(ctx, shop.Domain, msg.SenderID, text); err != nil {
		// The claim row survives a failed send (no retry semantics by
		// design); surface it so the batch counts the failure.
		return err
	}
	stats.Sent++
	return nil
}

// FollowupText renders the nudge for a tone, optionally prefixed with the
// tenant's custom instruction. Unknown tones fall back to friendly.
func FollowupText(tone, customInstruction, shopDomain string) string {
	tmpl, ok := followupTemplates[tone]
	if !ok {
		tmpl = followupTemplates[ToneFriendly]
	}
	text := strings.Replace(tmpl, "%s", shopDisplayName(shopDomain), 1)
	if ci := strings.TrimSpace(customInstruction); ci != "" {
		text = ci + "\n" + text
	}
	return text
}

// shopDisplayName turns "acme-store.myshopify.com" into "Acme Store" for
// the template sign-off.
func shopDisplayName(shopDomain string) string {
	name := shopDomain
	if i := strings.IndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	return cases.Title(language.English).String(name)
}
