// Package services – IntakeService
//
// This file wires the inbound data flow together: webhook event → idempotent
// Message upsert → classifier output stored → claim ledger decides whether
// this process replies → claimed replies land in the outbound queue.
//
// The intake path must tolerate at-least-once webhook delivery end to end:
// the Message upsert converges duplicates to one row, and the claim insert
// converges concurrent deliveries to one reply decision.
package services

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/domain"
	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/repo"
)

// intentPurchase is the classifier intent that triggers an automated reply
// with a checkout link.
const intentPurchase = "purchase_intent"

// replyTemplates holds the auto-reply copy per tone.
var replyTemplates = map[string]string{
	ToneFriendly: "Thanks for reaching out! Here's a checkout link so you can grab it right away:",
	ToneExpert:   "Thank you for your interest. You can complete your purchase directly through the link below:",
	ToneCasual:   "Love it — here's your link, go get it:",
}

// InboundEvent is a parsed inbound DM or comment webhook, with the external
// classifier's output attached when it has already run.
type InboundEvent struct {
	ShopDomain string
	Channel    string // dm | comment
	ExternalID string
	SenderID   string
	Text       string
	OccurredAt time.Time

	// Classifier output; Intent empty means unclassified.
	Intent     string
	Confidence float64
	Sentiment  string
}

// IntakeResult reports what the intake pipeline did with one event.
type IntakeResult struct {
	MessageID string `json:"message_id"`
	Created   bool   `json:"created"` // false when a duplicate delivery hit the existing row
	Replied   bool   `json:"replied"` // true when this call won the claim
	LinkID    string `json:"link_id,omitempty"`
}

// IntakeService runs the inbound pipeline.
type IntakeService struct {
	DB     *gorm.DB
	Claims *ClaimService

	// MinConfidence gates automated replies on classifier confidence.
	// Defaults to 0.7.
	MinConfidence float64
}

func (s *IntakeService) minConfidence() float64 {
	if s.MinConfidence > 0 {
		return s.MinConfidence
	}
	return 0.7
}

// HandleInbound processes one webhook event. Duplicate deliveries are safe:
// the Message upsert and the claim insert each converge on their unique
// indexes, so repeated calls return Replied=false once someone has won.
func (s *IntakeService) HandleInbound(ctx context.Context, ev InboundEvent) (*IntakeResult, error) {
	tr := otel.Tracer("services/IntakeService")
	ctx, span := tr.Start(ctx, "HandleInbound",
		trace.WithAttributes(
			attribute.String("shop.domain", ev.ShopDomain),
			attribute.String("channel", ev.Channel),
		),
	)
	defer span.End()

	if ev.Channel != domain.ChannelDM && ev.Channel != domain.ChannelComment {
		return nil, ErrInvalidChannel
	}

	shop, err := repo.GetShopByDomain(ctx, s.DB, ev.ShopDomain)
	if err != nil {
		if err == repo.ErrNotFound {
			return nil, ErrShopNotFound
		}
		return nil, err
	}
	if !shop.Active {
		return nil, ErrShopInactive
	}

	at := ev.OccurredAt
	if at.IsZero() {
		at = time.Now()
	}
	msg, created, err := repo.UpsertInbound(ctx, s.DB, shop.ID, ev.Channel, ev.ExternalID, ev.SenderID, ev.Text, at)
	if err != nil {
		return nil, err
	}
	res := &IntakeResult{MessageID: msg.ID, Created: created}

	if ev.Intent != "" {
		if err := repo.UpdateClassification(ctx, s.DB, msg.ID, ev.Intent, ev.Confidence, ev.Sentiment); err != nil {
			// Classification is enrichment, not a gate on acking the
			// webhook; log and continue.
			log.Warn().Err(err).
				Str("shop_id", shop.ID).
				Str("message_id", msg.ID).
				Msg("classification update failed")
		}
	}

	if !s.shouldReply(shop, ev) {
		return res, nil
	}

	settings, err := repo.GetSettings(ctx, s.DB, shop.ID)
	if err != nil {
		return nil, err
	}
	ApplyPlanGate(shop.Plan, settings)
	if ev.Channel == domain.ChannelDM && !settings.DMAutomationEnabled {
		return res, nil
	}
	if ev.Channel == domain.ChannelComment && !settings.CommentAutomationEnabled {
		return res, nil
	}

	claim, err := s.Claims.Claim(ctx, ClaimInput{
		ShopID:         shop.ID,
		Channel:        ev.Channel,
		ExternalID:     ev.ExternalID,
		MessageID:      msg.ID,
		RecipientID:    ev.SenderID,
		ReplyText:      replyText(settings.Tone, settings.CustomInstruction),
		DestinationURL: "https://" + shop.Domain + "/cart",
	})
	if err != nil {
		return nil, err
	}
	res.Replied = claim.Claimed
	res.LinkID = claim.LinkID
	span.SetAttributes(attribute.Bool("intake.replied", res.Replied))
	return res, nil
}

// shouldReply gates the reply decision on classifier output.
func (s *IntakeService) shouldReply(shop *domain.Shop, ev InboundEvent) bool {
	return ev.Intent == intentPurchase && ev.Confidence >= s.minConfidence()
}

// replyText renders the auto-reply for a tone, optionally prefixed with the
// tenant's custom instruction. Unknown tones fall back to friendly.
func replyText(tone, customInstruction string) string {
	text, ok := replyTemplates[tone]
	if !ok {
		text = replyTemplates[ToneFriendly]
	}
	if ci := strings.TrimSpace(customInstruction); ci != "" {
		text = ci + "\n" + text
	}
	return text
}
