// Package services – ClaimService
//
// This file implements the claim ledger: the component that decides, exactly
// once, whether the current process may send an automated reply for a given
// inbound event, and records that decision durably before any external send
// happens.
//
// The contract is strict: the atomic single-row insert against the per-shop
// unique index on links_sent.link_id IS the concurrency control. A
// constraint conflict means "someone already claimed this"; any other insert
// failure fails closed: callers must not send on ambiguous failure.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// shop and link identifiers.
package services

import (
	"context"
	"net/url"
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

// DeriveClaimKey computes the deterministic link id for an inbound event.
// DMs derive "msg_<externalID>", comments "cmt_<externalID>". The key is a
// pure function of its inputs so the same external event always races on
// the same ledger row, regardless of how many Message rows it produced.
func DeriveClaimKey(channel, externalID string) string {
	if channel == domain.ChannelComment {
		return "cmt_" + externalID
	}
	return "msg_" + externalID
}

// BuildTrackedURL appends the attribution parameters (ref=link_<id> plus UTM
// fields) to a destination URL. The resolver on the purchase side reverses
// exactly this encoding.
func BuildTrackedURL(destination, linkID, channel string) string {
	u, err := url.Parse(destination)
	if err != nil {
		return destination
	}
	q := u.Query()
	q.Set("ref", "link_"+linkID)
	q.Set("utm_source", "instagram")
	if channel == domain.ChannelComment {
		q.Set("utm_medium", "ig_comment")
	} else {
		q.Set("utm_medium", "ig_dm")
	}
	q.Set("utm_campaign", "auto_reply")
	u.RawQuery = q.Encode()
	return u.String()
}

// ClaimInput describes one reply decision to commit to the ledger.
type ClaimInput struct {
	ShopID     string
	Channel    string // dm | comment
	ExternalID string // provider message/comment id the claim is keyed on
	ReplyText  string

	// MessageID links the claim to an inbound Message row when one exists.
	MessageID string

	// RecipientID is who the reply goes to; required to enqueue delivery.
	RecipientID string

	// DestinationURL, when non-empty, is the checkout URL to embed. A claim
	// with no destination represents "we decided to reply with no link".
	DestinationURL string
	ProductID      string
	VariantID      string
}

// ClaimResult reports the two outcomes the ledger surfaces to callers.
type ClaimResult struct {
	Claimed bool
	LinkID  string
	Link    *domain.LinkSent
}

// ClaimService owns the reply-claim ledger and the hand-off of claimed
// replies to the outbound queue.
type ClaimService struct {
	DB *gorm.DB

	// DeriveKey is injectable so tests can assert key stability without
	// touching storage. Defaults to DeriveClaimKey.
	DeriveKey func(channel, externalID string) string
}

// keyFor applies the configured derivation, defaulting to DeriveClaimKey.
func (s *ClaimService) keyFor(channel, externalID string) string {
	if s.DeriveKey != nil {
		return s.DeriveKey(channel, externalID)
	}
	return DeriveClaimKey(channel, externalID)
}

// HasRepliedToMessage reports whether any committed claim references
// messageID. Advisory pre-check only, never the dedup mechanism.
func (s *ClaimService) HasRepliedToMessage(ctx context.Context, messageID string) (bool, error) {
	return repo.HasLinkForMessage(ctx, s.DB, messageID)
}

// HasRepliedToExternal reports whether a claim exists for the deterministic
// key derived from externalID. Survives duplicate Message rows for the same
// external event.
func (s *ClaimService) HasRepliedToExternal(ctx context.Context, shopID, channel, externalID string) (bool, error) {
	return repo.HasLink(ctx, s.DB, shopID, s.keyFor(channel, externalID))
}

// Claim attempts to commit the reply decision. Exactly one concurrent call
// per (shop, external id) observes Claimed=true; the rest observe
// Claimed=false with a nil error. Any other failure is returned as-is and
// means "do not send".
//
// On a won claim the reply is handed to the outbound queue and the shop's
// monthly usage counter is bumped; both are best-effort relative to the
// claim itself, which is already durable.
func (s *ClaimService) Claim(ctx context.Context, in ClaimInput) (*ClaimResult, error) {
	tr := otel.Tracer("services/ClaimService")
	ctx, span := tr.Start(ctx, "Claim",
		trace.WithAttributes(
			attribute.String("shop.id", in.ShopID),
			attribute.String("channel", in.Channel),
		),
	)
	defer span.End()

	if in.Channel != domain.ChannelDM && in.Channel != domain.ChannelComment {
		return nil, ErrInvalidChannel
	}
	if strings.TrimSpace(in.ReplyText) == "" {
		return nil, ErrEmptyReply
	}

	linkID := s.keyFor(in.Channel, in.ExternalID)
	span.SetAttributes(attribute.String("link.id", linkID))

	row := &domain.LinkSent{
		ShopID:    in.ShopID,
		LinkID:    linkID,
		ReplyText: in.ReplyText,
		SentAt:    time.Now().UTC(),
	}
	if in.MessageID != "" {
		row.MessageID = &in.MessageID
	}
	if in.DestinationURL != "" {
		dest := in.DestinationURL
		row.DestinationURL = &dest
	}
	if in.ProductID != "" {
		pid := in.ProductID
		row.ProductID = &pid
	}
	if in.VariantID != "" {
		vid := in.VariantID
		row.VariantID = &vid
	}

	// The insert attempt is the race. No pre-read decides anything.
	if err := repo.CreateLinkSent(ctx, s.DB, row); err != nil {
		if err == repo.ErrDuplicate {
			span.SetAttributes(attribute.Bool("claim.won", false))
			return &ClaimResult{Claimed: false, LinkID: linkID}, nil
		}
		// Transient store failure: fail closed, never assume a send
		// may proceed.
		return nil, err
	}
	span.SetAttributes(attribute.Bool("claim.won", true))

	if err := repo.IncrementUsage(ctx, s.DB, in.ShopID); err != nil {
		log.Warn().Err(err).
			Str("shop_id", in.ShopID).
			Str("link_id", linkID).
			Msg("usage counter increment failed")
	}

	if in.RecipientID != "" {
		text := in.ReplyText
		if row.DestinationURL != nil {
			text = text + "\n" + BuildTrackedURL(*row.DestinationURL, linkID, in.Channel)
		}
		if _, err := repo.Enqueue(ctx, s.DB, in.ShopID, in.RecipientID, text); err != nil {
			// The claim is durable; a failed enqueue is logged and the
			// item is simply never delivered (no second claim exists to
			// retry it, by design).
			log.Error().Err(err).
				Str("shop_id", in.ShopID).
				Str("link_id", linkID).
				Msg("outbound enqueue failed after claim")
		}
	}

	return &ClaimResult{Claimed: true, LinkID: linkID, Link: row}, nil
}
