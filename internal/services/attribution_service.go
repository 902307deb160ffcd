// Package services – AttributionService
//
// This file recovers "which link produced this purchase" from loosely
// structured data: the landing and referring URLs carried by a purchase
// webhook. Parsing never panics across the boundary (malformed input
// degrades to "no attribution") and recording is best-effort relative to
// the webhook acknowledgment (failures are logged, never propagated to the
// caller's success response).
package services

import (
	"context"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/domain"
	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/repo"
)

// providerSource is the utm_source value our outbound links carry; it is
// also the fallback signal for channel inference when utm_medium is absent.
const providerSource = "instagram"

// AttributionParams is the normalized result of parsing an outbound link
// URL. LinkID is empty when the URL carried no ref=link_<id> parameter.
type AttributionParams struct {
	LinkID      string
	UTMSource   string
	UTMMedium   string
	UTMCampaign string
}

// ParseAttributionURL extracts the link id and UTM fields from a URL.
// It returns nil on any malformed URL; it never panics.
func ParseAttributionURL(raw string) *AttributionParams {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil
	}
	q, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return nil
	}
	p := &AttributionParams{
		UTMSource:   q.Get("utm_source"),
		UTMMedium:   q.Get("utm_medium"),
		UTMCampaign: q.Get("utm_campaign"),
	}
	if ref := q.Get("ref"); strings.HasPrefix(ref, "link_") {
		p.LinkID = strings.TrimPrefix(ref, "link_")
	}
	return p
}

// InferChannel maps free-text UTM fields to a channel. Medium values
// containing "dm" map to dm, values containing "comment" map to comment;
// when medium is absent and source is the provider's name, default to dm.
// Ambiguous inputs resolve to "" rather than guessing; the heuristic is
// best-effort, not authoritative.
func InferChannel(utmMedium, utmSource string) string {
	medium := strings.ToLower(strings.TrimSpace(utmMedium))
	switch {
	case strings.Contains(medium, "dm"):
		return domain.ChannelDM
	case strings.Contains(medium, "comment"):
		return domain.ChannelComment
	case medium == "" && strings.EqualFold(strings.TrimSpace(utmSource), providerSource):
		return domain.ChannelDM
	default:
		return ""
	}
}

// PurchaseEvent is the parsed payload of an inbound purchase webhook.
type PurchaseEvent struct {
	OrderID          string
	TotalPrice       float64
	Currency         string
	LandingSiteURL   string
	ReferringSiteURL string
}

// AttributionService correlates purchase webhooks back to sent links.
type AttributionService struct {
	DB *gorm.DB
}

// RecordAttribution appends a purchase record. Append-only; idempotency for
// repeated order webhooks is the upstream order id's concern.
func (s *AttributionService) RecordAttribution(ctx context.Context, shopID, orderID, linkID, channel string, amount float64, currency string) error {
	_, err := repo.CreateAttribution(ctx, s.DB, shopID, orderID, linkID, channel, amount, currency)
	return err
}

// ProcessPurchase resolves a purchase event to an attribution record.
// Resolution order: the landing-site URL first, then the referring-site URL
// when no link id was found. Recording failures are logged with shop/order
// context and never returned; attribution is best-effort relative to the
// webhook acknowledgment.
func (s *AttributionService) ProcessPurchase(ctx context.Context, shopID string, ev PurchaseEvent) {
	tr := otel.Tracer("services/AttributionService")
	ctx, span := tr.Start(ctx, "ProcessPurchase",
		trace.WithAttributes(
			attribute.String("shop.id", shopID),
			attribute.String("order.id", ev.OrderID),
		),
	)
	defer span.End()

	params := ParseAttributionURL(ev.LandingSiteURL)
	if params == nil || params.LinkID == "" {
		if fallback := ParseAttributionURL(ev.ReferringSiteURL); fallback != nil && fallback.LinkID != "" {
			params = fallback
		}
	}
	if params == nil || params.LinkID == "" {
		// No link signal anywhere; nothing to record.
		return
	}

	channel := InferChannel(params.UTMMedium, params.UTMSource)
	span.SetAttributes(
		attribute.String("link.id", params.LinkID),
		attribute.String("channel", channel),
	)

	currency := ev.Currency
	if currency == "" {
		currency = "USD"
	}
	if err := s.RecordAttribution(ctx, shopID, ev.OrderID, params.LinkID, channel, ev.TotalPrice, currency); err != nil {
		log.Error().Err(err).
			Str("shop_id", shopID).
			Str("order_id", ev.OrderID).
			Str("link_id", params.LinkID).
			Msg("attribution record failed")
	}
}
