// Package services – messaging provider contract.
package services

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Provider delivers outbound direct messages to the social platform.
// Delivery is best-effort: the system's guarantee is "we never decide twice
// to send", not exactly-once delivery, so implementations may retry
// internally or fail and let the outbound queue's bookkeeping take over.
type Provider interface {
	SendDM(ctx context.Context, shopDomain, recipientID, text string) error
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, shopDomain, recipientID, text string) error

// SendDM calls f.
func (f ProviderFunc) SendDM(ctx context.Context, shopDomain, recipientID, text string) error {
	return f(ctx, shopDomain, recipientID, text)
}

// NewLogProvider returns a Provider that only logs outbound messages. It is
// the default wiring until a platform messaging client is configured, and
// keeps local runs fully observable without external calls.
func NewLogProvider() Provider {
	return ProviderFunc(func(ctx context.Context, shopDomain, recipientID, text string) error {
		log.Info().
			Str("shop_domain", shopDomain).
			Str("recipient_id", recipientID).
			Int("text_len", len(text)).
			Msg("outbound dm (log provider)")
		return nil
	})
}
