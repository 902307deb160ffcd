package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/http/middleware"
	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/repo"
	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/services"
)

// headerShopDomain carries the tenant identity on provider webhooks.
const headerShopDomain = "X-Shop-Domain"

// messageWebhookRequest is the inbound DM/comment webhook payload.
type messageWebhookRequest struct {
	ShopDomain string    `json:"shop_domain" binding:"required" example:"acme-store.myshopify.com"`
	Channel    string    `json:"channel" binding:"required" example:"dm"`
	ExternalID string    `json:"external_id" binding:"required" example:"mid.1892"`
	SenderID   string    `json:"sender_id" binding:"required" example:"ig_9331"`
	Text       string    `json:"text" example:"how much is the black one?"`
	OccurredAt time.Time `json:"occurred_at"`

	Intent     string  `json:"intent" example:"purchase_intent"`
	Confidence float64 `json:"confidence" example:"0.92"`
	Sentiment  string  `json:"sentiment" example:"positive"`
}

// orderWebhookRequest is the purchase webhook payload.
type orderWebhookRequest struct {
	OrderID          string  `json:"order_id" example:"5512398"`
	TotalPrice       float64 `json:"total_price" example:"49.90"`
	Currency         string  `json:"currency" example:"USD"`
	LandingSiteURL   string  `json:"landing_site" example:"https://acme-store.myshopify.com/cart?ref=link_msg_1892&utm_source=instagram&utm_medium=ig_dm"`
	ReferringSiteURL string  `json:"referring_site"`
}

// HandleMessageWebhook godoc
//
//	@Summary		Ingest an inbound DM or comment event
//	@Description	Idempotently records the message, classifies it, and replies with a checkout link when the event wins the reply claim. Duplicate deliveries are safe.
//	@Tags			webhooks
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		messageWebhookRequest	true	"Inbound event"
//	@Success		200		{object}	services.IntakeResult
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/webhooks/message [post]
func (h *Handlers) HandleMessageWebhook(c *gin.Context) {
	var req messageWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid payload: "+err.Error())
		return
	}

	res, err := h.intake.HandleInbound(c.Request.Context(), services.InboundEvent{
		ShopDomain: req.ShopDomain,
		Channel:    req.Channel,
		ExternalID: req.ExternalID,
		SenderID:   req.SenderID,
		Text:       req.Text,
		OccurredAt: req.OccurredAt,
		Intent:     req.Intent,
		Confidence: req.Confidence,
		Sentiment:  req.Sentiment,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidChannel):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "channel must be dm or comment")
		case errors.Is(err, services.ErrShopNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "shop not found")
		case errors.Is(err, services.ErrShopInactive):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "shop is not active")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeIntakeFailed, "intake failed")
		}
		return
	}
	ok(c, http.StatusOK, res)
}

// HandleOrderWebhook godoc
//
//	@Summary		Ingest a purchase event for attribution
//	@Description	Resolves the purchase back to a sent link via landing/referring URLs. Always acknowledges with 200 so the upstream platform never retries or disables the webhook; attribution itself is best-effort.
//	@Tags			webhooks
//	@Accept			json
//	@Produce		json
//	@Param			X-Shop-Domain	header		string				true	"Tenant store domain"
//	@Param			payload			body		orderWebhookRequest	true	"Purchase event"
//	@Success		200				{object}	map[string]bool
//	@Router			/webhooks/order [post]
func (h *Handlers) HandleOrderWebhook(c *gin.Context) {
	// The contract with the upstream platform is an unconditional 200:
	// a non-2xx ack triggers retries and eventually disables the webhook.
	ack := func() { ok(c, http.StatusOK, gin.H{"received": true}) }
	lg := middleware.LoggerFrom(c)

	var req orderWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		lg.Warn().Err(err).Msg("order webhook: malformed payload")
		ack()
		return
	}

	shopDomain := c.GetHeader(headerShopDomain)
	if shopDomain == "" {
		lg.Warn().Msg("order webhook: missing shop domain header")
		ack()
		return
	}
	shop, err := repo.GetShopByDomain(c.Request.Context(), h.db, shopDomain)
	if err != nil {
		lg.Warn().Err(err).Str("shop_domain", shopDomain).Msg("order webhook: unknown shop")
		ack()
		return
	}

	h.attribution.ProcessPurchase(c.Request.Context(), shop.ID, services.PurchaseEvent{
		OrderID:          req.OrderID,
		TotalPrice:       req.TotalPrice,
		Currency:         req.Currency,
		LandingSiteURL:   req.LandingSiteURL,
		ReferringSiteURL: req.ReferringSiteURL,
	})
	ack()
}

// HandleUninstallWebhook godoc
//
//	@Summary		Deactivate a shop on app uninstall
//	@Description	Marks the shop inactive; history is retained so a reinstall picks up where it left off. Acknowledges with 200 even for unknown shops.
//	@Tags			webhooks
//	@Produce		json
//	@Param			X-Shop-Domain	header		string	true	"Tenant store domain"
//	@Success		200				{object}	map[string]bool
//	@Router			/webhooks/uninstall [post]
func (h *Handlers) HandleUninstallWebhook(c *gin.Context) {
	lg := middleware.LoggerFrom(c)
	shopDomain := c.GetHeader(headerShopDomain)
	if shopDomain == "" {
		lg.Warn().Msg("uninstall webhook: missing shop domain header")
		ok(c, http.StatusOK, gin.H{"received": true})
		return
	}

	shop, err := repo.GetShopByDomain(c.Request.Context(), h.db, shopDomain)
	if err == nil {
		if derr := repo.DeactivateShop(c.Request.Context(), h.db, shop.ID); derr != nil {
			lg.Error().Err(derr).Str("shop_id", shop.ID).Msg("uninstall webhook: deactivate failed")
		}
	} else {
		lg.Warn().Err(err).Str("shop_domain", shopDomain).Msg("uninstall webhook: unknown shop")
	}
	ok(c, http.StatusOK, gin.H{"received": true})
}
