package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/domain"
	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/services"
)

// settingsRequest is the writable subset of per-shop settings.
type settingsRequest struct {
	DMAutomationEnabled      bool   `json:"dm_automation_enabled"`
	CommentAutomationEnabled bool   `json:"comment_automation_enabled"`
	FollowupEnabled          bool   `json:"followup_enabled"`
	Tone                     string `json:"tone" example:"friendly"`
	CustomInstruction        string `json:"custom_instruction"`
}

// settingsResponse is the effective (plan-gated) settings view.
type settingsResponse struct {
	ShopID                   string `json:"shop_id"`
	Plan                     string `json:"plan"`
	DMAutomationEnabled      bool   `json:"dm_automation_enabled"`
	CommentAutomationEnabled bool   `json:"comment_automation_enabled"`
	FollowupEnabled          bool   `json:"followup_enabled"`
	Tone                     string `json:"tone"`
	CustomInstruction        string `json:"custom_instruction"`
	UsageCount               int64  `json:"usage_count"`
	UsageMonth               string `json:"usage_month"`
}

func toSettingsResponse(s *domain.Settings, shop *domain.Shop) settingsResponse {
	return settingsResponse{
		ShopID:                   shop.ID,
		Plan:                     shop.Plan,
		DMAutomationEnabled:      s.DMAutomationEnabled,
		CommentAutomationEnabled: s.CommentAutomationEnabled,
		FollowupEnabled:          s.FollowupEnabled,
		Tone:                     s.Tone,
		CustomInstruction:        s.CustomInstruction,
		UsageCount:               shop.UsageCount,
		UsageMonth:               shop.UsageMonth,
	}
}

// HandleGetSettings godoc
//
//	@Summary		Effective automation settings for a shop
//	@Description	Stored toggles with the shop's plan gate applied; also reports the current month's usage counter (lazily rolled over on read).
//	@Tags			settings
//	@Produce		json
//	@Param			id	path		string	true	"Shop id"
//	@Success		200	{object}	settingsResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/shops/{id}/settings [get]
func (h *Handlers) HandleGetSettings(c *gin.Context) {
	settings, shop, err := h.settings.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrShopNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "shop not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeSettingsFailed, "settings read failed")
		return
	}
	ok(c, http.StatusOK, toSettingsResponse(settings, shop))
}

// HandleUpdateSettings godoc
//
//	@Summary		Update automation settings for a shop
//	@Description	Persists the toggles with the plan gate applied before the write, so lower tiers cannot store entitlements they lack. Returns the effective result.
//	@Tags			settings
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Shop id"
//	@Param			payload	body		settingsRequest	true	"New settings"
//	@Success		200		{object}	settingsResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/shops/{id}/settings [put]
func (h *Handlers) HandleUpdateSettings(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid payload: "+err.Error())
		return
	}

	shopID := c.Param("id")
	_, err := h.settings.Update(c.Request.Context(), shopID, &domain.Settings{
		DMAutomationEnabled:      req.DMAutomationEnabled,
		CommentAutomationEnabled: req.CommentAutomationEnabled,
		FollowupEnabled:          req.FollowupEnabled,
		Tone:                     req.Tone,
		CustomInstruction:        req.CustomInstruction,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrShopNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "shop not found")
		case errors.Is(err, services.ErrInvalidTone):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "tone must be friendly, expert or casual")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeSettingsFailed, "settings update failed")
		}
		return
	}

	settings, shop, err := h.settings.Get(c.Request.Context(), shopID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeSettingsFailed, "settings read-back failed")
		return
	}
	ok(c, http.StatusOK, toSettingsResponse(settings, shop))
}
