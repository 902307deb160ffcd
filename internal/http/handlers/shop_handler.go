package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/domain"
	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/repo"
)

// installShopRequest registers (or reactivates) a tenant.
type installShopRequest struct {
	Domain string `json:"domain" binding:"required" example:"acme-store.myshopify.com"`
	Plan   string `json:"plan" example:"free"`
}

// shopResponse is the public projection of a shop row.
type shopResponse struct {
	ID         string `json:"id"`
	Domain     string `json:"domain"`
	Plan       string `json:"plan"`
	Active     bool   `json:"active"`
	UsageCount int64  `json:"usage_count"`
	UsageMonth string `json:"usage_month"`
}

func toShopResponse(s *domain.Shop) shopResponse {
	return shopResponse{
		ID:         s.ID,
		Domain:     s.Domain,
		Plan:       s.Plan,
		Active:     s.Active,
		UsageCount: s.UsageCount,
		UsageMonth: s.UsageMonth,
	}
}

// HandleInstallShop godoc
//
//	@Summary		Install or reactivate a shop
//	@Description	Creates the tenant on first install; a reinstall reactivates the existing row with history intact. Concurrent installs for the same domain converge on one row.
//	@Tags			shops
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		installShopRequest	true	"Install request"
//	@Success		200		{object}	shopResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/shops [post]
func (h *Handlers) HandleInstallShop(c *gin.Context) {
	var req installShopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid payload: "+err.Error())
		return
	}
	plan := req.Plan
	switch plan {
	case "":
		plan = domain.PlanFree
	case domain.PlanFree, domain.PlanGrowth, domain.PlanPro:
	default:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "plan must be free, growth or pro")
		return
	}

	shop, err := repo.EnsureShop(c.Request.Context(), h.db, req.Domain, plan)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "shop install failed")
		return
	}
	ok(c, http.StatusOK, toShopResponse(shop))
}
