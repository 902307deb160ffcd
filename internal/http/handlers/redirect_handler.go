package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/http/middleware"
	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/repo"
)

// HandleRedirect godoc
//
//	@Summary		Resolve a tracked link and record the click
//	@Description	Looks up the link id, appends a click event, and redirects to the stored destination. The click write is best-effort: a storage hiccup must not break the shopper's redirect.
//	@Tags			links
//	@Param			linkID	path	string	true	"Tracked link id"
//	@Success		302
//	@Failure		404	{object}	ErrorResponse
//	@Router			/l/{linkID} [get]
func (h *Handlers) HandleRedirect(c *gin.Context) {
	linkID := c.Param("linkID")

	link, err := repo.GetLinkByID(c.Request.Context(), h.db, linkID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "link not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "link lookup failed")
		return
	}

	if _, err := repo.CreateClick(c.Request.Context(), h.db, link.LinkID, c.Request.UserAgent(), c.ClientIP()); err != nil {
		middleware.LoggerFrom(c).Error().Err(err).
			Str("link_id", link.LinkID).
			Msg("click record failed")
	}

	dest := ""
	if link.DestinationURL != nil {
		dest = *link.DestinationURL
	}
	if dest == "" {
		// Older ledger rows may predate destination capture; fall back to
		// the tenant's storefront.
		if shop, serr := repo.GetShop(c.Request.Context(), h.db, link.ShopID); serr == nil {
			dest = "https://" + shop.Domain
		} else {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "link has no destination")
			return
		}
	}
	c.Redirect(http.StatusFound, dest)
}
