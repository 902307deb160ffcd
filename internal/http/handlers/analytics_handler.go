package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/repo"
)

// parseRange reads the from/to query params (RFC 3339) with a default
// trailing-30-days window. The range is half-open: [from, to).
func parseRange(c *gin.Context) (from, to time.Time, err error) {
	now := time.Now().UTC()
	from = now.AddDate(0, 0, -30)
	to = now

	if raw := c.Query("from"); raw != "" {
		from, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return from, to, errors.New("from must be RFC 3339")
		}
	}
	if raw := c.Query("to"); raw != "" {
		to, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return from, to, errors.New("to must be RFC 3339")
		}
	}
	if !to.After(from) {
		return from, to, errors.New("to must be after from")
	}
	return from, to, nil
}

// HandleAnalytics godoc
//
//	@Summary		Analytics report for a shop
//	@Description	Links sent, clicks, CTR, channel/segment/sentiment breakdowns, and the with/without-follow-up partition over [from, to). Defaults to the trailing 30 days.
//	@Tags			analytics
//	@Produce		json
//	@Param			id		path		string	true	"Shop id"
//	@Param			from	query		string	false	"Range start (RFC 3339)"
//	@Param			to		query		string	false	"Range end (RFC 3339)"
//	@Success		200		{object}	services.Report
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/shops/{id}/analytics [get]
func (h *Handlers) HandleAnalytics(c *gin.Context) {
	shopID := c.Param("id")
	from, to, err := parseRange(c)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	if _, err := repo.GetShop(c.Request.Context(), h.db, shopID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "shop not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeReportFailed, "shop lookup failed")
		return
	}

	rep, err := h.analytics.Report(c.Request.Context(), shopID, from, to)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeReportFailed, "report failed")
		return
	}
	ok(c, http.StatusOK, rep)
}
