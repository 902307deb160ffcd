package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/repo"
	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/services"
	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/utils"
)

func queueFilterFrom(c *gin.Context) repo.QueueFilter {
	return repo.QueueFilter{
		ShopID: c.Query("shop_id"),
		Status: c.Query("status"),
	}
}

// HandleQueueOverview godoc
//
//	@Summary		Outbound queue aggregation
//	@Description	Totals and per-status counts for the outbound DM queue, optionally filtered by shop and status.
//	@Tags			queue
//	@Produce		json
//	@Param			shop_id	query		string	false	"Filter by shop id"
//	@Param			status	query		string	false	"Filter by status (pending, processing, sent, failed)"
//	@Success		200		{object}	repo.QueueOverview
//	@Failure		400		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/queue/overview [get]
func (h *Handlers) HandleQueueOverview(c *gin.Context) {
	ov, err := h.queue.Overview(c.Request.Context(), queueFilterFrom(c))
	if err != nil {
		if errors.Is(err, services.ErrInvalidStatus) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown status filter")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeQueueFailed, "queue overview failed")
		return
	}
	ok(c, http.StatusOK, ov)
}

// HandleQueueItems godoc
//
//	@Summary		Outbound queue items
//	@Description	Most-recent-first page of queue items, optionally filtered by shop and status. limit defaults to 50, capped at 200.
//	@Tags			queue
//	@Produce		json
//	@Param			shop_id	query		string	false	"Filter by shop id"
//	@Param			status	query		string	false	"Filter by status (pending, processing, sent, failed)"
//	@Param			limit	query		int		false	"Page size"
//	@Success		200		{object}	map[string]any
//	@Failure		400		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/queue/items [get]
func (h *Handlers) HandleQueueItems(c *gin.Context) {
	limit := utils.AtoiDefault(c.Query("limit"), 50)
	items, err := h.queue.ListItems(c.Request.Context(), queueFilterFrom(c), limit)
	if err != nil {
		if errors.Is(err, services.ErrInvalidStatus) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown status filter")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeQueueFailed, "queue listing failed")
		return
	}
	ok(c, http.StatusOK, gin.H{"items": items, "count": len(items)})
}
