package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/utils"
)

// HandleRunFollowups godoc
//
//	@Summary		Trigger one follow-up batch
//	@Description	Runs the same batch the scheduler runs on its interval. Safe to trigger at any time: the unique follow-up claim makes overlapping runs converge.
//	@Tags			jobs
//	@Produce		json
//	@Success		200	{object}	map[string]int
//	@Failure		500	{object}	ErrorResponse
//	@Router			/jobs/followups/run [post]
func (h *Handlers) HandleRunFollowups(c *gin.Context) {
	stats, err := h.followups.Run(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "follow-up run failed")
		return
	}
	ok(c, http.StatusOK, gin.H{
		"tenants":  stats.Tenants,
		"eligible": stats.Eligible,
		"sent":     stats.Sent,
		"skipped":  stats.Skipped,
		"failed":   stats.Failed,
	})
}

// HandleRunQueue godoc
//
//	@Summary		Trigger one outbound delivery batch
//	@Description	Processes up to limit due queue items, same as the worker loop. Overlapping runs are safe: each item is claimed via a guarded status transition.
//	@Tags			jobs
//	@Produce		json
//	@Param			limit	query		int	false	"Batch size (default 50)"
//	@Success		200		{object}	map[string]int
//	@Failure		500		{object}	ErrorResponse
//	@Router			/jobs/queue/run [post]
func (h *Handlers) HandleRunQueue(c *gin.Context) {
	limit := utils.AtoiDefault(c.Query("limit"), 50)
	stats, err := h.queue.ProcessDue(c.Request.Context(), limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeQueueFailed, "queue run failed")
		return
	}
	ok(c, http.StatusOK, gin.H{
		"taken":   stats.Taken,
		"sent":    stats.Sent,
		"retried": stats.Retried,
		"failed":  stats.Failed,
	})
}
