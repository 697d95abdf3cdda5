package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gudang-system/internal/database/models"
	"gudang-system/internal/ledger"
)

type MovementsHandler struct {
	recorder *ledger.Recorder
}

func NewMovementsHandler(recorder *ledger.Recorder) *MovementsHandler {
	return &MovementsHandler{recorder: recorder}
}

type ListMovementsQuery struct {
	ItemID    *int64 `form:"item_id,omitempty"`
	Reason    string `form:"reason"`
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
}

// ListMovements serves the audit trail: either all movements for one item, or
// all movements with a reason inside a date range.
func (h *MovementsHandler) ListMovements(c *gin.Context) {
	var q ListMovementsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid query parameters"))
		return
	}

	if q.ItemID != nil {
		movements, err := h.recorder.ListByItem(c.Request.Context(), *q.ItemID)
		if err != nil {
			c.JSON(statusFromError(err), errorResponse(err.Error()))
			return
		}
		c.JSON(http.StatusOK, successResponse("Movements retrieved", movements))
		return
	}

	if q.Reason == "" {
		c.JSON(http.StatusBadRequest, errorResponse("Either item_id or reason is required"))
		return
	}
	if q.StartDate == "" || q.EndDate == "" {
		c.JSON(http.StatusBadRequest, errorResponse("start_date and end_date are required with reason"))
		return
	}
	start, end, err := parseDateRange(q.StartDate, q.EndDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Dates must be YYYY-MM-DD"))
		return
	}

	movements, err := h.recorder.ListByReason(c.Request.Context(), models.MovementReason(q.Reason), start, end)
	if err != nil {
		c.JSON(statusFromError(err), errorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, successWithMetaResponse("Movements retrieved", movements, gin.H{
		"count": len(movements),
	}))
}
