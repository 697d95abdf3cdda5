package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"gudang-system/internal/reports"
)

type ReportsHandler struct {
	aggregator *reports.Aggregator
}

func NewReportsHandler(aggregator *reports.Aggregator) *ReportsHandler {
	return &ReportsHandler{aggregator: aggregator}
}

type ReportRangeQuery struct {
	StartDate string `form:"start_date" binding:"required"`
	EndDate   string `form:"end_date" binding:"required"`
}

func (h *ReportsHandler) InventoryReport(c *gin.Context) {
	report, err := h.aggregator.Inventory(c.Request.Context(), time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}
	c.JSON(http.StatusOK, successResponse("Inventory report", report))
}

func (h *ReportsHandler) SalesReport(c *gin.Context) {
	var q ReportRangeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("start_date and end_date are required"))
		return
	}
	start, end, err := parseDateRange(q.StartDate, q.EndDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Dates must be YYYY-MM-DD"))
		return
	}

	report, err := h.aggregator.Sales(c.Request.Context(), start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}
	c.JSON(http.StatusOK, successResponse("Sales report", report))
}

func (h *ReportsHandler) PurchaseReport(c *gin.Context) {
	var q ReportRangeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("start_date and end_date are required"))
		return
	}
	start, end, err := parseDateRange(q.StartDate, q.EndDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Dates must be YYYY-MM-DD"))
		return
	}

	report, err := h.aggregator.Purchases(c.Request.Context(), start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}
	c.JSON(http.StatusOK, successResponse("Purchase report", report))
}

func (h *ReportsHandler) OrdersReport(c *gin.Context) {
	var q ReportRangeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("start_date and end_date are required"))
		return
	}
	start, end, err := parseDateRange(q.StartDate, q.EndDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Dates must be YYYY-MM-DD"))
		return
	}

	report, err := h.aggregator.Orders(c.Request.Context(), start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}
	c.JSON(http.StatusOK, successResponse("Orders report", report))
}
