package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"gudang-system/internal/database/models"
	"gudang-system/internal/ledger"
)

type SalesHandler struct {
	db     *gorm.DB
	engine *ledger.Engine
	items  *ItemsHandler
}

func NewSalesHandler(db *gorm.DB, engine *ledger.Engine, items *ItemsHandler) *SalesHandler {
	return &SalesHandler{
		db:     db,
		engine: engine,
		items:  items,
	}
}

type RegisterSaleRequest struct {
	ItemID    int64  `json:"item_id" binding:"required"`
	Quantity  int64  `json:"quantity" binding:"required,min=1"`
	UnitPrice string `json:"unit_price" binding:"required"`
	SaleDate  string `json:"sale_date,omitempty"`
	CreatedBy *int64 `json:"created_by,omitempty"`
}

type ListSalesQuery struct {
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
}

// RegisterSale inserts the sale row and decrements stock in one transaction,
// under the item's lock.
func (h *SalesHandler) RegisterSale(c *gin.Context) {
	var req RegisterSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	unitPrice, err := decimal.NewFromString(req.UnitPrice)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Unit price must be a decimal string"))
		return
	}

	saleDate := time.Now()
	if req.SaleDate != "" {
		saleDate, err = time.Parse(dateLayout, req.SaleDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("Sale date must be YYYY-MM-DD"))
			return
		}
	}

	var sale models.Sale
	res, err := h.engine.ApplyDelta(c.Request.Context(), ledger.Mutation{
		ItemID: req.ItemID,
		Delta:  -req.Quantity,
		Reason: models.ReasonSaleRegistered,
		Prepare: func(tx *gorm.DB, item *models.Item) (*int64, error) {
			total := unitPrice.Mul(decimal.NewFromInt(req.Quantity))
			sale = models.Sale{
				ItemID:     item.ID,
				Quantity:   req.Quantity,
				UnitPrice:  unitPrice.StringFixed(2),
				TotalPrice: total.StringFixed(2),
				SaleDate:   saleDate,
				CreatedBy:  req.CreatedBy,
			}
			if err := tx.Create(&sale).Error; err != nil {
				return nil, fmt.Errorf("insert sale: %w", err)
			}
			return &sale.ID, nil
		},
	})
	if err != nil {
		c.JSON(statusFromError(err), errorResponse(err.Error()))
		return
	}

	h.items.InvalidateItemCaches(c.Request.Context(), req.ItemID)
	c.JSON(http.StatusCreated, successResponse("Sale registered", gin.H{
		"sale":         sale,
		"new_quantity": res.NewQuantity,
		"movement":     res.Movement,
	}))
}

func (h *SalesHandler) ListSales(c *gin.Context) {
	var q ListSalesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid query parameters"))
		return
	}

	query := h.db.WithContext(c.Request.Context()).Model(&models.Sale{}).Preload("Item")

	if q.StartDate != "" {
		start, err := time.Parse(dateLayout, q.StartDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("Start date must be YYYY-MM-DD"))
			return
		}
		query = query.Where("sale_date >= ?", start)
	}
	if q.EndDate != "" {
		end, err := time.Parse(dateLayout, q.EndDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("End date must be YYYY-MM-DD"))
			return
		}
		query = query.Where("sale_date < ?", end.Add(24*time.Hour))
	}

	var sales []models.Sale
	if err := query.Order("sale_date DESC, created_at DESC").Find(&sales).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}

	c.JSON(http.StatusOK, successResponse("Sales retrieved", sales))
}
