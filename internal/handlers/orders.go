package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"gudang-system/internal/database/models"
	"gudang-system/internal/ledger"
)

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderNotCancellable = errors.New("order is not pending")
	ErrItemHasNoPrice      = errors.New("item has no price")
)

type OrdersHandler struct {
	db     *gorm.DB
	engine *ledger.Engine
	items  *ItemsHandler
}

func NewOrdersHandler(db *gorm.DB, engine *ledger.Engine, items *ItemsHandler) *OrdersHandler {
	return &OrdersHandler{
		db:     db,
		engine: engine,
		items:  items,
	}
}

type PlaceOrderRequest struct {
	CustomerName    string  `json:"customer_name" binding:"required"`
	CustomerEmail   string  `json:"customer_email" binding:"required,email"`
	CustomerPhone   string  `json:"customer_phone" binding:"required"`
	CustomerAddress string  `json:"customer_address" binding:"required"`
	ItemID          int64   `json:"item_id" binding:"required"`
	Quantity        int64   `json:"quantity" binding:"required,min=1"`
	PaymentMethod   string  `json:"payment_method" binding:"required,oneof=cash bank_transfer credit"`
	Notes           *string `json:"notes,omitempty"`
	CreatedBy       *int64  `json:"created_by,omitempty"`
}

type ListOrdersQuery struct {
	Status    *string `form:"status,omitempty"`
	StartDate string  `form:"start_date"`
	EndDate   string  `form:"end_date"`
}

// PlaceOrder reserves stock for a phone order. The order insert and the
// decrement share one transaction under the item lock, and the sufficiency
// check rejects only when the requested quantity exceeds what is available.
func (h *OrdersHandler) PlaceOrder(c *gin.Context) {
	var req PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	var order models.Order
	res, err := h.engine.ApplyDelta(c.Request.Context(), ledger.Mutation{
		ItemID: req.ItemID,
		Delta:  -req.Quantity,
		Reason: models.ReasonOrderPlaced,
		Prepare: func(tx *gorm.DB, item *models.Item) (*int64, error) {
			if item.Price == nil {
				return nil, fmt.Errorf("%w: item %d", ErrItemHasNoPrice, item.ID)
			}
			price, err := decimal.NewFromString(*item.Price)
			if err != nil {
				return nil, fmt.Errorf("item %d has malformed price %q: %w", item.ID, *item.Price, err)
			}
			total := price.Mul(decimal.NewFromInt(req.Quantity))

			order = models.Order{
				CustomerName:    req.CustomerName,
				CustomerEmail:   req.CustomerEmail,
				CustomerPhone:   req.CustomerPhone,
				CustomerAddress: req.CustomerAddress,
				ItemID:          item.ID,
				ItemName:        item.Name,
				Quantity:        req.Quantity,
				TotalPrice:      total.StringFixed(2),
				PaymentMethod:   req.PaymentMethod,
				Notes:           req.Notes,
				Status:          models.OrderStatusPending,
				CreatedBy:       req.CreatedBy,
			}
			if err := tx.Create(&order).Error; err != nil {
				return nil, fmt.Errorf("insert order: %w", err)
			}
			return &order.ID, nil
		},
	})
	if err != nil {
		status := statusFromError(err)
		if errors.Is(err, ErrItemHasNoPrice) {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, errorResponse(err.Error()))
		return
	}

	h.items.InvalidateItemCaches(c.Request.Context(), req.ItemID)
	c.JSON(http.StatusCreated, successResponse("Order placed", gin.H{
		"order":        order,
		"new_quantity": res.NewQuantity,
		"movement":     res.Movement,
	}))
}

// CancelOrder returns a pending order's quantity to stock. The status flip is
// validated and written inside the same transaction as the restock, so two
// concurrent cancellations cannot both compensate.
func (h *OrdersHandler) CancelOrder(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid order ID"))
		return
	}

	var order models.Order
	if err := h.db.WithContext(c.Request.Context()).First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, errorResponse(ErrOrderNotFound.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}

	res, err := h.engine.ApplyDelta(c.Request.Context(), ledger.Mutation{
		ItemID:      order.ItemID,
		Delta:       order.Quantity,
		Reason:      models.ReasonOrderCancelled,
		ReferenceID: &order.ID,
		Prepare: func(tx *gorm.DB, item *models.Item) (*int64, error) {
			result := tx.Model(&models.Order{}).
				Where("id = ? AND status = ?", order.ID, models.OrderStatusPending).
				Updates(map[string]interface{}{
					"status":     models.OrderStatusCancelled,
					"updated_at": time.Now(),
				})
			if result.Error != nil {
				return nil, fmt.Errorf("cancel order %d: %w", order.ID, result.Error)
			}
			if result.RowsAffected == 0 {
				return nil, fmt.Errorf("%w: order %d", ErrOrderNotCancellable, order.ID)
			}
			return nil, nil
		},
	})
	if err != nil {
		status := statusFromError(err)
		if errors.Is(err, ErrOrderNotCancellable) {
			status = http.StatusConflict
		}
		c.JSON(status, errorResponse(err.Error()))
		return
	}

	h.items.InvalidateItemCaches(c.Request.Context(), order.ItemID)
	c.JSON(http.StatusOK, successResponse("Order cancelled", gin.H{
		"order_id":     order.ID,
		"new_quantity": res.NewQuantity,
		"movement":     res.Movement,
	}))
}

func (h *OrdersHandler) ListOrders(c *gin.Context) {
	var q ListOrdersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid query parameters"))
		return
	}

	query := h.db.WithContext(c.Request.Context()).Model(&models.Order{})

	if q.Status != nil && *q.Status != "" {
		query = query.Where("status = ?", *q.Status)
	}
	if q.StartDate != "" {
		start, err := time.Parse(dateLayout, q.StartDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("Start date must be YYYY-MM-DD"))
			return
		}
		query = query.Where("created_at >= ?", start)
	}
	if q.EndDate != "" {
		end, err := time.Parse(dateLayout, q.EndDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("End date must be YYYY-MM-DD"))
			return
		}
		query = query.Where("created_at < ?", end.Add(24*time.Hour))
	}

	var orders []models.Order
	if err := query.Order("created_at DESC").Find(&orders).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}

	c.JSON(http.StatusOK, successResponse("Orders retrieved", orders))
}
