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
	"gudang-system/internal/inventory"
	"gudang-system/internal/ledger"
)

var (
	ErrRequestNotFound       = errors.New("purchase request not found")
	ErrRequestAlreadyDecided = errors.New("purchase request already decided")
)

type PurchasesHandler struct {
	db     *gorm.DB
	store  *inventory.Store
	engine *ledger.Engine
	items  *ItemsHandler
}

func NewPurchasesHandler(db *gorm.DB, store *inventory.Store, engine *ledger.Engine, items *ItemsHandler) *PurchasesHandler {
	return &PurchasesHandler{
		db:     db,
		store:  store,
		engine: engine,
		items:  items,
	}
}

type CreatePurchaseRequest struct {
	ItemName       string  `json:"item_name" binding:"required"`
	ItemCode       *string `json:"item_code,omitempty"`
	Quantity       int64   `json:"quantity" binding:"required,min=1"`
	EstimatedPrice *string `json:"estimated_price,omitempty"`
	Notes          *string `json:"notes,omitempty"`
	RequestedBy    int64   `json:"requested_by" binding:"required"`
}

type ApprovePurchaseRequest struct {
	ApprovedBy int64  `json:"approved_by" binding:"required"`
	Status     string `json:"status" binding:"required,oneof=approved denied"`
}

type ListPurchasesQuery struct {
	Status    *string `form:"status,omitempty"`
	StartDate string  `form:"start_date"`
	EndDate   string  `form:"end_date"`
}

func (h *PurchasesHandler) CreateRequest(c *gin.Context) {
	var req CreatePurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}
	if req.EstimatedPrice != nil {
		if _, err := decimal.NewFromString(*req.EstimatedPrice); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("Estimated price must be a decimal string"))
			return
		}
	}

	request := models.PurchaseRequest{
		ItemName:       req.ItemName,
		ItemCode:       req.ItemCode,
		Quantity:       req.Quantity,
		EstimatedPrice: req.EstimatedPrice,
		Status:         models.PurchaseStatusPending,
		RequestedBy:    req.RequestedBy,
		Notes:          req.Notes,
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&request).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}

	c.JSON(http.StatusCreated, successResponse("Purchase request created", request))
}

// ApproveRequest decides a pending request. An approval whose item code
// matches a catalog item restocks it through the ledger in the same
// transaction as the status flip; otherwise only the status changes.
func (h *PurchasesHandler) ApproveRequest(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid purchase request ID"))
		return
	}

	var req ApprovePurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	ctx := c.Request.Context()

	var request models.PurchaseRequest
	if err := h.db.WithContext(ctx).First(&request, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, errorResponse(ErrRequestNotFound.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}
	if request.Status != models.PurchaseStatusPending {
		c.JSON(http.StatusConflict, errorResponse(ErrRequestAlreadyDecided.Error()))
		return
	}

	decide := func(tx *gorm.DB) error {
		result := tx.Model(&models.PurchaseRequest{}).
			Where("id = ? AND status = ?", request.ID, models.PurchaseStatusPending).
			Updates(map[string]interface{}{
				"status":      req.Status,
				"approved_by": req.ApprovedBy,
				"updated_at":  time.Now(),
			})
		if result.Error != nil {
			return fmt.Errorf("decide request %d: %w", request.ID, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: request %d", ErrRequestAlreadyDecided, request.ID)
		}
		return nil
	}

	restocked := false
	if req.Status == models.PurchaseStatusApproved && request.ItemCode != nil {
		item, err := h.store.GetByCode(ctx, *request.ItemCode)
		switch {
		case err == nil:
			_, err := h.engine.ApplyDelta(ctx, ledger.Mutation{
				ItemID:      item.ID,
				Delta:       request.Quantity,
				Reason:      models.ReasonPurchaseRestock,
				ReferenceID: &request.ID,
				Prepare: func(tx *gorm.DB, _ *models.Item) (*int64, error) {
					return nil, decide(tx)
				},
			})
			if err != nil {
				status := statusFromError(err)
				if errors.Is(err, ErrRequestAlreadyDecided) {
					status = http.StatusConflict
				}
				c.JSON(status, errorResponse(err.Error()))
				return
			}
			restocked = true
			h.items.InvalidateItemCaches(ctx, item.ID)
		case errors.Is(err, inventory.ErrNotFound):
			// Approved for an item we do not stock yet; nothing to restock.
		default:
			c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
			return
		}
	}

	if !restocked {
		if err := decide(h.db.WithContext(ctx)); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, ErrRequestAlreadyDecided) {
				status = http.StatusConflict
			}
			c.JSON(status, errorResponse(err.Error()))
			return
		}
	}

	if err := h.db.WithContext(ctx).First(&request, id).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}

	c.JSON(http.StatusOK, successWithMetaResponse("Purchase request decided", request, gin.H{
		"restocked": restocked,
	}))
}

func (h *PurchasesHandler) ListRequests(c *gin.Context) {
	var q ListPurchasesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid query parameters"))
		return
	}

	query := h.db.WithContext(c.Request.Context()).Model(&models.PurchaseRequest{})

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

	var requests []models.PurchaseRequest
	if err := query.Order("created_at DESC").Find(&requests).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}

	c.JSON(http.StatusOK, successResponse("Purchase requests retrieved", requests))
}
