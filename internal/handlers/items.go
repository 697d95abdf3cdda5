package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"

	"gudang-system/internal/database/models"
	"gudang-system/internal/inventory"
	"gudang-system/internal/ledger"
)

const (
	ITEM_CACHE_PREFIX    = "items:"
	ITEMS_LIST_CACHE_KEY = "items:list"
	CACHE_TTL_SHORT      = 5 * time.Minute
)

type ItemsHandler struct {
	store    *inventory.Store
	engine   *ledger.Engine
	recorder *ledger.Recorder
	redis    *redis.Client
}

func NewItemsHandler(store *inventory.Store, engine *ledger.Engine, recorder *ledger.Recorder, redisClient *redis.Client) *ItemsHandler {
	return &ItemsHandler{
		store:    store,
		engine:   engine,
		recorder: recorder,
		redis:    redisClient,
	}
}

// InvalidateItemCaches drops the list key and any per-item keys. Cache errors
// are ignored; the store stays authoritative.
func (h *ItemsHandler) InvalidateItemCaches(ctx context.Context, itemID ...int64) {
	if h.redis == nil {
		return
	}
	_ = h.redis.Del(ctx, ITEMS_LIST_CACHE_KEY)
	for _, id := range itemID {
		_ = h.redis.Del(ctx, fmt.Sprintf("%s%d", ITEM_CACHE_PREFIX, id))
	}
}

type CreateItemRequest struct {
	Code        string  `json:"code" binding:"required"`
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description,omitempty"`
	Quantity    int64   `json:"quantity" binding:"min=0"`
	Price       *string `json:"price,omitempty"`
}

// UpdateItemRequest has no quantity on purpose; quantity travels through the
// ledger only. A payload that still sends one is rejected, not ignored.
type UpdateItemRequest struct {
	Code        *string `json:"code,omitempty"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Price       *string `json:"price,omitempty"`
	Quantity    *int64  `json:"quantity,omitempty"`
}

// AdjustItemRequest deliberately leaves Delta unvalidated at binding time so a
// zero delta reaches the engine and comes back with its specific message.
type AdjustItemRequest struct {
	Delta int64   `json:"delta"`
	Notes *string `json:"notes,omitempty"`
}

type ListItemsQuery struct {
	Page       int    `form:"page,default=1"`
	PageSize   int    `form:"page_size,default=50"`
	SearchTerm string `form:"search"`
}

func validPrice(p *string) bool {
	if p == nil {
		return true
	}
	_, err := decimal.NewFromString(*p)
	return err == nil
}

func (h *ItemsHandler) CreateItem(c *gin.Context) {
	var req CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}
	if !validPrice(req.Price) {
		c.JSON(http.StatusBadRequest, errorResponse("Price must be a decimal string"))
		return
	}

	item, err := h.store.Create(c.Request.Context(), inventory.CreateItem{
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		Quantity:    req.Quantity,
		Price:       req.Price,
	})
	if err != nil {
		c.JSON(statusFromError(err), errorResponse(err.Error()))
		return
	}

	h.InvalidateItemCaches(c.Request.Context())
	c.JSON(http.StatusCreated, successResponse("Item created", item))
}

func (h *ItemsHandler) GetItem(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid item ID"))
		return
	}

	cacheKey := fmt.Sprintf("%s%d", ITEM_CACHE_PREFIX, id)
	if h.redis != nil {
		if cached, err := h.redis.Get(c.Request.Context(), cacheKey).Result(); err == nil {
			var item models.Item
			if json.Unmarshal([]byte(cached), &item) == nil {
				c.JSON(http.StatusOK, successResponse("Item retrieved", item))
				return
			}
		}
	}

	item, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(statusFromError(err), errorResponse(err.Error()))
		return
	}

	if h.redis != nil {
		if payload, err := json.Marshal(item); err == nil {
			_ = h.redis.Set(c.Request.Context(), cacheKey, payload, CACHE_TTL_SHORT)
		}
	}
	c.JSON(http.StatusOK, successResponse("Item retrieved", item))
}

func (h *ItemsHandler) ListItems(c *gin.Context) {
	var q ListItemsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid query parameters"))
		return
	}

	items, total, err := h.store.List(c.Request.Context(), inventory.ListFilter{
		SearchTerm: q.SearchTerm,
		Page:       q.Page,
		PageSize:   q.PageSize,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}

	c.JSON(http.StatusOK, successWithMetaResponse("Items retrieved", items, gin.H{
		"total":     total,
		"page":      q.Page,
		"page_size": q.PageSize,
	}))
}

func (h *ItemsHandler) UpdateItem(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid item ID"))
		return
	}

	var req UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}
	if req.Quantity != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Quantity cannot be set directly, use POST /items/:id/adjust"))
		return
	}
	if !validPrice(req.Price) {
		c.JSON(http.StatusBadRequest, errorResponse("Price must be a decimal string"))
		return
	}

	item, err := h.store.UpdateDetails(c.Request.Context(), id, inventory.UpdateItem{
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
	})
	if err != nil {
		c.JSON(statusFromError(err), errorResponse(err.Error()))
		return
	}

	h.InvalidateItemCaches(c.Request.Context(), id)
	c.JSON(http.StatusOK, successResponse("Item updated", item))
}

func (h *ItemsHandler) DeleteItem(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid item ID"))
		return
	}

	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		c.JSON(statusFromError(err), errorResponse(err.Error()))
		return
	}

	h.InvalidateItemCaches(c.Request.Context(), id)
	c.JSON(http.StatusOK, successResponse("Item deleted", nil))
}

// AdjustItem is the administrative correction path: a signed delta applied
// through the ledger with reason manual_adjustment.
func (h *ItemsHandler) AdjustItem(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid item ID"))
		return
	}

	var req AdjustItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	res, err := h.engine.ApplyDelta(c.Request.Context(), ledger.Mutation{
		ItemID: id,
		Delta:  req.Delta,
		Reason: models.ReasonManualAdjustment,
	})
	if err != nil {
		c.JSON(statusFromError(err), errorResponse(err.Error()))
		return
	}

	h.InvalidateItemCaches(c.Request.Context(), id)
	c.JSON(http.StatusOK, successResponse("Quantity adjusted", gin.H{
		"new_quantity": res.NewQuantity,
		"movement":     res.Movement,
	}))
}

// ReconcileItem replays the movement log against the current quantity.
func (h *ItemsHandler) ReconcileItem(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid item ID"))
		return
	}

	rec, err := h.recorder.Reconcile(c.Request.Context(), id)
	if err != nil {
		c.JSON(statusFromError(err), errorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, successResponse("Reconciliation computed", rec))
}
