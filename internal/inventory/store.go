package inventory

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"gudang-system/internal/database/models"
)

var (
	ErrNotFound         = errors.New("item not found")
	ErrDuplicateCode    = errors.New("item code already exists")
	ErrItemHasMovements = errors.New("item has movement history")
)

// Store owns Item rows. Quantity is readable here but never writable: every
// quantity change goes through the ledger engine.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

type CreateItem struct {
	Code        string
	Name        string
	Description *string
	Quantity    int64
	Price       *string
}

func (s *Store) Create(ctx context.Context, in CreateItem) (*models.Item, error) {
	if in.Quantity < 0 {
		return nil, fmt.Errorf("initial quantity must not be negative, got %d", in.Quantity)
	}

	item := models.Item{
		Code:            in.Code,
		Name:            in.Name,
		Description:     in.Description,
		Quantity:        in.Quantity,
		InitialQuantity: in.Quantity,
		Price:           in.Price,
	}
	if err := s.db.WithContext(ctx).Create(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCode, in.Code)
		}
		return nil, fmt.Errorf("create item: %w", err)
	}
	return &item, nil
}

func (s *Store) Get(ctx context.Context, id int64) (*models.Item, error) {
	var item models.Item
	if err := s.db.WithContext(ctx).First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get item %d: %w", id, err)
	}
	return &item, nil
}

func (s *Store) GetByCode(ctx context.Context, code string) (*models.Item, error) {
	var item models.Item
	if err := s.db.WithContext(ctx).Where("code = ?", code).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get item by code %s: %w", code, err)
	}
	return &item, nil
}

type ListFilter struct {
	SearchTerm string
	Page       int
	PageSize   int
}

func (s *Store) List(ctx context.Context, f ListFilter) ([]models.Item, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Item{})

	if f.SearchTerm != "" {
		term := "%" + f.SearchTerm + "%"
		query = query.Where("code LIKE ? OR name LIKE ?", term, term)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count items: %w", err)
	}

	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}

	var items []models.Item
	err := query.Order("name ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&items).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list items: %w", err)
	}
	return items, total, nil
}

// UpdateItem carries the fields a caller may change. Quantity is deliberately
// absent.
type UpdateItem struct {
	Code        *string
	Name        *string
	Description *string
	Price       *string
}

func (s *Store) UpdateDetails(ctx context.Context, id int64, in UpdateItem) (*models.Item, error) {
	var item models.Item
	if err := s.db.WithContext(ctx).First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get item %d: %w", id, err)
	}

	updates := map[string]interface{}{}
	if in.Code != nil {
		updates["code"] = *in.Code
	}
	if in.Name != nil {
		updates["name"] = *in.Name
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if in.Price != nil {
		updates["price"] = *in.Price
	}
	if len(updates) == 0 {
		return &item, nil
	}

	if err := s.db.WithContext(ctx).Model(&item).Updates(updates).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCode, *in.Code)
		}
		return nil, fmt.Errorf("update item %d: %w", id, err)
	}
	return &item, nil
}

// Delete refuses items with movement history; the log is append-only and must
// not be orphaned. Drain the stock through an adjustment first if the item is
// truly gone.
func (s *Store) Delete(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.StockMovement{}).Where("item_id = ?", id).Count(&count).Error; err != nil {
			return fmt.Errorf("count movements for item %d: %w", id, err)
		}
		if count > 0 {
			return fmt.Errorf("%w: item %d has %d movements", ErrItemHasMovements, id, count)
		}

		result := tx.Delete(&models.Item{}, id)
		if result.Error != nil {
			return fmt.Errorf("delete item %d: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
