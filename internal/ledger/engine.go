package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gudang-system/internal/database/models"
)

var (
	ErrItemNotFound      = errors.New("item not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrZeroDelta         = errors.New("delta must be non-zero")
	ErrInvalidReason     = errors.New("invalid movement reason")
)

const defaultLockTimeout = 3 * time.Second

// Engine is the only writer of Item.Quantity. Every sale, order, restock and
// manual correction goes through ApplyDelta, which serializes mutations per
// item and keeps the quantity update and its movement record in one
// transaction.
type Engine struct {
	db          *gorm.DB
	locks       *lockTable
	lockTimeout time.Duration
}

func NewEngine(db *gorm.DB, lockTimeout time.Duration) *Engine {
	if lockTimeout <= 0 {
		lockTimeout = defaultLockTimeout
	}
	return &Engine{
		db:          db,
		locks:       newLockTable(),
		lockTimeout: lockTimeout,
	}
}

// Mutation describes one stock change.
type Mutation struct {
	ItemID      int64
	Delta       int64
	Reason      models.MovementReason
	ReferenceID *int64

	// Prepare, when set, runs inside the same transaction after the item has
	// been loaded and before the quantity is written. It lets the caller make
	// the originating business record (sale insert, order insert, request
	// status update) part of the same atomic unit. A non-nil return value
	// overrides ReferenceID on the recorded movement.
	Prepare func(tx *gorm.DB, item *models.Item) (*int64, error)
}

type Result struct {
	NewQuantity int64
	Movement    models.StockMovement
}

// ApplyDelta applies m atomically: under the item's lock it validates that the
// resulting quantity stays non-negative, writes the new quantity, and appends
// exactly one StockMovement. On any error both halves roll back.
func (e *Engine) ApplyDelta(ctx context.Context, m Mutation) (*Result, error) {
	if m.Delta == 0 {
		return nil, ErrZeroDelta
	}
	if !m.Reason.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidReason, m.Reason)
	}

	release, err := e.locks.Acquire(ctx, m.ItemID, e.lockTimeout)
	if err != nil {
		return nil, err
	}
	defer release()

	var res *Result
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item models.Item
		if err := itemForUpdate(tx).First(&item, m.ItemID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrItemNotFound
			}
			return fmt.Errorf("load item %d: %w", m.ItemID, err)
		}

		refID := m.ReferenceID
		if m.Prepare != nil {
			id, err := m.Prepare(tx, &item)
			if err != nil {
				return err
			}
			if id != nil {
				refID = id
			}
		}

		next := item.Quantity + m.Delta
		if next < 0 {
			return fmt.Errorf("%w: available %d, requested %d",
				ErrInsufficientStock, item.Quantity, -m.Delta)
		}

		now := time.Now()
		if err := tx.Model(&models.Item{}).Where("id = ?", item.ID).
			Updates(map[string]interface{}{"quantity": next, "updated_at": now}).Error; err != nil {
			return fmt.Errorf("update quantity for item %d: %w", item.ID, err)
		}

		movement := models.StockMovement{
			ItemID:      item.ID,
			Delta:       m.Delta,
			Reason:      m.Reason,
			ReferenceID: refID,
			OccurredAt:  now,
		}
		if err := tx.Create(&movement).Error; err != nil {
			return fmt.Errorf("record movement for item %d: %w", item.ID, err)
		}

		res = &Result{NewQuantity: next, Movement: movement}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

// itemForUpdate adds a row lock to the item load. The lock table serializes
// mutations within one process; the row lock serializes them across replicas
// sharing the database. sqlite rejects FOR UPDATE and serializes writers
// itself, so the clause is skipped there.
func itemForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
