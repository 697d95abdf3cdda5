package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"gudang-system/internal/database/models"
)

// Recorder is the read side of the movement log. Appends happen only inside
// the engine's transaction; there is no update or delete.
type Recorder struct {
	db *gorm.DB
}

func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db}
}

func (r *Recorder) ListByItem(ctx context.Context, itemID int64) ([]models.StockMovement, error) {
	var movements []models.StockMovement
	err := r.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("occurred_at ASC, id ASC").
		Find(&movements).Error
	if err != nil {
		return nil, fmt.Errorf("list movements for item %d: %w", itemID, err)
	}
	return movements, nil
}

// ListByReason returns movements with the given reason inside [from, to].
// An inverted range yields an empty slice, not an error.
func (r *Recorder) ListByReason(ctx context.Context, reason models.MovementReason, from, to time.Time) ([]models.StockMovement, error) {
	if !reason.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidReason, reason)
	}
	if from.After(to) {
		return []models.StockMovement{}, nil
	}

	var movements []models.StockMovement
	err := r.db.WithContext(ctx).
		Where("reason = ? AND occurred_at >= ? AND occurred_at <= ?", reason, from, to).
		Order("occurred_at ASC, id ASC").
		Find(&movements).Error
	if err != nil {
		return nil, fmt.Errorf("list movements by reason %s: %w", reason, err)
	}
	return movements, nil
}

type Reconciliation struct {
	ItemID        int64 `json:"item_id"`
	Expected      int64 `json:"expected"`
	Actual        int64 `json:"actual"`
	MovementCount int64 `json:"movement_count"`
	Balanced      bool  `json:"balanced"`
}

// Reconcile replays the movement log for one item and checks that the initial
// quantity plus the sum of deltas matches the current quantity.
func (r *Recorder) Reconcile(ctx context.Context, itemID int64) (*Reconciliation, error) {
	var item models.Item
	if err := r.db.WithContext(ctx).First(&item, itemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("load item %d: %w", itemID, err)
	}

	movements, err := r.ListByItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	expected := item.InitialQuantity
	for _, m := range movements {
		expected += m.Delta
	}

	return &Reconciliation{
		ItemID:        itemID,
		Expected:      expected,
		Actual:        item.Quantity,
		MovementCount: int64(len(movements)),
		Balanced:      expected == item.Quantity,
	}, nil
}
