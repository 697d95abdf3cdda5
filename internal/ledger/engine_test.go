package ledger

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"pgregory.net/rapid"

	"gudang-system/internal/database"
	"gudang-system/internal/database/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "ledger.db")), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	return db
}

func createItem(t *testing.T, db *gorm.DB, code string, quantity int64) *models.Item {
	t.Helper()
	item := &models.Item{
		Code:            code,
		Name:            "Item " + code,
		Quantity:        quantity,
		InitialQuantity: quantity,
	}
	require.NoError(t, db.Create(item).Error)
	return item
}

func countMovements(t *testing.T, db *gorm.DB, itemID int64) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&models.StockMovement{}).Where("item_id = ?", itemID).Count(&count).Error)
	return count
}

func currentQuantity(t *testing.T, db *gorm.DB, itemID int64) int64 {
	t.Helper()
	var item models.Item
	require.NoError(t, db.First(&item, itemID).Error)
	return item.Quantity
}

func TestApplyDelta_SaleDecrementsAndRecords(t *testing.T) {
	db := newTestDB(t)
	engine := NewEngine(db, time.Second)
	item := createItem(t, db, "SKU-001", 10)

	saleID := int64(41)
	res, err := engine.ApplyDelta(context.Background(), Mutation{
		ItemID:      item.ID,
		Delta:       -3,
		Reason:      models.ReasonSaleRegistered,
		ReferenceID: &saleID,
	})
	require.NoError(t, err)
	require.EqualValues(t, 7, res.NewQuantity)
	require.EqualValues(t, 7, currentQuantity(t, db, item.ID))

	var movements []models.StockMovement
	require.NoError(t, db.Where("item_id = ?", item.ID).Find(&movements).Error)
	require.Len(t, movements, 1)
	require.EqualValues(t, -3, movements[0].Delta)
	require.Equal(t, models.ReasonSaleRegistered, movements[0].Reason)
	require.NotNil(t, movements[0].ReferenceID)
	require.EqualValues(t, saleID, *movements[0].ReferenceID)
}

func TestApplyDelta_InsufficientStock(t *testing.T) {
	db := newTestDB(t)
	engine := NewEngine(db, time.Second)
	item := createItem(t, db, "SKU-002", 2)

	_, err := engine.ApplyDelta(context.Background(), Mutation{
		ItemID: item.ID,
		Delta:  -5,
		Reason: models.ReasonOrderPlaced,
	})
	require.ErrorIs(t, err, ErrInsufficientStock)
	require.EqualValues(t, 2, currentQuantity(t, db, item.ID))
	require.EqualValues(t, 0, countMovements(t, db, item.ID))
}

func TestApplyDelta_UnknownItem(t *testing.T) {
	db := newTestDB(t)
	engine := NewEngine(db, time.Second)

	_, err := engine.ApplyDelta(context.Background(), Mutation{
		ItemID: 9999,
		Delta:  -1,
		Reason: models.ReasonManualAdjustment,
	})
	require.ErrorIs(t, err, ErrItemNotFound)

	var count int64
	require.NoError(t, db.Model(&models.StockMovement{}).Count(&count).Error)
	require.EqualValues(t, 0, count)
}

func TestApplyDelta_ZeroDelta(t *testing.T) {
	db := newTestDB(t)
	engine := NewEngine(db, time.Second)
	item := createItem(t, db, "SKU-003", 5)

	_, err := engine.ApplyDelta(context.Background(), Mutation{
		ItemID: item.ID,
		Delta:  0,
		Reason: models.ReasonManualAdjustment,
	})
	require.ErrorIs(t, err, ErrZeroDelta)
}

func TestApplyDelta_InvalidReason(t *testing.T) {
	db := newTestDB(t)
	engine := NewEngine(db, time.Second)
	item := createItem(t, db, "SKU-004", 5)

	_, err := engine.ApplyDelta(context.Background(), Mutation{
		ItemID: item.ID,
		Delta:  1,
		Reason: models.MovementReason("shrinkage"),
	})
	require.ErrorIs(t, err, ErrInvalidReason)
}

func TestApplyDelta_PrepareFailureRollsBackEverything(t *testing.T) {
	db := newTestDB(t)
	engine := NewEngine(db, time.Second)
	item := createItem(t, db, "SKU-005", 10)

	boom := errors.New("boom")
	_, err := engine.ApplyDelta(context.Background(), Mutation{
		ItemID: item.ID,
		Delta:  -2,
		Reason: models.ReasonSaleRegistered,
		Prepare: func(tx *gorm.DB, _ *models.Item) (*int64, error) {
			return nil, boom
		},
	})
	require.ErrorIs(t, err, boom)
	require.EqualValues(t, 10, currentQuantity(t, db, item.ID))
	require.EqualValues(t, 0, countMovements(t, db, item.ID))
}

func TestApplyDelta_PrepareSharesTransaction(t *testing.T) {
	db := newTestDB(t)
	engine := NewEngine(db, time.Second)
	item := createItem(t, db, "SKU-006", 10)

	var sale models.Sale
	res, err := engine.ApplyDelta(context.Background(), Mutation{
		ItemID: item.ID,
		Delta:  -4,
		Reason: models.ReasonSaleRegistered,
		Prepare: func(tx *gorm.DB, it *models.Item) (*int64, error) {
			sale = models.Sale{
				ItemID:     it.ID,
				Quantity:   4,
				UnitPrice:  "10.00",
				TotalPrice: "40.00",
				SaleDate:   time.Now(),
			}
			if err := tx.Create(&sale).Error; err != nil {
				return nil, err
			}
			return &sale.ID, nil
		},
	})
	require.NoError(t, err)
	require.EqualValues(t, 6, res.NewQuantity)
	require.NotNil(t, res.Movement.ReferenceID)
	require.Equal(t, sale.ID, *res.Movement.ReferenceID)

	var saleCount int64
	require.NoError(t, db.Model(&models.Sale{}).Count(&saleCount).Error)
	require.EqualValues(t, 1, saleCount)
}

func TestApplyDelta_ConcurrentPair(t *testing.T) {
	db := newTestDB(t)
	engine := NewEngine(db, 5*time.Second)
	item := createItem(t, db, "SKU-007", 5)

	deltas := []int64{-3, -4}
	errs := make([]error, len(deltas))
	var wg sync.WaitGroup
	for i, d := range deltas {
		wg.Add(1)
		go func(i int, d int64) {
			defer wg.Done()
			_, errs[i] = engine.ApplyDelta(context.Background(), Mutation{
				ItemID: item.ID,
				Delta:  d,
				Reason: models.ReasonOrderPlaced,
			})
		}(i, d)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		} else {
			require.ErrorIs(t, err, ErrInsufficientStock)
		}
	}
	require.Equal(t, 1, successes)

	final := currentQuantity(t, db, item.ID)
	require.True(t, final == 1 || final == 2, "final quantity %d", final)
	require.EqualValues(t, 1, countMovements(t, db, item.ID))
}

func TestApplyDelta_ConcurrentNeverOversells(t *testing.T) {
	const (
		initialStock  = 7
		totalRequests = 25
	)

	db := newTestDB(t)
	engine := NewEngine(db, 10*time.Second)
	item := createItem(t, db, "SKU-008", initialStock)

	var successCount, rejectCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.ApplyDelta(context.Background(), Mutation{
				ItemID: item.ID,
				Delta:  -1,
				Reason: models.ReasonSaleRegistered,
			})
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, ErrInsufficientStock):
				rejectCount.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.EqualValues(t, initialStock, successCount.Load())
	require.EqualValues(t, totalRequests-initialStock, rejectCount.Load())
	require.EqualValues(t, 0, currentQuantity(t, db, item.ID))
	require.EqualValues(t, initialStock, countMovements(t, db, item.ID))

	rec, err := NewRecorder(db).Reconcile(context.Background(), item.ID)
	require.NoError(t, err)
	require.True(t, rec.Balanced)
}

func TestItemForUpdate_RowLockByDialect(t *testing.T) {
	db := newTestDB(t)

	var item models.Item
	stmt := itemForUpdate(db.Session(&gorm.Session{DryRun: true})).Find(&item, 1).Statement
	require.NotContains(t, stmt.SQL.String(), "FOR UPDATE")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	pg, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		DryRun: true,
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	stmt = itemForUpdate(pg).Find(&item, 1).Statement
	require.Contains(t, stmt.SQL.String(), "FOR UPDATE")
}

func TestApplyDelta_CancelledBeforeAcquisition(t *testing.T) {
	db := newTestDB(t)
	engine := NewEngine(db, time.Second)
	item := createItem(t, db, "SKU-009", 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.ApplyDelta(ctx, Mutation{
		ItemID: item.ID,
		Delta:  -1,
		Reason: models.ReasonSaleRegistered,
	})
	require.ErrorIs(t, err, context.Canceled)
	require.EqualValues(t, 5, currentQuantity(t, db, item.ID))
	require.EqualValues(t, 0, countMovements(t, db, item.ID))
}

func TestApplyDelta_LockTimeout(t *testing.T) {
	db := newTestDB(t)
	engine := NewEngine(db, 50*time.Millisecond)
	item := createItem(t, db, "SKU-010", 5)

	release, err := engine.locks.Acquire(context.Background(), item.ID, time.Second)
	require.NoError(t, err)
	defer release()

	_, err = engine.ApplyDelta(context.Background(), Mutation{
		ItemID: item.ID,
		Delta:  -1,
		Reason: models.ReasonSaleRegistered,
	})
	require.ErrorIs(t, err, ErrLockTimeout)
	require.EqualValues(t, 0, countMovements(t, db, item.ID))
}

func TestApplyDelta_SequencePreservesReconciliation(t *testing.T) {
	db := newTestDB(t)
	engine := NewEngine(db, time.Second)
	recorder := NewRecorder(db)

	seq := 0
	rapid.Check(t, func(rt *rapid.T) {
		seq++
		initial := rapid.Int64Range(0, 20).Draw(rt, "initial")
		item := createItem(t, db, fmt.Sprintf("SKU-RAPID-%d", seq), initial)

		deltas := rapid.SliceOfN(
			rapid.Int64Range(-6, 6).Filter(func(d int64) bool { return d != 0 }),
			0, 12,
		).Draw(rt, "deltas")

		expected := initial
		committed := int64(0)
		for _, d := range deltas {
			_, err := engine.ApplyDelta(context.Background(), Mutation{
				ItemID: item.ID,
				Delta:  d,
				Reason: models.ReasonManualAdjustment,
			})
			if expected+d < 0 {
				if !errors.Is(err, ErrInsufficientStock) {
					rt.Fatalf("expected insufficient stock for delta %d at %d, got %v", d, expected, err)
				}
				continue
			}
			if err != nil {
				rt.Fatalf("unexpected error for delta %d at %d: %v", d, expected, err)
			}
			expected += d
			committed++
		}

		if got := currentQuantity(t, db, item.ID); got != expected {
			rt.Fatalf("final quantity %d, expected %d", got, expected)
		}
		if got := countMovements(t, db, item.ID); got != committed {
			rt.Fatalf("movement count %d, expected %d", got, committed)
		}

		rec, err := recorder.Reconcile(context.Background(), item.ID)
		if err != nil {
			rt.Fatalf("reconcile: %v", err)
		}
		if !rec.Balanced {
			rt.Fatalf("reconciliation drifted: expected %d, actual %d", rec.Expected, rec.Actual)
		}
	})
}
