package inventory

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"gudang-system/internal/database"
	"gudang-system/internal/database/models"
)

func newTestStore(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "inventory.db")), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return NewStore(db), db
}

func strPtr(s string) *string { return &s }

func TestStore_CreateAndGet(t *testing.T) {
	store, _ := newTestStore(t)

	created, err := store.Create(context.Background(), CreateItem{
		Code:        "WH-001",
		Name:        "Pallet Jack",
		Description: strPtr("manual, 2.5t"),
		Quantity:    12,
		Price:       strPtr("349.99"),
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	require.EqualValues(t, 12, created.Quantity)
	require.EqualValues(t, 12, created.InitialQuantity)

	got, err := store.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, "WH-001", got.Code)
	require.Equal(t, "Pallet Jack", got.Name)

	// Reads are idempotent.
	again, err := store.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, got, again)

	byCode, err := store.GetByCode(context.Background(), "WH-001")
	require.NoError(t, err)
	require.Equal(t, got.ID, byCode.ID)
}

func TestStore_CreateDuplicateCode(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Create(context.Background(), CreateItem{Code: "WH-002", Name: "Shelf", Quantity: 1})
	require.NoError(t, err)

	_, err = store.Create(context.Background(), CreateItem{Code: "WH-002", Name: "Other Shelf", Quantity: 5})
	require.ErrorIs(t, err, ErrDuplicateCode)
}

func TestStore_CreateNegativeQuantity(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Create(context.Background(), CreateItem{Code: "WH-003", Name: "Bin", Quantity: -1})
	require.Error(t, err)

	_, err = store.GetByCode(context.Background(), "WH-003")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_GetMissing(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), 12345)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = store.GetByCode(context.Background(), "NOPE")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_List(t *testing.T) {
	store, _ := newTestStore(t)

	for _, it := range []CreateItem{
		{Code: "WH-010", Name: "Forklift Battery", Quantity: 4},
		{Code: "WH-011", Name: "Forklift Charger", Quantity: 2},
		{Code: "WH-012", Name: "Hand Truck", Quantity: 9},
	} {
		_, err := store.Create(context.Background(), it)
		require.NoError(t, err)
	}

	all, total, err := store.List(context.Background(), ListFilter{})
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Len(t, all, 3)

	forklifts, total, err := store.List(context.Background(), ListFilter{SearchTerm: "Forklift"})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, forklifts, 2)

	paged, total, err := store.List(context.Background(), ListFilter{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Len(t, paged, 1)
}

func TestStore_UpdateDetails(t *testing.T) {
	store, _ := newTestStore(t)

	created, err := store.Create(context.Background(), CreateItem{Code: "WH-020", Name: "Label Printer", Quantity: 6})
	require.NoError(t, err)

	updated, err := store.UpdateDetails(context.Background(), created.ID, UpdateItem{
		Name:  strPtr("Label Printer v2"),
		Price: strPtr("89.50"),
	})
	require.NoError(t, err)
	require.Equal(t, "Label Printer v2", updated.Name)
	require.NotNil(t, updated.Price)
	require.Equal(t, "89.50", *updated.Price)

	// Detail updates never touch stock.
	got, err := store.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.EqualValues(t, 6, got.Quantity)
	require.EqualValues(t, 6, got.InitialQuantity)
}

func TestStore_UpdateDetailsDuplicateCode(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Create(context.Background(), CreateItem{Code: "WH-030", Name: "Tape", Quantity: 1})
	require.NoError(t, err)
	other, err := store.Create(context.Background(), CreateItem{Code: "WH-031", Name: "Bubble Wrap", Quantity: 1})
	require.NoError(t, err)

	_, err = store.UpdateDetails(context.Background(), other.ID, UpdateItem{Code: strPtr("WH-030")})
	require.ErrorIs(t, err, ErrDuplicateCode)
}

func TestStore_Delete(t *testing.T) {
	store, _ := newTestStore(t)

	created, err := store.Create(context.Background(), CreateItem{Code: "WH-040", Name: "Old Scanner", Quantity: 0})
	require.NoError(t, err)

	require.NoError(t, store.Delete(context.Background(), created.ID))

	_, err = store.Get(context.Background(), created.ID)
	require.ErrorIs(t, err, ErrNotFound)

	require.ErrorIs(t, store.Delete(context.Background(), created.ID), ErrNotFound)
}

func TestStore_DeleteRefusedWithMovementHistory(t *testing.T) {
	store, db := newTestStore(t)

	created, err := store.Create(context.Background(), CreateItem{Code: "WH-041", Name: "Dolly", Quantity: 5})
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.StockMovement{
		ItemID:     created.ID,
		Delta:      -2,
		Reason:     models.ReasonManualAdjustment,
		OccurredAt: time.Now(),
	}).Error)

	require.ErrorIs(t, store.Delete(context.Background(), created.ID), ErrItemHasMovements)

	// Item and its history both survive.
	_, err = store.Get(context.Background(), created.ID)
	require.NoError(t, err)
	var count int64
	require.NoError(t, db.Model(&models.StockMovement{}).Where("item_id = ?", created.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)
}
