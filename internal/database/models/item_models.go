package models

import "time"

// MovementReason is the business cause of a stock change.
type MovementReason string

const (
	ReasonSaleRegistered   MovementReason = "sale_registered"
	ReasonOrderPlaced      MovementReason = "order_placed"
	ReasonOrderCancelled   MovementReason = "order_cancelled"
	ReasonManualAdjustment MovementReason = "manual_adjustment"
	ReasonPurchaseRestock  MovementReason = "purchase_restock"
)

func (r MovementReason) Valid() bool {
	switch r {
	case ReasonSaleRegistered, ReasonOrderPlaced, ReasonOrderCancelled,
		ReasonManualAdjustment, ReasonPurchaseRestock:
		return true
	}
	return false
}

type Item struct {
	ID          int64   `gorm:"primaryKey;autoIncrement"`
	Code        string  `gorm:"size:100;uniqueIndex;not null"`
	Name        string  `gorm:"size:255;not null"`
	Description *string `gorm:"type:text"`
	// Quantity is owned by the ledger engine. Nothing else writes it.
	Quantity        int64   `gorm:"not null;default:0"`
	InitialQuantity int64   `gorm:"not null;default:0"`
	Price           *string `gorm:"type:varchar(32)"`
	CreatedAt       time.Time
	UpdatedAt       time.Time

	Movements []StockMovement `gorm:"foreignKey:ItemID"`
}

// StockMovement is append-only. Corrections are compensating movements,
// never edits.
type StockMovement struct {
	ID          int64          `gorm:"primaryKey;autoIncrement"`
	ItemID      int64          `gorm:"not null;index:idx_movements_item_occurred,priority:1"`
	Delta       int64          `gorm:"not null"`
	Reason      MovementReason `gorm:"size:32;not null;index"`
	ReferenceID *int64
	OccurredAt  time.Time `gorm:"not null;index:idx_movements_item_occurred,priority:2"`
}
