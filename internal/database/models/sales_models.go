package models

import "time"

const (
	OrderStatusPending   = "pending"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"

	PurchaseStatusPending  = "pending"
	PurchaseStatusApproved = "approved"
	PurchaseStatusDenied   = "denied"
)

type Sale struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	ItemID     int64  `gorm:"not null;index"`
	Quantity   int64  `gorm:"not null"`
	UnitPrice  string `gorm:"type:varchar(32);not null"`
	TotalPrice string `gorm:"type:varchar(32);not null"`
	SaleDate   time.Time
	CreatedBy  *int64
	CreatedAt  time.Time

	Item *Item `gorm:"foreignKey:ItemID"`
}

type Order struct {
	ID              int64  `gorm:"primaryKey;autoIncrement"`
	CustomerName    string `gorm:"size:255;not null"`
	CustomerEmail   string `gorm:"size:255;not null"`
	CustomerPhone   string `gorm:"size:50;not null"`
	CustomerAddress string `gorm:"type:text;not null"`
	ItemID          int64  `gorm:"not null;index"`
	// ItemName is snapshotted at placement so reports survive item renames.
	ItemName      string  `gorm:"size:255;not null"`
	Quantity      int64   `gorm:"not null"`
	TotalPrice    string  `gorm:"type:varchar(32);not null"`
	PaymentMethod string  `gorm:"size:32;not null"`
	Notes         *string `gorm:"type:text"`
	Status        string  `gorm:"size:32;not null;default:'pending'"`
	CreatedBy     *int64
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Item *Item `gorm:"foreignKey:ItemID"`
}

type PurchaseRequest struct {
	ID             int64   `gorm:"primaryKey;autoIncrement"`
	ItemName       string  `gorm:"size:255;not null"`
	ItemCode       *string `gorm:"size:100"`
	Quantity       int64   `gorm:"not null"`
	EstimatedPrice *string `gorm:"type:varchar(32)"`
	Status         string  `gorm:"size:32;not null;default:'pending'"`
	RequestedBy    int64   `gorm:"not null"`
	ApprovedBy     *int64
	Notes          *string `gorm:"type:text"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
