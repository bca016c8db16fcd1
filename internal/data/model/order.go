package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order 订单模型（表由订单系统维护）
type Order struct {
	ID              uint64          `gorm:"primaryKey;column:id"`
	UserID          uint64          `gorm:"column:user_id;index"`
	ItemName        string          `gorm:"column:item_name"`
	ItemDescription string          `gorm:"column:item_description"`
	UnitPrice       decimal.Decimal `gorm:"column:unit_price;type:decimal(12,2)"`
	Quantity        int             `gorm:"column:quantity"`
	TotalAmount     decimal.Decimal `gorm:"column:total_amount;type:decimal(12,2)"`
	Status          int             `gorm:"column:status"`
	RecipientID     uint64          `gorm:"column:recipient_id"`
	CreatedAt       time.Time       `gorm:"column:created_at"`
	UpdatedAt       time.Time       `gorm:"column:updated_at"`
}

func (Order) TableName() string { return "orders" }
