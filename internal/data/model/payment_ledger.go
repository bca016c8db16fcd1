package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentLedger 支付单模型
type PaymentLedger struct {
	ID                 uint64          `gorm:"primaryKey;column:id"`
	UserID             uint64          `gorm:"column:user_id;index"`
	PaymentServiceID   uint64          `gorm:"column:payment_service_id"`
	RecipientID        uint64          `gorm:"column:recipient_id"`
	PaymentID          *string         `gorm:"column:payment_id;size:64;uniqueIndex"`
	AuthorizationID    *string         `gorm:"column:authorization_id;size:64"`
	CaptureID          *string         `gorm:"column:capture_id;size:64"`
	MerchantTradeNo    string          `gorm:"column:merchant_trade_no;size:32;uniqueIndex"`
	TotalAmount        decimal.Decimal `gorm:"column:total_amount;type:decimal(12,2)"`
	ToBeCapturedAmount decimal.Decimal `gorm:"column:to_be_captured_amount;type:decimal(12,2)"`
	McCurrency         string          `gorm:"column:mc_currency;size:3"`
	TradeDesc          string          `gorm:"column:trade_desc;size:200"`
	ItemName           string          `gorm:"column:item_name;size:400"`
	ClientBackURL      string          `gorm:"column:client_back_url;size:200"`
	Status             int             `gorm:"column:status;index"`

	ExpiryTime              *time.Time `gorm:"column:expiry_time"`
	ApproveDate             *time.Time `gorm:"column:approve_date"`
	ToBeCapturedDate        *time.Time `gorm:"column:to_be_captured_date;index"`
	AuthorizationExpiryDate *time.Time `gorm:"column:authorization_expiry_date"`
	ToBeCompletedDate       *time.Time `gorm:"column:to_be_completed_date"`
	CreatedAt               time.Time  `gorm:"column:created_at"`
	UpdatedAt               time.Time  `gorm:"column:updated_at"`
}

func (PaymentLedger) TableName() string { return "payment_ledger" }
