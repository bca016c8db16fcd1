package model

import "time"

// OrderRelation 支付单与订单关联模型
type OrderRelation struct {
	ID                    uint64    `gorm:"primaryKey;column:id"`
	PaymentServiceID      uint64    `gorm:"column:payment_service_id"`
	PaymentServiceOrderID uint64    `gorm:"column:payment_service_order_id;uniqueIndex:uk_ledger_order,priority:1"`
	OrderID               uint64    `gorm:"column:order_id;uniqueIndex:uk_ledger_order,priority:2;index"`
	Status                int       `gorm:"column:status"`
	CreatedAt             time.Time `gorm:"column:created_at"`
	UpdatedAt             time.Time `gorm:"column:updated_at"`
}

func (OrderRelation) TableName() string { return "order_relations" }
