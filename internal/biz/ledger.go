package biz

import (
	"context"
	"time"

	"xinyuan_tech/checkout-service/internal/constants"

	"github.com/shopspring/decimal"
)

// LedgerRecord 支付单（一次结账尝试对应一条）
type LedgerRecord struct {
	ID                 uint64
	UserID             uint64
	PaymentServiceID   uint64
	RecipientID        uint64
	PaymentID          string // 服务商订单号
	AuthorizationID    string
	CaptureID          string
	MerchantTradeNo    string
	TotalAmount        decimal.Decimal
	ToBeCapturedAmount decimal.Decimal
	Currency           string
	TradeDesc          string
	ItemName           string
	ClientBackURL      string
	Status             int

	ExpiryTime              *time.Time
	ApproveDate             *time.Time
	ToBeCapturedDate        *time.Time
	AuthorizationExpiryDate *time.Time
	ToBeCompletedDate       *time.Time
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// Authorized 已有授权
func (r *LedgerRecord) Authorized() bool { return r.AuthorizationID != "" }

// Captured 已请款
func (r *LedgerRecord) Captured() bool { return r.CaptureID != "" }

// Approved 买家确认已被处理过
func (r *LedgerRecord) Approved() bool { return r.ApproveDate != nil }

// Capturable 到期待请款：有授权、未请款、仍有待请款金额且请款日期已过
func (r *LedgerRecord) Capturable(now time.Time) bool {
	return r.Authorized() && !r.Captured() && r.ToBeCapturedAmount.IsPositive() &&
		r.ToBeCapturedDate != nil && r.ToBeCapturedDate.Before(now)
}

// OrderLink 支付单与订单的关联，状态镜像支付单
type OrderLink struct {
	ID               uint64
	PaymentServiceID uint64
	LedgerID         uint64
	OrderID          uint64
	Status           int
}

// Order 电商订单（由订单系统维护，这里只修改状态和收件人）
type Order struct {
	ID              uint64
	UserID          uint64
	ItemName        string
	ItemDescription string
	UnitPrice       decimal.Decimal
	Quantity        int
	TotalAmount     decimal.Decimal
	Status          int
	RecipientID     uint64
}

// Recipient 收件人快照
type Recipient struct {
	ID          uint64
	Name        string
	Others      string // 详细地址
	District    string
	City        string
	Postcode    string
	CountryCode string
	Phone       string
}

// CheckoutInfo 待结账信息，创建服务商订单后补齐服务商字段再落库
type CheckoutInfo struct {
	UserID           uint64
	PaymentServiceID uint64
	MerchantTradeNo  string
	TotalAmount      decimal.Decimal
	Currency         string
	TradeDesc        string
	ItemName         string
	ClientBackURL    string
	ExpiryTime       *time.Time
	Orders           []*Order

	// 服务商返回
	PaymentID      string
	CustomID       string
	ProviderTotal  string
	ProviderStatus string
	ApprovalLink   string
}

// LedgerRepo 支付单仓库接口，查不到时返回 nil, nil
type LedgerRepo interface {
	CreateLedger(ctx context.Context, rec *LedgerRecord) error
	GetByID(ctx context.Context, id uint64) (*LedgerRecord, error)
	GetByPaymentID(ctx context.Context, paymentID string) (*LedgerRecord, error)
	GetByMerchantTradeNo(ctx context.Context, merchantTradeNo string) (*LedgerRecord, error)
	CountByPaymentID(ctx context.Context, paymentID string) (int64, error)
	UpdateLedger(ctx context.Context, rec *LedgerRecord) error
	// ListCapturable 有授权、无请款、待请款金额大于 0 且请款日期早于 before 的支付单
	ListCapturable(ctx context.Context, before time.Time) ([]*LedgerRecord, error)
}

// OrderLinkRepo 订单关联仓库接口
type OrderLinkRepo interface {
	CreateLinks(ctx context.Context, links []*OrderLink) error
	ListByLedger(ctx context.Context, ledgerID uint64) ([]*OrderLink, error)
	// GetLatestByOrder 订单在该服务商下最近一次的关联
	GetLatestByOrder(ctx context.Context, paymentServiceID, orderID uint64) (*OrderLink, error)
	UpdateStatus(ctx context.Context, ids []uint64, status int) error
}

// OrderRepo 订单仓库接口
type OrderRepo interface {
	ListOrders(ctx context.Context, ids []uint64) ([]*Order, error)
	GetOrder(ctx context.Context, id uint64) (*Order, error)
	UpdateStatus(ctx context.Context, ids []uint64, status int) error
	AttachRecipient(ctx context.Context, ids []uint64, recipientID uint64) error
}

// RecipientRepo 收件人仓库接口
type RecipientRepo interface {
	GetRecipient(ctx context.Context, id uint64) (*Recipient, error)
}

func linkIDs(links []*OrderLink) []uint64 {
	ids := make([]uint64, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.ID)
	}
	return ids
}

func linkOrderIDs(links []*OrderLink) []uint64 {
	ids := make([]uint64, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.OrderID)
	}
	return ids
}

// capturableLink 请款时需要同步状态的关联
func capturableLink(l *OrderLink) bool {
	return l.Status == constants.StatusAwaitingAuthorization || l.Status == constants.StatusAuthorized
}
