package data

import (
	"context"
	"errors"
	"time"

	"xinyuan_tech/checkout-service/internal/biz"
	"xinyuan_tech/checkout-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// ledgerRepo 支付单仓库实现
type ledgerRepo struct {
	data *Data
	log  *log.Helper
}

// NewLedgerRepo 创建支付单仓库
func NewLedgerRepo(data *Data, logger log.Logger) biz.LedgerRepo {
	return &ledgerRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// CreateLedger 创建支付单，回填自增 ID
func (r *ledgerRepo) CreateLedger(ctx context.Context, rec *biz.LedgerRecord) error {
	m := toLedgerModel(rec)
	if err := r.data.DB(ctx).Create(m).Error; err != nil {
		r.log.Errorf("Failed to create ledger %s: %v", rec.MerchantTradeNo, err)
		return err
	}
	rec.ID = m.ID
	rec.CreatedAt = m.CreatedAt
	rec.UpdatedAt = m.UpdatedAt
	return nil
}

func (r *ledgerRepo) first(ctx context.Context, query string, args ...interface{}) (*biz.LedgerRecord, error) {
	var m model.PaymentLedger
	err := r.data.DB(ctx).Where(query, args...).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		r.log.Errorf("Failed to get ledger (%s %v): %v", query, args, err)
		return nil, err
	}
	return toLedger(&m), nil
}

// GetByID 按 ID 查询
func (r *ledgerRepo) GetByID(ctx context.Context, id uint64) (*biz.LedgerRecord, error) {
	return r.first(ctx, "id = ?", id)
}

// GetByPaymentID 按服务商订单号查询
func (r *ledgerRepo) GetByPaymentID(ctx context.Context, paymentID string) (*biz.LedgerRecord, error) {
	return r.first(ctx, "payment_id = ?", paymentID)
}

// GetByMerchantTradeNo 按商户交易号查询
func (r *ledgerRepo) GetByMerchantTradeNo(ctx context.Context, merchantTradeNo string) (*biz.LedgerRecord, error) {
	return r.first(ctx, "merchant_trade_no = ?", merchantTradeNo)
}

// CountByPaymentID 统计服务商订单号对应的支付单数量
func (r *ledgerRepo) CountByPaymentID(ctx context.Context, paymentID string) (int64, error) {
	var n int64
	if err := r.data.DB(ctx).Model(&model.PaymentLedger{}).Where("payment_id = ?", paymentID).Count(&n).Error; err != nil {
		r.log.Errorf("Failed to count ledger by payment id %s: %v", paymentID, err)
		return 0, err
	}
	return n, nil
}

// UpdateLedger 更新支付单的可变字段（空值同样写入）
func (r *ledgerRepo) UpdateLedger(ctx context.Context, rec *biz.LedgerRecord) error {
	m := toLedgerModel(rec)
	err := r.data.DB(ctx).Model(&model.PaymentLedger{}).Where("id = ?", rec.ID).Updates(map[string]interface{}{
		"payment_id":                m.PaymentID,
		"authorization_id":          m.AuthorizationID,
		"capture_id":                m.CaptureID,
		"total_amount":              m.TotalAmount,
		"to_be_captured_amount":     m.ToBeCapturedAmount,
		"status":                    m.Status,
		"expiry_time":               m.ExpiryTime,
		"approve_date":              m.ApproveDate,
		"to_be_captured_date":       m.ToBeCapturedDate,
		"authorization_expiry_date": m.AuthorizationExpiryDate,
		"to_be_completed_date":      m.ToBeCompletedDate,
		"updated_at":                time.Now().UTC(),
	}).Error
	if err != nil {
		r.log.Errorf("Failed to update ledger %s: %v", rec.MerchantTradeNo, err)
		return err
	}
	return nil
}

// ListCapturable 有授权、未请款、仍有待请款金额且请款日期已过的支付单
func (r *ledgerRepo) ListCapturable(ctx context.Context, before time.Time) ([]*biz.LedgerRecord, error) {
	var models []model.PaymentLedger
	err := r.data.DB(ctx).
		Where("authorization_id IS NOT NULL AND authorization_id <> ''").
		Where("capture_id IS NULL OR capture_id = ''").
		Where("to_be_captured_amount > 0").
		Where("to_be_captured_date < ?", before).
		Order("id ASC").
		Find(&models).Error
	if err != nil {
		r.log.Errorf("Failed to list capturable ledgers: %v", err)
		return nil, err
	}
	out := make([]*biz.LedgerRecord, 0, len(models))
	for i := range models {
		out = append(out, toLedger(&models[i]))
	}
	return out, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func toLedgerModel(rec *biz.LedgerRecord) *model.PaymentLedger {
	return &model.PaymentLedger{
		ID:                      rec.ID,
		UserID:                  rec.UserID,
		PaymentServiceID:        rec.PaymentServiceID,
		RecipientID:             rec.RecipientID,
		PaymentID:               nullable(rec.PaymentID),
		AuthorizationID:         nullable(rec.AuthorizationID),
		CaptureID:               nullable(rec.CaptureID),
		MerchantTradeNo:         rec.MerchantTradeNo,
		TotalAmount:             rec.TotalAmount,
		ToBeCapturedAmount:      rec.ToBeCapturedAmount,
		McCurrency:              rec.Currency,
		TradeDesc:               rec.TradeDesc,
		ItemName:                rec.ItemName,
		ClientBackURL:           rec.ClientBackURL,
		Status:                  rec.Status,
		ExpiryTime:              utc(rec.ExpiryTime),
		ApproveDate:             utc(rec.ApproveDate),
		ToBeCapturedDate:        utc(rec.ToBeCapturedDate),
		AuthorizationExpiryDate: utc(rec.AuthorizationExpiryDate),
		ToBeCompletedDate:       utc(rec.ToBeCompletedDate),
		CreatedAt:               rec.CreatedAt,
		UpdatedAt:               rec.UpdatedAt,
	}
}

func toLedger(m *model.PaymentLedger) *biz.LedgerRecord {
	return &biz.LedgerRecord{
		ID:                      m.ID,
		UserID:                  m.UserID,
		PaymentServiceID:        m.PaymentServiceID,
		RecipientID:             m.RecipientID,
		PaymentID:               deref(m.PaymentID),
		AuthorizationID:         deref(m.AuthorizationID),
		CaptureID:               deref(m.CaptureID),
		MerchantTradeNo:         m.MerchantTradeNo,
		TotalAmount:             m.TotalAmount,
		ToBeCapturedAmount:      m.ToBeCapturedAmount,
		Currency:                m.McCurrency,
		TradeDesc:               m.TradeDesc,
		ItemName:                m.ItemName,
		ClientBackURL:           m.ClientBackURL,
		Status:                  m.Status,
		ExpiryTime:              utc(m.ExpiryTime),
		ApproveDate:             utc(m.ApproveDate),
		ToBeCapturedDate:        utc(m.ToBeCapturedDate),
		AuthorizationExpiryDate: utc(m.AuthorizationExpiryDate),
		ToBeCompletedDate:       utc(m.ToBeCompletedDate),
		CreatedAt:               m.CreatedAt,
		UpdatedAt:               m.UpdatedAt,
	}
}
