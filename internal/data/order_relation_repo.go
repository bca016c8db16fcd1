package data

import (
	"context"
	"errors"

	"xinyuan_tech/checkout-service/internal/biz"
	"xinyuan_tech/checkout-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// orderRelationRepo 订单关联仓库实现
type orderRelationRepo struct {
	data *Data
	log  *log.Helper
}

// NewOrderRelationRepo 创建订单关联仓库
func NewOrderRelationRepo(data *Data, logger log.Logger) biz.OrderLinkRepo {
	return &orderRelationRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// CreateLinks 逐条写入关联，任一失败由外层事务回滚
func (r *orderRelationRepo) CreateLinks(ctx context.Context, links []*biz.OrderLink) error {
	for _, l := range links {
		m := &model.OrderRelation{
			PaymentServiceID:      l.PaymentServiceID,
			PaymentServiceOrderID: l.LedgerID,
			OrderID:               l.OrderID,
			Status:                l.Status,
		}
		if err := r.data.DB(ctx).Create(m).Error; err != nil {
			r.log.Errorf("Failed to link order %d to ledger %d: %v", l.OrderID, l.LedgerID, err)
			return err
		}
		l.ID = m.ID
	}
	return nil
}

// ListByLedger 支付单下的全部关联
func (r *orderRelationRepo) ListByLedger(ctx context.Context, ledgerID uint64) ([]*biz.OrderLink, error) {
	var models []model.OrderRelation
	if err := r.data.DB(ctx).Where("payment_service_order_id = ?", ledgerID).Order("id ASC").Find(&models).Error; err != nil {
		r.log.Errorf("Failed to list order relations of ledger %d: %v", ledgerID, err)
		return nil, err
	}
	out := make([]*biz.OrderLink, 0, len(models))
	for i := range models {
		out = append(out, toOrderLink(&models[i]))
	}
	return out, nil
}

// GetLatestByOrder 订单最近一次的关联
func (r *orderRelationRepo) GetLatestByOrder(ctx context.Context, paymentServiceID, orderID uint64) (*biz.OrderLink, error) {
	var m model.OrderRelation
	err := r.data.DB(ctx).
		Where("payment_service_id = ? AND order_id = ?", paymentServiceID, orderID).
		Order("id DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		r.log.Errorf("Failed to get order relation of order %d: %v", orderID, err)
		return nil, err
	}
	return toOrderLink(&m), nil
}

// UpdateStatus 批量更新关联状态
func (r *orderRelationRepo) UpdateStatus(ctx context.Context, ids []uint64, status int) error {
	if len(ids) == 0 {
		return nil
	}
	if err := r.data.DB(ctx).Model(&model.OrderRelation{}).Where("id IN ?", ids).Update("status", status).Error; err != nil {
		r.log.Errorf("Failed to update order relations %v to status %d: %v", ids, status, err)
		return err
	}
	return nil
}

func toOrderLink(m *model.OrderRelation) *biz.OrderLink {
	return &biz.OrderLink{
		ID:               m.ID,
		PaymentServiceID: m.PaymentServiceID,
		LedgerID:         m.PaymentServiceOrderID,
		OrderID:          m.OrderID,
		Status:           m.Status,
	}
}
