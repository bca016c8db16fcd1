package data

import (
	"context"
	"errors"

	"xinyuan_tech/checkout-service/internal/biz"
	"xinyuan_tech/checkout-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// orderRepo 订单仓库实现，只读取订单并修改状态与收件人
type orderRepo struct {
	data *Data
	log  *log.Helper
}

// NewOrderRepo 创建订单仓库
func NewOrderRepo(data *Data, logger log.Logger) biz.OrderRepo {
	return &orderRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// ListOrders 按 ID 批量查询，结果顺序与 ids 一致，不存在的 ID 被忽略
func (r *orderRepo) ListOrders(ctx context.Context, ids []uint64) ([]*biz.Order, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var models []model.Order
	if err := r.data.DB(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		r.log.Errorf("Failed to list orders %v: %v", ids, err)
		return nil, err
	}
	byID := make(map[uint64]*model.Order, len(models))
	for i := range models {
		byID[models[i].ID] = &models[i]
	}
	out := make([]*biz.Order, 0, len(models))
	for _, id := range ids {
		if m, ok := byID[id]; ok {
			out = append(out, toOrder(m))
			delete(byID, id)
		}
	}
	return out, nil
}

// GetOrder 获取订单
func (r *orderRepo) GetOrder(ctx context.Context, id uint64) (*biz.Order, error) {
	var m model.Order
	err := r.data.DB(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		r.log.Errorf("Failed to get order %d: %v", id, err)
		return nil, err
	}
	return toOrder(&m), nil
}

// UpdateStatus 批量更新订单状态
func (r *orderRepo) UpdateStatus(ctx context.Context, ids []uint64, status int) error {
	if len(ids) == 0 {
		return nil
	}
	if err := r.data.DB(ctx).Model(&model.Order{}).Where("id IN ?", ids).Update("status", status).Error; err != nil {
		r.log.Errorf("Failed to update orders %v to status %d: %v", ids, status, err)
		return err
	}
	return nil
}

// AttachRecipient 绑定收件人
func (r *orderRepo) AttachRecipient(ctx context.Context, ids []uint64, recipientID uint64) error {
	if len(ids) == 0 {
		return nil
	}
	if err := r.data.DB(ctx).Model(&model.Order{}).Where("id IN ?", ids).Update("recipient_id", recipientID).Error; err != nil {
		r.log.Errorf("Failed to attach recipient %d to orders %v: %v", recipientID, ids, err)
		return err
	}
	return nil
}

func toOrder(m *model.Order) *biz.Order {
	return &biz.Order{
		ID:              m.ID,
		UserID:          m.UserID,
		ItemName:        m.ItemName,
		ItemDescription: m.ItemDescription,
		UnitPrice:       m.UnitPrice,
		Quantity:        m.Quantity,
		TotalAmount:     m.TotalAmount,
		Status:          m.Status,
		RecipientID:     m.RecipientID,
	}
}
