package data

import (
	"context"
	"errors"

	"xinyuan_tech/checkout-service/internal/biz"
	"xinyuan_tech/checkout-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

type recipientRepo struct {
	data *Data
	log  *log.Helper
}

// NewRecipientRepo 创建收件人仓库
func NewRecipientRepo(data *Data, logger log.Logger) biz.RecipientRepo {
	return &recipientRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

func (r *recipientRepo) GetRecipient(ctx context.Context, id uint64) (*biz.Recipient, error) {
	var m model.Recipient
	err := r.data.DB(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		r.log.Errorf("Failed to get recipient %d: %v", id, err)
		return nil, err
	}
	return &biz.Recipient{
		ID:          m.ID,
		Name:        m.Name,
		Others:      m.Others,
		District:    m.District,
		City:        m.City,
		Postcode:    m.Postcode,
		CountryCode: m.CountryCode,
		Phone:       m.Phone,
	}, nil
}
