package biz

import (
	"context"
	"errors"
	"time"

	"xinyuan_tech/checkout-service/internal/conf"
	"xinyuan_tech/checkout-service/internal/constants"
	"xinyuan_tech/checkout-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
)

var (
	// ErrLedgerNotFound 支付单不存在
	ErrLedgerNotFound = errors.New("ledger record not found")
	// ErrLedgerCreateFailed 支付单落库失败（已整体回滚）
	ErrLedgerCreateFailed = errors.New("something went wrong with DB")
	// ErrLedgerBusy 支付单正在被其他请求处理
	ErrLedgerBusy = errors.New("ledger record is locked by another request")
	// ErrOrdersNotFound 待结账订单不存在或不属于该用户
	ErrOrdersNotFound = errors.New("orders not found")
	// ErrRecipientNotFound 收件人不存在
	ErrRecipientNotFound = errors.New("recipient not found")
	// ErrNotCapturable 支付单没有可请款的授权
	ErrNotCapturable = errors.New("ledger record has nothing to capture")
	// ErrOrderLinkNotFound 订单没有关联支付单
	ErrOrderLinkNotFound = errors.New("order is not linked to a ledger record")
)

// RejectedError 授权结果校验失败，Reason 为可读原因
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string { return "authorization rejected: " + e.Reason }

// CaptureResult 单条支付单的请款结果
type CaptureResult struct {
	MerchantTradeNo string
	Captured        bool
	CaptureID       string
	ErrorMessage    string
}

// CheckoutUsecase 支付状态机
type CheckoutUsecase struct {
	ledgerRepo    LedgerRepo
	linkRepo      OrderLinkRepo
	orderRepo     OrderRepo
	recipientRepo RecipientRepo
	gateway       ProviderGateway
	tm            Transaction
	locker        Locker
	notifier      Notifier
	metrics       *metrics.Checkout
	config        *conf.Bootstrap
	log           *log.Helper

	now func() time.Time
}

// NewCheckoutUsecase 创建支付状态机
func NewCheckoutUsecase(
	ledgerRepo LedgerRepo,
	linkRepo OrderLinkRepo,
	orderRepo OrderRepo,
	recipientRepo RecipientRepo,
	gateway ProviderGateway,
	tm Transaction,
	locker Locker,
	notifier Notifier,
	m *metrics.Checkout,
	config *conf.Bootstrap,
	logger log.Logger,
) *CheckoutUsecase {
	return &CheckoutUsecase{
		ledgerRepo:    ledgerRepo,
		linkRepo:      linkRepo,
		orderRepo:     orderRepo,
		recipientRepo: recipientRepo,
		gateway:       gateway,
		tm:            tm,
		locker:        locker,
		notifier:      notifier,
		metrics:       m,
		config:        config,
		log:           log.NewHelper(log.With(logger, "module", "biz/checkout")),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// GetLedger 按商户交易号查询支付单及其订单关联
func (uc *CheckoutUsecase) GetLedger(ctx context.Context, merchantTradeNo string) (*LedgerRecord, []*OrderLink, error) {
	rec, err := uc.ledgerRepo.GetByMerchantTradeNo(ctx, merchantTradeNo)
	if err != nil {
		return nil, nil, err
	}
	if rec == nil {
		return nil, nil, ErrLedgerNotFound
	}
	links, err := uc.linkRepo.ListByLedger(ctx, rec.ID)
	if err != nil {
		return nil, nil, err
	}
	return rec, links, nil
}

// withLedgerLock 持有支付单锁执行 fn
func (uc *CheckoutUsecase) withLedgerLock(ctx context.Context, merchantTradeNo string, fn func() error) error {
	unlock, err := uc.locker.Lock(ctx, constants.LedgerLockPrefix+merchantTradeNo)
	if err != nil {
		uc.log.Infof("Ledger %s is locked by another request: %v", merchantTradeNo, err)
		return err
	}
	defer unlock()
	return fn()
}

// paymentServiceLinks 只保留当前服务商的订单关联
func (uc *CheckoutUsecase) paymentServiceLinks(links []*OrderLink) []*OrderLink {
	id := uc.config.GetCheckout().PaymentServiceID
	out := make([]*OrderLink, 0, len(links))
	for _, l := range links {
		if l.PaymentServiceID == id {
			out = append(out, l)
		}
	}
	return out
}

// mirrorStatus 把支付单状态同步到订单关联及其订单
func (uc *CheckoutUsecase) mirrorStatus(ctx context.Context, links []*OrderLink, status int) error {
	if len(links) == 0 {
		return nil
	}
	if err := uc.orderRepo.UpdateStatus(ctx, linkOrderIDs(links), status); err != nil {
		return err
	}
	if err := uc.linkRepo.UpdateStatus(ctx, linkIDs(links), status); err != nil {
		return err
	}
	for _, l := range links {
		l.Status = status
	}
	return nil
}
