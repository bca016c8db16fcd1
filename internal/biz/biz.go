package biz

import (
	"context"

	"github.com/google/wire"
)

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(NewCheckoutUsecase)

// Transaction 事务接口，fn 内的所有 repo 调用共享同一个事务
type Transaction interface {
	Exec(ctx context.Context, fn func(ctx context.Context) error) error
}

// Locker 支付单级别的分布式锁
// Lock 获取失败（锁被占用）时返回 ErrLedgerBusy，成功时返回释放函数
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Notifier 付款成功通知（异步队列）
// 入队不阻塞、不返回错误，失败由队列自身记录
type Notifier interface {
	EnqueuePaymentConfirmation(ctx context.Context, rec *LedgerRecord, links []*OrderLink)
}
