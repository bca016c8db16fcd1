package data

import (
	"context"
	"errors"
	"fmt"

	"xinyuan_tech/checkout-service/internal/biz"
	"xinyuan_tech/checkout-service/internal/conf"
	"xinyuan_tech/checkout-service/internal/constants"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redsync/redsync/v4"
)

// ledgerLocker 基于 redsync 的支付单锁
type ledgerLocker struct {
	rs   *redsync.Redsync
	opts []redsync.Option
	log  *log.Helper
}

// NewLedgerLocker 创建支付单锁，过期时间与重试次数来自 checkout 配置
func NewLedgerLocker(rs *redsync.Redsync, c *conf.Bootstrap, logger log.Logger) biz.Locker {
	cfg := c.GetCheckout()
	return &ledgerLocker{
		rs: rs,
		opts: []redsync.Option{
			redsync.WithExpiry(conf.MustDuration(cfg.LockExpiry, constants.DefaultLockExpiration)),
			redsync.WithTries(cfg.LockTries), // 默认只尝试一次，失败说明正在处理
		},
		log: log.NewHelper(logger),
	}
}

// Lock 获取锁，被占用时返回 biz.ErrLedgerBusy
func (l *ledgerLocker) Lock(ctx context.Context, key string) (func(), error) {
	mutex := l.rs.NewMutex(key, l.opts...)
	if err := mutex.LockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) {
			return nil, fmt.Errorf("%w: %s", biz.ErrLedgerBusy, key)
		}
		l.log.Errorf("Failed to acquire lock %s: %v", key, err)
		return nil, err
	}

	// 确保释放锁，请求取消后仍然要释放
	unlock := func() {
		if _, err := mutex.UnlockContext(context.WithoutCancel(ctx)); err != nil {
			l.log.Warnf("Failed to unlock %s: %v", key, err)
		}
	}
	return unlock, nil
}
