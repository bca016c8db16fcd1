package constants

import "time"

// 支付单（Ledger Record）与订单关联状态码，全系统共用的封闭枚举
const (
	// StatusCreated 已创建，尚未提交到支付服务商
	StatusCreated = 1
	// StatusPendingApproval 已在服务商创建订单，等待买家授权
	StatusPendingApproval = 2
	// StatusApproved 买家已在服务商页面确认
	StatusApproved = 3
	// StatusCancelled 已取消 / 已退款
	StatusCancelled = 4
	// StatusAwaitingAuthorization 授权前的中间状态（由订单系统写入）
	StatusAwaitingAuthorization = 5
	// StatusAuthorized 已授权，等待请款
	StatusAuthorized = 6
	// StatusCaptured 已请款
	StatusCaptured = 7
)

// 服务商返回的状态值
const (
	ProviderStatusCompleted = "COMPLETED"
	ProviderStatusCreated   = "CREATED"
	ProviderLinkApprove     = "approve"
)

// DefaultCurrency 请款/退款未指定币种时的兜底币种
const DefaultCurrency = "USD"

// 分布式锁相关常量
const (
	// LedgerLockPrefix 支付单锁前缀，按商户交易号加锁
	LedgerLockPrefix = "checkout_lock:ledger:"
	// DefaultLockExpiration 支付单锁默认过期时间
	DefaultLockExpiration = 2 * time.Minute
	// LockExpiryMargin 锁过期时间在两次服务商调用（token + 业务请求）之外的余量
	LockExpiryMargin = 10 * time.Second
)

// DefaultPayPalTimeout PayPal 单次请求默认超时
const DefaultPayPalTimeout = 30 * time.Second

// 定时任务相关常量
const (
	// DefaultDailyCaptureSpec 每日请款任务默认执行时间（凌晨 3 点）
	DefaultDailyCaptureSpec = "0 0 3 * * *"
	// DefaultSweepTimeout 每日请款任务超时
	DefaultSweepTimeout = 10 * time.Minute
)

// 通知相关常量
const (
	// DefaultNotificationTopic 付款成功通知的 Kafka topic
	DefaultNotificationTopic = "checkout.payment-confirmed"
	// DefaultNotificationQueueSize 通知队列缓冲大小
	DefaultNotificationQueueSize = 256
	// EventPaymentConfirmed 付款成功事件类型
	EventPaymentConfirmed = "payment.confirmed"
)

// MerchantTradeNoPrefix 商户交易号前缀
const MerchantTradeNoPrefix = "PP"
