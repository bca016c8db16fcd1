package errors

import (
	pkgErrors "github.com/gaoyong06/go-pkg/errors"
	i18nPkg "github.com/gaoyong06/go-pkg/middleware/i18n"
)

func init() {
	// 初始化全局错误管理器（使用项目特定的配置）
	pkgErrors.InitGlobalErrorManager("i18n", i18nPkg.Language)
}

// 结账服务错误码定义
// 错误码格式：SSMMEE (6位数字)，其中 SS=14 表示 checkout-service
// 模块划分：
//   01: 支付单
//   02: 授权
//   03: 请款
//   04: 退款
//   05: 支付服务商

// 支付单模块 (140100-140199)
const (
	// ErrCodeLedgerNotFound 支付单不存在
	ErrCodeLedgerNotFound = 140101
	// ErrCodeLedgerCreateFailed 支付单创建失败
	ErrCodeLedgerCreateFailed = 140102
	// ErrCodeOrdersNotFound 待结账订单不存在
	ErrCodeOrdersNotFound = 140103
	// ErrCodeRecipientNotFound 收件人不存在
	ErrCodeRecipientNotFound = 140104
	// ErrCodeLedgerBusy 支付单正在被其他请求处理
	ErrCodeLedgerBusy = 140105
)

// 授权模块 (140200-140299)
const (
	// ErrCodeAuthorizationRejected 授权结果校验失败
	ErrCodeAuthorizationRejected = 140201
)

// 请款模块 (140300-140399)
const (
	// ErrCodeNotCapturable 支付单没有可请款的授权
	ErrCodeNotCapturable = 140301
)

// 退款模块 (140400-140499)
const (
	// ErrCodeOrderLinkNotFound 订单未关联支付单
	ErrCodeOrderLinkNotFound = 140402
)

// 支付服务商模块 (140500-140599)
const (
	// ErrCodeProviderUnavailable 支付服务商调用失败
	ErrCodeProviderUnavailable = 140501
)
