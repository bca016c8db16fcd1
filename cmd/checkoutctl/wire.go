//go:build wireinject
// +build wireinject

package main

import (
	"xinyuan_tech/checkout-service/internal/biz"
	"xinyuan_tech/checkout-service/internal/conf"
	"xinyuan_tech/checkout-service/internal/data"
	"xinyuan_tech/checkout-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// wireUsecase 初始化支付状态机
func wireUsecase(*conf.Bootstrap, log.Logger) (*biz.CheckoutUsecase, func(), error) {
	panic(wire.Build(data.ProviderSet, biz.ProviderSet, metrics.ProviderSet))
}
