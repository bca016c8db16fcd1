//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package main

import (
	"xinyuan_tech/checkout-service/internal/biz"
	"xinyuan_tech/checkout-service/internal/conf"
	"xinyuan_tech/checkout-service/internal/data"
	"xinyuan_tech/checkout-service/internal/metrics"
	"xinyuan_tech/checkout-service/internal/server"
	"xinyuan_tech/checkout-service/internal/service"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// wireApp init kratos application.
func wireApp(*conf.Bootstrap, log.Logger) (*kratos.App, func(), error) {
	panic(wire.Build(server.ProviderSet, data.ProviderSet, biz.ProviderSet, service.ProviderSet, metrics.ProviderSet, newApp))
}
