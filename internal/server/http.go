package server

import (
	"encoding/json"
	stdhttp "net/http"

	"github.com/gaoyong06/go-pkg/health"
	"github.com/gaoyong06/go-pkg/middleware/i18n"

	"xinyuan_tech/checkout-service/internal/auth"
	"xinyuan_tech/checkout-service/internal/conf"
	bizErrors "xinyuan_tech/checkout-service/internal/errors"
	"xinyuan_tech/checkout-service/internal/metrics"
	"xinyuan_tech/checkout-service/internal/service"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/logging"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/middleware/validate"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/wire"
)

// ProviderSet is server providers.
var ProviderSet = wire.NewSet(NewHTTPServer)

// NewHTTPServer new an HTTP server.
func NewHTTPServer(c *conf.Bootstrap, checkout *service.CheckoutService, m *metrics.Checkout, logger log.Logger) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
			logging.Server(logger),
			// 网关透传的用户身份
			auth.Server(),
			// 添加参数验证中间件
			validate.Validator(),
			// 添加 i18n 中间件
			i18n.Middleware(),
		),
		http.ErrorEncoder(customErrorEncoder),
	}
	if c.Server.Http.Addr != "" {
		opts = append(opts, http.Address(c.Server.Http.Addr))
	}
	if d := conf.MustDuration(c.Server.Http.Timeout, 0); d > 0 {
		opts = append(opts, http.Timeout(d))
	}
	srv := http.NewServer(opts...)

	// 注册业务路由
	service.RegisterCheckoutHTTPServer(srv, checkout)

	// 注册健康检查端点
	srv.Route("/").GET("/health", func(ctx http.Context) error {
		return ctx.Result(200, health.NewResponse("checkout-service"))
	})
	srv.Handle("/metrics", m.Handler())

	return srv
}

func customErrorEncoder(w stdhttp.ResponseWriter, r *stdhttp.Request, err error) {
	se := kerrors.FromError(err)
	status := stdhttp.StatusInternalServerError
	response := map[string]interface{}{
		"code":    status,
		"message": "internal server error",
	}

	if se != nil {
		status = mapErrorStatus(int(se.Code))
		response["code"] = se.Code
		response["reason"] = se.Reason
		response["message"] = se.Message
		if len(se.Metadata) > 0 {
			response["metadata"] = se.Metadata
		}
	} else if err != nil {
		response["message"] = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}

// checkoutStatus 结账服务错误码对应的 HTTP 状态
var checkoutStatus = map[int]int{
	bizErrors.ErrCodeLedgerNotFound:        stdhttp.StatusNotFound,
	bizErrors.ErrCodeLedgerCreateFailed:    stdhttp.StatusInternalServerError,
	bizErrors.ErrCodeOrdersNotFound:        stdhttp.StatusNotFound,
	bizErrors.ErrCodeRecipientNotFound:     stdhttp.StatusNotFound,
	bizErrors.ErrCodeLedgerBusy:            stdhttp.StatusConflict,
	bizErrors.ErrCodeAuthorizationRejected: stdhttp.StatusConflict,
	bizErrors.ErrCodeNotCapturable:         stdhttp.StatusConflict,
	bizErrors.ErrCodeOrderLinkNotFound:     stdhttp.StatusNotFound,
	bizErrors.ErrCodeProviderUnavailable:   stdhttp.StatusBadGateway,
}

func mapErrorStatus(code int) int {
	if code >= 100 && code < 600 {
		return code
	}
	if status, ok := checkoutStatus[code]; ok {
		return status
	}
	if code >= 130000 && code < 140000 {
		return stdhttp.StatusBadRequest
	}
	return stdhttp.StatusInternalServerError
}
