package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"xinyuan_tech/checkout-service/internal/biz"
	"xinyuan_tech/checkout-service/internal/conf"
	"xinyuan_tech/checkout-service/internal/constants"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	opCreateOrder = "paypal.orders.create"
	opAuthorize   = "paypal.orders.authorize"
	opCapture     = "paypal.authorizations.capture"
	opRefund      = "paypal.captures.refund"
)

// paypalClient PayPal Checkout REST v2 客户端
type paypalClient struct {
	client *khttp.Client
	log    *log.Helper
}

// NewPayPalClient 创建 PayPal 客户端，access token 由 client credentials 自动获取与刷新
func NewPayPalClient(c *conf.Bootstrap, logger log.Logger) (biz.ProviderGateway, func(), error) {
	pp := c.GetPayPal()
	if pp.BaseURL == "" {
		return nil, nil, fmt.Errorf("client.paypal.base_url is required")
	}
	base := strings.TrimRight(pp.BaseURL, "/")
	timeout := conf.MustDuration(pp.Timeout, constants.DefaultPayPalTimeout)

	// token 请求同样受超时约束
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: timeout})
	credentials := &clientcredentials.Config{
		ClientID:     pp.ClientID,
		ClientSecret: pp.ClientSecret,
		TokenURL:     base + "/v1/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	client, err := khttp.NewClient(context.Background(),
		khttp.WithEndpoint(base),
		khttp.WithTimeout(timeout),
		khttp.WithTransport(&oauth2.Transport{
			Source: credentials.TokenSource(tokenCtx),
			Base:   http.DefaultTransport,
		}),
		khttp.WithMiddleware(requestHeaders()),
		khttp.WithErrorDecoder(decodeProviderError),
		khttp.WithResponseDecoder(decodeProviderResponse),
	)
	if err != nil {
		return nil, nil, err
	}

	helper := log.NewHelper(log.With(logger, "module", "data/paypal"))
	cleanup := func() {
		if err := client.Close(); err != nil {
			helper.Warnf("Failed to close paypal client: %v", err)
		}
	}
	return &paypalClient{client: client, log: helper}, cleanup, nil
}

// requestHeaders 为每个请求设置幂等键，创建订单时要求返回完整表示
func requestHeaders() middleware.Middleware {
	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			if tr, ok := transport.FromClientContext(ctx); ok {
				tr.RequestHeader().Set("PayPal-Request-Id", uuid.NewString())
				if tr.Operation() == opCreateOrder {
					tr.RequestHeader().Set("Prefer", "return=representation")
				}
			}
			return handler(ctx, req)
		}
	}
}

// paypalError PayPal 错误响应
type paypalError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	DebugID string `json:"debug_id"`
	Details []struct {
		Issue       string `json:"issue"`
		Description string `json:"description"`
	} `json:"details"`
}

func (e *paypalError) Error() string {
	msg := e.Name + ": " + e.Message
	if len(e.Details) > 0 {
		msg += " (" + e.Details[0].Issue + ")"
	}
	if e.DebugID != "" {
		msg += " debug_id=" + e.DebugID
	}
	return msg
}

// decodeProviderError 非 2xx 响应统一转换为 *biz.ProviderError
func decodeProviderError(ctx context.Context, res *http.Response) error {
	if res.StatusCode >= 200 && res.StatusCode <= 299 {
		return nil
	}
	defer res.Body.Close()

	operation := ""
	if tr, ok := transport.FromClientContext(ctx); ok {
		operation = tr.Operation()
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	if err != nil {
		return &biz.ProviderError{Operation: operation, StatusCode: res.StatusCode, Err: err}
	}
	pe := new(paypalError)
	if err := json.Unmarshal(body, pe); err != nil || pe.Name == "" {
		return &biz.ProviderError{Operation: operation, StatusCode: res.StatusCode, Err: fmt.Errorf("%s", strings.TrimSpace(string(body)))}
	}
	return &biz.ProviderError{Operation: operation, StatusCode: res.StatusCode, Err: pe}
}

// decodeProviderResponse 2xx 响应解析失败时保留状态码，服务商可能已经执行了操作
func decodeProviderResponse(ctx context.Context, res *http.Response, v interface{}) error {
	defer res.Body.Close()

	operation := ""
	if tr, ok := transport.FromClientContext(ctx); ok {
		operation = tr.Operation()
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return &biz.ProviderError{Operation: operation, StatusCode: res.StatusCode, Err: fmt.Errorf("%w: %v", biz.ErrMalformedResponse, err)}
	}
	if len(body) == 0 {
		return nil
	}
	if err := khttp.CodecForResponse(res).Unmarshal(body, v); err != nil {
		return &biz.ProviderError{Operation: operation, StatusCode: res.StatusCode, Err: fmt.Errorf("%w: %v", biz.ErrMalformedResponse, err)}
	}
	return nil
}

func (c *paypalClient) post(ctx context.Context, operation, path string, in, out interface{}) error {
	err := c.client.Invoke(ctx, http.MethodPost, path, in, out, khttp.Operation(operation))
	if err == nil {
		return nil
	}
	c.log.Errorf("PayPal %s %s failed: %v", operation, path, err)
	var pe *biz.ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	// 超时、连接失败等没有拿到响应的错误
	return &biz.ProviderError{Operation: operation, Err: err}
}

// CreateOrder POST /v2/checkout/orders
func (c *paypalClient) CreateOrder(ctx context.Context, req *biz.CreateOrderRequest) (*biz.OrderResponse, error) {
	out := new(biz.OrderResponse)
	if err := c.post(ctx, opCreateOrder, "/v2/checkout/orders", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// AuthorizeOrder POST /v2/checkout/orders/{id}/authorize
func (c *paypalClient) AuthorizeOrder(ctx context.Context, orderID string, amount *biz.Money) (*biz.OrderResponse, error) {
	out := new(biz.OrderResponse)
	path := "/v2/checkout/orders/" + url.PathEscape(orderID) + "/authorize"
	if err := c.post(ctx, opAuthorize, path, &biz.AuthorizeRequest{Amount: amount}, out); err != nil {
		return nil, err
	}
	return out, nil
}

// CaptureAuthorization POST /v2/payments/authorizations/{id}/capture
func (c *paypalClient) CaptureAuthorization(ctx context.Context, authorizationID string, req *biz.CaptureRequest) (*biz.CaptureResponse, error) {
	out := new(biz.CaptureResponse)
	path := "/v2/payments/authorizations/" + url.PathEscape(authorizationID) + "/capture"
	if err := c.post(ctx, opCapture, path, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// RefundCapture POST /v2/payments/captures/{id}/refund
func (c *paypalClient) RefundCapture(ctx context.Context, captureID string, req *biz.RefundRequest) (*biz.RefundResponse, error) {
	out := new(biz.RefundResponse)
	path := "/v2/payments/captures/" + url.PathEscape(captureID) + "/refund"
	if err := c.post(ctx, opRefund, path, req, out); err != nil {
		return nil, err
	}
	return out, nil
}
