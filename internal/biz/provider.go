package biz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"xinyuan_tech/checkout-service/internal/constants"

	"github.com/shopspring/decimal"
)

// ProviderGateway 结账服务商客户端接口（防腐层）
// 所有实现必须把网络/超时/非 2xx 响应包装为 *ProviderError，
// 状态机不会把它们当作业务校验失败处理。
type ProviderGateway interface {
	CreateOrder(ctx context.Context, req *CreateOrderRequest) (*OrderResponse, error)
	// AuthorizeOrder amount 为 nil 时按订单金额全额授权（请求体为 {}）
	AuthorizeOrder(ctx context.Context, orderID string, amount *Money) (*OrderResponse, error)
	CaptureAuthorization(ctx context.Context, authorizationID string, req *CaptureRequest) (*CaptureResponse, error)
	RefundCapture(ctx context.Context, captureID string, req *RefundRequest) (*RefundResponse, error)
}

// ErrProviderUnavailable 服务商传输层/接口错误
var ErrProviderUnavailable = errors.New("checkout provider unavailable")

// ErrMalformedResponse 服务商响应结构不符合预期
var ErrMalformedResponse = errors.New("malformed checkout provider response")

// ProviderError 服务商调用失败
type ProviderError struct {
	Operation  string
	StatusCode int // 0 表示请求未得到 HTTP 响应（超时、连接失败）
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("checkout provider %s failed with status %d: %v", e.Operation, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("checkout provider %s failed: %v", e.Operation, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Is(target error) bool { return target == ErrProviderUnavailable }

// Timeout 请求未得到 HTTP 响应
func (e *ProviderError) Timeout() bool { return e.StatusCode == 0 }

// Link 服务商返回的 HATEOAS 链接
type Link struct {
	Rel    string `json:"rel"`
	Href   string `json:"href"`
	Method string `json:"method,omitempty"`
}

// Money 金额，Value 为十进制字符串
type Money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

// NewMoney 构造金额，币种为空时使用 USD
func NewMoney(currency string, amount decimal.Decimal) *Money {
	if currency == "" {
		currency = constants.DefaultCurrency
	}
	return &Money{CurrencyCode: currency, Value: amount.StringFixed(2)}
}

// Decimal 解析金额
func (m *Money) Decimal() (decimal.Decimal, error) {
	if m == nil {
		return decimal.Zero, fmt.Errorf("%w: amount is missing", ErrMalformedResponse)
	}
	d, err := decimal.NewFromString(m.Value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: amount %q: %v", ErrMalformedResponse, m.Value, err)
	}
	return d, nil
}

// CreateOrderRequest 创建订单请求体
type CreateOrderRequest struct {
	Intent             string                `json:"intent"`
	ApplicationContext ApplicationContext    `json:"application_context"`
	PurchaseUnits      []PurchaseUnitRequest `json:"purchase_units"`
}

type ApplicationContext struct {
	ReturnURL           string `json:"return_url,omitempty"`
	CancelURL           string `json:"cancel_url,omitempty"`
	BrandName           string `json:"brand_name,omitempty"`
	Locale              string `json:"locale,omitempty"`
	LandingPage         string `json:"landing_page,omitempty"`
	ShippingPreferences string `json:"shipping_preference,omitempty"`
	UserAction          string `json:"user_action,omitempty"`
}

type PurchaseUnitRequest struct {
	CustomID string         `json:"custom_id"`
	Amount   AmountWithItem `json:"amount"`
	Items    []Item         `json:"items"`
	Shipping *Shipping      `json:"shipping,omitempty"`
}

type AmountWithItem struct {
	Money
	Breakdown Breakdown `json:"breakdown"`
}

type Breakdown struct {
	ItemTotal Money `json:"item_total"`
}

type Item struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	SKU         string `json:"sku"`
	UnitAmount  Money  `json:"unit_amount"`
	Quantity    string `json:"quantity"`
}

type Shipping struct {
	Name    ShippingName    `json:"name"`
	Address ShippingAddress `json:"address"`
}

type ShippingName struct {
	FullName string `json:"full_name"`
}

type ShippingAddress struct {
	AddressLine1 string `json:"address_line_1"`
	AdminArea2   string `json:"admin_area_2"`
	AdminArea1   string `json:"admin_area_1"`
	PostalCode   string `json:"postal_code"`
	CountryCode  string `json:"country_code"`
}

// AuthorizeRequest 授权请求体，Amount 为空时序列化为 {}
type AuthorizeRequest struct {
	Amount *Money `json:"amount,omitempty"`
}

// CaptureRequest 请款请求体
type CaptureRequest struct {
	Amount       *Money `json:"amount,omitempty"`
	FinalCapture bool   `json:"final_capture"`
}

// RefundRequest 退款请求体
type RefundRequest struct {
	Amount *Money `json:"amount,omitempty"`
}

// OrderResponse 创建订单 / 授权订单的响应
type OrderResponse struct {
	ID            string                 `json:"id"`
	Status        string                 `json:"status"`
	Intent        string                 `json:"intent,omitempty"`
	Links         []Link                 `json:"links"`
	PurchaseUnits []PurchaseUnitResponse `json:"purchase_units"`
}

type PurchaseUnitResponse struct {
	ReferenceID string    `json:"reference_id,omitempty"`
	CustomID    string    `json:"custom_id,omitempty"`
	Amount      *Money    `json:"amount,omitempty"`
	Payments    *Payments `json:"payments,omitempty"`
}

type Payments struct {
	Authorizations []Authorization   `json:"authorizations,omitempty"`
	Captures       []CaptureResponse `json:"captures,omitempty"`
}

// Authorization 授权子对象
type Authorization struct {
	ID             string    `json:"id"`
	Status         string    `json:"status"`
	Amount         *Money    `json:"amount"`
	ExpirationTime time.Time `json:"expiration_time"`
	Links          []Link    `json:"links,omitempty"`
}

// CaptureResponse 请款响应
type CaptureResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Amount       *Money `json:"amount,omitempty"`
	FinalCapture bool   `json:"final_capture"`
	Links        []Link `json:"links,omitempty"`
}

// RefundResponse 退款响应
type RefundResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount *Money `json:"amount,omitempty"`
	Links  []Link `json:"links,omitempty"`
}

// Link 按 rel 查找链接
func (r *OrderResponse) Link(rel string) (Link, bool) {
	for _, l := range r.Links {
		if l.Rel == rel {
			return l, true
		}
	}
	return Link{}, false
}

// FirstPurchaseUnit 返回第一个 purchase unit
func (r *OrderResponse) FirstPurchaseUnit() (*PurchaseUnitResponse, error) {
	if r == nil || len(r.PurchaseUnits) == 0 {
		return nil, fmt.Errorf("%w: no purchase units", ErrMalformedResponse)
	}
	return &r.PurchaseUnits[0], nil
}

// Authorization 返回第一个 purchase unit 下的第一笔授权
func (r *OrderResponse) Authorization() (*Authorization, error) {
	pu, err := r.FirstPurchaseUnit()
	if err != nil {
		return nil, err
	}
	if pu.Payments == nil || len(pu.Payments.Authorizations) == 0 {
		return nil, fmt.Errorf("%w: no authorizations", ErrMalformedResponse)
	}
	return &pu.Payments.Authorizations[0], nil
}
