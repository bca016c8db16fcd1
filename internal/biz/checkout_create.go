package biz

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"xinyuan_tech/checkout-service/internal/conf"
	"xinyuan_tech/checkout-service/internal/constants"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StartCheckoutRequest 发起结账
type StartCheckoutRequest struct {
	UserID        uint64
	OrderIDs      []uint64
	RecipientID   uint64
	Currency      string
	TradeDesc     string
	ClientBackURL string
}

// StartCheckout 加载订单与收件人，在服务商创建订单后落库，返回买家授权链接
func (uc *CheckoutUsecase) StartCheckout(ctx context.Context, req *StartCheckoutRequest) (*CheckoutInfo, *LedgerRecord, error) {
	uc.log.Infof("StartCheckout: userID=%d, orders=%v, recipientID=%d", req.UserID, req.OrderIDs, req.RecipientID)

	orders, err := uc.orderRepo.ListOrders(ctx, req.OrderIDs)
	if err != nil {
		uc.log.Errorf("Failed to list orders: %v", err)
		return nil, nil, err
	}
	if len(orders) == 0 || len(orders) != len(req.OrderIDs) {
		return nil, nil, ErrOrdersNotFound
	}
	for _, o := range orders {
		if o.UserID != req.UserID {
			uc.log.Warnf("Order %d does not belong to user %d", o.ID, req.UserID)
			return nil, nil, ErrOrdersNotFound
		}
	}

	recipient, err := uc.recipientRepo.GetRecipient(ctx, req.RecipientID)
	if err != nil {
		uc.log.Errorf("Failed to get recipient %d: %v", req.RecipientID, err)
		return nil, nil, err
	}
	if recipient == nil {
		return nil, nil, ErrRecipientNotFound
	}

	cfg := uc.config.GetCheckout()
	currency := req.Currency
	if currency == "" {
		currency = cfg.DefaultCurrency
	}
	total := decimal.Zero
	names := make([]string, 0, len(orders))
	for _, o := range orders {
		total = total.Add(o.TotalAmount)
		names = append(names, o.ItemName)
	}
	expiry := uc.now().Add(conf.MustDuration(cfg.ApprovalExpiry, 0))

	info := &CheckoutInfo{
		UserID:           req.UserID,
		PaymentServiceID: cfg.PaymentServiceID,
		MerchantTradeNo:  NewMerchantTradeNo(),
		TotalAmount:      total,
		Currency:         currency,
		TradeDesc:        req.TradeDesc,
		ItemName:         strings.Join(names, "#"),
		ClientBackURL:    req.ClientBackURL,
		ExpiryTime:       &expiry,
		Orders:           orders,
	}

	info, err = uc.CreateProviderOrder(ctx, info, recipient)
	if err != nil {
		return nil, nil, err
	}
	rec, err := uc.CreateLedger(ctx, info, recipient)
	if err != nil {
		return nil, nil, err
	}
	uc.log.Infof("Checkout started: merchantTradeNo=%s, paymentID=%s", rec.MerchantTradeNo, rec.PaymentID)
	return info, rec, nil
}

// NewMerchantTradeNo 生成 20 位商户交易号
func NewMerchantTradeNo() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return constants.MerchantTradeNoPrefix + id[:18]
}

// CreateLedger 在一个事务内写入支付单及每个订单的关联，任一失败整体回滚
func (uc *CheckoutUsecase) CreateLedger(ctx context.Context, info *CheckoutInfo, recipient *Recipient) (*LedgerRecord, error) {
	status := constants.StatusCreated
	if info.PaymentID != "" {
		status = constants.StatusPendingApproval
	}
	rec := &LedgerRecord{
		UserID:           info.UserID,
		PaymentServiceID: info.PaymentServiceID,
		ExpiryTime:       info.ExpiryTime,
		MerchantTradeNo:  info.MerchantTradeNo,
		TotalAmount:      info.TotalAmount,
		TradeDesc:        info.TradeDesc,
		ItemName:         info.ItemName,
		Currency:         info.Currency,
		RecipientID:      recipient.ID,
		PaymentID:        info.PaymentID,
		ClientBackURL:    info.ClientBackURL,
		Status:           status,
	}

	err := uc.tm.Exec(ctx, func(ctx context.Context) error {
		if err := uc.ledgerRepo.CreateLedger(ctx, rec); err != nil {
			return err
		}
		links := make([]*OrderLink, 0, len(info.Orders))
		for _, o := range info.Orders {
			links = append(links, &OrderLink{
				PaymentServiceID: info.PaymentServiceID,
				LedgerID:         rec.ID,
				OrderID:          o.ID,
				Status:           status,
			})
		}
		return uc.linkRepo.CreateLinks(ctx, links)
	})
	if err != nil {
		uc.log.Errorf("Failed to create ledger %s: %v", info.MerchantTradeNo, err)
		uc.metrics.Transition("create", "error")
		return nil, ErrLedgerCreateFailed
	}
	uc.metrics.Transition("create", "ok")
	return rec, nil
}

// BuildOrderRequest 构造服务商创建订单的请求体，无副作用
func BuildOrderRequest(info *CheckoutInfo, recipient *Recipient, pp *conf.PayPal) *CreateOrderRequest {
	currency := info.Currency
	if currency == "" {
		currency = constants.DefaultCurrency
	}
	intent := pp.Intent
	if intent == "" {
		intent = "AUTHORIZE"
	}

	items := make([]Item, 0, len(info.Orders))
	for i, o := range info.Orders {
		items = append(items, Item{
			Name:        o.ItemName,
			Description: o.ItemDescription,
			SKU:         strconv.Itoa(i + 1),
			UnitAmount:  *NewMoney(currency, o.UnitPrice),
			Quantity:    strconv.Itoa(o.Quantity),
		})
	}
	total := *NewMoney(currency, info.TotalAmount)

	unit := PurchaseUnitRequest{
		CustomID: info.MerchantTradeNo,
		Amount: AmountWithItem{
			Money:     total,
			Breakdown: Breakdown{ItemTotal: total},
		},
		Items: items,
	}
	if recipient != nil {
		unit.Shipping = &Shipping{
			Name: ShippingName{FullName: recipient.Name},
			Address: ShippingAddress{
				AddressLine1: recipient.Others,
				AdminArea2:   recipient.District,
				AdminArea1:   recipient.City,
				PostalCode:   recipient.Postcode,
				CountryCode:  recipient.CountryCode,
			},
		}
	}

	return &CreateOrderRequest{
		Intent: intent,
		ApplicationContext: ApplicationContext{
			ReturnURL:           pp.ReturnURL,
			CancelURL:           info.ClientBackURL,
			BrandName:           pp.BrandName,
			Locale:              pp.Locale,
			LandingPage:         pp.LandingPage,
			ShippingPreferences: pp.ShippingPreferences,
			UserAction:          pp.UserAction,
		},
		PurchaseUnits: []PurchaseUnitRequest{unit},
	}
}

// CreateProviderOrder 在服务商创建订单，返回补齐服务商字段的 CheckoutInfo，不落库
func (uc *CheckoutUsecase) CreateProviderOrder(ctx context.Context, info *CheckoutInfo, recipient *Recipient) (*CheckoutInfo, error) {
	req := BuildOrderRequest(info, recipient, uc.config.GetPayPal())

	start := time.Now()
	resp, err := uc.gateway.CreateOrder(ctx, req)
	uc.metrics.ObserveProvider("create_order", start, err)
	if err != nil {
		uc.log.Errorf("Failed to create provider order for %s: %v", info.MerchantTradeNo, err)
		return nil, err
	}

	if resp.ID == "" {
		return nil, fmt.Errorf("%w: order id is missing", ErrMalformedResponse)
	}
	approve, ok := resp.Link(constants.ProviderLinkApprove)
	if !ok {
		return nil, fmt.Errorf("%w: approve link is missing", ErrMalformedResponse)
	}
	pu, err := resp.FirstPurchaseUnit()
	if err != nil {
		return nil, err
	}
	if pu.Amount == nil {
		return nil, fmt.Errorf("%w: purchase unit amount is missing", ErrMalformedResponse)
	}

	out := *info
	out.PaymentID = resp.ID
	out.CustomID = pu.CustomID
	out.ProviderTotal = pu.Amount.Value
	out.ProviderStatus = resp.Status
	out.ApprovalLink = approve.Href
	return &out, nil
}
