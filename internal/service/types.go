package service

import (
	"fmt"
	"net/url"
)

// StartCheckoutRequest POST /v1/checkouts
type StartCheckoutRequest struct {
	OrderIDs      []uint64 `json:"order_ids"`
	RecipientID   uint64   `json:"recipient_id"`
	Currency      string   `json:"currency"`
	TradeDesc     string   `json:"trade_desc"`
	ClientBackURL string   `json:"client_back_url"`
}

func (r *StartCheckoutRequest) Validate() error {
	if len(r.OrderIDs) == 0 {
		return fmt.Errorf("order_ids is required")
	}
	seen := make(map[uint64]bool, len(r.OrderIDs))
	for _, id := range r.OrderIDs {
		if id == 0 || seen[id] {
			return fmt.Errorf("order_ids contains an invalid or duplicate id %d", id)
		}
		seen[id] = true
	}
	if r.RecipientID == 0 {
		return fmt.Errorf("recipient_id is required")
	}
	if r.Currency != "" && len(r.Currency) != 3 {
		return fmt.Errorf("currency must be an ISO 4217 code")
	}
	if r.ClientBackURL != "" {
		if u, err := url.Parse(r.ClientBackURL); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("client_back_url must be an absolute url")
		}
	}
	return nil
}

type StartCheckoutReply struct {
	MerchantTradeNo string `json:"merchant_trade_no"`
	PaymentID       string `json:"payment_id"`
	ApprovalURL     string `json:"approval_url"`
	TotalAmount     string `json:"total_amount"`
	Currency        string `json:"currency"`
	ExpiryTime      string `json:"expiry_time"`
}

// ApprovalReturnRequest GET /v1/checkouts/return?token=...
type ApprovalReturnRequest struct {
	Token   string `json:"token"`
	PayerID string `json:"PayerID"`
}

func (r *ApprovalReturnRequest) Validate() error {
	if r.Token == "" {
		return fmt.Errorf("token is required")
	}
	return nil
}

// GetCheckoutRequest GET /v1/checkouts/{merchant_trade_no}
type GetCheckoutRequest struct {
	MerchantTradeNo string `json:"merchant_trade_no"`
}

func (r *GetCheckoutRequest) Validate() error {
	if r.MerchantTradeNo == "" {
		return fmt.Errorf("merchant_trade_no is required")
	}
	return nil
}

type LedgerReply struct {
	MerchantTradeNo         string            `json:"merchant_trade_no"`
	PaymentID               string            `json:"payment_id,omitempty"`
	AuthorizationID         string            `json:"authorization_id,omitempty"`
	CaptureID               string            `json:"capture_id,omitempty"`
	Status                  int               `json:"status"`
	TotalAmount             string            `json:"total_amount"`
	ToBeCapturedAmount      string            `json:"to_be_captured_amount"`
	Currency                string            `json:"currency"`
	ItemName                string            `json:"item_name"`
	ClientBackURL           string            `json:"client_back_url,omitempty"`
	ExpiryTime              string            `json:"expiry_time,omitempty"`
	ApproveDate             string            `json:"approve_date,omitempty"`
	ToBeCapturedDate        string            `json:"to_be_captured_date,omitempty"`
	AuthorizationExpiryDate string            `json:"authorization_expiry_date,omitempty"`
	ToBeCompletedDate       string            `json:"to_be_completed_date,omitempty"`
	Orders                  []*OrderLinkReply `json:"orders,omitempty"`
}

type OrderLinkReply struct {
	OrderID          uint64 `json:"order_id"`
	PaymentServiceID uint64 `json:"payment_service_id"`
	Status           int    `json:"status"`
}

// CaptureCheckoutRequest POST /v1/checkouts/{merchant_trade_no}/capture
type CaptureCheckoutRequest struct {
	MerchantTradeNo string `json:"merchant_trade_no"`
	FinalCapture    bool   `json:"final_capture"`
}

func (r *CaptureCheckoutRequest) Validate() error {
	if r.MerchantTradeNo == "" {
		return fmt.Errorf("merchant_trade_no is required")
	}
	return nil
}

type CaptureResultReply struct {
	MerchantTradeNo string `json:"merchant_trade_no"`
	Captured        bool   `json:"captured"`
	CaptureID       string `json:"capture_id,omitempty"`
	ErrorMessage    string `json:"error_message,omitempty"`
}

// RefundOrderRequest POST /v1/orders/{order_id}/refund
type RefundOrderRequest struct {
	OrderID uint64 `json:"order_id"`
}

func (r *RefundOrderRequest) Validate() error {
	if r.OrderID == 0 {
		return fmt.Errorf("order_id is required")
	}
	return nil
}

type RefundOrderReply struct {
	OrderID  uint64 `json:"order_id"`
	Refunded bool   `json:"refunded"`
}

// CaptureSweepRequest POST /v1/checkouts/capture-sweep
type CaptureSweepRequest struct{}

type CaptureSweepReply struct {
	Captured int                   `json:"captured"`
	Failed   int                   `json:"failed"`
	Results  []*CaptureResultReply `json:"results"`
}
