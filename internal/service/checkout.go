package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"xinyuan_tech/checkout-service/internal/auth"
	"xinyuan_tech/checkout-service/internal/biz"
	bizErrors "xinyuan_tech/checkout-service/internal/errors"

	pkgErrors "github.com/gaoyong06/go-pkg/errors"
	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// ProviderSet is service providers.
var ProviderSet = wire.NewSet(NewCheckoutService)

// CheckoutService 结账服务
type CheckoutService struct {
	uc  *biz.CheckoutUsecase
	log *log.Helper
}

// NewCheckoutService 创建结账服务实例
func NewCheckoutService(uc *biz.CheckoutUsecase, logger log.Logger) *CheckoutService {
	return &CheckoutService{
		uc:  uc,
		log: log.NewHelper(log.With(logger, "module", "service/checkout")),
	}
}

// StartCheckout 发起结账，返回买家授权链接
func (s *CheckoutService) StartCheckout(ctx context.Context, req *StartCheckoutRequest) (*StartCheckoutReply, error) {
	uid, err := auth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	info, rec, err := s.uc.StartCheckout(ctx, &biz.StartCheckoutRequest{
		UserID:        uid,
		OrderIDs:      req.OrderIDs,
		RecipientID:   req.RecipientID,
		Currency:      req.Currency,
		TradeDesc:     req.TradeDesc,
		ClientBackURL: req.ClientBackURL,
	})
	if err != nil {
		return nil, s.toBizError(ctx, err)
	}
	return &StartCheckoutReply{
		MerchantTradeNo: rec.MerchantTradeNo,
		PaymentID:       rec.PaymentID,
		ApprovalURL:     info.ApprovalLink,
		TotalAmount:     rec.TotalAmount.StringFixed(2),
		Currency:        rec.Currency,
		ExpiryTime:      formatTime(rec.ExpiryTime),
	}, nil
}

// ApprovalReturn 买家在服务商页面确认后的回跳
// token 即服务商订单号，本身就是凭据，不要求登录
func (s *CheckoutService) ApprovalReturn(ctx context.Context, req *ApprovalReturnRequest) (*LedgerReply, error) {
	rec, err := s.uc.HandleApprovalReturn(ctx, req.Token)
	if err != nil {
		return nil, s.toBizError(ctx, err)
	}
	return toLedgerReply(rec, nil), nil
}

// GetCheckout 查询支付单及其关联订单
func (s *CheckoutService) GetCheckout(ctx context.Context, req *GetCheckoutRequest) (*LedgerReply, error) {
	rec, links, err := s.uc.GetLedger(ctx, req.MerchantTradeNo)
	if err != nil {
		return nil, s.toBizError(ctx, err)
	}
	if err := auth.CheckOwnership(ctx, rec.UserID); err != nil {
		return nil, err
	}
	return toLedgerReply(rec, links), nil
}

// CaptureCheckout 手动请款（不等待请款日期）
func (s *CheckoutService) CaptureCheckout(ctx context.Context, req *CaptureCheckoutRequest) (*CaptureResultReply, error) {
	if err := auth.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	result, err := s.uc.CaptureNow(ctx, req.MerchantTradeNo, req.FinalCapture)
	if err != nil {
		return nil, s.toBizError(ctx, err)
	}
	return toCaptureResultReply(result), nil
}

// RefundOrder 退款单个订单
func (s *CheckoutService) RefundOrder(ctx context.Context, req *RefundOrderRequest) (*RefundOrderReply, error) {
	if err := auth.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	ok, err := s.uc.Refund(ctx, req.OrderID)
	if err != nil {
		return nil, s.toBizError(ctx, err)
	}
	return &RefundOrderReply{OrderID: req.OrderID, Refunded: ok}, nil
}

// CaptureSweep 立即执行一次到期请款
func (s *CheckoutService) CaptureSweep(ctx context.Context, req *CaptureSweepRequest) (*CaptureSweepReply, error) {
	if err := auth.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	results, err := s.uc.DailyCaptureAuthorization(ctx)
	reply := &CaptureSweepReply{Results: make([]*CaptureResultReply, 0, len(results))}
	for _, r := range results {
		reply.Results = append(reply.Results, toCaptureResultReply(r))
		if r.Captured {
			reply.Captured++
		} else {
			reply.Failed++
		}
	}
	if err != nil {
		// 超时中断时已处理的结果仍然有效，只记录日志
		s.log.Warnf("Capture sweep interrupted after %d records: %v", len(results), err)
	}
	return reply, nil
}

// toBizError 将状态机错误转换为带错误码的业务错误
func (s *CheckoutService) toBizError(ctx context.Context, err error) error {
	var (
		rejected *biz.RejectedError
		provider *biz.ProviderError
	)
	switch {
	case errors.As(err, &rejected):
		return withMetadata(pkgErrors.NewBizErrorWithLang(ctx, bizErrors.ErrCodeAuthorizationRejected), map[string]string{"reason": rejected.Reason})
	case errors.As(err, &provider):
		md := map[string]string{"operation": provider.Operation}
		if provider.Timeout() {
			md["timeout"] = "true"
		} else {
			md["status"] = fmt.Sprint(provider.StatusCode)
		}
		return withMetadata(pkgErrors.NewBizErrorWithLang(ctx, bizErrors.ErrCodeProviderUnavailable), md)
	case errors.Is(err, biz.ErrProviderUnavailable), errors.Is(err, biz.ErrMalformedResponse):
		return pkgErrors.NewBizErrorWithLang(ctx, bizErrors.ErrCodeProviderUnavailable)
	case errors.Is(err, biz.ErrLedgerNotFound):
		return pkgErrors.NewBizErrorWithLang(ctx, bizErrors.ErrCodeLedgerNotFound)
	case errors.Is(err, biz.ErrLedgerCreateFailed):
		return pkgErrors.NewBizErrorWithLang(ctx, bizErrors.ErrCodeLedgerCreateFailed)
	case errors.Is(err, biz.ErrOrdersNotFound):
		return pkgErrors.NewBizErrorWithLang(ctx, bizErrors.ErrCodeOrdersNotFound)
	case errors.Is(err, biz.ErrRecipientNotFound):
		return pkgErrors.NewBizErrorWithLang(ctx, bizErrors.ErrCodeRecipientNotFound)
	case errors.Is(err, biz.ErrLedgerBusy):
		return pkgErrors.NewBizErrorWithLang(ctx, bizErrors.ErrCodeLedgerBusy)
	case errors.Is(err, biz.ErrNotCapturable):
		return pkgErrors.NewBizErrorWithLang(ctx, bizErrors.ErrCodeNotCapturable)
	case errors.Is(err, biz.ErrOrderLinkNotFound):
		return pkgErrors.NewBizErrorWithLang(ctx, bizErrors.ErrCodeOrderLinkNotFound)
	}
	s.log.Errorf("Unhandled checkout error: %v", err)
	return err
}

func withMetadata(err error, md map[string]string) error {
	return kerrors.FromError(err).WithMetadata(md)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func toLedgerReply(rec *biz.LedgerRecord, links []*biz.OrderLink) *LedgerReply {
	reply := &LedgerReply{
		MerchantTradeNo:         rec.MerchantTradeNo,
		PaymentID:               rec.PaymentID,
		AuthorizationID:         rec.AuthorizationID,
		CaptureID:               rec.CaptureID,
		Status:                  rec.Status,
		TotalAmount:             rec.TotalAmount.StringFixed(2),
		ToBeCapturedAmount:      rec.ToBeCapturedAmount.StringFixed(2),
		Currency:                rec.Currency,
		ItemName:                rec.ItemName,
		ClientBackURL:           rec.ClientBackURL,
		ExpiryTime:              formatTime(rec.ExpiryTime),
		ApproveDate:             formatTime(rec.ApproveDate),
		ToBeCapturedDate:        formatTime(rec.ToBeCapturedDate),
		AuthorizationExpiryDate: formatTime(rec.AuthorizationExpiryDate),
		ToBeCompletedDate:       formatTime(rec.ToBeCompletedDate),
	}
	for _, l := range links {
		reply.Orders = append(reply.Orders, &OrderLinkReply{OrderID: l.OrderID, PaymentServiceID: l.PaymentServiceID, Status: l.Status})
	}
	return reply
}

func toCaptureResultReply(r *biz.CaptureResult) *CaptureResultReply {
	return &CaptureResultReply{
		MerchantTradeNo: r.MerchantTradeNo,
		Captured:        r.Captured,
		CaptureID:       r.CaptureID,
		ErrorMessage:    r.ErrorMessage,
	}
}
