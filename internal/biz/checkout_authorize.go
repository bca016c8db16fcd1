package biz

import (
	"context"
	"time"

	"xinyuan_tech/checkout-service/internal/constants"
)

// PaymentIDExists 服务商订单号是否对应一条支付单
func (uc *CheckoutUsecase) PaymentIDExists(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	n, err := uc.ledgerRepo.CountByPaymentID(ctx, token)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// PaymentApproved 支付单是否已经记录过买家确认
func (uc *CheckoutUsecase) PaymentApproved(ctx context.Context, token string) (bool, error) {
	rec, err := uc.ledgerRepo.GetByPaymentID(ctx, token)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return false, ErrLedgerNotFound
	}
	return rec.Approved(), nil
}

// Authorize 对买家已确认的服务商订单发起授权，amount 为 nil 时按下单金额授权
func (uc *CheckoutUsecase) Authorize(ctx context.Context, token string, amount *Money) (*OrderResponse, error) {
	start := time.Now()
	resp, err := uc.gateway.AuthorizeOrder(ctx, token, amount)
	uc.metrics.ObserveProvider("authorize", start, err)
	if err != nil {
		uc.log.Errorf("Failed to authorize provider order %s: %v", token, err)
		return nil, err
	}
	return resp, nil
}

// CheckAuthorization 校验授权结果，通过时返回空字符串，否则返回原因
func CheckAuthorization(rec *LedgerRecord, resp *OrderResponse) string {
	if resp == nil {
		return "Authorization response is empty"
	}
	if resp.Status != constants.ProviderStatusCompleted {
		return "Authorization isn't completed"
	}
	auth, err := resp.Authorization()
	if err != nil {
		return "Authorization response is malformed: " + err.Error()
	}
	if auth.Status != constants.ProviderStatusCreated {
		return "Authorization was not created"
	}
	if auth.Amount == nil || auth.Amount.CurrencyCode != rec.Currency {
		return "The currency is mismatched"
	}
	amount, err := auth.Amount.Decimal()
	if err != nil {
		return "Authorization response is malformed: " + err.Error()
	}
	// 精确比较，小数部分不一致同样拒绝
	if !amount.Equal(rec.TotalAmount) {
		return "The total amount is not correct"
	}
	return ""
}

// CommitAuthorization 授权校验通过后把支付单推进到已授权，并同步订单状态
// 校验失败返回 *RejectedError 且不做任何修改；已处理过的支付单直接返回
func (uc *CheckoutUsecase) CommitAuthorization(ctx context.Context, token string, resp *OrderResponse) error {
	rec, err := uc.ledgerRepo.GetByPaymentID(ctx, token)
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrLedgerNotFound
	}
	return uc.withLedgerLock(ctx, rec.MerchantTradeNo, func() error {
		return uc.commitAuthorization(ctx, token, resp)
	})
}

// commitAuthorization 调用方必须持有支付单锁
func (uc *CheckoutUsecase) commitAuthorization(ctx context.Context, token string, resp *OrderResponse) error {
	rec, err := uc.ledgerRepo.GetByPaymentID(ctx, token)
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrLedgerNotFound
	}
	if rec.Approved() {
		uc.log.Infof("Ledger %s already processed, skip authorization", rec.MerchantTradeNo)
		uc.metrics.Transition("authorize", "skipped")
		return nil
	}

	if reason := CheckAuthorization(rec, resp); reason != "" {
		uc.log.Warnf("Authorization rejected for ledger %s: %s", rec.MerchantTradeNo, reason)
		uc.metrics.Transition("authorize", "rejected")
		return &RejectedError{Reason: reason}
	}
	auth, _ := resp.Authorization()
	amount, _ := auth.Amount.Decimal()

	cfg := uc.config.GetCheckout()
	now := uc.now()
	toBeCaptured := now.AddDate(0, 0, cfg.CaptureDelayDays)
	toBeCompleted := now.AddDate(0, 0, cfg.CompleteDelayDays)
	rec.Status = constants.StatusAuthorized
	rec.ExpiryTime = nil
	rec.ApproveDate = &now
	rec.ToBeCapturedDate = &toBeCaptured
	rec.AuthorizationExpiryDate = nil
	if !auth.ExpirationTime.IsZero() {
		expiry := auth.ExpirationTime.UTC()
		rec.AuthorizationExpiryDate = &expiry
	}
	rec.ToBeCapturedAmount = amount
	rec.AuthorizationID = auth.ID
	rec.ToBeCompletedDate = &toBeCompleted

	var links []*OrderLink
	err = uc.tm.Exec(ctx, func(ctx context.Context) error {
		if err := uc.ledgerRepo.UpdateLedger(ctx, rec); err != nil {
			return err
		}
		all, err := uc.linkRepo.ListByLedger(ctx, rec.ID)
		if err != nil {
			return err
		}
		links = uc.paymentServiceLinks(all)
		if len(links) > 0 {
			if err := uc.orderRepo.AttachRecipient(ctx, linkOrderIDs(links), rec.RecipientID); err != nil {
				return err
			}
		}
		return uc.mirrorStatus(ctx, links, constants.StatusAuthorized)
	})
	if err != nil {
		uc.log.Errorf("Failed to commit authorization for ledger %s: %v", rec.MerchantTradeNo, err)
		uc.metrics.Transition("authorize", "error")
		return err
	}

	uc.metrics.Transition("authorize", "ok")
	uc.log.Infof("Ledger %s authorized: authorizationID=%s, amount=%s %s", rec.MerchantTradeNo, rec.AuthorizationID, amount.StringFixed(2), rec.Currency)
	uc.notifier.EnqueuePaymentConfirmation(ctx, rec, links)
	return nil
}

// HandleApprovalReturn 处理买家从服务商页面跳转回来：校验、授权、提交
func (uc *CheckoutUsecase) HandleApprovalReturn(ctx context.Context, token string) (*LedgerRecord, error) {
	uc.log.Infof("HandleApprovalReturn: token=%s", token)

	exists, err := uc.PaymentIDExists(ctx, token)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrLedgerNotFound
	}
	rec, err := uc.ledgerRepo.GetByPaymentID(ctx, token)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrLedgerNotFound
	}

	err = uc.withLedgerLock(ctx, rec.MerchantTradeNo, func() error {
		// 重复跳转（刷新、双击）不再向服务商发起授权
		approved, err := uc.PaymentApproved(ctx, token)
		if err != nil {
			return err
		}
		if approved {
			uc.log.Infof("Payment %s already approved", token)
			return nil
		}
		resp, err := uc.Authorize(ctx, token, nil)
		if err != nil {
			return err
		}
		return uc.commitAuthorization(ctx, token, resp)
	})
	if err != nil {
		return nil, err
	}
	return uc.ledgerRepo.GetByPaymentID(ctx, token)
}
