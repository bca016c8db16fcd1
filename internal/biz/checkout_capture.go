package biz

import (
	"context"
	"time"

	"xinyuan_tech/checkout-service/internal/constants"
)

// CaptureAuthorization 按商户交易号重新读取支付单，对其授权发起请款
// 只返回服务商响应，capture_id 与状态由调用方落库
func (uc *CheckoutUsecase) CaptureAuthorization(ctx context.Context, rec *LedgerRecord, finalCapture bool) (*CaptureResponse, error) {
	current, err := uc.ledgerRepo.GetByMerchantTradeNo(ctx, rec.MerchantTradeNo)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrLedgerNotFound
	}
	if !current.Authorized() || !current.ToBeCapturedAmount.IsPositive() {
		return nil, ErrNotCapturable
	}

	req := &CaptureRequest{
		Amount:       NewMoney(current.Currency, current.ToBeCapturedAmount),
		FinalCapture: finalCapture,
	}
	start := time.Now()
	resp, err := uc.gateway.CaptureAuthorization(ctx, current.AuthorizationID, req)
	uc.metrics.ObserveProvider("capture", start, err)
	if err != nil {
		uc.log.Errorf("Failed to capture authorization %s for ledger %s: %v", current.AuthorizationID, current.MerchantTradeNo, err)
		return nil, err
	}
	return resp, nil
}

// CaptureNow 立即对一条支付单请款（运维入口），与每日请款走同一条落库路径
func (uc *CheckoutUsecase) CaptureNow(ctx context.Context, merchantTradeNo string, finalCapture bool) (*CaptureResult, error) {
	uc.log.Infof("CaptureNow: merchantTradeNo=%s, finalCapture=%v", merchantTradeNo, finalCapture)

	var result *CaptureResult
	err := uc.withLedgerLock(ctx, merchantTradeNo, func() error {
		var err error
		result, err = uc.capture(ctx, merchantTradeNo, finalCapture)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DailyCaptureAuthorization 每日请款：对所有到期的授权请款
// 单条失败不影响其他支付单，未完成的支付单留到下一次执行
func (uc *CheckoutUsecase) DailyCaptureAuthorization(ctx context.Context) ([]*CaptureResult, error) {
	now := uc.now()
	uc.log.Infof("Starting daily capture sweep (before=%s)", now.Format(time.RFC3339))

	records, err := uc.ledgerRepo.ListCapturable(ctx, now)
	if err != nil {
		uc.log.Errorf("Failed to list capturable ledgers: %v", err)
		return nil, err
	}

	results := make([]*CaptureResult, 0, len(records))
	captured := 0
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			uc.log.Warnf("Daily capture sweep interrupted: %v", err)
			return results, err
		}
		result := uc.sweepOne(ctx, rec.MerchantTradeNo)
		if result.Captured {
			captured++
		}
		results = append(results, result)
	}

	uc.log.Infof("Daily capture sweep done: total=%d, captured=%d, pending=%d", len(records), captured, len(records)-captured)
	return results, nil
}

func (uc *CheckoutUsecase) sweepOne(ctx context.Context, merchantTradeNo string) *CaptureResult {
	var result *CaptureResult
	err := uc.withLedgerLock(ctx, merchantTradeNo, func() error {
		var err error
		result, err = uc.capture(ctx, merchantTradeNo, false)
		return err
	})
	if err != nil {
		uc.log.Warnf("Skip capture for ledger %s: %v", merchantTradeNo, err)
		return &CaptureResult{MerchantTradeNo: merchantTradeNo, ErrorMessage: err.Error()}
	}
	return result
}

// capture 调用方必须持有支付单锁
func (uc *CheckoutUsecase) capture(ctx context.Context, merchantTradeNo string, finalCapture bool) (*CaptureResult, error) {
	result := &CaptureResult{MerchantTradeNo: merchantTradeNo}

	rec, err := uc.ledgerRepo.GetByMerchantTradeNo(ctx, merchantTradeNo)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrLedgerNotFound
	}
	if rec.Captured() {
		uc.log.Infof("Ledger %s already captured: %s", merchantTradeNo, rec.CaptureID)
		result.Captured = true
		result.CaptureID = rec.CaptureID
		result.ErrorMessage = "already captured"
		uc.metrics.Transition("capture", "skipped")
		return result, nil
	}

	resp, err := uc.CaptureAuthorization(ctx, rec, finalCapture)
	if err != nil {
		uc.metrics.Transition("capture", "error")
		return nil, err
	}
	if resp.Status != constants.ProviderStatusCompleted {
		uc.log.Infof("Capture for ledger %s not completed: status=%s", merchantTradeNo, resp.Status)
		result.ErrorMessage = "capture status " + resp.Status
		uc.metrics.Transition("capture", "incomplete")
		return result, nil
	}

	rec.CaptureID = resp.ID
	rec.Status = constants.StatusCaptured
	err = uc.tm.Exec(ctx, func(ctx context.Context) error {
		if err := uc.ledgerRepo.UpdateLedger(ctx, rec); err != nil {
			return err
		}
		links, err := uc.linkRepo.ListByLedger(ctx, rec.ID)
		if err != nil {
			return err
		}
		toMirror := make([]*OrderLink, 0, len(links))
		for _, l := range links {
			if capturableLink(l) {
				toMirror = append(toMirror, l)
			}
		}
		return uc.mirrorStatus(ctx, toMirror, constants.StatusCaptured)
	})
	if err != nil {
		uc.log.Errorf("Failed to save capture %s for ledger %s: %v", resp.ID, merchantTradeNo, err)
		uc.metrics.Transition("capture", "error")
		return nil, err
	}

	uc.metrics.Transition("capture", "ok")
	uc.log.Infof("Ledger %s captured: captureID=%s", merchantTradeNo, resp.ID)
	result.Captured = true
	result.CaptureID = resp.ID
	return result, nil
}
