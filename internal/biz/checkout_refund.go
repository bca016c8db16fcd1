package biz

import (
	"context"
	"time"

	"xinyuan_tech/checkout-service/internal/constants"
)

// Refund 退掉支付单中的一个订单
//
// 未请款：只做账务冲减（待请款金额与总金额减去订单金额），不调用服务商。
// 已请款：向服务商退款，只有退款状态为 COMPLETED 才修改订单与支付单。
// 返回 false 表示未退款且没有任何修改。
func (uc *CheckoutUsecase) Refund(ctx context.Context, orderID uint64) (bool, error) {
	uc.log.Infof("Refund: orderID=%d", orderID)

	order, err := uc.orderRepo.GetOrder(ctx, orderID)
	if err != nil {
		return false, err
	}
	if order == nil {
		return false, ErrOrdersNotFound
	}
	link, err := uc.linkRepo.GetLatestByOrder(ctx, uc.config.GetCheckout().PaymentServiceID, orderID)
	if err != nil {
		return false, err
	}
	if link == nil {
		return false, ErrOrderLinkNotFound
	}
	rec, err := uc.ledgerRepo.GetByID(ctx, link.LedgerID)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return false, ErrLedgerNotFound
	}

	refunded := false
	err = uc.withLedgerLock(ctx, rec.MerchantTradeNo, func() error {
		var err error
		refunded, err = uc.refund(ctx, order, link.ID, rec.ID)
		return err
	})
	if err != nil {
		return false, err
	}
	return refunded, nil
}

// refund 调用方必须持有支付单锁
func (uc *CheckoutUsecase) refund(ctx context.Context, order *Order, linkID, ledgerID uint64) (bool, error) {
	rec, err := uc.ledgerRepo.GetByID(ctx, ledgerID)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return false, ErrLedgerNotFound
	}
	link, err := uc.linkRepo.GetLatestByOrder(ctx, uc.config.GetCheckout().PaymentServiceID, order.ID)
	if err != nil {
		return false, err
	}
	if link == nil || link.ID != linkID {
		return false, ErrOrderLinkNotFound
	}
	if link.Status == constants.StatusCancelled {
		uc.log.Infof("Order %d already refunded", order.ID)
		uc.metrics.Transition("refund", "skipped")
		return false, nil
	}

	switch {
	case !rec.Captured() && rec.Authorized():
		rec.ToBeCapturedAmount = rec.ToBeCapturedAmount.Sub(order.TotalAmount)
		rec.TotalAmount = rec.TotalAmount.Sub(order.TotalAmount)
		if err := uc.saveRefund(ctx, rec, link); err != nil {
			return false, err
		}
		uc.log.Infof("Order %d released from authorization %s: amount=%s", order.ID, rec.AuthorizationID, order.TotalAmount.StringFixed(2))
		uc.metrics.Transition("refund", "ok")
		return true, nil

	case rec.Captured():
		req := &RefundRequest{Amount: NewMoney(rec.Currency, order.TotalAmount)}
		start := time.Now()
		resp, err := uc.gateway.RefundCapture(ctx, rec.CaptureID, req)
		uc.metrics.ObserveProvider("refund", start, err)
		if err != nil {
			uc.log.Errorf("Failed to refund capture %s for order %d: %v", rec.CaptureID, order.ID, err)
			uc.metrics.Transition("refund", "error")
			return false, err
		}
		if resp.Status != constants.ProviderStatusCompleted {
			uc.log.Warnf("Refund %s for order %d not completed: status=%s", resp.ID, order.ID, resp.Status)
			uc.metrics.Transition("refund", "incomplete")
			return false, nil
		}

		rec.TotalAmount = rec.TotalAmount.Sub(order.TotalAmount)
		if err := uc.saveRefund(ctx, rec, link); err != nil {
			// 服务商已退款，本地落库失败需要人工对账
			uc.log.Errorf("Refund %s completed but failed to save for order %d: %v", resp.ID, order.ID, err)
			return false, err
		}
		uc.log.Infof("Order %d refunded: refundID=%s, captureID=%s", order.ID, resp.ID, rec.CaptureID)
		uc.metrics.Transition("refund", "ok")
		return true, nil
	}

	uc.log.Infof("Ledger %s has neither authorization nor capture, nothing to refund", rec.MerchantTradeNo)
	uc.metrics.Transition("refund", "skipped")
	return false, nil
}

func (uc *CheckoutUsecase) saveRefund(ctx context.Context, rec *LedgerRecord, link *OrderLink) error {
	err := uc.tm.Exec(ctx, func(ctx context.Context) error {
		if err := uc.ledgerRepo.UpdateLedger(ctx, rec); err != nil {
			return err
		}
		return uc.mirrorStatus(ctx, []*OrderLink{link}, constants.StatusCancelled)
	})
	if err != nil {
		uc.metrics.Transition("refund", "error")
	}
	return err
}
