package biz

import (
	"context"
	"errors"
	"testing"
	"time"

	"xinyuan_tech/checkout-service/internal/constants"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sweepSeed struct {
	due, pending, notDue, captured, unauthorized *LedgerRecord
}

func seedSweep(f *fixture) sweepSeed {
	past := timePtr(f.now.Add(-time.Hour))
	future := timePtr(f.now.Add(24 * time.Hour))
	for _, id := range []uint64{11, 12, 13, 21, 31, 41, 51} {
		f.seedOrder(id, 5, "25.00")
	}

	var s sweepSeed
	s.due = f.seedLedger(LedgerRecord{
		MerchantTradeNo: "PP-DUE", AuthorizationID: "AUTH-A", Status: constants.StatusAuthorized,
		TotalAmount: dec("50"), ToBeCapturedAmount: dec("50"), ToBeCapturedDate: past,
	}, 11, 12, 13)
	f.setLinkStatus(12, constants.StatusCancelled)
	f.store.orders[12] = withStatus(f.store.orders[12], constants.StatusCancelled)
	f.setLinkStatus(13, constants.StatusAwaitingAuthorization)

	s.pending = f.seedLedger(LedgerRecord{
		MerchantTradeNo: "PP-PENDING", AuthorizationID: "AUTH-B", Status: constants.StatusAuthorized,
		TotalAmount: dec("25"), ToBeCapturedAmount: dec("25"), ToBeCapturedDate: past,
	}, 21)
	f.gateway.capture["AUTH-B"] = &CaptureResponse{ID: "CAP-B", Status: "PENDING"}

	s.notDue = f.seedLedger(LedgerRecord{
		MerchantTradeNo: "PP-NOTDUE", AuthorizationID: "AUTH-C", Status: constants.StatusAuthorized,
		TotalAmount: dec("25"), ToBeCapturedAmount: dec("25"), ToBeCapturedDate: future,
	}, 31)
	s.captured = f.seedLedger(LedgerRecord{
		MerchantTradeNo: "PP-CAPTURED", AuthorizationID: "AUTH-D", CaptureID: "CAP-D", Status: constants.StatusCaptured,
		TotalAmount: dec("25"), ToBeCapturedAmount: dec("25"), ToBeCapturedDate: past,
	}, 41)
	s.unauthorized = f.seedLedger(LedgerRecord{
		MerchantTradeNo: "PP-UNAUTH", Status: constants.StatusPendingApproval,
		TotalAmount: dec("25"), ToBeCapturedDate: past,
	}, 51)
	return s
}

func withStatus(o Order, status int) Order {
	o.Status = status
	return o
}

func (f *fixture) setLinkStatus(orderID uint64, status int) {
	l := f.linkFor(orderID)
	l.Status = status
	f.store.links[l.ID] = l
}

func TestDailyCaptureAuthorization(t *testing.T) {
	f := newFixture(t)
	s := seedSweep(f)
	untouched := map[uint64]LedgerRecord{}
	for _, rec := range []*LedgerRecord{s.pending, s.notDue, s.captured, s.unauthorized} {
		untouched[rec.ID] = f.ledger(rec.ID)
	}

	results, err := f.uc.DailyCaptureAuthorization(context.Background())
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, &CaptureResult{MerchantTradeNo: "PP-DUE", Captured: true, CaptureID: "CAP-AUTH-A"}, results[0])
	assert.Equal(t, "PP-PENDING", results[1].MerchantTradeNo)
	assert.False(t, results[1].Captured)
	assert.Equal(t, "capture status PENDING", results[1].ErrorMessage)
	assert.Equal(t, 2, f.gateway.count("capture"))

	due := f.ledger(s.due.ID)
	assert.Equal(t, "CAP-AUTH-A", due.CaptureID)
	assert.Equal(t, constants.StatusCaptured, due.Status)
	assert.Equal(t, constants.StatusCaptured, f.linkFor(11).Status)
	assert.Equal(t, constants.StatusCaptured, f.store.orders[11].Status)
	assert.Equal(t, constants.StatusCaptured, f.linkFor(13).Status)
	assert.Equal(t, constants.StatusCaptured, f.store.orders[13].Status)
	// 已退款的订单不跟随请款
	assert.Equal(t, constants.StatusCancelled, f.linkFor(12).Status)
	assert.Equal(t, constants.StatusCancelled, f.store.orders[12].Status)

	for id, before := range untouched {
		assert.Equal(t, before, f.ledger(id))
	}
	assert.Equal(t, constants.StatusAuthorized, f.linkFor(21).Status)
	assert.Empty(t, f.locker.held)

	// 第二次执行只会重试未完成的支付单
	writes := f.store.writes
	results, err = f.uc.DailyCaptureAuthorization(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "PP-PENDING", results[0].MerchantTradeNo)
	assert.Equal(t, writes, f.store.writes)
	assert.Equal(t, 3, f.gateway.count("capture"))
}

func TestDailyCaptureSkipsFullyRefundedLedger(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(61, 5, "25.00")
	// 唯一订单已在请款前退款，待请款金额为 0
	rec := f.seedLedger(LedgerRecord{
		MerchantTradeNo: "PP-REFUNDED", AuthorizationID: "AUTH-R", Status: constants.StatusAuthorized,
		TotalAmount: dec("0"), ToBeCapturedAmount: dec("0"), ToBeCapturedDate: timePtr(f.now.Add(-time.Hour)),
	}, 61)
	before := f.ledger(rec.ID)

	results, err := f.uc.DailyCaptureAuthorization(context.Background())
	require.NoError(t, err)

	assert.Empty(t, results)
	assert.Equal(t, 0, f.gateway.count("capture"))
	assert.Equal(t, before, f.ledger(rec.ID))
}

func TestDailyCaptureIsolatesFailures(t *testing.T) {
	f := newFixture(t)
	s := seedSweep(f)
	f.gateway.err = &ProviderError{Operation: "capture", StatusCode: 503, Err: errors.New("service unavailable")}

	results, err := f.uc.DailyCaptureAuthorization(context.Background())
	require.NoError(t, err)

	require.Len(t, results, 2)
	for _, r := range results {
		assert.False(t, r.Captured)
		assert.Contains(t, r.ErrorMessage, "503")
	}
	assert.Zero(t, f.store.writes)
	assert.Empty(t, f.ledger(s.due.ID).CaptureID)

	// 服务恢复后下一次执行补上
	f.gateway.err = nil
	results, err = f.uc.DailyCaptureAuthorization(context.Background())
	require.NoError(t, err)
	assert.True(t, results[0].Captured)
	assert.Equal(t, constants.StatusCaptured, f.ledger(s.due.ID).Status)
}

func TestDailyCaptureSkipsLockedLedger(t *testing.T) {
	f := newFixture(t)
	s := seedSweep(f)
	f.locker.held[constants.LedgerLockPrefix+"PP-DUE"] = true

	results, err := f.uc.DailyCaptureAuthorization(context.Background())
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.False(t, results[0].Captured)
	assert.Equal(t, ErrLedgerBusy.Error(), results[0].ErrorMessage)
	assert.Equal(t, 1, f.gateway.count("capture"))
	assert.Empty(t, f.ledger(s.due.ID).CaptureID)
}

func TestDailyCaptureStopsOnCancelledContext(t *testing.T) {
	f := newFixture(t)
	seedSweep(f)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := f.uc.DailyCaptureAuthorization(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
	assert.Zero(t, f.gateway.total())
}

func TestCaptureAuthorizationRereadsLedger(t *testing.T) {
	f := newFixture(t)
	s := seedSweep(f)
	stale := *s.due
	stale.ToBeCapturedAmount = dec("999")

	// 持久化的金额已被部分退款冲减
	fresh := f.ledger(s.due.ID)
	fresh.ToBeCapturedAmount = dec("25")
	f.store.ledgers[s.due.ID] = fresh

	resp, err := f.uc.CaptureAuthorization(context.Background(), &stale, true)
	require.NoError(t, err)

	assert.Equal(t, "CAP-AUTH-A", resp.ID)
	assert.Equal(t, &CaptureRequest{Amount: &Money{CurrencyCode: "USD", Value: "25.00"}, FinalCapture: true}, f.gateway.lastCapture)
	assert.Zero(t, f.store.writes)
}

func TestCaptureAuthorizationNotCapturable(t *testing.T) {
	f := newFixture(t)
	s := seedSweep(f)

	_, err := f.uc.CaptureAuthorization(context.Background(), s.unauthorized, false)
	assert.ErrorIs(t, err, ErrNotCapturable)

	_, err = f.uc.CaptureAuthorization(context.Background(), &LedgerRecord{MerchantTradeNo: "PP-404"}, false)
	assert.ErrorIs(t, err, ErrLedgerNotFound)
	assert.Zero(t, f.gateway.total())
}

func TestCaptureNow(t *testing.T) {
	f := newFixture(t)
	s := seedSweep(f)

	// 未到请款日期也可以手动请款
	result, err := f.uc.CaptureNow(context.Background(), "PP-NOTDUE", true)
	require.NoError(t, err)
	assert.True(t, result.Captured)
	assert.Equal(t, "CAP-AUTH-C", result.CaptureID)
	assert.True(t, f.gateway.lastCapture.FinalCapture)
	assert.Equal(t, constants.StatusCaptured, f.ledger(s.notDue.ID).Status)
	assert.Equal(t, constants.StatusCaptured, f.store.orders[31].Status)

	// 已请款的支付单不会重复请款
	result, err = f.uc.CaptureNow(context.Background(), "PP-CAPTURED", false)
	require.NoError(t, err)
	assert.True(t, result.Captured)
	assert.Equal(t, "CAP-D", result.CaptureID)
	assert.Equal(t, 1, f.gateway.count("capture"))

	f.locker.held[constants.LedgerLockPrefix+"PP-DUE"] = true
	_, err = f.uc.CaptureNow(context.Background(), "PP-DUE", false)
	assert.ErrorIs(t, err, ErrLedgerBusy)

	f.gateway.err = &ProviderError{Operation: "capture", Err: context.DeadlineExceeded}
	_, err = f.uc.CaptureNow(context.Background(), "PP-PENDING", false)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}
