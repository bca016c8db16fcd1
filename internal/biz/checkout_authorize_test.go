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

func TestCheckAuthorization(t *testing.T) {
	rec := &LedgerRecord{Currency: "USD", TotalAmount: dec("100.00")}

	tests := []struct {
		name string
		resp *OrderResponse
		want string
	}{
		{name: "valid", resp: authorizeResponse("COMPLETED", "CREATED", "USD", "100.00")},
		{name: "valid without decimals", resp: authorizeResponse("COMPLETED", "CREATED", "USD", "100")},
		{name: "order not completed", resp: authorizeResponse("PAYER_ACTION_REQUIRED", "CREATED", "USD", "100.00"), want: "Authorization isn't completed"},
		{name: "authorization not created", resp: authorizeResponse("COMPLETED", "DENIED", "USD", "100.00"), want: "Authorization was not created"},
		{name: "currency mismatch", resp: authorizeResponse("COMPLETED", "CREATED", "TWD", "100.00"), want: "The currency is mismatched"},
		{name: "amount mismatch", resp: authorizeResponse("COMPLETED", "CREATED", "USD", "99.00"), want: "The total amount is not correct"},
		{name: "fractional amount mismatch", resp: authorizeResponse("COMPLETED", "CREATED", "USD", "100.40"), want: "The total amount is not correct"},
		{name: "empty response", resp: nil, want: "Authorization response is empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CheckAuthorization(rec, tt.resp))
		})
	}

	t.Run("missing authorization", func(t *testing.T) {
		resp := &OrderResponse{Status: "COMPLETED", PurchaseUnits: []PurchaseUnitResponse{{}}}
		assert.Contains(t, CheckAuthorization(rec, resp), "malformed")
	})
	t.Run("missing purchase unit", func(t *testing.T) {
		resp := &OrderResponse{Status: "COMPLETED"}
		assert.Contains(t, CheckAuthorization(rec, resp), "malformed")
	})
	t.Run("unparsable amount", func(t *testing.T) {
		assert.Contains(t, CheckAuthorization(rec, authorizeResponse("COMPLETED", "CREATED", "USD", "1O0")), "malformed")
	})
}

// seedPending 等待买家确认的支付单：订单 1、2 属于当前服务商，订单 3 属于其他服务商
func seedPending(f *fixture) *LedgerRecord {
	f.seedOrder(1, 5, "60.00")
	f.seedOrder(2, 5, "40.00")
	f.seedOrder(3, 5, "10.00")
	rec := f.seedLedger(LedgerRecord{
		UserID:          5,
		PaymentID:       "PAY-1",
		MerchantTradeNo: "PP000000000000000001",
		TotalAmount:     dec("100.00"),
		RecipientID:     7,
		Status:          constants.StatusPendingApproval,
		ExpiryTime:      timePtr(time.Date(2024, 5, 10, 11, 0, 0, 0, time.UTC)),
	}, 1, 2)
	id := f.store.id()
	f.store.links[id] = OrderLink{ID: id, PaymentServiceID: 9, LedgerID: rec.ID, OrderID: 3, Status: constants.StatusPendingApproval}
	return rec
}

func TestCommitAuthorization(t *testing.T) {
	f := newFixture(t)
	rec := seedPending(f)

	err := f.uc.CommitAuthorization(context.Background(), "PAY-1", authorizeResponse("COMPLETED", "CREATED", "USD", "100.00"))
	require.NoError(t, err)

	saved := f.ledger(rec.ID)
	assert.Equal(t, constants.StatusAuthorized, saved.Status)
	assert.Nil(t, saved.ExpiryTime)
	assert.Equal(t, f.now, *saved.ApproveDate)
	assert.Equal(t, f.now.AddDate(0, 0, 2), *saved.ToBeCapturedDate)
	assert.Equal(t, f.now.AddDate(0, 0, 7), *saved.ToBeCompletedDate)
	assert.Equal(t, time.Date(2024, 6, 8, 8, 0, 0, 0, time.UTC), *saved.AuthorizationExpiryDate)
	assert.True(t, dec("100").Equal(saved.ToBeCapturedAmount))
	assert.Equal(t, "AUTH-1", saved.AuthorizationID)
	assert.Empty(t, saved.CaptureID)

	for _, id := range []uint64{1, 2} {
		assert.Equal(t, constants.StatusAuthorized, f.store.orders[id].Status)
		assert.Equal(t, uint64(7), f.store.orders[id].RecipientID)
		assert.Equal(t, constants.StatusAuthorized, f.linkFor(id).Status)
	}
	// 其他服务商的关联不受影响
	assert.Equal(t, constants.StatusAwaitingAuthorization, f.store.orders[3].Status)
	assert.Zero(t, f.store.orders[3].RecipientID)

	require.Equal(t, 1, f.notifier.count())
	assert.Equal(t, "AUTH-1", f.notifier.sent[0].AuthorizationID)
	assert.Len(t, f.notifier.links[0], 2)
	assert.Empty(t, f.locker.held)
}

func TestCommitAuthorizationRejectedMakesNoMutation(t *testing.T) {
	responses := map[string]*OrderResponse{
		"not completed":    authorizeResponse("SAVED", "CREATED", "USD", "100.00"),
		"not created":      authorizeResponse("COMPLETED", "VOIDED", "USD", "100.00"),
		"currency":         authorizeResponse("COMPLETED", "CREATED", "EUR", "100.00"),
		"amount":           authorizeResponse("COMPLETED", "CREATED", "USD", "100.01"),
		"no purchase unit": {Status: "COMPLETED"},
	}
	for name, resp := range responses {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			rec := seedPending(f)
			before := f.ledger(rec.ID)

			err := f.uc.CommitAuthorization(context.Background(), "PAY-1", resp)

			var rejected *RejectedError
			require.True(t, errors.As(err, &rejected))
			assert.NotEmpty(t, rejected.Reason)
			assert.Zero(t, f.store.writes)
			assert.Equal(t, before, f.ledger(rec.ID))
			assert.Zero(t, f.notifier.count())
		})
	}
}

func TestCommitAuthorizationIsIdempotent(t *testing.T) {
	f := newFixture(t)
	rec := seedPending(f)
	resp := authorizeResponse("COMPLETED", "CREATED", "USD", "100.00")

	require.NoError(t, f.uc.CommitAuthorization(context.Background(), "PAY-1", resp))
	first := f.ledger(rec.ID)
	writes := f.store.writes

	f.now = f.now.Add(time.Hour)
	require.NoError(t, f.uc.CommitAuthorization(context.Background(), "PAY-1", resp))

	assert.Equal(t, first, f.ledger(rec.ID))
	assert.Equal(t, writes, f.store.writes)
	assert.Equal(t, 1, f.notifier.count())
}

func TestCommitAuthorizationRollsBackOnPersistenceFailure(t *testing.T) {
	f := newFixture(t)
	rec := seedPending(f)
	before := f.ledger(rec.ID)
	f.store.failOn = "LinkUpdateStatus"

	err := f.uc.CommitAuthorization(context.Background(), "PAY-1", authorizeResponse("COMPLETED", "CREATED", "USD", "100.00"))

	assert.ErrorIs(t, err, errInjected)
	assert.Equal(t, before, f.ledger(rec.ID))
	assert.Equal(t, constants.StatusAwaitingAuthorization, f.store.orders[1].Status)
	assert.Zero(t, f.notifier.count())
}

func TestCommitAuthorizationLockBusy(t *testing.T) {
	f := newFixture(t)
	seedPending(f)
	f.locker.held[constants.LedgerLockPrefix+"PP000000000000000001"] = true

	err := f.uc.CommitAuthorization(context.Background(), "PAY-1", authorizeResponse("COMPLETED", "CREATED", "USD", "100.00"))

	assert.ErrorIs(t, err, ErrLedgerBusy)
	assert.Zero(t, f.store.writes)
}

func TestCommitAuthorizationUnknownToken(t *testing.T) {
	f := newFixture(t)
	err := f.uc.CommitAuthorization(context.Background(), "PAY-404", authorizeResponse("COMPLETED", "CREATED", "USD", "1"))
	assert.ErrorIs(t, err, ErrLedgerNotFound)
}

func TestPaymentPredicates(t *testing.T) {
	f := newFixture(t)
	seedPending(f)
	ctx := context.Background()

	exists, err := f.uc.PaymentIDExists(ctx, "PAY-1")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = f.uc.PaymentIDExists(ctx, "PAY-2")
	require.NoError(t, err)
	assert.False(t, exists)

	approved, err := f.uc.PaymentApproved(ctx, "PAY-1")
	require.NoError(t, err)
	assert.False(t, approved)

	require.NoError(t, f.uc.CommitAuthorization(ctx, "PAY-1", authorizeResponse("COMPLETED", "CREATED", "USD", "100.00")))
	approved, err = f.uc.PaymentApproved(ctx, "PAY-1")
	require.NoError(t, err)
	assert.True(t, approved)

	_, err = f.uc.PaymentApproved(ctx, "PAY-2")
	assert.ErrorIs(t, err, ErrLedgerNotFound)
}

func TestHandleApprovalReturn(t *testing.T) {
	f := newFixture(t)
	seedPending(f)
	f.gateway.authorize = authorizeResponse("COMPLETED", "CREATED", "USD", "100.00")

	rec, err := f.uc.HandleApprovalReturn(context.Background(), "PAY-1")
	require.NoError(t, err)
	assert.Equal(t, constants.StatusAuthorized, rec.Status)
	assert.Nil(t, f.gateway.lastAmount)
	assert.Equal(t, 1, f.gateway.count("authorize"))

	// 买家刷新回跳页面
	rec, err = f.uc.HandleApprovalReturn(context.Background(), "PAY-1")
	require.NoError(t, err)
	assert.Equal(t, constants.StatusAuthorized, rec.Status)
	assert.Equal(t, 1, f.gateway.count("authorize"))
	assert.Equal(t, 1, f.notifier.count())
}

func TestHandleApprovalReturnErrors(t *testing.T) {
	t.Run("unknown token", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.uc.HandleApprovalReturn(context.Background(), "PAY-404")
		assert.ErrorIs(t, err, ErrLedgerNotFound)
		assert.Zero(t, f.gateway.total())
	})

	t.Run("provider timeout is not a rejection", func(t *testing.T) {
		f := newFixture(t)
		seedPending(f)
		f.gateway.err = &ProviderError{Operation: "authorize", Err: context.DeadlineExceeded}

		_, err := f.uc.HandleApprovalReturn(context.Background(), "PAY-1")

		assert.ErrorIs(t, err, ErrProviderUnavailable)
		var pe *ProviderError
		require.True(t, errors.As(err, &pe))
		assert.True(t, pe.Timeout())
		var rejected *RejectedError
		assert.False(t, errors.As(err, &rejected))
		assert.Zero(t, f.store.writes)
	})

	t.Run("rejected authorization", func(t *testing.T) {
		f := newFixture(t)
		seedPending(f)
		f.gateway.authorize = authorizeResponse("COMPLETED", "CREATED", "USD", "90.00")

		_, err := f.uc.HandleApprovalReturn(context.Background(), "PAY-1")

		var rejected *RejectedError
		require.True(t, errors.As(err, &rejected))
		assert.Equal(t, "The total amount is not correct", rejected.Reason)
		assert.Zero(t, f.store.writes)
	})
}
