package biz

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"xinyuan_tech/checkout-service/internal/conf"
	"xinyuan_tech/checkout-service/internal/constants"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"
)

var errInjected = errors.New("injected failure")

// memStore 内存仓库，Exec 出错时整体回滚
type memStore struct {
	mu         sync.Mutex
	ledgers    map[uint64]LedgerRecord
	links      map[uint64]OrderLink
	orders     map[uint64]Order
	recipients map[uint64]Recipient
	nextID     uint64

	writes   int
	failOn   string
	failLink int // CreateLinks 写入第 n 条时失败
}

func newMemStore() *memStore {
	return &memStore{
		ledgers:    map[uint64]LedgerRecord{},
		links:      map[uint64]OrderLink{},
		orders:     map[uint64]Order{},
		recipients: map[uint64]Recipient{},
		nextID:     100,
	}
}

func (s *memStore) id() uint64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) Exec(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	ledgers, links, orders := cloneMap(s.ledgers), cloneMap(s.links), cloneMap(s.orders)
	writes := s.writes
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.ledgers, s.links, s.orders, s.writes = ledgers, links, orders, writes
		s.mu.Unlock()
		return err
	}
	return nil
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memStore) fail(op string) error {
	if s.failOn == op {
		return errInjected
	}
	return nil
}

// LedgerRepo

func (s *memStore) CreateLedger(_ context.Context, rec *LedgerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CreateLedger"); err != nil {
		return err
	}
	rec.ID = s.id()
	s.ledgers[rec.ID] = *rec
	s.writes++
	return nil
}

func (s *memStore) GetByID(_ context.Context, id uint64) (*LedgerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.ledgers[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *memStore) find(match func(LedgerRecord) bool) *LedgerRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.ledgers {
		if match(rec) {
			r := rec
			return &r
		}
	}
	return nil
}

func (s *memStore) GetByPaymentID(_ context.Context, paymentID string) (*LedgerRecord, error) {
	return s.find(func(r LedgerRecord) bool { return r.PaymentID == paymentID }), nil
}

func (s *memStore) GetByMerchantTradeNo(_ context.Context, no string) (*LedgerRecord, error) {
	return s.find(func(r LedgerRecord) bool { return r.MerchantTradeNo == no }), nil
}

func (s *memStore) CountByPaymentID(ctx context.Context, paymentID string) (int64, error) {
	if rec, _ := s.GetByPaymentID(ctx, paymentID); rec != nil {
		return 1, nil
	}
	return 0, nil
}

func (s *memStore) UpdateLedger(_ context.Context, rec *LedgerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpdateLedger"); err != nil {
		return err
	}
	s.ledgers[rec.ID] = *rec
	s.writes++
	return nil
}

func (s *memStore) ListCapturable(_ context.Context, before time.Time) ([]*LedgerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*LedgerRecord
	for _, rec := range s.ledgers {
		if rec.Capturable(before) {
			r := rec
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// OrderLinkRepo

type linkRepo struct{ *memStore }

func (s linkRepo) CreateLinks(_ context.Context, links []*OrderLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, l := range links {
		if s.failLink > 0 && i+1 == s.failLink {
			return errInjected
		}
		l.ID = s.id()
		s.links[l.ID] = *l
		s.writes++
	}
	return nil
}

func (s linkRepo) ListByLedger(_ context.Context, ledgerID uint64) ([]*OrderLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*OrderLink
	for _, l := range s.links {
		if l.LedgerID == ledgerID {
			link := l
			out = append(out, &link)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s linkRepo) GetLatestByOrder(_ context.Context, paymentServiceID, orderID uint64) (*OrderLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *OrderLink
	for _, l := range s.links {
		if l.OrderID == orderID && l.PaymentServiceID == paymentServiceID && (latest == nil || l.ID > latest.ID) {
			link := l
			latest = &link
		}
	}
	return latest, nil
}

func (s linkRepo) UpdateStatus(_ context.Context, ids []uint64, status int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("LinkUpdateStatus"); err != nil {
		return err
	}
	for _, id := range ids {
		l := s.links[id]
		l.Status = status
		s.links[id] = l
		s.writes++
	}
	return nil
}

// OrderRepo

type orderRepo struct{ *memStore }

func (s orderRepo) ListOrders(_ context.Context, ids []uint64) ([]*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Order
	for _, id := range ids {
		if o, ok := s.orders[id]; ok {
			order := o
			out = append(out, &order)
		}
	}
	return out, nil
}

func (s orderRepo) GetOrder(_ context.Context, id uint64) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (s orderRepo) UpdateStatus(_ context.Context, ids []uint64, status int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("OrderUpdateStatus"); err != nil {
		return err
	}
	for _, id := range ids {
		o := s.orders[id]
		o.Status = status
		s.orders[id] = o
		s.writes++
	}
	return nil
}

func (s orderRepo) AttachRecipient(_ context.Context, ids []uint64, recipientID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		o := s.orders[id]
		o.RecipientID = recipientID
		s.orders[id] = o
		s.writes++
	}
	return nil
}

func (s *memStore) GetRecipient(_ context.Context, id uint64) (*Recipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recipients[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

// fakeGateway 记录调用次数并返回预设响应
type fakeGateway struct {
	mu    sync.Mutex
	calls map[string]int

	order     *OrderResponse
	authorize *OrderResponse
	capture   map[string]*CaptureResponse // authorizationID -> 响应
	refund    *RefundResponse
	err       error

	lastCapture *CaptureRequest
	lastRefund  *RefundRequest
	lastAmount  *Money
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{calls: map[string]int{}, capture: map[string]*CaptureResponse{}}
}

func (g *fakeGateway) count(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

func (g *fakeGateway) total() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		n += c
	}
	return n
}

func (g *fakeGateway) CreateOrder(_ context.Context, _ *CreateOrderRequest) (*OrderResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["create_order"]++
	return g.order, g.err
}

func (g *fakeGateway) AuthorizeOrder(_ context.Context, _ string, amount *Money) (*OrderResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["authorize"]++
	g.lastAmount = amount
	return g.authorize, g.err
}

func (g *fakeGateway) CaptureAuthorization(_ context.Context, authorizationID string, req *CaptureRequest) (*CaptureResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["capture"]++
	g.lastCapture = req
	if g.err != nil {
		return nil, g.err
	}
	if resp, ok := g.capture[authorizationID]; ok {
		return resp, nil
	}
	return &CaptureResponse{ID: "CAP-" + authorizationID, Status: constants.ProviderStatusCompleted}, nil
}

func (g *fakeGateway) RefundCapture(_ context.Context, _ string, req *RefundRequest) (*RefundResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["refund"]++
	g.lastRefund = req
	return g.refund, g.err
}

// fakeLocker 进程内互斥，held 中的 key 视为被占用
type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func (l *fakeLocker) Lock(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, ErrLedgerBusy
	}
	l.held[key] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
	}, nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	sent  []*LedgerRecord
	links [][]*OrderLink
}

func (n *fakeNotifier) EnqueuePaymentConfirmation(_ context.Context, rec *LedgerRecord, links []*OrderLink) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, rec)
	n.links = append(n.links, links)
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type fixture struct {
	uc       *CheckoutUsecase
	store    *memStore
	gateway  *fakeGateway
	locker   *fakeLocker
	notifier *fakeNotifier
	now      time.Time
}

func testConfig() *conf.Bootstrap {
	return &conf.Bootstrap{
		Client: &conf.Client{PayPal: &conf.PayPal{
			BaseURL:     "https://api-m.sandbox.paypal.com",
			ReturnURL:   "https://shop.example.com/checkout/return",
			BrandName:   "Example Shop",
			Locale:      "en-US",
			LandingPage: "BILLING",
			UserAction:  "CONTINUE",
		}},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    newMemStore(),
		gateway:  newFakeGateway(),
		locker:   &fakeLocker{held: map[string]bool{}},
		notifier: &fakeNotifier{},
		now:      time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC),
	}
	f.uc = NewCheckoutUsecase(
		f.store, linkRepo{f.store}, orderRepo{f.store}, f.store,
		f.gateway, f.store, f.locker, f.notifier, nil, testConfig(), log.DefaultLogger,
	)
	f.uc.now = func() time.Time { return f.now }
	return f
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (f *fixture) seedOrder(id uint64, userID uint64, total string) {
	f.store.orders[id] = Order{
		ID:              id,
		UserID:          userID,
		ItemName:        fmt.Sprintf("item-%d", id),
		ItemDescription: "desc",
		UnitPrice:       dec(total),
		Quantity:        1,
		TotalAmount:     dec(total),
		Status:          constants.StatusAwaitingAuthorization,
	}
}

// seedLedger 写入一条支付单及其订单关联（不计入 writes）
func (f *fixture) seedLedger(rec LedgerRecord, orderIDs ...uint64) *LedgerRecord {
	rec.ID = f.store.id()
	if rec.PaymentServiceID == 0 {
		rec.PaymentServiceID = 3
	}
	if rec.Currency == "" {
		rec.Currency = "USD"
	}
	f.store.ledgers[rec.ID] = rec
	for _, oid := range orderIDs {
		id := f.store.id()
		f.store.links[id] = OrderLink{ID: id, PaymentServiceID: rec.PaymentServiceID, LedgerID: rec.ID, OrderID: oid, Status: rec.Status}
	}
	return &rec
}

func (f *fixture) ledger(id uint64) LedgerRecord { return f.store.ledgers[id] }

func (f *fixture) linkFor(orderID uint64) OrderLink {
	l, _ := linkRepo{f.store}.GetLatestByOrder(context.Background(), 3, orderID)
	return *l
}

func timePtr(t time.Time) *time.Time { return &t }

func authorizeResponse(status, authStatus, currency, value string) *OrderResponse {
	return &OrderResponse{
		ID:     "PAY-1",
		Status: status,
		PurchaseUnits: []PurchaseUnitResponse{{
			Payments: &Payments{Authorizations: []Authorization{{
				ID:             "AUTH-1",
				Status:         authStatus,
				Amount:         &Money{CurrencyCode: currency, Value: value},
				ExpirationTime: time.Date(2024, 6, 8, 8, 0, 0, 0, time.UTC),
			}}},
		}},
	}
}
