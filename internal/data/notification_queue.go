package data

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"xinyuan_tech/checkout-service/internal/biz"
	"xinyuan_tech/checkout-service/internal/conf"
	"xinyuan_tech/checkout-service/internal/constants"
	"xinyuan_tech/checkout-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const defaultPublishTimeout = 5 * time.Second

// messagePublisher *kafka.Writer 的最小子集
type messagePublisher interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// PaymentConfirmedEvent 付款成功事件
type PaymentConfirmedEvent struct {
	EventID    string            `json:"event_id"`
	EventType  string            `json:"event_type"`
	OccurredAt time.Time         `json:"occurred_at"`
	Ledger     *biz.LedgerRecord `json:"ledger"`
	Orders     []*biz.OrderLink  `json:"orders"`
}

type notification struct {
	rec   *biz.LedgerRecord
	links []*biz.OrderLink
}

// NotificationQueue 付款成功通知队列
// 入队不阻塞，由单个 worker 顺序发布到 Kafka；未配置 broker 时只记录日志
type NotificationQueue struct {
	ch        chan notification
	publisher messagePublisher
	timeout   time.Duration
	metrics   *metrics.Checkout
	log       *log.Helper

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewNotificationQueue 创建通知队列并启动 worker
func NewNotificationQueue(c *conf.Bootstrap, m *metrics.Checkout, logger log.Logger) (*NotificationQueue, func(), error) {
	var brokers []string
	topic, size, timeout := constants.DefaultNotificationTopic, constants.DefaultNotificationQueueSize, defaultPublishTimeout
	if c != nil && c.Data != nil {
		k := c.Data.Kafka
		for _, b := range strings.Split(k.Brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
		if k.Topic != "" {
			topic = k.Topic
		}
		if k.QueueSize > 0 {
			size = k.QueueSize
		}
		timeout = conf.MustDuration(k.PublishTimeout, defaultPublishTimeout)
	}

	var publisher messagePublisher
	if len(brokers) > 0 {
		publisher = &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		}
	}

	q := newNotificationQueue(publisher, size, timeout, m, logger)
	return q, q.Close, nil
}

func newNotificationQueue(publisher messagePublisher, size int, timeout time.Duration, m *metrics.Checkout, logger log.Logger) *NotificationQueue {
	q := &NotificationQueue{
		ch:        make(chan notification, size),
		publisher: publisher,
		timeout:   timeout,
		metrics:   m,
		log:       log.NewHelper(log.With(logger, "module", "data/notification")),
		done:      make(chan struct{}),
	}
	go q.run()
	return q
}

// EnqueuePaymentConfirmation 提交付款成功通知，队列已满或已关闭时丢弃
func (q *NotificationQueue) EnqueuePaymentConfirmation(ctx context.Context, rec *biz.LedgerRecord, links []*biz.OrderLink) {
	if rec == nil {
		return
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.drop(rec, "queue closed")
		return
	}
	select {
	case q.ch <- notification{rec: rec, links: links}:
	default:
		q.drop(rec, "queue full")
	}
}

func (q *NotificationQueue) drop(rec *biz.LedgerRecord, reason string) {
	q.log.Warnf("Dropped payment confirmation for %s: %s", rec.MerchantTradeNo, reason)
	q.metrics.Dropped()
}

func (q *NotificationQueue) run() {
	defer close(q.done)
	for n := range q.ch {
		q.publish(n)
	}
}

func (q *NotificationQueue) publish(n notification) {
	event := &PaymentConfirmedEvent{
		EventID:    uuid.NewString(),
		EventType:  constants.EventPaymentConfirmed,
		OccurredAt: time.Now().UTC(),
		Ledger:     n.rec,
		Orders:     n.links,
	}
	if q.publisher == nil {
		q.log.Infof("Payment confirmed: merchant_trade_no=%s, authorization_id=%s, orders=%d",
			n.rec.MerchantTradeNo, n.rec.AuthorizationID, len(n.links))
		return
	}

	value, err := json.Marshal(event)
	if err != nil {
		q.log.Errorf("Failed to marshal payment confirmation %s: %v", n.rec.MerchantTradeNo, err)
		q.metrics.Dropped()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	err = q.publisher.WriteMessages(ctx, kafka.Message{
		Key:   []byte(n.rec.MerchantTradeNo),
		Value: value,
		Time:  event.OccurredAt,
	})
	if err != nil {
		q.log.Errorf("Failed to publish payment confirmation %s: %v", n.rec.MerchantTradeNo, err)
		q.metrics.Dropped()
	}
}

// Close 停止接收新通知，发布完已入队的通知后关闭 writer
func (q *NotificationQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	<-q.done
	if q.publisher != nil {
		if err := q.publisher.Close(); err != nil {
			q.log.Warnf("Failed to close kafka writer: %v", err)
		}
	}
}
