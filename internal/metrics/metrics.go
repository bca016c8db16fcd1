package metrics

import (
	"net/http"
	"time"

	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ProviderSet is metrics providers.
var ProviderSet = wire.NewSet(NewRegistry, NewCheckout)

// Checkout 支付状态机指标
type Checkout struct {
	Transitions     *prometheus.CounterVec
	ProviderCalls   *prometheus.CounterVec
	ProviderLatency *prometheus.HistogramVec
	NotifyDropped   prometheus.Counter

	gatherer prometheus.Gatherer
}

// NewCheckout registers the checkout collectors on reg. Tests pass a fresh
// prometheus.NewRegistry() so collectors never collide.
func NewCheckout(reg *prometheus.Registry) *Checkout {
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checkout",
		Name:      "transitions_total",
		Help:      "Payment state machine transitions by outcome.",
	}, []string{"transition", "result"})
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checkout",
		Subsystem: "provider",
		Name:      "calls_total",
		Help:      "Checkout provider calls by operation and outcome.",
	}, []string{"operation", "result"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "checkout",
		Subsystem: "provider",
		Name:      "call_duration_ms",
		Help:      "Checkout provider call latency in milliseconds.",
		Buckets:   []float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
	}, []string{"operation"})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "checkout",
		Subsystem: "notification",
		Name:      "dropped_total",
		Help:      "Payment confirmation notifications dropped because the queue was full or publishing failed.",
	})

	reg.MustRegister(transitions, calls, latency, dropped)
	return &Checkout{
		Transitions:     transitions,
		ProviderCalls:   calls,
		ProviderLatency: latency,
		NotifyDropped:   dropped,
		gatherer:        reg,
	}
}

// NewRegistry 进程级指标注册表，附带 Go 运行时与进程指标
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Transition 记录一次状态迁移结果
func (m *Checkout) Transition(name, result string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(name, result).Inc()
}

// ObserveProvider 记录一次服务商调用
func (m *Checkout) ObserveProvider(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ProviderCalls.WithLabelValues(operation, result).Inc()
	m.ProviderLatency.WithLabelValues(operation).Observe(float64(time.Since(start).Milliseconds()))
}

// Dropped 记录一次被丢弃的通知
func (m *Checkout) Dropped() {
	if m == nil {
		return
	}
	m.NotifyDropped.Inc()
}

func (m *Checkout) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
