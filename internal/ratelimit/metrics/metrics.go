package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Decisions   *prometheus.CounterVec
	StoreErrors prometheus.Counter
	BreakerOpen prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contactlink_ratelimit_decisions_total",
			Help: "Rate limit decisions by result",
		}, []string{"result"}),
		StoreErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "contactlink_ratelimit_store_errors_total",
			Help: "Bucket store failures seen by the limiter",
		}),
		BreakerOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "contactlink_ratelimit_breaker_open",
			Help: "1 while the limiter is serving from its in-memory fallback",
		}),
	}
}

func (m *Metrics) IncrementDecision(result string) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrementStoreErrors() {
	if m == nil {
		return
	}
	m.StoreErrors.Inc()
}

func (m *Metrics) SetBreakerOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.BreakerOpen.Set(1)
		return
	}
	m.BreakerOpen.Set(0)
}
