package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Decisions      *prometheus.CounterVec
	StoreErrors    prometheus.Counter
	FallbackChecks prometheus.Counter
	BreakerOpen    prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fasela_ratelimit_decisions_total",
			Help: "Rate limit decisions by endpoint class and outcome",
		}, []string{"class", "outcome"}),
		StoreErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fasela_ratelimit_store_errors_total",
			Help: "Failed checks against the shared rate limit store",
		}),
		FallbackChecks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fasela_ratelimit_fallback_checks_total",
			Help: "Checks served by the in-process fallback limiter",
		}),
		BreakerOpen: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "fasela_ratelimit_breaker_open",
			Help: "1 while the shared rate limit store is bypassed",
		}),
	}
}

func (m *Metrics) IncrementDecision(class, outcome string) {
	m.Decisions.WithLabelValues(class, outcome).Inc()
}

func (m *Metrics) IncrementStoreError() {
	m.StoreErrors.Inc()
}

func (m *Metrics) IncrementFallback() {
	m.FallbackChecks.Inc()
}

func (m *Metrics) SetBreakerOpen(open bool) {
	if open {
		m.BreakerOpen.Set(1)
		return
	}
	m.BreakerOpen.Set(0)
}
