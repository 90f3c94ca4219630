package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for financial reports.
type Metrics struct {
	CacheLookups     *prometheus.CounterVec
	CacheErrors      prometheus.Counter
	CacheBreakerOpen prometheus.Gauge
	IntegrityFaults  *prometheus.CounterVec
	DegradedWidgets  prometheus.Counter
	LoadLatency      *prometheus.HistogramVec
	BuildDuration    *prometheus.HistogramVec
}

func New() *Metrics {
	return &Metrics{
		CacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fasela_report_cache_lookups_total",
			Help: "Report cache lookups by result (hit, miss)",
		}, []string{"result"}),
		CacheErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fasela_report_cache_errors_total",
			Help: "Report cache operations that failed and fell back to direct computation",
		}),
		CacheBreakerOpen: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "fasela_report_cache_breaker_open",
			Help: "1 while the report cache circuit breaker is open",
		}),
		IntegrityFaults: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fasela_ledger_integrity_faults_total",
			Help: "Ledger integrity faults found while building reports, by kind",
		}, []string{"kind"}),
		DegradedWidgets: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fasela_report_dashboard_degraded_total",
			Help: "Dashboards served as an empty placeholder after a build failure",
		}),
		LoadLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fasela_report_load_duration_seconds",
			Help:    "Latency of report data loads by source",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"source"}),
		BuildDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fasela_report_build_duration_seconds",
			Help:    "End-to-end duration of report requests by report",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"report"}),
	}
}

func (m *Metrics) IncrementCacheHit() {
	m.CacheLookups.WithLabelValues("hit").Inc()
}

func (m *Metrics) IncrementCacheMiss() {
	m.CacheLookups.WithLabelValues("miss").Inc()
}

func (m *Metrics) IncrementCacheError() {
	m.CacheErrors.Inc()
}

func (m *Metrics) SetBreakerOpen(open bool) {
	if open {
		m.CacheBreakerOpen.Set(1)
		return
	}
	m.CacheBreakerOpen.Set(0)
}

func (m *Metrics) IncrementFault(kind string) {
	m.IntegrityFaults.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncrementDegraded() {
	m.DegradedWidgets.Inc()
}

func (m *Metrics) ObserveLoadLatency(source string, d time.Duration) {
	m.LoadLatency.WithLabelValues(source).Observe(d.Seconds())
}

// ObserveBuild records the duration of a report request.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveBuild(report string, start time.Time) {
	m.BuildDuration.WithLabelValues(report).Observe(time.Since(start).Seconds())
}
