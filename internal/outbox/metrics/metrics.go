package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks the outbox relay.
type Metrics struct {
	EventsPublished *prometheus.CounterVec
	PublishFailures prometheus.Counter
	BatchSize       prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fasela_outbox_events_published_total",
			Help: "Ledger events published to the event feed",
		}, []string{"event_type"}),
		PublishFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fasela_outbox_publish_failures_total",
			Help: "Relay batches that failed to publish and will be retried",
		}),
		BatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "fasela_outbox_batch_size",
			Help:    "Number of events claimed per relay cycle",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}),
	}
}

func (m *Metrics) IncrementPublished(eventType string) {
	m.EventsPublished.WithLabelValues(eventType).Inc()
}

func (m *Metrics) IncrementFailure() {
	m.PublishFailures.Inc()
}

func (m *Metrics) ObserveBatch(n int) {
	m.BatchSize.Observe(float64(n))
}
