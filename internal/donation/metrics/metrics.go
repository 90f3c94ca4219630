package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the donation ledger.
type Metrics struct {
	DonationsCreated    prometheus.Counter
	DonationTransitions *prometheus.CounterVec
	RejectedTransitions *prometheus.CounterVec
	TransitionDuration  prometheus.Histogram
}

// New creates a new Metrics instance with all ledger metrics registered.
func New() *Metrics {
	return &Metrics{
		DonationsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fasela_donations_created_total",
			Help: "Total number of pending donations created",
		}),
		DonationTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fasela_donation_transitions_total",
			Help: "Donation status transitions by target status",
		}, []string{"status"}),
		RejectedTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fasela_donation_transitions_rejected_total",
			Help: "Donation transitions rejected because the donation was not pending",
		}, []string{"status"}),
		TransitionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "fasela_donation_transition_duration_seconds",
			Help:    "Duration of confirm and cancel operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncrementCreated() {
	m.DonationsCreated.Inc()
}

func (m *Metrics) IncrementTransition(status string) {
	m.DonationTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) IncrementRejected(status string) {
	m.RejectedTransitions.WithLabelValues(status).Inc()
}

// ObserveTransition records the duration of a transition.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveTransition(start time.Time) {
	m.TransitionDuration.Observe(time.Since(start).Seconds())
}
