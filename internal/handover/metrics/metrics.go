package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for handover allocation.
type Metrics struct {
	HandoversRecorded  *prometheus.CounterVec
	OverAllocations    prometheus.Counter
	AllocationDuration prometheus.Histogram
	AmountAllocated    prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		HandoversRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fasela_handovers_recorded_total",
			Help: "Handovers written, by kind (recorded or amended)",
		}, []string{"kind"}),
		OverAllocations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fasela_handover_over_allocations_total",
			Help: "Allocations rejected because they exceeded the donation balance",
		}),
		AllocationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "fasela_handover_allocation_duration_seconds",
			Help:    "Duration of the allocate operation including the locked transaction",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		AmountAllocated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fasela_handover_amount_recorded_total",
			Help: "Sum of newly recorded handover amounts",
		}),
	}
}

func (m *Metrics) IncrementRecorded(kind string) {
	m.HandoversRecorded.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncrementOverAllocation() {
	m.OverAllocations.Inc()
}

func (m *Metrics) AddAmount(amount float64) {
	m.AmountAllocated.Add(amount)
}

// ObserveAllocation records the duration since start.
func (m *Metrics) ObserveAllocation(start time.Time) {
	m.AllocationDuration.Observe(time.Since(start).Seconds())
}
