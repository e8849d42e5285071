package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks directory admission transitions and their side effects.
type Metrics struct {
	Transitions          *prometheus.CounterVec
	NotificationFailures prometheus.Counter
	Conflicts            prometheus.Counter
	BatchSize            prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "memberdir_admission_transitions_total",
			Help: "Admission transitions by resulting status",
		}, []string{"outcome"}),
		NotificationFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "memberdir_admission_notification_failures_total",
			Help: "Approval or denial notifications that could not be sent",
		}),
		Conflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "memberdir_admission_conflicts_total",
			Help: "Admission writes rejected because the member changed concurrently",
		}),
		BatchSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "memberdir_admission_batch_size",
			Help:    "Number of members per approve or deny request",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
		}),
	}
}

func (m *Metrics) IncrementTransition(outcome string) {
	m.Transitions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementNotificationFailure() {
	m.NotificationFailures.Inc()
}

func (m *Metrics) IncrementConflict() {
	m.Conflicts.Inc()
}

func (m *Metrics) ObserveBatch(n int) {
	m.BatchSize.Observe(float64(n))
}
