package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for member registration and search.
type Metrics struct {
	MembersRegistered  prometheus.Counter
	MembershipsChanged *prometheus.CounterVec
	SearchDuration     prometheus.Histogram
}

// New registers the member metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		MembersRegistered: f.NewCounter(prometheus.CounterOpts{
			Name: "memberdir_members_registered_total",
			Help: "Total number of members registered",
		}),
		MembershipsChanged: f.NewCounterVec(prometheus.CounterOpts{
			Name: "memberdir_membership_changes_total",
			Help: "Membership category edits by resulting category",
		}, []string{"category"}),
		SearchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "memberdir_member_search_duration_seconds",
			Help:    "Duration of member search queries",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncrementRegistered() {
	m.MembersRegistered.Inc()
}

func (m *Metrics) IncrementMembershipChanged(category string) {
	m.MembershipsChanged.WithLabelValues(category).Inc()
}

// ObserveSearch records a search duration. Call with time.Now() at the start.
func (m *Metrics) ObserveSearch(start time.Time) {
	m.SearchDuration.Observe(time.Since(start).Seconds())
}
