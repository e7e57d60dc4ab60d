package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the contact module.
type Metrics struct {
	// Identify outcomes: "created_primary", "created_secondary", "merged", "unchanged", "error"
	IdentifyOutcome *prometheus.CounterVec

	// Full identify latency including the store transaction
	IdentifyLatency prometheus.Histogram

	// Records created by precedence
	ContactsCreated *prometheus.CounterVec

	// Primaries demoted by merges
	PrimariesDemoted prometheus.Counter

	// Records in the resolved cluster returned to the caller
	ClusterSize prometheus.Histogram
}

// New creates the contact metrics on reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		IdentifyOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contactlink_identify_total",
			Help: "Identify calls by outcome",
		}, []string{"outcome"}),

		IdentifyLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "contactlink_identify_duration_seconds",
			Help:    "Duration of identify calls including the store transaction",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),

		ContactsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contactlink_contacts_created_total",
			Help: "Contact records created by link precedence",
		}, []string{"precedence"}),

		PrimariesDemoted: factory.NewCounter(prometheus.CounterOpts{
			Name: "contactlink_primaries_demoted_total",
			Help: "Primary contacts demoted to secondary by cluster merges",
		}),

		ClusterSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "contactlink_cluster_size",
			Help:    "Number of records in resolved clusters",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8),
		}),
	}
}

// IncrementOutcome records an identify outcome.
func (m *Metrics) IncrementOutcome(outcome string) {
	if m != nil {
		m.IdentifyOutcome.WithLabelValues(outcome).Inc()
	}
}

// ObserveIdentifyLatency records the total identify duration.
func (m *Metrics) ObserveIdentifyLatency(d time.Duration) {
	if m != nil {
		m.IdentifyLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementCreated(precedence string) {
	if m != nil {
		m.ContactsCreated.WithLabelValues(precedence).Inc()
	}
}

func (m *Metrics) AddDemoted(n int) {
	if m != nil && n > 0 {
		m.PrimariesDemoted.Add(float64(n))
	}
}

func (m *Metrics) ObserveClusterSize(n int) {
	if m != nil {
		m.ClusterSize.Observe(float64(n))
	}
}
