package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for deferred lookups.
type Metrics struct {
	LookupsStarted *prometheus.CounterVec
	Callbacks      *prometheus.CounterVec
	VerifyDuration prometheus.Histogram
	ConfigChanges  *prometheus.CounterVec
}

// New registers the resolution metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		LookupsStarted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "phonelease_resolution_lookups_started_total",
			Help: "Deferred lookups started, by operation",
		}, []string{"op"}),
		Callbacks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "phonelease_resolution_callbacks_total",
			Help: "Signed responses submitted, by outcome",
		}, []string{"outcome"}),
		VerifyDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "phonelease_resolution_verify_duration_seconds",
			Help:    "Time spent verifying signed responses",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
		ConfigChanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "phonelease_resolution_config_changes_total",
			Help: "Resolver configuration changes, by kind",
		}, []string{"kind"}),
	}
}

func (m *Metrics) IncrementLookup(op string) {
	m.LookupsStarted.WithLabelValues(op).Inc()
}

func (m *Metrics) ObserveCallback(outcome string, start time.Time) {
	m.Callbacks.WithLabelValues(outcome).Inc()
	m.VerifyDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementConfigChange(kind string) {
	m.ConfigChanges.WithLabelValues(kind).Inc()
}
