package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Decisions   *prometheus.CounterVec
	StoreErrors prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "phonelease_ratelimit_decisions_total",
			Help: "Rate limit decisions by scope and outcome",
		}, []string{"scope", "outcome"}),
		StoreErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "phonelease_ratelimit_store_errors_total",
			Help: "Rate limit checks that failed open because the store errored",
		}),
	}
}

func (m *Metrics) ObserveDecision(scope string, allowed bool) {
	outcome := "allowed"
	if !allowed {
		outcome = "limited"
	}
	m.Decisions.WithLabelValues(scope, outcome).Inc()
}

func (m *Metrics) IncrementStoreErrors() {
	m.StoreErrors.Inc()
}
