package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the pricing module.
type Metrics struct {
	QuotesTotal   *prometheus.CounterVec
	ConfigChanges *prometheus.CounterVec
	QuoteRejected prometheus.Counter
}

// New registers the pricing metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		QuotesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "phonelease_pricing_quotes_total",
			Help: "Fee quotes computed, by tier",
		}, []string{"tier"}),
		ConfigChanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "phonelease_pricing_config_changes_total",
			Help: "Administrative pricing changes, by kind",
		}, []string{"kind"}),
		QuoteRejected: f.NewCounter(prometheus.CounterOpts{
			Name: "phonelease_pricing_quotes_rejected_total",
			Help: "Fee computations rejected for out-of-range durations",
		}),
	}
}

func (m *Metrics) IncrementQuote(tier string) {
	m.QuotesTotal.WithLabelValues(tier).Inc()
}

func (m *Metrics) IncrementConfigChange(kind string) {
	m.ConfigChanges.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncrementQuoteRejected() {
	m.QuoteRejected.Inc()
}
