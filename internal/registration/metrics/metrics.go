package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the registration ledger.
type Metrics struct {
	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	ForwardFailures   prometheus.Counter
	Withdrawals       prometheus.Counter
}

// New registers the ledger metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "phonelease_ledger_operations_total",
			Help: "Ledger operations by kind and outcome code",
		}, []string{"op", "outcome"}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "phonelease_ledger_operation_duration_seconds",
			Help:    "Duration of ledger operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"op"}),
		ForwardFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "phonelease_ledger_fee_forward_failures_total",
			Help: "Fees that could not be forwarded to the treasury and were kept for withdrawal",
		}),
		Withdrawals: f.NewCounter(prometheus.CounterOpts{
			Name: "phonelease_ledger_stuck_fee_withdrawals_total",
			Help: "Successful stuck-fee withdrawals",
		}),
	}
}

// Observe records one finished operation. Call with time.Now() taken at the
// start of the operation.
func (m *Metrics) Observe(op, outcome string, start time.Time) {
	m.Operations.WithLabelValues(op, outcome).Inc()
	m.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementForwardFailure() {
	m.ForwardFailures.Inc()
}

func (m *Metrics) IncrementWithdrawal() {
	m.Withdrawals.Inc()
}
