package observability

import (
	"time"

	"github.com/boddenberg/controle-financeiro-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Outcome labels shared by the settlement and compensation counters.
const (
	OutcomeCompleted = "completed"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
	OutcomeApplied   = "applied"
)

// Metrics holds all Prometheus metrics of the ledger.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	operationDuration *prometheus.HistogramVec
	storeErrors       *prometheus.CounterVec
	postings          *prometheus.CounterVec
	settlements       *prometheus.CounterVec
	compensations     *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "controle_operation_duration_seconds",
				Help:    "Duration of ledger operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		storeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "controle_store_errors_total",
				Help: "Total errors returned by the table store.",
			},
			[]string{"table"},
		),
		postings: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "controle_ledger_postings_total",
				Help: "Transactions posted, by kind.",
			},
			[]string{"kind"},
		),
		settlements: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "controle_settlements_total",
				Help: "List settlements, by outcome.",
			},
			[]string{"outcome"},
		),
		compensations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "controle_compensations_total",
				Help: "Compensations of partially applied writes, by outcome.",
			},
			[]string{"outcome"},
		),
	}
}

// RecordOperationDuration records the duration of a ledger operation.
func (m *Metrics) RecordOperationDuration(operation string, d time.Duration) {
	m.operationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrStoreError increments the store error counter.
func (m *Metrics) IncrStoreError(table string) {
	m.storeErrors.WithLabelValues(table).Inc()
}

// IncrPosting counts a posted transaction.
func (m *Metrics) IncrPosting(kind domain.TransactionKind) {
	m.postings.WithLabelValues(string(kind)).Inc()
}

// IncrSettlement counts a settlement attempt with its outcome.
func (m *Metrics) IncrSettlement(outcome string) {
	m.settlements.WithLabelValues(outcome).Inc()
}

// IncrCompensation counts a compensation with its outcome.
func (m *Metrics) IncrCompensation(outcome string) {
	m.compensations.WithLabelValues(outcome).Inc()
}

// LedgerSnapshot returns the cumulative ledger counters for the
// GET /v1/metrics/ledger endpoint.
func (m *Metrics) LedgerSnapshot() *domain.LedgerMetrics {
	return &domain.LedgerMetrics{
		Entrances:            int64(getCounterValue(m.postings, string(domain.KindEntrance))),
		Exits:                int64(getCounterValue(m.postings, string(domain.KindExit))),
		SettlementsCompleted: int64(getCounterValue(m.settlements, OutcomeCompleted)),
		SettlementsRejected:  int64(getCounterValue(m.settlements, OutcomeRejected)),
		CompensationsApplied: int64(getCounterValue(m.compensations, OutcomeApplied)),
		CompensationsFailed:  int64(getCounterValue(m.compensations, OutcomeFailed)),
		StoreErrors:          int64(sumCounterVec(m.storeErrors)),
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

// sumCounterVec adds up every label combination of cv.
func sumCounterVec(cv *prometheus.CounterVec) float64 {
	ch := make(chan prometheus.Metric, 16)
	go func() {
		cv.Collect(ch)
		close(ch)
	}()

	var total float64
	for metric := range ch {
		m := &dto.Metric{}
		if err := metric.Write(m); err != nil {
			continue
		}
		if m.Counter != nil && m.Counter.Value != nil {
			total += *m.Counter.Value
		}
	}
	return total
}
