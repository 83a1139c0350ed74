package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Operation outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// InventoryMetrics records stock mutation activity. A nil value is a no-op.
type InventoryMetrics struct {
	operations     *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	ledgerFailures *prometheus.CounterVec
}

// NewInventoryMetrics registers the inventory metrics on the provided registerer.
func NewInventoryMetrics(reg prometheus.Registerer) *InventoryMetrics {
	if reg == nil {
		return &InventoryMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_operations_total",
		Help: "Stock operations by action and outcome.",
	}, []string{"action", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inventory_operation_duration_seconds",
		Help:    "Duration of stock operations in seconds, lock wait included.",
		Buckets: prometheus.DefBuckets,
	}, []string{"action"})
	ledgerFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_ledger_append_failures_total",
		Help: "Stock history writes that failed after the record was updated.",
	}, []string{"action"})
	reg.MustRegister(operations, duration, ledgerFailures)
	return &InventoryMetrics{
		operations:     operations,
		duration:       duration,
		ledgerFailures: ledgerFailures,
	}
}

// Observe records one finished operation.
func (m *InventoryMetrics) Observe(action, outcome string, d time.Duration) {
	if m == nil || m.operations == nil {
		return
	}
	action = normalizeLabel(action)
	m.operations.WithLabelValues(action, outcome).Inc()
	m.duration.WithLabelValues(action).Observe(d.Seconds())
}

// IncLedgerFailure counts a stock history write that failed.
func (m *InventoryMetrics) IncLedgerFailure(action string) {
	if m == nil || m.ledgerFailures == nil {
		return
	}
	m.ledgerFailures.WithLabelValues(normalizeLabel(action)).Inc()
}

func normalizeLabel(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return "unknown"
	}
	return value
}
