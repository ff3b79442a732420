// Package metrics exposes Prometheus counters for transaction lifecycle
// events. The CLI is short-lived, so instead of serving /metrics it writes the
// registry to a node_exporter textfile on exit.
//
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors for one process.
type Metrics struct {
	registry *prometheus.Registry

	transactionsTotal *prometheus.CounterVec
	rollbacksTotal    *prometheus.CounterVec
	rollbackDuration  *prometheus.HistogramVec
	integrityTotal    *prometheus.CounterVec
	actionsTotal      *prometheus.CounterVec
	purgedTotal       prometheus.Counter
	payloadBytes      prometheus.Counter
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		transactionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "autorunkit_transactions_total",
			Help: "Transaction status transitions by action and resulting status",
		}, []string{"action", "status"}),
		rollbacksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "autorunkit_rollbacks_total",
			Help: "Rollback attempts by result code (ok on success)",
		}, []string{"code"}),
		rollbackDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "autorunkit_rollback_duration_seconds",
			Help:    "Time to restore a transaction's captured state",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"backing"}),
		integrityTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "autorunkit_manifest_integrity_total",
			Help: "Manifest integrity checks by outcome",
		}, []string{"status"}),
		actionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "autorunkit_actions_total",
			Help: "Executor actions by entry kind, action and result code",
		}, []string{"kind", "action", "code"}),
		purgedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "autorunkit_purged_transactions_total",
			Help: "Transactions removed by retention purges",
		}),
		payloadBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "autorunkit_payload_bytes_total",
			Help: "Bytes written to transaction payload files",
		}),
	}
}

// Registry returns the underlying registry for callers that want to serve it.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// TransactionStatus counts a transaction reaching status.
func (m *Metrics) TransactionStatus(action, status string) {
	if m == nil {
		return
	}
	m.transactionsTotal.WithLabelValues(action, status).Inc()
}

// Rollback records the outcome and duration of one rollback. An empty code
// means success.
func (m *Metrics) Rollback(backing, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if code == "" {
		code = "ok"
	}
	m.rollbacksTotal.WithLabelValues(code).Inc()
	m.rollbackDuration.WithLabelValues(backing).Observe(elapsed.Seconds())
}

// Integrity counts one manifest integrity check.
func (m *Metrics) Integrity(status string) {
	if m == nil {
		return
	}
	m.integrityTotal.WithLabelValues(status).Inc()
}

// Action counts one executor action. An empty code means success.
func (m *Metrics) Action(kind, action, code string) {
	if m == nil {
		return
	}
	if code == "" {
		code = "ok"
	}
	m.actionsTotal.WithLabelValues(kind, action, code).Inc()
}

// Purged adds n removed transactions.
func (m *Metrics) Purged(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.purgedTotal.Add(float64(n))
}

// PayloadBytes adds n bytes of captured payload.
func (m *Metrics) PayloadBytes(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.payloadBytes.Add(float64(n))
}

// WriteTextfile writes the registry in the text exposition format to path,
// replacing it atomically. Does nothing for a nil receiver or empty path.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
