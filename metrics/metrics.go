// Package metrics exposes Prometheus instruments for the brokerage write
// path and the expiry sweep.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/warp/brokerdesk/brokerage"
)

// Metrics implements brokerage.Observer.
type Metrics struct {
	Writes            *prometheus.CounterVec
	WriteDuration     *prometheus.HistogramVec
	AuditWriteFailure *prometheus.CounterVec
	ExpiringPolicies  prometheus.Gauge
	ImportRows        *prometheus.CounterVec
}

var _ brokerage.Observer = (*Metrics)(nil)

// New registers all metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers all metrics on reg. Tests pass a fresh
// prometheus.NewRegistry() so repeated construction does not collide.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Writes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "brokerdesk_writes_total",
			Help: "Write operations by entity, action and outcome",
		}, []string{"entity", "action", "outcome"}),
		WriteDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "brokerdesk_write_duration_seconds",
			Help:    "Duration of write operations including the audit append",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"entity", "action"}),
		AuditWriteFailure: f.NewCounterVec(prometheus.CounterOpts{
			Name: "brokerdesk_audit_write_failures_total",
			Help: "Committed changes whose audit entry could not be written",
		}, []string{"entity", "action"}),
		ExpiringPolicies: f.NewGauge(prometheus.GaugeOpts{
			Name: "brokerdesk_expiring_policies",
			Help: "Policies expiring within the configured window at the last sweep",
		}),
		ImportRows: f.NewCounterVec(prometheus.CounterOpts{
			Name: "brokerdesk_import_rows_total",
			Help: "Spreadsheet rows processed by outcome",
		}, []string{"outcome"}),
	}
}

// ObserveWrite records the outcome and duration of a write.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveWrite(entity brokerage.AuditEntity, action brokerage.AuditAction, start time.Time, err error) {
	m.Writes.WithLabelValues(string(entity), string(action), outcome(err)).Inc()
	m.WriteDuration.WithLabelValues(string(entity), string(action)).Observe(time.Since(start).Seconds())
}

// AuditWriteFailed counts a committed change without an audit entry.
func (m *Metrics) AuditWriteFailed(entity brokerage.AuditEntity, action brokerage.AuditAction) {
	m.AuditWriteFailure.WithLabelValues(string(entity), string(action)).Inc()
}

// SetExpiringPolicies records the size of the latest expiry report.
func (m *Metrics) SetExpiringPolicies(n int) {
	m.ExpiringPolicies.Set(float64(n))
}

// ObserveImport counts imported and failed spreadsheet rows.
func (m *Metrics) ObserveImport(imported, failed int) {
	m.ImportRows.WithLabelValues("imported").Add(float64(imported))
	m.ImportRows.WithLabelValues("failed").Add(float64(failed))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case brokerage.IsClientError(err):
		return "rejected"
	case brokerage.IsNotFound(err):
		return "not_found"
	default:
		return "error"
	}
}
