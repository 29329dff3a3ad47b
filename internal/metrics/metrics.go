// Package metrics exposes Prometheus instrumentation for the derivation
// engine. A nil *Registry is a valid no-op, so callers never need to guard
// their observation calls.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry bundles the engine collectors.
type Registry struct {
	operations   *prometheus.CounterVec
	parseErrors  *prometheus.CounterVec
	persistFails prometheus.Counter
	activeLocks  prometheus.Gauge
}

// New registers the engine collectors on reg.
func New(reg prometheus.Registerer) *Registry {
	r := &Registry{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "derivekit",
			Name:      "operations_total",
			Help:      "Session operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		parseErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "derivekit",
			Name:      "parse_errors_total",
			Help:      "Formula parse failures by error kind.",
		}, []string{"kind"}),
		persistFails: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "derivekit",
			Name:      "persistence_failures_total",
			Help:      "Session writes that failed and were rolled back.",
		}),
		activeLocks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "derivekit",
			Name:      "active_session_locks",
			Help:      "Session locks currently held or waited on.",
		}),
	}
	reg.MustRegister(r.operations, r.parseErrors, r.persistFails, r.activeLocks)
	return r
}

// Operation records one session operation outcome ("ok", "rejected",
// "compute_error", "persist_error").
func (r *Registry) Operation(op, outcome string) {
	if r == nil {
		return
	}
	r.operations.WithLabelValues(op, outcome).Inc()
}

// ParseError records one formula parse failure.
func (r *Registry) ParseError(kind string) {
	if r == nil {
		return
	}
	r.parseErrors.WithLabelValues(kind).Inc()
}

// PersistFailure records one rolled-back write.
func (r *Registry) PersistFailure() {
	if r == nil {
		return
	}
	r.persistFails.Inc()
}

// LockAcquired and LockReleased track the lock gauge.
func (r *Registry) LockAcquired() {
	if r == nil {
		return
	}
	r.activeLocks.Inc()
}

func (r *Registry) LockReleased() {
	if r == nil {
		return
	}
	r.activeLocks.Dec()
}
