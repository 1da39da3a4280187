// Package metrics exposes Prometheus collectors for the request lifecycle.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcomes recorded per lifecycle operation.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeNotFound = "not_found"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
)

// Lifecycle counts request lifecycle operations by outcome and times them.
// A nil *Lifecycle records nothing.
type Lifecycle struct {
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewLifecycle(reg prometheus.Registerer) *Lifecycle {
	m := &Lifecycle{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookcrossing",
			Subsystem: "requests",
			Name:      "operations_total",
			Help:      "Borrow request lifecycle operations by outcome.",
		}, []string{"op", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bookcrossing",
			Subsystem: "requests",
			Name:      "operation_duration_seconds",
			Help:      "Latency of borrow request lifecycle operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}
	reg.MustRegister(m.ops, m.duration)
	return m
}

// Observe records one finished operation.
func (m *Lifecycle) Observe(op, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.ops.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// NewRegistry returns a registry preloaded with the Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves reg in the Prometheus text format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
