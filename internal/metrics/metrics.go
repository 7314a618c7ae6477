// Package metrics exposes reconciliation metrics to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/artifacts/internal/engine"
	"github.com/roach88/artifacts/internal/ir"
)

// Namespace prefixes every metric name.
const Namespace = "artifacts"

// Recorder collects engine and hook metrics. It implements engine.Observer.
type Recorder struct {
	registry *prometheus.Registry

	evaluations        *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
	artifacts          *prometheus.CounterVec
	batchFailures      *prometheus.CounterVec
	hooks              *prometheus.CounterVec
}

var _ engine.Observer = (*Recorder)(nil)

// NewRecorder creates a Recorder with its own registry, so tests and
// multiple servers in one process never collide on registration.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		evaluations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "evaluations_total",
				Help:      "Reconciliations by event, record type and outcome",
			},
			[]string{"event", "record_type", "outcome"},
		),
		evaluationDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "evaluation_duration_seconds",
				Help:      "Reconciliation duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"event"},
		),
		artifacts: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "artifacts_written_total",
				Help:      "Artifact records written by operation",
			},
			[]string{"op"},
		),
		batchFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "batch_item_failures_total",
				Help:      "Batch items that failed and were skipped",
			},
			[]string{"op"},
		),
		hooks: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "hook_invocations_total",
				Help:      "Cleanup and upload hook invocations by status",
			},
			[]string{"hook", "status"},
		),
	}
}

// ObserveEvaluation implements engine.Observer.
func (r *Recorder) ObserveEvaluation(event, recordType, outcome string, elapsed time.Duration) {
	r.evaluations.WithLabelValues(event, recordType, outcome).Inc()
	r.evaluationDuration.WithLabelValues(event).Observe(elapsed.Seconds())
}

// ObserveApplied implements engine.Observer.
func (r *Recorder) ObserveApplied(a engine.Applied) {
	r.artifacts.WithLabelValues(string(ir.OpCreate)).Add(float64(len(a.Created)))
	r.artifacts.WithLabelValues(string(ir.OpUpdate)).Add(float64(a.Updated))
	r.artifacts.WithLabelValues(string(ir.OpDelete)).Add(float64(a.Deleted))
}

// ObserveBatchFailure implements engine.Observer.
func (r *Recorder) ObserveBatchFailure(op ir.RequestOp) {
	r.batchFailures.WithLabelValues(string(op)).Inc()
}

// ObserveHook counts one hook invocation.
func (r *Recorder) ObserveHook(hook string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.hooks.WithLabelValues(hook, status).Inc()
}

// Registry returns the registry holding the Recorder's metrics.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the Recorder's metrics in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
