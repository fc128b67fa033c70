// Package middleware provides cross-cutting concerns for the evaluation
// harness, currently Prometheus-backed run metrics.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cotbench/cotbench/internal/ports"
)

// PrometheusMetrics implements ports.RunMetrics using Prometheus. Counters
// and histograms are labeled by strategy so per-strategy throughput and
// failure rates are visible directly in the scrape.
type PrometheusMetrics struct {
	tasksTotal   *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
}

// NewPrometheusMetrics creates a PrometheusMetrics instance registered with
// the given registerer. Pass prometheus.DefaultRegisterer for the global
// registry.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)
	return &PrometheusMetrics{
		tasksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cotbench_tasks_total",
				Help: "Total evaluation tasks processed, by strategy and status.",
			},
			[]string{"strategy", "status"},
		),
		taskDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cotbench_task_duration_seconds",
				Help:    "Wall-clock duration of a single question/strategy task.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"strategy"},
		),
	}
}

// TaskSucceeded implements ports.RunMetrics.
func (pm *PrometheusMetrics) TaskSucceeded(strategy string) {
	pm.tasksTotal.WithLabelValues(strategy, "success").Inc()
}

// TaskFailed implements ports.RunMetrics.
func (pm *PrometheusMetrics) TaskFailed(strategy string) {
	pm.tasksTotal.WithLabelValues(strategy, "failure").Inc()
}

// ObserveTaskDuration implements ports.RunMetrics.
func (pm *PrometheusMetrics) ObserveTaskDuration(strategy string, d time.Duration) {
	pm.taskDuration.WithLabelValues(strategy).Observe(d.Seconds())
}

// Compile-time verification that PrometheusMetrics implements RunMetrics.
var _ ports.RunMetrics = (*PrometheusMetrics)(nil)
