// Package metrics exposes Prometheus counters for reconciliation runs and
// outbox task processing.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "orgsync"

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeParked  = "parked"
)

type metrics struct {
	runsTotal     *prometheus.CounterVec
	changesTotal  *prometheus.CounterVec
	warningsTotal *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec

	tasksTotal   *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		runsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "runs_total",
			Help:      "Total number of reconciliation procedure runs.",
		}, []string{"procedure", "outcome"}),
		changesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "changes_total",
			Help:      "Total number of changes applied by reconciliation procedures.",
		}, []string{"procedure", "counter"}),
		warningsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "warnings_total",
			Help:      "Total number of warnings raised by reconciliation procedures.",
		}, []string{"procedure"}),
		runDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "run_duration_seconds",
			Help:      "Duration of reconciliation procedure runs.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"procedure"}),
		tasksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "tasks_total",
			Help:      "Total number of outbox tasks processed.",
		}, []string{"kind", "outcome"}),
		taskDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "task_duration_seconds",
			Help:      "Latency distribution for outbox task handlers.",
			Buckets:   []float64{0.05, 0.1, 0.2, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"kind", "outcome"}),
	}
})

func get() *metrics {
	return metricsSingleton()
}

// RecordRun records one reconciliation run. Zero-valued counters are skipped.
func RecordRun(procedure, outcome string, seconds float64, counters map[string]int, warnings int) {
	m := get()
	m.runsTotal.WithLabelValues(procedure, outcome).Inc()
	m.runDuration.WithLabelValues(procedure).Observe(seconds)
	for name, n := range counters {
		if n > 0 {
			m.changesTotal.WithLabelValues(procedure, name).Add(float64(n))
		}
	}
	if warnings > 0 {
		m.warningsTotal.WithLabelValues(procedure).Add(float64(warnings))
	}
}

// RecordTask records one outbox task attempt.
func RecordTask(kind, outcome string, seconds float64) {
	m := get()
	m.tasksTotal.WithLabelValues(kind, outcome).Inc()
	m.taskDuration.WithLabelValues(kind, outcome).Observe(seconds)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
