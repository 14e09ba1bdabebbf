// Package metrics exposes prometheus collectors for planner runs.
package metrics

import (
	"time"

	"github.com/arnavshah/screening-planner/pkg/planner"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "screening_planner"

// Metrics groups the planner collectors
type Metrics struct {
	Runs         *prometheus.CounterVec
	Assignments  prometheus.Counter
	Deficits     prometheus.Counter
	RunDuration  *prometheus.HistogramVec
	StoreRetries *prometheus.CounterVec
}

// New registers the collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Planner runs by mode and outcome.",
		}, []string{"mode", "outcome"}),
		Assignments: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "committed_assignments_total",
			Help:      "Assignments written by committed planner runs.",
		}),
		Deficits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deficits_total",
			Help:      "Under-filled screening roles reported by planner runs.",
		}),
		RunDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Planner run latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
		StoreRetries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_retries_total",
			Help:      "Store calls retried after a transient failure.",
		}, []string{"op"}),
	}
}

// ObserveRun records one planner run
func (m *Metrics) ObserveRun(dryRun bool, res *planner.Result, err error, elapsed time.Duration) {
	mode := "commit"
	if dryRun {
		mode = "preview"
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Runs.WithLabelValues(mode, outcome).Inc()
	m.RunDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
	if res == nil {
		return
	}
	m.Deficits.Add(float64(len(res.Deficits)))
	if res.Committed {
		m.Assignments.Add(float64(res.Inserted))
	}
}

// ObserveRetry records a retried store call
func (m *Metrics) ObserveRetry(op string) {
	m.StoreRetries.WithLabelValues(op).Inc()
}
