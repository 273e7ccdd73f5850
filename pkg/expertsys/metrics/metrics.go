// Package metrics records inference activity as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cognicore/expertsys/pkg/expertsys/inference"
)

// Recorder implements inference.Observer.
type Recorder struct {
	sessions        *prometheus.CounterVec
	ruleFirings     *prometheus.CounterVec
	factsInferred   prometheus.Counter
	forwardPasses   prometheus.Histogram
	proofCalls      prometheus.Histogram
	cycleStops      prometheus.Counter
	durationSeconds *prometheus.HistogramVec
}

// NewRecorder creates the metrics and registers them with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "expertsys",
			Subsystem: "inference",
			Name:      "sessions_total",
			Help:      `Reasoning sessions by mode and outcome.`,
		}, []string{"mode", "outcome"}),
		ruleFirings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "expertsys",
			Subsystem: "inference",
			Name:      "rule_firings_total",
			Help:      `Times each rule contributed at least one new fact.`,
		}, []string{"rule"}),
		factsInferred: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "expertsys",
			Subsystem: "inference",
			Name:      "facts_inferred_total",
			Help:      `Facts added to working memory by rules.`,
		}),
		forwardPasses: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "expertsys",
			Subsystem: "inference",
			Name:      "forward_passes",
			Help: `Fixpoint passes per forward-chaining session.

The final pass that adds nothing is included.
`,
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		}),
		proofCalls: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "expertsys",
			Subsystem: "inference",
			Name:      "backward_goal_calls",
			Help:      `Recursive goal evaluations per backward-chaining session.`,
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		cycleStops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "expertsys",
			Subsystem: "inference",
			Name:      "cycle_stops_total",
			Help:      `Subgoals rejected because they already appeared on the current proof path.`,
		}),
		durationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "expertsys",
			Subsystem: "inference",
			Name:      "session_duration_seconds",
			Help:      `Wall time of a reasoning session.`,
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}, []string{"mode"}),
	}
	reg.MustRegister(r.sessions, r.ruleFirings, r.factsInferred, r.forwardPasses,
		r.proofCalls, r.cycleStops, r.durationSeconds)
	return r
}

// RuleFired implements inference.Observer.
func (r *Recorder) RuleFired(ruleID string, added int) {
	r.ruleFirings.WithLabelValues(ruleID).Inc()
	r.factsInferred.Add(float64(added))
}

// SessionDone implements inference.Observer.
func (r *Recorder) SessionDone(stats inference.Stats, proven bool) {
	outcome := "none"
	if proven {
		outcome = "derived"
	}
	mode := string(stats.Mode)
	r.sessions.WithLabelValues(mode, outcome).Inc()
	r.durationSeconds.WithLabelValues(mode).Observe(stats.Duration.Seconds())

	switch stats.Mode {
	case inference.Forward:
		r.forwardPasses.Observe(float64(stats.Passes))
	case inference.Backward:
		r.proofCalls.Observe(float64(stats.Calls))
		r.cycleStops.Add(float64(stats.CycleStops))
	}
}

var _ inference.Observer = (*Recorder)(nil)
