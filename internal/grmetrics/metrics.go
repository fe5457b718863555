// Package grmetrics exposes the rule engine's Prometheus instrumentation,
// grounded on the teacher's prometheus/client_golang usage: a fixed set of
// collectors, built by New as fields of a Metrics value and registered once
// against a caller-supplied registry, rather than a metrics abstraction layer.
package grmetrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every collector the rule engine updates. A zero-value
// Metrics is unusable; construct with New and register with Register.
type Metrics struct {
	ActionsExecuted       *prometheus.CounterVec
	PreconditionFailures  *prometheus.CounterVec
	RuleMatchesFired      *prometheus.CounterVec
	CascadeDepthReached   prometheus.Histogram
	BatchTaskDuration     *prometheus.HistogramVec
}

func New() *Metrics {
	return &Metrics{
		ActionsExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "graphrules",
			Name:      "actions_executed_total",
			Help:      "Actions executed, labeled by entity type, action name, and outcome.",
		}, []string{"entity_type", "action", "outcome"}),

		PreconditionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "graphrules",
			Name:      "precondition_failures_total",
			Help:      "Precondition evaluations that returned false, labeled by action and precondition name.",
		}, []string{"entity_type", "action", "precondition"}),

		RuleMatchesFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "graphrules",
			Name:      "rule_matches_fired_total",
			Help:      "Rules whose trigger matched a published event, labeled by rule name.",
		}, []string{"rule"}),

		CascadeDepthReached: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "graphrules",
			Name:      "cascade_depth_reached",
			Help:      "Distribution of cascade depth reached by a single triggering event.",
			Buckets:   prometheus.LinearBuckets(0, 1, 16),
		}),

		BatchTaskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "graphrules",
			Name:      "batch_task_duration_seconds",
			Help:      "Duration of individual batch executor tasks.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
	}
}

func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.ActionsExecuted,
		m.PreconditionFailures,
		m.RuleMatchesFired,
		m.CascadeDepthReached,
		m.BatchTaskDuration,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
