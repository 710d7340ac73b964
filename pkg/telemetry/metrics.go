// Package telemetry exposes operational metrics and tracing for the agent
// control loop. Metrics are Prometheus collectors served from the status
// endpoint; tracing uses OpenTelemetry with a stdout exporter.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricGuardrailVerdicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "echo",
		Name:      "guardrail_verdicts_total",
		Help:      "Guardrail verdicts grouped by outcome (deny, require_approval).",
	}, []string{"verdict"})

	metricActionsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "echo",
		Name:      "actions_executed_total",
		Help:      "Plan steps executed, grouped by action kind and outcome.",
	}, []string{"action", "outcome"})

	metricActionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "echo",
		Name:      "action_duration_seconds",
		Help:      "Wall-clock duration of executed actions.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"action"})

	metricRetryAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "echo",
		Name:      "retry_attempts_total",
		Help:      "Retry attempts made after transient action failures.",
	})

	metricRateLimitDenials = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "echo",
		Name:      "rate_limit_denials_total",
		Help:      "Requests refused because an integration window was exhausted.",
	})

	metricHeartbeatFindings = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "echo",
		Name:      "heartbeat_findings_total",
		Help:      "Findings produced by heartbeat checks, grouped by priority.",
	}, []string{"priority"})

	metricHeartbeatCycles = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "echo",
		Name:      "heartbeat_cycles_total",
		Help:      "Completed heartbeat cycles.",
	})

	metricApprovalsCascaded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "echo",
		Name:      "approvals_cascade_rejected_total",
		Help:      "Pending tool calls auto-rejected after an earlier rejection.",
	})
)

// RecordGuardrailVerdict counts one non-allow guardrail result.
func RecordGuardrailVerdict(verdict string) {
	metricGuardrailVerdicts.WithLabelValues(verdict).Inc()
}

// RecordAction counts one executed action and observes its duration.
func RecordAction(action, outcome string, seconds float64) {
	metricActionsExecuted.WithLabelValues(action, outcome).Inc()
	metricActionDuration.WithLabelValues(action).Observe(seconds)
}

// RecordRetryAttempt counts one retry after a transient failure.
func RecordRetryAttempt() {
	metricRetryAttempts.Inc()
}

// RecordRateLimitDenial counts one refused request.
func RecordRateLimitDenial() {
	metricRateLimitDenials.Inc()
}

// RecordHeartbeatFinding counts one finding at the given priority.
func RecordHeartbeatFinding(priority string) {
	metricHeartbeatFindings.WithLabelValues(priority).Inc()
}

// RecordHeartbeatCycle counts one completed cycle.
func RecordHeartbeatCycle() {
	metricHeartbeatCycles.Inc()
}

// RecordCascadeRejections counts tool calls auto-rejected by the cascade.
func RecordCascadeRejections(count int) {
	if count > 0 {
		metricApprovalsCascaded.Add(float64(count))
	}
}
