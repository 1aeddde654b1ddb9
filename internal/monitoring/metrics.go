package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "stock_researcher"

var (
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stage executions in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"stage"},
	)

	OracleCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_calls_total",
			Help:      "Total oracle calls by oracle and outcome",
		},
		[]string{"oracle", "outcome"},
	)

	OracleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "oracle_call_duration_seconds",
			Help:      "Duration of guarded oracle calls in seconds, retries included",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 11),
		},
		[]string{"oracle"},
	)

	Validations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validations_total",
			Help:      "Validation outcomes: passed, retry or caveat",
		},
		[]string{"outcome"},
	)

	Runs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished research runs by status and mode",
		},
		[]string{"status", "mode"},
	)

	RunsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_active",
			Help:      "Research runs currently executing",
		},
	)

	RunCost = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_cost_usd_total",
			Help:      "Estimated oracle spend in USD",
		},
	)
)

// Oracle call outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeError       = "error"
	OutcomeTimeout     = "timeout"
	OutcomeCircuitOpen = "circuit_open"
)

// ObserveStage records one stage execution.
func ObserveStage(stage string, d time.Duration) {
	StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveOracleCall records one guarded oracle call.
func ObserveOracleCall(oracle, outcome string, d time.Duration) {
	OracleCalls.WithLabelValues(oracle, outcome).Inc()
	OracleDuration.WithLabelValues(oracle).Observe(d.Seconds())
}

// ObserveValidation records a validation verdict.
func ObserveValidation(outcome string) {
	Validations.WithLabelValues(outcome).Inc()
}

// ObserveRun records a finished run.
func ObserveRun(status, mode string, costUSD float64) {
	Runs.WithLabelValues(status, mode).Inc()
	if costUSD > 0 {
		RunCost.Add(costUSD)
	}
}
