// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the werkbank gateway.
package observability

import "github.com/prometheus/client_golang/prometheus"

// StageBuckets defines histogram buckets suited for pipeline stage
// latencies, ranging from 100ms to 120s (sandbox executions included).
var StageBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts all HTTP requests by method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "werkbank_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "werkbank_request_duration_seconds",
			Help:    "Request duration",
			Buckets: StageBuckets,
		},
		[]string{"method"},
	)

	// TurnsTotal counts completed pipeline turns by outcome.
	TurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "werkbank_turns_total",
			Help: "Completed turns",
		},
		[]string{"outcome"},
	)

	// TurnsInFlight tracks the number of turns currently being processed.
	TurnsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "werkbank_turns_in_flight",
			Help: "Turns currently in flight",
		},
	)

	// StageDuration records per-stage latency in seconds.
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "werkbank_stage_duration_seconds",
			Help:    "Pipeline stage duration",
			Buckets: StageBuckets,
		},
		[]string{"stage"},
	)

	// SynthesisTotal counts code synthesis outcomes by origin tier.
	SynthesisTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "werkbank_synthesis_total",
			Help: "Code synthesis outcomes",
		},
		[]string{"origin"},
	)

	// SandboxRetriesTotal counts sandbox provisioning retries by failure class.
	SandboxRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "werkbank_sandbox_retries_total",
			Help: "Sandbox provisioning retries",
		},
		[]string{"reason"},
	)

	// DuplicateTurnsTotal counts turns answered from the dedup check.
	DuplicateTurnsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "werkbank_duplicate_turns_total",
			Help: "Turns rejected as duplicates",
		},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "werkbank_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"tier"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		TurnsTotal,
		TurnsInFlight,
		StageDuration,
		SynthesisTotal,
		SandboxRetriesTotal,
		DuplicateTurnsTotal,
		RateLimitRejectedTotal,
	)
}
