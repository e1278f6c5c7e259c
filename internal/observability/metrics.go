package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sigede_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// RequestTransitionsTotal counts committed status transitions.
	RequestTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sigede_request_transitions_total",
		Help: "Committed service request status transitions",
	}, []string{"from", "to", "event"})

	// RequestTransitionErrors counts transitions refused or failed, by error code.
	RequestTransitionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sigede_request_transition_errors_total",
		Help: "Service request transitions that did not commit, by error code",
	}, []string{"event", "code"})

	// SweepRunsTotal counts sweeper runs by outcome.
	SweepRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sigede_sweep_runs_total",
		Help: "Auto-approval sweep runs by outcome",
	}, []string{"outcome"})

	// SweepRequestsTotal counts per-request sweep results.
	SweepRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sigede_sweep_requests_total",
		Help: "Requests visited by the auto-approval sweep, by result",
	}, []string{"result"})

	// SweepDuration records how long each sweep run took.
	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sigede_sweep_duration_seconds",
		Help:    "Auto-approval sweep run duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
	})

	// SweepLastSuccess is the unix time of the last run without failures.
	SweepLastSuccess = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sigede_sweep_last_success_timestamp",
		Help: "Unix time of the last auto-approval sweep that finished without failures",
	})

	// WebSocketDrops counts realtime messages dropped instead of delivered.
	WebSocketDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sigede_websocket_dropped_messages_total",
		Help: "Realtime messages dropped by hub and reason",
	}, []string{"hub", "reason"})
)

// Sweep run outcomes.
const (
	SweepOutcomeSuccess  = "success"
	SweepOutcomePartial  = "partial"
	SweepOutcomeError    = "error"
	SweepOutcomeSkipped  = "skipped"
	SweepOutcomeDisabled = "disabled"
)

// DatabaseMetrics records query latency for one repository.
type DatabaseMetrics struct {
	table string
}

// NewDatabaseMetrics returns a DatabaseMetrics for table.
func NewDatabaseMetrics(table string) *DatabaseMetrics {
	return &DatabaseMetrics{table: table}
}

// TrackQuery returns a function that records query latency when called (e.g. defer).
func (m *DatabaseMetrics) TrackQuery(operation string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, m.table).Observe(time.Since(start).Seconds())
	}
}

// RecordTransition counts a committed transition.
func RecordTransition(from, to, event string) {
	RequestTransitionsTotal.WithLabelValues(from, to, event).Inc()
}

// RecordTransitionError counts a transition that did not commit.
func RecordTransitionError(event, code string) {
	RequestTransitionErrors.WithLabelValues(event, code).Inc()
}

// RecordSweep exports one finished run.
func RecordSweep(outcome string, promoted, skipped, failed int, took time.Duration, finishedAt time.Time) {
	SweepRunsTotal.WithLabelValues(outcome).Inc()
	SweepRequestsTotal.WithLabelValues("promoted").Add(float64(promoted))
	SweepRequestsTotal.WithLabelValues("skipped").Add(float64(skipped))
	SweepRequestsTotal.WithLabelValues("failed").Add(float64(failed))
	SweepDuration.Observe(took.Seconds())
	if outcome == SweepOutcomeSuccess {
		SweepLastSuccess.Set(float64(finishedAt.Unix()))
	}
}
