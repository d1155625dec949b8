package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcomes recorded on ApprovalTransitions.
const (
	OutcomeSuccess   = "success"
	OutcomeConflict  = "conflict"
	OutcomeForbidden = "forbidden"
	OutcomeInvalid   = "invalid"
	OutcomeNotFound  = "not_found"
	OutcomeError     = "error"
)

var (
	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bizdir_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// ApprovalTransitions counts approve/reject attempts by kind, action and outcome.
	ApprovalTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bizdir_approval_transitions_total",
		Help: "Approval decisions attempted, by kind, action and outcome",
	}, []string{"kind", "action", "outcome"})

	// PendingQueueDepth is the last observed pending count per kind.
	PendingQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bizdir_approval_pending",
		Help: "Entries awaiting review, by kind",
	}, []string{"kind"})

	// SalespersonApplications counts salesperson applications by outcome.
	SalespersonApplications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bizdir_salesperson_applications_total",
		Help: "Salesperson applications, by outcome",
	}, []string{"outcome"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bizdir_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)

// DatabaseMetrics records query latency for one repository.
type DatabaseMetrics struct{}

// NewDatabaseMetrics returns a new DatabaseMetrics instance.
func NewDatabaseMetrics() *DatabaseMetrics {
	return &DatabaseMetrics{}
}

// ObserveQuery records the latency of a database query.
func (m *DatabaseMetrics) ObserveQuery(operation, table string, start time.Time) {
	DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
}

// TrackQuery returns a function that records query latency when called (e.g. defer).
func (m *DatabaseMetrics) TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		m.ObserveQuery(operation, table, start)
	}
}

// RecordApprovalTransition increments ApprovalTransitions.
func RecordApprovalTransition(kind, action, outcome string) {
	ApprovalTransitions.WithLabelValues(kind, action, outcome).Inc()
}
