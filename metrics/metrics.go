// Package metrics provides Prometheus observability metrics for the queue twin.
// It includes Critical and Important metrics for queue health and service visibility.
package metrics

import (
	"queue-twin/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the custom prometheus registry for our application
var Registry = prometheus.NewRegistry()

// factory allows us to register metrics to our custom Registry directly
var factory = promauto.With(Registry)

// =============================================================================
// CRITICAL METRICS - Queue State Visibility
// =============================================================================

// QueueLength tracks the number of cases waiting in the simulated queue.
var QueueLength = factory.NewGauge(prometheus.GaugeOpts{
	Namespace: "queue",
	Name:      "length",
	Help:      "Number of cases currently waiting in the queue",
})

// AgentCount tracks the active agent count used by the latest tick.
var AgentCount = factory.NewGauge(prometheus.GaugeOpts{
	Namespace: "queue",
	Name:      "agent_count",
	Help:      "Number of active agents applied on the latest tick",
})

// BreachProbability tracks the projected breach probability (0-100).
var BreachProbability = factory.NewGauge(prometheus.GaugeOpts{
	Namespace: "queue",
	Name:      "breach_probability_percent",
	Help:      "Projected SLA breach probability derived on the latest tick",
})

// CompletedTotal tracks cumulative completions since simulation start.
// A gauge because it mirrors the snapshot value and restarts with the simulation.
var CompletedTotal = factory.NewGauge(prometheus.GaugeOpts{
	Namespace: "queue",
	Name:      "completed_cases_total",
	Help:      "Cumulative completed cases since simulation start",
})

// BreachesTotal tracks cumulative breach events since simulation start.
var BreachesTotal = factory.NewGauge(prometheus.GaugeOpts{
	Namespace: "queue",
	Name:      "breaches_total",
	Help:      "Cumulative breach events since simulation start",
})

// ArrivalsTotal tracks cases that arrived through the simulation.
var ArrivalsTotal = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "queue",
	Name:      "arrivals_total",
	Help:      "Total simulated case arrivals",
})

// AlertsTotal counts critical breach-probability threshold crossings.
var AlertsTotal = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "queue",
	Name:      "critical_alerts_total",
	Help:      "Number of times breach probability crossed the critical threshold",
})

// =============================================================================
// IMPORTANT METRICS - Operational Health
// =============================================================================

// TicksTotal counts completed simulation ticks.
var TicksTotal = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "simulation",
	Name:      "ticks_total",
	Help:      "Total simulation ticks completed",
})

// TickDurationSeconds tracks time spent computing and publishing one tick.
var TickDurationSeconds = factory.NewHistogram(prometheus.HistogramOpts{
	Namespace: "simulation",
	Name:      "tick_duration_seconds",
	Help:      "Time taken to advance and publish one tick",
	Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
})

// SnapshotsDroppedTotal counts snapshots a subscriber could not accept in time.
var SnapshotsDroppedTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "simulation",
	Name:      "snapshots_dropped_total",
	Help:      "Snapshots dropped because a subscriber buffer was full",
}, []string{"subscriber"})

// InsightRequestsTotal tracks insight provider calls by operation and outcome.
var InsightRequestsTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "insight",
	Name:      "requests_total",
	Help:      "Insight provider requests by operation and outcome",
}, []string{"operation", "outcome"})

// InsightDurationSeconds tracks insight provider latency.
var InsightDurationSeconds = factory.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "insight",
	Name:      "duration_seconds",
	Help:      "Time taken by insight provider calls",
	Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
}, []string{"operation"})

// ScenariosTotal counts what-if scenarios by trigger.
var ScenariosTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "scenario",
	Name:      "runs_total",
	Help:      "What-if scenario runs by trigger (manual or auto)",
}, []string{"trigger"})

// WebsocketClients tracks connected live-stream clients.
var WebsocketClients = factory.NewGauge(prometheus.GaugeOpts{
	Namespace: "server",
	Name:      "websocket_clients",
	Help:      "Number of connected websocket clients",
})

// RegisterWritesTotal tracks register export writes by outcome.
var RegisterWritesTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "export",
	Name:      "register_writes_total",
	Help:      "Register block writes to the Modbus target by outcome",
}, []string{"outcome"})

// =============================================================================
// Helper Functions
// =============================================================================

// RecordSnapshot mirrors a snapshot into the queue gauges.
func RecordSnapshot(s models.QueueSnapshot) {
	QueueLength.Set(float64(s.QueueLength))
	AgentCount.Set(float64(s.AgentCount))
	BreachProbability.Set(float64(s.ProjectedBreachProbability))
	CompletedTotal.Set(float64(s.CompletedCount))
	BreachesTotal.Set(float64(s.BreachCount))
}

// ResetQueueGauges zeroes the queue gauges before a simulation (re)start.
func ResetQueueGauges() {
	QueueLength.Set(0)
	AgentCount.Set(0)
	BreachProbability.Set(0)
	CompletedTotal.Set(0)
	BreachesTotal.Set(0)
}
