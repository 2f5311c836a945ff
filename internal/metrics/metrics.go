// Package metrics provides Prometheus metrics for the webrelay monitor
// and transport.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "webrelay"
)

// Monitor metrics track the event-flow tracker.
var (
	// EventsRecorded counts integration events accepted by the monitor.
	EventsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_recorded_total",
		Help:      "Total number of integration events recorded",
	}, []string{"type", "source"})

	// FlowsInProgress is the number of flows currently in progress.
	FlowsInProgress = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "flows_in_progress",
		Help:      "Number of event flows currently in progress",
	})

	// FlowsCompleted counts flows that reached the completed state.
	FlowsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "flows_completed_total",
		Help:      "Total number of event flows completed",
	})

	// FlowsFailed counts flows that reached the failed state.
	FlowsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "flows_failed_total",
		Help:      "Total number of event flows failed",
	})
)

// Bottleneck metrics track detector output.
var (
	// BottlenecksDetected counts detected bottlenecks by severity.
	BottlenecksDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bottlenecks_detected_total",
		Help:      "Total number of bottlenecks detected",
	}, []string{"severity"})

	// BottlenecksActive is the number of unresolved bottlenecks.
	BottlenecksActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "bottlenecks_active",
		Help:      "Number of unresolved bottlenecks",
	})
)

// Component health metrics track per-actor statistics.
var (
	// ComponentErrorRate is the rolling error rate per actor.
	ComponentErrorRate = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "component_error_rate",
		Help:      "Rolling error rate per actor",
	}, []string{"component"})

	// ComponentAvgLatencySeconds is the incremental mean latency per actor.
	ComponentAvgLatencySeconds = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "component_avg_latency_seconds",
		Help:      "Incremental mean latency per actor in seconds",
	}, []string{"component"})
)

// Bus metrics track the notification bus.
var (
	// BusDroppedNotifications counts notifications dropped due to full
	// subscriber buffers.
	BusDroppedNotifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bus_dropped_notifications_total",
		Help:      "Total number of notifications dropped by the bus",
	}, []string{"kind"})
)

// Transport metrics track the dispatch path.
var (
	// DispatchRequests counts dispatch requests by action and outcome.
	DispatchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dispatch_requests_total",
		Help:      "Total number of dispatch requests",
	}, []string{"action", "outcome"})

	// DispatchLatencySeconds observes round-trip dispatch latency.
	DispatchLatencySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "dispatch_latency_seconds",
		Help:      "Round-trip dispatch latency in seconds",
		Buckets:   prometheus.DefBuckets,
	})
)

// Classifier metrics track UI-surface state transitions.
var (
	// SurfaceTransitions counts confirmed surface state transitions.
	SurfaceTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "surface_transitions_total",
		Help:      "Total number of confirmed UI-surface state transitions",
	}, []string{"to"})
)
