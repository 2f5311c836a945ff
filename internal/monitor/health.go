package monitor

import (
	"sync"
	"time"

	"github.com/oselabs/webrelay/internal/events"
	"github.com/oselabs/webrelay/internal/metrics"
)

// HealthStatus is the derived health state of an actor.
type HealthStatus string

const (
	// StatusUnknown is the pre-traffic initial value for registered
	// actors that have not emitted anything yet.
	StatusUnknown HealthStatus = "unknown"

	// StatusHealthy means the error rate is within tolerance.
	StatusHealthy HealthStatus = "healthy"

	// StatusDegraded means the error rate exceeds the degraded
	// threshold.
	StatusDegraded HealthStatus = "degraded"

	// StatusCritical means the error rate exceeds the critical
	// threshold, or the actor missed its liveness window.
	StatusCritical HealthStatus = "critical"
)

// Error-rate thresholds. Fixed by design; see the health registry
// contract.
const (
	degradedErrorRate = 0.05
	criticalErrorRate = 0.10
)

// ComponentHealth holds the rolling statistics for one actor.
type ComponentHealth struct {
	Component       string        `json:"component"`
	EventsProcessed int64         `json:"events_processed"`
	EventsFailed    int64         `json:"events_failed"`
	AverageLatency  time.Duration `json:"average_latency"`
	LatencySamples  int64         `json:"latency_samples"`
	ErrorRate       float64       `json:"error_rate"`
	Status          HealthStatus  `json:"status"`
	LastHeartbeat   time.Time     `json:"last_heartbeat"`
}

// HealthRegistry maintains one ComponentHealth row per known actor.
// Rows are created on first sighting and never destroyed. It is safe
// for concurrent use.
type HealthRegistry struct {
	mu    sync.Mutex
	rows  map[string]*ComponentHealth
	clock func() time.Time
}

// NewHealthRegistry creates an empty health registry.
func NewHealthRegistry() *HealthRegistry {
	return &HealthRegistry{
		rows:  make(map[string]*ComponentHealth),
		clock: time.Now,
	}
}

// Register pre-registers an actor with StatusUnknown so it appears in
// health reports before any traffic arrives.
func (r *HealthRegistry) Register(component string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[component]; !ok {
		r.rows[component] = &ComponentHealth{
			Component: component,
			Status:    StatusUnknown,
		}
	}
}

// Update mutates the row for the event's source actor and returns a
// snapshot of it. The latency mean is updated incrementally over the
// events that actually carried a latency measurement.
func (r *HealthRegistry) Update(ev events.IntegrationEvent) ComponentHealth {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[ev.Source]
	if !ok {
		row = &ComponentHealth{Component: ev.Source, Status: StatusUnknown}
		r.rows[ev.Source] = row
	}

	if ev.Type == events.TypeFailed {
		row.EventsFailed++
	} else {
		row.EventsProcessed++
	}

	if ev.Metadata.HasLatency() {
		row.LatencySamples++
		n := row.LatencySamples
		row.AverageLatency = time.Duration(
			(int64(row.AverageLatency)*(n-1) + int64(ev.Metadata.Latency)) / n,
		)
	}

	total := row.EventsProcessed + row.EventsFailed
	row.ErrorRate = float64(row.EventsFailed) / float64(total)
	row.Status = statusForErrorRate(row.ErrorRate)
	row.LastHeartbeat = r.clock()

	metrics.ComponentErrorRate.WithLabelValues(row.Component).Set(row.ErrorRate)
	metrics.ComponentAvgLatencySeconds.WithLabelValues(row.Component).Set(row.AverageLatency.Seconds())

	return *row
}

// Sweep forces StatusCritical on every actor whose last heartbeat is
// older than the liveness window and returns snapshots of the rows that
// changed. Rows that never saw traffic are left at StatusUnknown.
func (r *HealthRegistry) Sweep(livenessWindow time.Duration) []ComponentHealth {
	r.mu.Lock()
	defer r.mu.Unlock()

	deadline := r.clock().Add(-livenessWindow)
	var stale []ComponentHealth
	for _, row := range r.rows {
		if row.LastHeartbeat.IsZero() {
			continue
		}
		if row.LastHeartbeat.Before(deadline) && row.Status != StatusCritical {
			row.Status = StatusCritical
			stale = append(stale, *row)
		}
	}
	return stale
}

// Get returns a snapshot of the row for the given actor.
func (r *HealthRegistry) Get(component string) (ComponentHealth, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[component]
	if !ok {
		return ComponentHealth{}, false
	}
	return *row, true
}

// All returns snapshots of every known actor's row.
func (r *HealthRegistry) All() []ComponentHealth {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ComponentHealth, 0, len(r.rows))
	for _, row := range r.rows {
		out = append(out, *row)
	}
	return out
}

func statusForErrorRate(rate float64) HealthStatus {
	switch {
	case rate > criticalErrorRate:
		return StatusCritical
	case rate > degradedErrorRate:
		return StatusDegraded
	default:
		return StatusHealthy
	}
}
