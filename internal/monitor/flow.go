// Package monitor implements the distributed event-flow tracker: a
// correlation/flow registry, per-actor health registry, bottleneck
// detector and event history store composed behind a Monitor facade.
package monitor

import (
	"sync"
	"time"

	"github.com/oselabs/webrelay/internal/events"
	"github.com/oselabs/webrelay/internal/metrics"
)

// FlowStatus is the lifecycle state of an event flow.
type FlowStatus string

const (
	// FlowInProgress means the flow has not yet seen a terminal event.
	FlowInProgress FlowStatus = "in-progress"

	// FlowCompleted means the flow ended with a processed event.
	FlowCompleted FlowStatus = "completed"

	// FlowFailed means the flow ended with a failed event.
	FlowFailed FlowStatus = "failed"
)

// EventFlow is the tracked lifecycle of one correlation id across
// actors. TotalLatency is meaningful only once Status is terminal.
type EventFlow struct {
	CorrelationID   string        `json:"correlation_id"`
	Path            []string      `json:"path"`
	CurrentPosition string        `json:"current_position"`
	StartTime       time.Time     `json:"start_time"`
	EndTime         time.Time     `json:"end_time,omitempty"`
	Status          FlowStatus    `json:"status"`
	TotalLatency    time.Duration `json:"total_latency,omitempty"`
	EventCount      int           `json:"event_count"`
}

// clone returns a defensive copy safe to hand out past the lock.
func (f *EventFlow) clone() EventFlow {
	c := *f
	c.Path = append([]string(nil), f.Path...)
	return c
}

// FlowRegistry groups integration events sharing a correlation id into
// flows. It is safe for concurrent use. Events referencing unknown
// correlation ids implicitly start new flows; the registry is forgiving
// of out-of-order and partially-observed traffic.
type FlowRegistry struct {
	mu    sync.Mutex
	flows map[string]*EventFlow
	seen  map[string]time.Time // event id -> timestamp, for idempotency
	clock func() time.Time
}

// NewFlowRegistry creates an empty flow registry.
func NewFlowRegistry() *FlowRegistry {
	return &FlowRegistry{
		flows: make(map[string]*EventFlow),
		seen:  make(map[string]time.Time),
		clock: time.Now,
	}
}

// Track updates or creates the flow for the event's correlation id and
// returns a snapshot of the flow plus whether this event terminated it.
// Tracking the same event id twice is a no-op.
func (r *FlowRegistry) Track(ev events.IntegrationEvent) (EventFlow, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ev.ID != "" {
		if _, dup := r.seen[ev.ID]; dup {
			if f, ok := r.flows[ev.CorrelationID]; ok {
				return f.clone(), false
			}
			return EventFlow{CorrelationID: ev.CorrelationID}, false
		}
		r.seen[ev.ID] = ev.Timestamp
	}

	f, ok := r.flows[ev.CorrelationID]
	if !ok {
		f = &EventFlow{
			CorrelationID: ev.CorrelationID,
			Path:          []string{ev.Source},
			Status:        FlowInProgress,
			StartTime:     r.clock(),
		}
		r.flows[ev.CorrelationID] = f
		metrics.FlowsInProgress.Inc()
	} else if ev.Source != "" && last(f.Path) != ev.Source {
		// Consecutive duplicates are collapsed; revisits are kept.
		f.Path = append(f.Path, ev.Source)
	}

	if ev.Target != "" && last(f.Path) != ev.Target {
		f.Path = append(f.Path, ev.Target)
	}

	if ev.Target != "" {
		f.CurrentPosition = ev.Target
	} else {
		f.CurrentPosition = ev.Source
	}
	f.EventCount++

	terminal := false
	if f.Status == FlowInProgress && ev.Type.Terminal() {
		terminal = true
		f.EndTime = r.clock()
		f.TotalLatency = f.EndTime.Sub(f.StartTime)
		if ev.Type == events.TypeProcessed {
			f.Status = FlowCompleted
			metrics.FlowsCompleted.Inc()
		} else {
			f.Status = FlowFailed
			metrics.FlowsFailed.Inc()
		}
		metrics.FlowsInProgress.Dec()
	}

	return f.clone(), terminal
}

// Get returns a snapshot of the flow for the given correlation id.
func (r *FlowRegistry) Get(correlationID string) (EventFlow, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.flows[correlationID]
	if !ok {
		return EventFlow{}, false
	}
	return f.clone(), true
}

// InProgress returns snapshots of all flows that have not terminated.
func (r *FlowRegistry) InProgress() []EventFlow {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []EventFlow
	for _, f := range r.flows {
		if f.Status == FlowInProgress {
			out = append(out, f.clone())
		}
	}
	return out
}

// Len returns the number of tracked flows.
func (r *FlowRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.flows)
}

// Prune removes terminated flows whose end time predates the cutoff and
// forgets event ids older than the cutoff. In-progress flows are never
// removed regardless of age.
func (r *FlowRegistry) Prune(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, f := range r.flows {
		if f.Status != FlowInProgress && !f.EndTime.IsZero() && f.EndTime.Before(cutoff) {
			delete(r.flows, id)
			removed++
		}
	}
	for id, ts := range r.seen {
		if ts.Before(cutoff) {
			delete(r.seen, id)
		}
	}
	return removed
}

func last(path []string) string {
	if len(path) == 0 {
		return ""
	}
	return path[len(path)-1]
}
