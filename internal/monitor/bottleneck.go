package monitor

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oselabs/webrelay/internal/events"
	"github.com/oselabs/webrelay/internal/metrics"
)

// Severity ranks a bottleneck by magnitude.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Detection thresholds. Fixed by design; the inline path must stay free
// of I/O and configuration lookups.
const (
	// LatencyThreshold is the per-event latency above which a
	// bottleneck is synthesized.
	LatencyThreshold = 1000 * time.Millisecond

	// ErrorCountThreshold is the per-event error count above which a
	// bottleneck is synthesized.
	ErrorCountThreshold = 5
)

// BottleneckMetrics quantifies a detected anomaly.
type BottleneckMetrics struct {
	AffectedEvents int           `json:"affected_events"`
	LatencyDelta   time.Duration `json:"latency_delta,omitempty"`
	ErrorDelta     int           `json:"error_delta,omitempty"`
	StalledFor     time.Duration `json:"stalled_for,omitempty"`
}

// Bottleneck is a detected, quantified anomaly attributed to one actor.
// Only ResolvedAt is ever mutated after creation.
type Bottleneck struct {
	ID           string            `json:"id"`
	DetectedAt   time.Time         `json:"detected_at"`
	ResolvedAt   time.Time         `json:"resolved_at,omitempty"`
	Component    string            `json:"component"`
	Severity     Severity          `json:"severity"`
	Description  string            `json:"description"`
	Impact       string            `json:"impact"`
	SuggestedFix string            `json:"suggested_fix"`
	Metrics      BottleneckMetrics `json:"metrics"`
}

// Resolved reports whether the bottleneck has been resolved.
func (b Bottleneck) Resolved() bool {
	return !b.ResolvedAt.IsZero()
}

// Detector inspects events inline and scans in-progress flows
// periodically, synthesizing Bottleneck records. It is safe for
// concurrent use.
type Detector struct {
	mu      sync.Mutex
	records map[string]*Bottleneck
	clock   func() time.Time
}

// NewDetector creates an empty bottleneck detector.
func NewDetector() *Detector {
	return &Detector{
		records: make(map[string]*Bottleneck),
		clock:   time.Now,
	}
}

// Inspect applies the inline per-event rules and returns any
// bottlenecks synthesized for this event. It performs no I/O and must
// not block the recording path.
func (d *Detector) Inspect(ev events.IntegrationEvent) []Bottleneck {
	if ev.Metadata == nil {
		return nil
	}

	var found []Bottleneck

	if ev.Metadata.HasLatency() && ev.Metadata.Latency > LatencyThreshold {
		sev := severityForRatio(float64(ev.Metadata.Latency) / float64(LatencyThreshold))
		found = append(found, d.store(Bottleneck{
			Component: ev.Source,
			Severity:  sev,
			Description: fmt.Sprintf("event latency %s exceeds threshold %s",
				ev.Metadata.Latency, LatencyThreshold),
			Impact:       fmt.Sprintf("operations routed through %s are slowed", ev.Source),
			SuggestedFix: fmt.Sprintf("inspect %s for long-running work or upstream waits", ev.Source),
			Metrics: BottleneckMetrics{
				AffectedEvents: 1,
				LatencyDelta:   ev.Metadata.Latency - LatencyThreshold,
			},
		}))
	}

	if ev.Metadata.ErrorCount > ErrorCountThreshold {
		sev := severityForRatio(float64(ev.Metadata.ErrorCount) / float64(ErrorCountThreshold))
		found = append(found, d.store(Bottleneck{
			Component: ev.Source,
			Severity:  sev,
			Description: fmt.Sprintf("event error count %d exceeds threshold %d",
				ev.Metadata.ErrorCount, ErrorCountThreshold),
			Impact:       fmt.Sprintf("%s is accumulating errors faster than it recovers", ev.Source),
			SuggestedFix: fmt.Sprintf("check %s logs for the recurring failure", ev.Source),
			Metrics: BottleneckMetrics{
				AffectedEvents: 1,
				ErrorDelta:     ev.Metadata.ErrorCount - ErrorCountThreshold,
			},
		}))
	}

	return found
}

// SweepStuck scans the given in-progress flows and synthesizes one
// high-severity bottleneck per flow that has been running longer than
// stuckAfter. Within a single sweep a flow produces at most one record.
func (d *Detector) SweepStuck(flows []EventFlow, stuckAfter time.Duration) []Bottleneck {
	now := d.clock()
	seen := make(map[string]struct{}, len(flows))

	var found []Bottleneck
	for _, f := range flows {
		if f.Status != FlowInProgress {
			continue
		}
		if _, dup := seen[f.CorrelationID]; dup {
			continue
		}
		seen[f.CorrelationID] = struct{}{}

		age := now.Sub(f.StartTime)
		if age <= stuckAfter {
			continue
		}

		component := f.CurrentPosition
		if component == "" {
			component = last(f.Path)
		}
		found = append(found, d.store(Bottleneck{
			Component: component,
			Severity:  SeverityHigh,
			Description: fmt.Sprintf("flow %s stalled at %s for %s",
				f.CorrelationID, component, age.Round(time.Millisecond)),
			Impact:       "the operation has not produced a terminal event",
			SuggestedFix: fmt.Sprintf("verify %s is alive and still holds the operation", component),
			Metrics: BottleneckMetrics{
				AffectedEvents: f.EventCount,
				StalledFor:     age,
			},
		}))
	}

	return found
}

// store assigns identity and timestamps and records the bottleneck.
func (d *Detector) store(b Bottleneck) Bottleneck {
	b.ID = uuid.NewString()
	b.DetectedAt = d.clock()

	d.mu.Lock()
	d.records[b.ID] = &b
	d.mu.Unlock()

	metrics.BottlenecksDetected.WithLabelValues(string(b.Severity)).Inc()
	metrics.BottlenecksActive.Inc()

	return b
}

// Resolve stamps ResolvedAt on the bottleneck with the given id. It
// returns the updated record and true, or false if the id is unknown
// or already resolved. An unknown id is a no-op, not an error.
func (d *Detector) Resolve(id string) (Bottleneck, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, ok := d.records[id]
	if !ok || b.Resolved() {
		return Bottleneck{}, false
	}
	b.ResolvedAt = d.clock()
	metrics.BottlenecksActive.Dec()
	return *b, true
}

// Active returns snapshots of all unresolved bottlenecks.
func (d *Detector) Active() []Bottleneck {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []Bottleneck
	for _, b := range d.records {
		if !b.Resolved() {
			out = append(out, *b)
		}
	}
	return out
}

// All returns snapshots of every retained bottleneck, resolved or not.
func (d *Detector) All() []Bottleneck {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]Bottleneck, 0, len(d.records))
	for _, b := range d.records {
		out = append(out, *b)
	}
	return out
}

// Prune removes resolved bottlenecks whose resolution predates the
// cutoff. Unresolved bottlenecks are never removed regardless of age.
func (d *Detector) Prune(cutoff time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for id, b := range d.records {
		if b.Resolved() && b.ResolvedAt.Before(cutoff) {
			delete(d.records, id)
			removed++
		}
	}
	return removed
}

// severityForRatio maps a magnitude/threshold ratio onto a severity.
func severityForRatio(ratio float64) Severity {
	switch {
	case ratio > 5:
		return SeverityCritical
	case ratio > 2:
		return SeverityHigh
	default:
		return SeverityMedium
	}
}
