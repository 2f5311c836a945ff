package monitor

import (
	"testing"
	"time"

	"github.com/oselabs/webrelay/internal/events"
)

func testEvent(id, correlationID string, eventType events.EventType, source, target string) events.IntegrationEvent {
	return events.IntegrationEvent{
		ID:            id,
		CorrelationID: correlationID,
		Timestamp:     time.Now(),
		Type:          eventType,
		Source:        source,
		Target:        target,
	}
}

func TestFlowRegistry_NewFlowOnFirstSighting(t *testing.T) {
	r := NewFlowRegistry()

	flow, terminal := r.Track(testEvent("e1", "wr-1", events.TypeDispatch, "cli", "relay"))
	if terminal {
		t.Error("dispatch must not terminate a flow")
	}
	if flow.Status != FlowInProgress {
		t.Errorf("expected status %s, got %s", FlowInProgress, flow.Status)
	}
	if flow.CurrentPosition != "relay" {
		t.Errorf("expected position relay, got %s", flow.CurrentPosition)
	}
	if len(flow.Path) != 2 || flow.Path[0] != "cli" || flow.Path[1] != "relay" {
		t.Errorf("unexpected path %v", flow.Path)
	}
	if flow.StartTime.IsZero() {
		t.Error("expected start time to be set")
	}
}

func TestFlowRegistry_PathBuilding(t *testing.T) {
	r := NewFlowRegistry()

	r.Track(testEvent("e1", "wr-1", events.TypeDispatch, "cli", "relay"))
	r.Track(testEvent("e2", "wr-1", events.TypeDispatch, "relay", "browser-probe"))
	r.Track(testEvent("e3", "wr-1", events.TypeReceipt, "browser-probe", ""))

	flow, ok := r.Get("wr-1")
	if !ok {
		t.Fatal("expected flow to exist")
	}

	want := []string{"cli", "relay", "browser-probe"}
	if len(flow.Path) != len(want) {
		t.Fatalf("expected path %v, got %v", want, flow.Path)
	}
	for i := range want {
		if flow.Path[i] != want[i] {
			t.Errorf("path[%d]: expected %s, got %s", i, want[i], flow.Path[i])
		}
	}
	if flow.EventCount != 3 {
		t.Errorf("expected 3 events, got %d", flow.EventCount)
	}
}

func TestFlowRegistry_ConsecutiveDuplicatesCollapsed(t *testing.T) {
	r := NewFlowRegistry()

	r.Track(testEvent("e1", "wr-1", events.TypeDispatch, "relay", ""))
	r.Track(testEvent("e2", "wr-1", events.TypeDispatch, "relay", ""))
	flow, _ := r.Track(testEvent("e3", "wr-1", events.TypeDispatch, "cli", "relay"))

	// relay appears once up front, then cli, then relay again: the
	// registry collapses consecutive repeats but keeps revisits.
	want := []string{"relay", "cli", "relay"}
	if len(flow.Path) != len(want) {
		t.Fatalf("expected path %v, got %v", want, flow.Path)
	}
	for i := range want {
		if flow.Path[i] != want[i] {
			t.Errorf("path[%d]: expected %s, got %s", i, want[i], flow.Path[i])
		}
	}
}

func TestFlowRegistry_TerminalProcessed(t *testing.T) {
	r := NewFlowRegistry()

	r.Track(testEvent("e1", "wr-1", events.TypeDispatch, "cli", "relay"))
	flow, terminal := r.Track(testEvent("e2", "wr-1", events.TypeProcessed, "browser-probe", ""))

	if !terminal {
		t.Fatal("expected processed event to terminate the flow")
	}
	if flow.Status != FlowCompleted {
		t.Errorf("expected status %s, got %s", FlowCompleted, flow.Status)
	}
	if flow.EndTime.IsZero() {
		t.Error("expected end time to be set")
	}
	if flow.TotalLatency < 0 {
		t.Errorf("expected non-negative total latency, got %s", flow.TotalLatency)
	}
}

func TestFlowRegistry_TerminalFailed(t *testing.T) {
	r := NewFlowRegistry()

	r.Track(testEvent("e1", "wr-1", events.TypeDispatch, "cli", "relay"))
	flow, terminal := r.Track(testEvent("e2", "wr-1", events.TypeFailed, "relay", ""))

	if !terminal {
		t.Fatal("expected failed event to terminate the flow")
	}
	if flow.Status != FlowFailed {
		t.Errorf("expected status %s, got %s", FlowFailed, flow.Status)
	}
}

func TestFlowRegistry_EventsAfterTerminalDoNotReopen(t *testing.T) {
	r := NewFlowRegistry()

	r.Track(testEvent("e1", "wr-1", events.TypeProcessed, "relay", ""))
	flow, terminal := r.Track(testEvent("e2", "wr-1", events.TypeDispatch, "cli", "relay"))

	if terminal {
		t.Error("post-terminal event must not report terminal again")
	}
	if flow.Status != FlowCompleted {
		t.Errorf("expected flow to stay %s, got %s", FlowCompleted, flow.Status)
	}
	if flow.EventCount != 2 {
		t.Errorf("expected event count 2, got %d", flow.EventCount)
	}
}

func TestFlowRegistry_DuplicateEventID(t *testing.T) {
	r := NewFlowRegistry()

	r.Track(testEvent("e1", "wr-1", events.TypeDispatch, "cli", "relay"))
	flow, terminal := r.Track(testEvent("e1", "wr-1", events.TypeDispatch, "cli", "relay"))

	if terminal {
		t.Error("duplicate must not terminate")
	}
	if flow.EventCount != 1 {
		t.Errorf("expected duplicate to be a no-op, event count %d", flow.EventCount)
	}
}

func TestFlowRegistry_InProgress(t *testing.T) {
	r := NewFlowRegistry()

	r.Track(testEvent("e1", "wr-1", events.TypeDispatch, "cli", "relay"))
	r.Track(testEvent("e2", "wr-2", events.TypeDispatch, "cli", "relay"))
	r.Track(testEvent("e3", "wr-2", events.TypeProcessed, "relay", ""))

	inProgress := r.InProgress()
	if len(inProgress) != 1 {
		t.Fatalf("expected 1 in-progress flow, got %d", len(inProgress))
	}
	if inProgress[0].CorrelationID != "wr-1" {
		t.Errorf("expected wr-1, got %s", inProgress[0].CorrelationID)
	}
}

func TestFlowRegistry_PruneKeepsInProgress(t *testing.T) {
	r := NewFlowRegistry()
	now := time.Now()
	r.clock = func() time.Time { return now.Add(-2 * time.Hour) }

	r.Track(testEvent("e1", "wr-old-done", events.TypeProcessed, "relay", ""))
	r.Track(testEvent("e2", "wr-old-open", events.TypeDispatch, "cli", "relay"))
	r.clock = time.Now
	r.Track(testEvent("e3", "wr-new-done", events.TypeProcessed, "relay", ""))

	removed := r.Prune(now.Add(-time.Hour))
	if removed != 1 {
		t.Fatalf("expected 1 flow pruned, got %d", removed)
	}

	if _, ok := r.Get("wr-old-done"); ok {
		t.Error("expected old terminated flow to be pruned")
	}
	if _, ok := r.Get("wr-old-open"); !ok {
		t.Error("in-progress flow must never be pruned")
	}
	if _, ok := r.Get("wr-new-done"); !ok {
		t.Error("recently terminated flow must be retained")
	}
}

func TestFlowRegistry_SnapshotIsolation(t *testing.T) {
	r := NewFlowRegistry()

	flow, _ := r.Track(testEvent("e1", "wr-1", events.TypeDispatch, "cli", "relay"))
	flow.Path[0] = "mutated"

	fresh, _ := r.Get("wr-1")
	if fresh.Path[0] != "cli" {
		t.Error("registry state must not be reachable through returned snapshots")
	}
}
