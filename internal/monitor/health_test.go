package monitor

import (
	"testing"
	"time"

	"github.com/oselabs/webrelay/internal/events"
)

func eventWithMetadata(eventType events.EventType, source string, md *events.Metadata) events.IntegrationEvent {
	ev := testEvent("", "wr-h", eventType, source, "")
	ev.Metadata = md
	return ev
}

func TestHealthRegistry_RegisterStartsUnknown(t *testing.T) {
	r := NewHealthRegistry()
	r.Register("cli")

	row, ok := r.Get("cli")
	if !ok {
		t.Fatal("expected registered row to exist")
	}
	if row.Status != StatusUnknown {
		t.Errorf("expected status %s before traffic, got %s", StatusUnknown, row.Status)
	}

	// Registering twice must not reset anything
	r.Update(eventWithMetadata(events.TypeDispatch, "cli", nil))
	r.Register("cli")

	row, _ = r.Get("cli")
	if row.EventsProcessed != 1 {
		t.Errorf("expected re-register to be a no-op, got %d processed", row.EventsProcessed)
	}
}

func TestHealthRegistry_UpdateCounters(t *testing.T) {
	r := NewHealthRegistry()

	r.Update(eventWithMetadata(events.TypeDispatch, "relay", nil))
	r.Update(eventWithMetadata(events.TypeProcessed, "relay", nil))
	row := r.Update(eventWithMetadata(events.TypeFailed, "relay", nil))

	if row.EventsProcessed != 2 {
		t.Errorf("expected 2 processed, got %d", row.EventsProcessed)
	}
	if row.EventsFailed != 1 {
		t.Errorf("expected 1 failed, got %d", row.EventsFailed)
	}
	if row.LastHeartbeat.IsZero() {
		t.Error("expected heartbeat to be stamped")
	}
}

func TestHealthRegistry_IncrementalLatencyMean(t *testing.T) {
	r := NewHealthRegistry()

	r.Update(eventWithMetadata(events.TypeProcessed, "browser-probe", &events.Metadata{Latency: 100 * time.Millisecond}))
	r.Update(eventWithMetadata(events.TypeProcessed, "browser-probe", &events.Metadata{Latency: 300 * time.Millisecond}))
	// No latency on this one; it must not drag the mean down.
	row := r.Update(eventWithMetadata(events.TypeProcessed, "browser-probe", nil))

	if row.LatencySamples != 2 {
		t.Fatalf("expected 2 latency samples, got %d", row.LatencySamples)
	}
	if row.AverageLatency != 200*time.Millisecond {
		t.Errorf("expected mean 200ms over latency-carrying events, got %s", row.AverageLatency)
	}
}

func TestHealthRegistry_LatencyMeanOrderIndependent(t *testing.T) {
	orders := [][]time.Duration{
		{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond},
		{100 * time.Millisecond, 300 * time.Millisecond, 200 * time.Millisecond},
		{200 * time.Millisecond, 100 * time.Millisecond, 300 * time.Millisecond},
		{200 * time.Millisecond, 300 * time.Millisecond, 100 * time.Millisecond},
		{300 * time.Millisecond, 100 * time.Millisecond, 200 * time.Millisecond},
		{300 * time.Millisecond, 200 * time.Millisecond, 100 * time.Millisecond},
	}

	for _, order := range orders {
		r := NewHealthRegistry()
		var row ComponentHealth
		for _, latency := range order {
			row = r.Update(eventWithMetadata(events.TypeProcessed, "browser-probe", &events.Metadata{Latency: latency}))
		}

		if row.LatencySamples != 3 {
			t.Fatalf("order %v: expected 3 samples, got %d", order, row.LatencySamples)
		}
		if row.AverageLatency != 200*time.Millisecond {
			t.Errorf("order %v: expected mean 200ms regardless of arrival order, got %s", order, row.AverageLatency)
		}
	}
}

func TestHealthRegistry_StatusThresholds(t *testing.T) {
	tests := []struct {
		name      string
		processed int
		failed    int
		want      HealthStatus
	}{
		{"no failures", 20, 0, StatusHealthy},
		{"at degraded boundary", 19, 1, StatusHealthy},         // exactly 0.05
		{"above degraded", 12, 1, StatusDegraded},              // ~0.077
		{"at critical boundary", 9, 1, StatusDegraded},         // exactly 0.10
		{"above critical", 5, 1, StatusCritical},               // ~0.167
		{"all failures", 0, 3, StatusCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewHealthRegistry()
			var row ComponentHealth
			for i := 0; i < tt.processed; i++ {
				row = r.Update(eventWithMetadata(events.TypeProcessed, "relay", nil))
			}
			for i := 0; i < tt.failed; i++ {
				row = r.Update(eventWithMetadata(events.TypeFailed, "relay", nil))
			}
			if row.Status != tt.want {
				t.Errorf("expected %s at error rate %.3f, got %s", tt.want, row.ErrorRate, row.Status)
			}
		})
	}
}

func TestHealthRegistry_SweepMarksStaleActors(t *testing.T) {
	r := NewHealthRegistry()
	now := time.Now()

	r.clock = func() time.Time { return now.Add(-time.Minute) }
	r.Update(eventWithMetadata(events.TypeProcessed, "browser-probe", nil))

	r.clock = func() time.Time { return now }
	r.Update(eventWithMetadata(events.TypeProcessed, "relay", nil))
	r.Register("ui-surface") // never any traffic

	stale := r.Sweep(30 * time.Second)
	if len(stale) != 1 {
		t.Fatalf("expected 1 stale actor, got %d", len(stale))
	}
	if stale[0].Component != "browser-probe" {
		t.Errorf("expected browser-probe stale, got %s", stale[0].Component)
	}
	if stale[0].Status != StatusCritical {
		t.Errorf("expected stale actor forced to %s, got %s", StatusCritical, stale[0].Status)
	}

	// The live actor keeps its status, the silent one stays unknown.
	if row, _ := r.Get("relay"); row.Status != StatusHealthy {
		t.Errorf("expected relay %s, got %s", StatusHealthy, row.Status)
	}
	if row, _ := r.Get("ui-surface"); row.Status != StatusUnknown {
		t.Errorf("expected ui-surface %s, got %s", StatusUnknown, row.Status)
	}

	// A second sweep must not report the same actor again.
	if again := r.Sweep(30 * time.Second); len(again) != 0 {
		t.Errorf("expected repeat sweep to report nothing, got %d", len(again))
	}
}

func TestHealthRegistry_All(t *testing.T) {
	r := NewHealthRegistry()
	r.Register("cli")
	r.Register("relay")
	r.Update(eventWithMetadata(events.TypeProcessed, "browser-probe", nil))

	all := r.All()
	if len(all) != 3 {
		t.Errorf("expected 3 rows, got %d", len(all))
	}
}
