package monitor

import (
	"testing"
	"time"

	"github.com/oselabs/webrelay/internal/events"
)

func TestHistoryStore_AppendQuery(t *testing.T) {
	s := NewHistoryStore()

	s.Append(testEvent("e1", "wr-1", events.TypeDispatch, "cli", "relay"))
	s.Append(testEvent("e2", "wr-1", events.TypeReceipt, "relay", ""))
	s.Append(testEvent("e3", "wr-2", events.TypeFailed, "browser-probe", ""))

	if s.Len() != 3 {
		t.Fatalf("expected 3 events, got %d", s.Len())
	}

	all := s.Query(Filter{})
	if len(all) != 3 {
		t.Errorf("empty filter must match everything, got %d", len(all))
	}
	if all[0].ID != "e1" || all[2].ID != "e3" {
		t.Error("expected arrival order to be preserved")
	}
}

func TestHistoryStore_FilterFields(t *testing.T) {
	s := NewHistoryStore()
	now := time.Now()

	old := testEvent("e1", "wr-1", events.TypeDispatch, "cli", "relay")
	old.Timestamp = now.Add(-time.Hour)
	s.Append(old)
	s.Append(testEvent("e2", "wr-1", events.TypeDispatch, "cli", "browser-probe"))
	s.Append(testEvent("e3", "wr-2", events.TypeFailed, "relay", ""))

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"by source", Filter{Source: "cli"}, []string{"e1", "e2"}},
		{"by target", Filter{Target: "relay"}, []string{"e1"}},
		{"by type", Filter{Type: events.TypeFailed}, []string{"e3"}},
		{"by since", Filter{Since: now.Add(-time.Minute)}, []string{"e2", "e3"}},
		{"combined", Filter{Source: "cli", Since: now.Add(-time.Minute)}, []string{"e2"}},
		{"no match", Filter{Source: "cli", Type: events.TypeFailed}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Query(tt.filter)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d events, got %d", len(tt.want), len(got))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("position %d: expected %s, got %s", i, id, got[i].ID)
				}
			}
		})
	}
}

func TestHistoryStore_Prune(t *testing.T) {
	s := NewHistoryStore()
	now := time.Now()

	old := testEvent("e1", "wr-1", events.TypeDispatch, "cli", "relay")
	old.Timestamp = now.Add(-2 * time.Hour)
	s.Append(old)
	s.Append(testEvent("e2", "wr-1", events.TypeProcessed, "relay", ""))

	removed := s.Prune(now.Add(-time.Hour))
	if removed != 1 {
		t.Fatalf("expected 1 event pruned, got %d", removed)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 event retained, got %d", s.Len())
	}
	if s.Query(Filter{})[0].ID != "e2" {
		t.Error("expected the recent event to survive")
	}

	// Prune is idempotent
	if removed := s.Prune(now.Add(-time.Hour)); removed != 0 {
		t.Errorf("expected second prune to remove nothing, got %d", removed)
	}
}
