package monitor

import (
	"sync"
	"time"

	"github.com/oselabs/webrelay/internal/events"
)

// Filter selects events from the history store. Zero-valued fields
// match everything; set fields are combined with logical AND.
type Filter struct {
	Source string           `json:"source,omitempty"`
	Target string           `json:"target,omitempty"`
	Type   events.EventType `json:"type,omitempty"`
	Since  time.Time        `json:"since,omitempty"`
}

// Matches reports whether the event satisfies every set field.
func (f Filter) Matches(ev events.IntegrationEvent) bool {
	if f.Source != "" && ev.Source != f.Source {
		return false
	}
	if f.Target != "" && ev.Target != f.Target {
		return false
	}
	if f.Type != "" && ev.Type != f.Type {
		return false
	}
	if !f.Since.IsZero() && ev.Timestamp.Before(f.Since) {
		return false
	}
	return true
}

// HistoryStore is an append-only, time-bounded log of integration
// events. It is safe for concurrent use. Entries leave the store only
// through Prune.
type HistoryStore struct {
	mu      sync.Mutex
	entries []events.IntegrationEvent
}

// NewHistoryStore creates an empty history store.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{}
}

// Append records an event. Events are retained in arrival order.
func (s *HistoryStore) Append(ev events.IntegrationEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, ev)
}

// Query returns all retained events matching the filter, oldest first.
func (s *HistoryStore) Query(f Filter) []events.IntegrationEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []events.IntegrationEvent
	for _, ev := range s.entries {
		if f.Matches(ev) {
			out = append(out, ev)
		}
	}
	return out
}

// Len returns the number of retained events.
func (s *HistoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Prune removes entries whose timestamp predates the cutoff and returns
// how many were removed.
func (s *HistoryStore) Prune(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	removed := 0
	for _, ev := range s.entries {
		if ev.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, ev)
	}
	s.entries = kept
	return removed
}
