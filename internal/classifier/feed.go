package classifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultSnapshotMaxAge bounds how long a pushed snapshot stays
// classifiable. A probe that stops reporting must read as unknown, not
// as its last known state.
const DefaultSnapshotMaxAge = 1 * time.Second

// SnapshotFeed is a SignalSource fed by pushed readings, typically the
// browser probe POSTing its signal snapshots to the relay. Snapshot
// returns the most recent push; before the first push, or once the last
// push has gone stale, it returns an error so the classifier falls back
// to StateUnknown. Safe for concurrent use.
type SnapshotFeed struct {
	maxAge time.Duration
	clock  func() time.Time

	mu   sync.Mutex
	snap SignalSnapshot
	at   time.Time
}

// NewSnapshotFeed creates a feed whose readings expire after maxAge.
// A non-positive maxAge selects DefaultSnapshotMaxAge.
func NewSnapshotFeed(maxAge time.Duration) *SnapshotFeed {
	if maxAge <= 0 {
		maxAge = DefaultSnapshotMaxAge
	}
	return &SnapshotFeed{
		maxAge: maxAge,
		clock:  time.Now,
	}
}

// Push replaces the feed's current reading.
func (f *SnapshotFeed) Push(snap SignalSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap = snap
	f.at = f.clock()
}

// Snapshot implements SignalSource.
func (f *SnapshotFeed) Snapshot(ctx context.Context) (SignalSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.at.IsZero() {
		return SignalSnapshot{}, errors.New("no signal snapshot received yet")
	}
	if age := f.clock().Sub(f.at); age > f.maxAge {
		return SignalSnapshot{}, fmt.Errorf("last signal snapshot is %s old, max %s", age.Round(time.Millisecond), f.maxAge)
	}
	return f.snap, nil
}
