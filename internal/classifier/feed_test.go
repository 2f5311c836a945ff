package classifier

import (
	"context"
	"testing"
	"time"
)

func TestSnapshotFeed_EmptyReadsAsError(t *testing.T) {
	f := NewSnapshotFeed(0)

	if _, err := f.Snapshot(context.Background()); err == nil {
		t.Error("expected error before the first push")
	}

	// An unreadable feed classifies as unknown, never as an error.
	c := New(f)
	if got := c.Observe(context.Background()); got != StateUnknown {
		t.Errorf("expected %s from an empty feed, got %s", StateUnknown, got)
	}
}

func TestSnapshotFeed_PushThenRead(t *testing.T) {
	f := NewSnapshotFeed(0)
	f.Push(SignalSnapshot{InputDisabled: true, ProcessingVisible: true})

	snap, err := f.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !snap.InputDisabled || !snap.ProcessingVisible {
		t.Errorf("expected the pushed snapshot back, got %+v", snap)
	}

	// A later push replaces the reading.
	f.Push(SignalSnapshot{})
	snap, err = f.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.InputDisabled || snap.ProcessingVisible {
		t.Errorf("expected the replacement snapshot, got %+v", snap)
	}
}

func TestSnapshotFeed_StaleReadsAsError(t *testing.T) {
	f := NewSnapshotFeed(time.Second)
	now := time.Now()
	f.clock = func() time.Time { return now }

	f.Push(SignalSnapshot{})
	if _, err := f.Snapshot(context.Background()); err != nil {
		t.Fatalf("fresh snapshot should read cleanly, got %v", err)
	}

	f.clock = func() time.Time { return now.Add(2 * time.Second) }
	if _, err := f.Snapshot(context.Background()); err == nil {
		t.Error("expected error once the snapshot went stale")
	}

	c := New(f)
	if got := c.Observe(context.Background()); got != StateUnknown {
		t.Errorf("expected %s from a stale feed, got %s", StateUnknown, got)
	}
}
