package events

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewBus(t *testing.T) {
	bus := NewBus()
	if bus == nil {
		t.Fatal("expected non-nil bus")
	}

	stats := bus.Stats()
	if stats.SubscriberCount != 0 {
		t.Errorf("expected 0 subscribers, got %d", stats.SubscriberCount)
	}
	if stats.IsClosed {
		t.Error("expected bus to not be closed")
	}
}

func TestBus_PublishSubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var received atomic.Bool
	var got Notification

	unsubscribe := bus.Subscribe(FlowCompleted, func(n Notification) {
		got = n
		received.Store(true)
	})
	defer unsubscribe()

	n := NewNotification(FlowCompleted, map[string]string{"correlation_id": "wr-abc"})

	if err := bus.Publish(context.Background(), n); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Wait for notification to be processed
	time.Sleep(50 * time.Millisecond)

	if !received.Load() {
		t.Fatal("expected notification to be received")
	}
	if got.Kind != FlowCompleted {
		t.Errorf("expected kind %s, got %s", FlowCompleted, got.Kind)
	}
}

func TestBus_KindFiltering(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var completed, failed atomic.Int32

	defer bus.Subscribe(FlowCompleted, func(n Notification) { completed.Add(1) })()
	defer bus.Subscribe(FlowFailed, func(n Notification) { failed.Add(1) })()

	_ = bus.Publish(context.Background(), NewNotification(FlowCompleted, nil))
	_ = bus.Publish(context.Background(), NewNotification(FlowCompleted, nil))
	_ = bus.Publish(context.Background(), NewNotification(FlowFailed, nil))

	time.Sleep(50 * time.Millisecond)

	if completed.Load() != 2 {
		t.Errorf("expected 2 completed notifications, got %d", completed.Load())
	}
	if failed.Load() != 1 {
		t.Errorf("expected 1 failed notification, got %d", failed.Load())
	}
}

func TestBus_SubscribeAll(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var count atomic.Int32
	defer bus.SubscribeAll(func(n Notification) { count.Add(1) })()

	_ = bus.Publish(context.Background(), NewNotification(EventRecorded, nil))
	_ = bus.Publish(context.Background(), NewNotification(BottleneckDetected, nil))
	_ = bus.Publish(context.Background(), NewNotification(SurfaceStateChanged, nil))

	time.Sleep(50 * time.Millisecond)

	if count.Load() != 3 {
		t.Errorf("expected 3 notifications, got %d", count.Load())
	}
}

func TestBus_MultipleSubscribers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var count atomic.Int32

	for i := 0; i < 3; i++ {
		unsubscribe := bus.Subscribe(BottleneckDetected, func(n Notification) {
			count.Add(1)
		})
		defer unsubscribe()
	}

	if err := bus.Publish(context.Background(), NewNotification(BottleneckDetected, nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	if count.Load() != 3 {
		t.Errorf("expected 3 deliveries, got %d", count.Load())
	}
}

func TestBus_DeliveryOrder(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var mu sync.Mutex
	var got []string

	defer bus.SubscribeAll(func(n Notification) {
		mu.Lock()
		got = append(got, n.Payload.(string))
		mu.Unlock()
	})()

	for _, p := range []string{"a", "b", "c", "d"} {
		_ = bus.Publish(context.Background(), NewNotification(EventRecorded, p))
	}

	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 4 {
		t.Fatalf("expected 4 notifications, got %d", len(got))
	}
	for i, want := range []string{"a", "b", "c", "d"} {
		if got[i] != want {
			t.Errorf("position %d: expected %q, got %q", i, want, got[i])
		}
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var count atomic.Int32
	unsubscribe := bus.Subscribe(FlowCompleted, func(n Notification) {
		count.Add(1)
	})

	_ = bus.Publish(context.Background(), NewNotification(FlowCompleted, nil))
	time.Sleep(50 * time.Millisecond)

	unsubscribe()

	_ = bus.Publish(context.Background(), NewNotification(FlowCompleted, nil))
	time.Sleep(50 * time.Millisecond)

	if count.Load() != 1 {
		t.Errorf("expected 1 notification after unsubscribe, got %d", count.Load())
	}

	// Unsubscribing twice must be safe
	unsubscribe()
}

func TestBus_PanickingHandler(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var received atomic.Bool

	defer bus.Subscribe(EventRecorded, func(n Notification) {
		panic("handler blew up")
	})()
	defer bus.Subscribe(EventRecorded, func(n Notification) {
		received.Store(true)
	})()

	if err := bus.Publish(context.Background(), NewNotification(EventRecorded, nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	if !received.Load() {
		t.Error("expected second subscriber to receive notification despite first panicking")
	}
}

func TestBus_PublishAfterClose(t *testing.T) {
	bus := NewBus()
	if err := bus.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}

	err := bus.Publish(context.Background(), NewNotification(FlowCompleted, nil))
	if err != ErrBusClosed {
		t.Errorf("expected ErrBusClosed, got %v", err)
	}

	// Closing twice must be safe
	if err := bus.Close(); err != nil {
		t.Errorf("unexpected error on second close: %v", err)
	}
}

func TestBus_SubscribeAfterClose(t *testing.T) {
	bus := NewBus()
	_ = bus.Close()

	unsubscribe := bus.Subscribe(FlowCompleted, func(n Notification) {})
	if unsubscribe == nil {
		t.Fatal("expected no-op unsubscribe, got nil")
	}
	unsubscribe()
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus(WithBufferSize(500))
	defer bus.Close()

	var count atomic.Int32
	defer bus.SubscribeAll(func(n Notification) { count.Add(1) })()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_ = bus.Publish(context.Background(), NewNotification(EventRecorded, nil))
			}
		}()
	}
	wg.Wait()

	time.Sleep(100 * time.Millisecond)

	if count.Load() != 200 {
		t.Errorf("expected 200 notifications, got %d", count.Load())
	}
}
