package events

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/oselabs/webrelay/internal/metrics"
)

// Bus is the interface for the notification bus.
type Bus interface {
	// Publish sends a notification to all subscribers of the kind.
	// Returns an error if the bus is closed.
	Publish(ctx context.Context, n Notification) error

	// Subscribe registers a handler for a specific notification kind.
	// Returns an unsubscribe function that removes the subscription.
	Subscribe(kind NotificationKind, handler NotificationHandler) (unsubscribe func())

	// SubscribeAll registers a handler for all notification kinds.
	// Returns an unsubscribe function that removes the subscription.
	SubscribeAll(handler NotificationHandler) (unsubscribe func())

	// Close shuts down the bus and drains pending notifications.
	Close() error
}

// subscription represents a registered notification handler.
type subscription struct {
	id            uint64
	kind          NotificationKind // empty string means subscribe to all
	handler       NotificationHandler
	notifications chan Notification
	done          chan struct{}
	unsubscribed  atomic.Bool
}

// NotificationBus is the default implementation of the Bus interface.
// Delivery to a single subscriber is ordered; subscribers are notified
// in registration order and a panicking handler never prevents the
// others from being notified.
type NotificationBus struct {
	mu            sync.RWMutex
	subscriptions map[uint64]*subscription
	order         []uint64
	nextID        atomic.Uint64
	closed        atomic.Bool
	logger        *slog.Logger

	// bufferSize is the size of each subscriber's notification buffer.
	bufferSize int
}

// BusOption configures the notification bus.
type BusOption func(*NotificationBus)

// WithBufferSize sets the buffer size for subscriber channels.
func WithBufferSize(size int) BusOption {
	return func(b *NotificationBus) {
		if size > 0 {
			b.bufferSize = size
		}
	}
}

// WithLogger sets the logger for the bus.
func WithLogger(logger *slog.Logger) BusOption {
	return func(b *NotificationBus) {
		b.logger = logger
	}
}

// NewBus creates a new notification bus with the given options.
func NewBus(opts ...BusOption) *NotificationBus {
	b := &NotificationBus{
		subscriptions: make(map[uint64]*subscription),
		bufferSize:    100, // default buffer size
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Publish sends a notification to all subscribers of the kind.
func (b *NotificationBus) Publish(ctx context.Context, n Notification) error {
	if b.closed.Load() {
		return ErrBusClosed
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, id := range b.order {
		sub, ok := b.subscriptions[id]
		if !ok {
			continue
		}
		if sub.kind != "" && sub.kind != n.Kind {
			continue
		}

		// Non-blocking send to subscriber's channel
		select {
		case sub.notifications <- n:
			// Delivered
		case <-ctx.Done():
			return ctx.Err()
		default:
			// Buffer full, log and skip (don't block publisher)
			b.logger.Warn("bus subscriber buffer full, dropping notification",
				"kind", n.Kind,
				"subscriber_id", sub.id,
			)
			metrics.BusDroppedNotifications.WithLabelValues(string(n.Kind)).Inc()
		}
	}

	return nil
}

// Subscribe registers a handler for a specific notification kind.
func (b *NotificationBus) Subscribe(kind NotificationKind, handler NotificationHandler) func() {
	return b.subscribe(kind, handler)
}

// SubscribeAll registers a handler for all notification kinds.
func (b *NotificationBus) SubscribeAll(handler NotificationHandler) func() {
	return b.subscribe("", handler)
}

func (b *NotificationBus) subscribe(kind NotificationKind, handler NotificationHandler) func() {
	if b.closed.Load() {
		// Return no-op unsubscribe if bus is closed
		return func() {}
	}

	id := b.nextID.Add(1)
	sub := &subscription{
		id:            id,
		kind:          kind,
		handler:       handler,
		notifications: make(chan Notification, b.bufferSize),
		done:          make(chan struct{}),
	}

	b.mu.Lock()
	b.subscriptions[id] = sub
	b.order = append(b.order, id)
	b.mu.Unlock()

	// Start goroutine to process notifications for this subscriber
	go b.process(sub)

	// Return unsubscribe function
	return func() {
		b.unsubscribe(id)
	}
}

// process handles notifications for a single subscription.
func (b *NotificationBus) process(sub *subscription) {
	for {
		select {
		case n, ok := <-sub.notifications:
			if !ok {
				// Channel closed, subscription removed
				return
			}
			b.safeCall(sub, n)
		case <-sub.done:
			// Drain remaining notifications before exiting
			for {
				select {
				case n, ok := <-sub.notifications:
					if !ok {
						return
					}
					b.safeCall(sub, n)
				default:
					return
				}
			}
		}
	}
}

// safeCall invokes the handler with panic recovery so one failing
// subscriber cannot take the bus down.
func (b *NotificationBus) safeCall(sub *subscription, n Notification) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("notification handler panicked",
				"subscriber_id", sub.id,
				"kind", n.Kind,
				"panic", r,
			)
		}
	}()

	sub.handler(n)
}

// unsubscribe removes a subscription by ID.
func (b *NotificationBus) unsubscribe(id uint64) {
	b.mu.Lock()
	sub, ok := b.subscriptions[id]
	if ok {
		delete(b.subscriptions, id)
		for i, oid := range b.order {
			if oid == id {
				b.order = append(b.order[:i], b.order[i+1:]...)
				break
			}
		}
	}
	b.mu.Unlock()

	if ok && sub.unsubscribed.CompareAndSwap(false, true) {
		// Signal done and close channels (only once)
		close(sub.done)
		close(sub.notifications)
	}
}

// Close shuts down the bus and drains pending notifications.
func (b *NotificationBus) Close() error {
	if b.closed.Swap(true) {
		// Already closed
		return nil
	}

	b.mu.Lock()
	subs := make([]*subscription, 0, len(b.subscriptions))
	for _, sub := range b.subscriptions {
		subs = append(subs, sub)
	}
	b.subscriptions = make(map[uint64]*subscription)
	b.order = nil
	b.mu.Unlock()

	// Close all subscriptions (with double-close protection)
	for _, sub := range subs {
		if sub.unsubscribed.CompareAndSwap(false, true) {
			close(sub.done)
			close(sub.notifications)
		}
	}

	return nil
}

// Stats returns current bus statistics.
func (b *NotificationBus) Stats() BusStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return BusStats{
		SubscriberCount: len(b.subscriptions),
		IsClosed:        b.closed.Load(),
	}
}

// BusStats contains notification bus statistics.
type BusStats struct {
	SubscriberCount int
	IsClosed        bool
}
