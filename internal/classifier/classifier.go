package classifier

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oselabs/webrelay/internal/events"
	"github.com/oselabs/webrelay/internal/metrics"
)

// SurfaceState is the classified operational state of the UI surface.
type SurfaceState string

const (
	// StateIdle means the surface is ready for input.
	StateIdle SurfaceState = "idle"

	// StateBusy means the surface is working on a request.
	StateBusy SurfaceState = "busy"

	// StateError means the surface is showing an error banner.
	StateError SurfaceState = "error"

	// StateUnknown is the conservative fallback for conflicting or
	// unreadable signals. Callers must not act on it.
	StateUnknown SurfaceState = "unknown"
)

// DefaultDebounce is the stability window a candidate state must
// survive before it is reported as a transition.
const DefaultDebounce = 100 * time.Millisecond

// DefaultPollInterval is the sampling cadence of the Run loop. It must
// be shorter than the debounce window so a window spans several reads.
const DefaultPollInterval = 25 * time.Millisecond

// DefaultPassBudget bounds a single classification pass. The budget is
// enforced by the sampling loop, not by Observe itself; an overrun is
// reported into the event stream as a failure of the surface actor.
const DefaultPassBudget = 100 * time.Millisecond

// Classify maps one signal snapshot to exactly one state. Rules are
// priority-ordered; first match wins.
func Classify(s SignalSnapshot) SurfaceState {
	if s.ErrorVisible {
		return StateError
	}
	if s.InputMissing {
		return StateUnknown
	}

	// Two busy-indicating signals must agree.
	if (s.InputDisabled && s.ProcessingVisible) || (s.ProcessingVisible && s.AbortVisible) {
		return StateBusy
	}

	if !s.InputDisabled && !s.ProcessingVisible && !s.AbortVisible {
		return StateIdle
	}

	// Signals conflict (e.g. input enabled but a busy indicator shown).
	return StateUnknown
}

// TransitionFunc is invoked synchronously for every stable transition.
type TransitionFunc func(from, to SurfaceState)

// EventRecorder receives the integration events the classifier emits.
// *monitor.Monitor satisfies it.
type EventRecorder interface {
	RecordEvent(ctx context.Context, ev events.IntegrationEvent)
}

// Classifier polls a SignalSource, debounces the raw classification and
// reports stable transitions to registered callbacks and the event
// stream. Read failures classify as StateUnknown, never as errors, so
// callers can poll indefinitely.
type Classifier struct {
	source   SignalSource
	recorder EventRecorder
	logger   *slog.Logger

	debounce     time.Duration
	pollInterval time.Duration
	passBudget   time.Duration

	mu           sync.Mutex
	current      SurfaceState
	pending      SurfaceState
	pendingSince time.Time
	pendingReads int
	callbacks    []callback
	nextCBID     uint64
}

type callback struct {
	id uint64
	fn TransitionFunc
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier)

// WithRecorder sets the sink for emitted transition events.
func WithRecorder(r EventRecorder) ClassifierOption {
	return func(c *Classifier) {
		c.recorder = r
	}
}

// WithClassifierLogger sets the logger.
func WithClassifierLogger(l *slog.Logger) ClassifierOption {
	return func(c *Classifier) {
		c.logger = l
	}
}

// WithDebounce sets the stability window. The "no single flicker is
// reported" guarantee holds for any positive window.
func WithDebounce(d time.Duration) ClassifierOption {
	return func(c *Classifier) {
		if d > 0 {
			c.debounce = d
		}
	}
}

// WithPollInterval sets the sampling cadence of the Run loop.
func WithPollInterval(d time.Duration) ClassifierOption {
	return func(c *Classifier) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithPassBudget sets the per-pass deadline Sample imposes on Observe.
func WithPassBudget(d time.Duration) ClassifierOption {
	return func(c *Classifier) {
		if d > 0 {
			c.passBudget = d
		}
	}
}

// New creates a Classifier reading from the given source.
func New(source SignalSource, opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		source:       source,
		logger:       slog.Default(),
		debounce:     DefaultDebounce,
		pollInterval: DefaultPollInterval,
		passBudget:   DefaultPassBudget,
		current:      StateUnknown,
		pending:      StateUnknown,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Current returns the last confirmed state.
func (c *Classifier) Current() SurfaceState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// OnTransition registers a callback invoked synchronously on every
// stable transition, in registration order. The returned function
// unregisters it.
func (c *Classifier) OnTransition(fn TransitionFunc) (unregister func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextCBID++
	id := c.nextCBID
	c.callbacks = append(c.callbacks, callback{id: id, fn: fn})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, cb := range c.callbacks {
			if cb.id == id {
				c.callbacks = append(c.callbacks[:i], c.callbacks[i+1:]...)
				return
			}
		}
	}
}

// Observe performs a single undebounced classification pass. A source
// read failure yields StateUnknown. The caller enforces the pass budget
// through the context deadline and treats overruns as a bottleneck
// signal on its own side.
func (c *Classifier) Observe(ctx context.Context) SurfaceState {
	snap, err := c.source.Snapshot(ctx)
	if err != nil {
		c.logger.Debug("signal read failed", "error", err)
		return StateUnknown
	}
	return Classify(snap)
}

// Run polls the source until the context is cancelled, feeding each
// read through the debouncer. Rapid oscillation inside the window is
// absorbed; only a state that stays stable across every read within the
// window is confirmed.
func (c *Classifier) Run(ctx context.Context) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sample(ctx)
		}
	}
}

// Sample takes one read and advances the debouncer. Exposed separately
// from Run so callers with their own scheduling (or tests) can drive
// the classifier directly. The read runs under the pass budget; an
// overrun is reported as a bottleneck signal but the reading, if any,
// is still fed through the debouncer.
func (c *Classifier) Sample(ctx context.Context) {
	obsCtx, cancel := context.WithTimeout(ctx, c.passBudget)
	start := time.Now()
	state := c.Observe(obsCtx)
	cancel()

	if elapsed := time.Since(start); elapsed > c.passBudget {
		c.reportOverrun(ctx, elapsed)
	}

	now := time.Now()

	c.mu.Lock()
	if state == c.current {
		// Flicker back to the confirmed state aborts any pending change.
		c.pending = c.current
		c.pendingReads = 0
		c.mu.Unlock()
		return
	}

	if state != c.pending {
		// New candidate; restart the stability window.
		c.pending = state
		c.pendingSince = now
		c.pendingReads = 1
		c.mu.Unlock()
		return
	}

	c.pendingReads++
	if c.pendingReads < 2 || now.Sub(c.pendingSince) < c.debounce {
		c.mu.Unlock()
		return
	}

	from := c.current
	c.current = state
	c.pendingReads = 0
	cbs := append([]callback(nil), c.callbacks...)
	c.mu.Unlock()

	c.confirm(ctx, from, state, cbs)
}

// confirm dispatches a stable transition outside the state lock.
func (c *Classifier) confirm(ctx context.Context, from, to SurfaceState, cbs []callback) {
	c.logger.Info("surface state changed", "from", from, "to", to)
	metrics.SurfaceTransitions.WithLabelValues(string(to)).Inc()

	for _, cb := range cbs {
		c.safeCall(cb, from, to)
	}

	if c.recorder != nil {
		ev := events.NewEvent(events.TypeProcessed, events.NewCorrelationID(), events.ActorSurface)
		ev.Status = string(to)
		ev.Payload = events.SurfaceTransition{From: string(from), To: string(to)}
		c.recorder.RecordEvent(ctx, ev)
	}
}

// reportOverrun turns a blown pass budget into an event: the surface
// cannot be classified on time, which is itself a bottleneck signal.
func (c *Classifier) reportOverrun(ctx context.Context, elapsed time.Duration) {
	c.logger.Warn("classification pass exceeded budget",
		"elapsed", elapsed,
		"budget", c.passBudget,
	)

	if c.recorder == nil {
		return
	}
	ev := events.NewEvent(events.TypeFailed, events.NewCorrelationID(), events.ActorSurface)
	ev.Status = "classification_overrun"
	ev.Payload = map[string]any{
		"elapsed_ms": float64(elapsed) / float64(time.Millisecond),
		"budget_ms":  float64(c.passBudget) / float64(time.Millisecond),
	}
	ev.Metadata = &events.Metadata{Latency: elapsed, ErrorCount: 1}
	c.recorder.RecordEvent(ctx, ev)
}

// safeCall isolates a panicking callback so the rest still run.
func (c *Classifier) safeCall(cb callback, from, to SurfaceState) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("transition callback panicked",
				"callback_id", cb.id,
				"panic", r,
			)
		}
	}()

	cb.fn(from, to)
}
