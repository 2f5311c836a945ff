package monitor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/oselabs/webrelay/internal/events"
	"github.com/oselabs/webrelay/internal/metrics"
)

// Default sweep and retention windows. The sweep cadence and windows
// are tunable through options; the detection thresholds are not.
const (
	DefaultSweepInterval  = 5 * time.Second
	DefaultLivenessWindow = 30 * time.Second
	DefaultStuckAfter     = 60 * time.Second
	DefaultRetention      = time.Hour
)

// HealthReport is the aggregate view returned by HealthReport.
type HealthReport struct {
	GeneratedAt       time.Time         `json:"generated_at"`
	Components        []ComponentHealth `json:"components"`
	ActiveBottlenecks []Bottleneck      `json:"active_bottlenecks"`
	FlowsInProgress   int               `json:"flows_in_progress"`
	EventsRetained    int               `json:"events_retained"`
}

// CleanupStats reports what a cleanup pass removed.
type CleanupStats struct {
	Events      int `json:"events"`
	Flows       int `json:"flows"`
	Bottlenecks int `json:"bottlenecks"`
}

// Monitor composes the flow registry, health registry, bottleneck
// detector and history store behind one facade. Construct it explicitly
// and pass it to collaborators; there is no ambient instance.
//
// RecordEvent is safe to call concurrently from multiple producers.
// Each registry guards its own state and notification dispatch happens
// after all locks are released, using snapshots.
type Monitor struct {
	flows    *FlowRegistry
	health   *HealthRegistry
	detector *Detector
	history  *HistoryStore
	bus      events.Bus
	logger   *slog.Logger

	sweepInterval  time.Duration
	livenessWindow time.Duration
	stuckAfter     time.Duration
	retention      time.Duration

	started  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		m.logger = logger
	}
}

// WithSweepInterval sets the cadence of the periodic sweeps.
func WithSweepInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.sweepInterval = d
		}
	}
}

// WithLivenessWindow sets how long an actor may stay silent before the
// staleness sweep forces it critical.
func WithLivenessWindow(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.livenessWindow = d
		}
	}
}

// WithStuckAfter sets how old an in-progress flow may grow before the
// periodic scan reports it as stuck.
func WithStuckAfter(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.stuckAfter = d
		}
	}
}

// WithRetention sets the age past which cleanup evicts history entries,
// terminated flows and resolved bottlenecks.
func WithRetention(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.retention = d
		}
	}
}

// WithActors pre-registers the named actors so they show up in health
// reports with StatusUnknown before any traffic arrives.
func WithActors(actors ...string) Option {
	return func(m *Monitor) {
		for _, a := range actors {
			m.health.Register(a)
		}
	}
}

// New creates a Monitor publishing notifications on the given bus.
func New(bus events.Bus, opts ...Option) *Monitor {
	m := &Monitor{
		flows:          NewFlowRegistry(),
		health:         NewHealthRegistry(),
		detector:       NewDetector(),
		history:        NewHistoryStore(),
		bus:            bus,
		logger:         slog.Default(),
		sweepInterval:  DefaultSweepInterval,
		livenessWindow: DefaultLivenessWindow,
		stuckAfter:     DefaultStuckAfter,
		retention:      DefaultRetention,
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// RecordEvent feeds one integration event through the registries. A
// missing id or timestamp is filled in; nothing observable through
// normal operation returns an error. The inline bottleneck rules run
// synchronously; stuck-flow detection happens on the sweep timer.
func (m *Monitor) RecordEvent(ctx context.Context, ev events.IntegrationEvent) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	if ev.CorrelationID == "" {
		ev.CorrelationID = events.NewCorrelationID()
	}

	m.history.Append(ev)
	health := m.health.Update(ev)
	flow, terminal := m.flows.Track(ev)
	found := m.detector.Inspect(ev)

	metrics.EventsRecorded.WithLabelValues(string(ev.Type), ev.Source).Inc()

	// Registries are consistent; dispatch notifications from snapshots.
	m.publish(ctx, events.NewNotification(events.EventRecorded, ev))

	if terminal {
		kind := events.FlowCompleted
		if flow.Status == FlowFailed {
			kind = events.FlowFailed
		}
		m.publish(ctx, events.NewNotification(kind, flow))
	}

	for _, b := range found {
		m.publish(ctx, events.NewNotification(events.BottleneckDetected, b))
	}

	if health.Status == StatusCritical {
		m.publish(ctx, events.NewNotification(events.ComponentUnhealthy, health))
	}
}

// HealthReport returns the current aggregate health view.
func (m *Monitor) HealthReport() HealthReport {
	return HealthReport{
		GeneratedAt:       time.Now(),
		Components:        m.health.All(),
		ActiveBottlenecks: m.detector.Active(),
		FlowsInProgress:   len(m.flows.InProgress()),
		EventsRetained:    m.history.Len(),
	}
}

// EventHistory returns retained events matching the filter.
func (m *Monitor) EventHistory(f Filter) []events.IntegrationEvent {
	return m.history.Query(f)
}

// Flow returns the tracked flow for a correlation id.
func (m *Monitor) Flow(correlationID string) (EventFlow, bool) {
	return m.flows.Get(correlationID)
}

// Bottlenecks returns every retained bottleneck, resolved or not.
func (m *Monitor) Bottlenecks() []Bottleneck {
	return m.detector.All()
}

// ResolveBottleneck stamps the bottleneck resolved and notifies
// subscribers. Resolving an unknown or already-resolved id is a no-op
// returning false.
func (m *Monitor) ResolveBottleneck(ctx context.Context, id string) bool {
	b, ok := m.detector.Resolve(id)
	if !ok {
		return false
	}
	m.publish(ctx, events.NewNotification(events.BottleneckResolved, b))
	return true
}

// Cleanup evicts history entries, terminated flows and resolved
// bottlenecks older than the cutoff. It is idempotent and never touches
// in-progress flows or unresolved bottlenecks.
func (m *Monitor) Cleanup(olderThan time.Time) CleanupStats {
	stats := CleanupStats{
		Events:      m.history.Prune(olderThan),
		Flows:       m.flows.Prune(olderThan),
		Bottlenecks: m.detector.Prune(olderThan),
	}
	if stats.Events > 0 || stats.Flows > 0 || stats.Bottlenecks > 0 {
		m.logger.Debug("cleanup pass",
			"events", stats.Events,
			"flows", stats.Flows,
			"bottlenecks", stats.Bottlenecks,
		)
	}
	return stats
}

// Start launches the periodic sweep loop: health staleness, stuck-flow
// scan and retention cleanup. It returns immediately; call Stop to shut
// the loop down.
func (m *Monitor) Start(ctx context.Context) {
	if m.started.Swap(true) {
		return
	}
	go func() {
		defer close(m.done)

		ticker := time.NewTicker(m.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.sweep(ctx)
			case <-ctx.Done():
				return
			case <-m.stop:
				return
			}
		}
	}()
}

// Stop terminates the sweep loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	if m.started.Load() {
		<-m.done
	}
}

// sweep runs one periodic pass. Each registry scan holds its own lock
// only for the scan; notifications go out afterwards from snapshots.
func (m *Monitor) sweep(ctx context.Context) {
	stale := m.health.Sweep(m.livenessWindow)
	for _, row := range stale {
		m.logger.Warn("component missed liveness window",
			"component", row.Component,
			"last_heartbeat", row.LastHeartbeat,
		)
		m.publish(ctx, events.NewNotification(events.ComponentUnhealthy, row))
	}

	stuck := m.detector.SweepStuck(m.flows.InProgress(), m.stuckAfter)
	for _, b := range stuck {
		m.logger.Warn("stuck flow detected",
			"component", b.Component,
			"description", b.Description,
		)
		m.publish(ctx, events.NewNotification(events.BottleneckDetected, b))
	}

	m.Cleanup(time.Now().Add(-m.retention))
}

func (m *Monitor) publish(ctx context.Context, n events.Notification) {
	if m.bus == nil {
		return
	}
	if err := m.bus.Publish(ctx, n); err != nil {
		m.logger.Warn("notification publish failed", "kind", n.Kind, "error", err)
	}
}
