// Package events defines the integration event model shared by every
// actor in the relay (CLI, relay server, browser probe, UI surface) and
// an in-process pub/sub bus for monitor notifications.
package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies the kind of integration event. The set is closed;
// transports decode unknown type strings into an error at the boundary
// rather than forwarding them.
type EventType string

const (
	// TypeLifecycle marks actor lifecycle facts (startup, ping, shutdown).
	TypeLifecycle EventType = "lifecycle"

	// TypeDispatch marks a command leaving one actor for another.
	TypeDispatch EventType = "dispatch"

	// TypeReceipt marks acknowledgement that a command arrived.
	TypeReceipt EventType = "receipt"

	// TypeProcessed marks terminal, successful completion of an operation.
	TypeProcessed EventType = "processed"

	// TypeFailed marks terminal failure of an operation.
	TypeFailed EventType = "failed"
)

// Valid reports whether t is one of the closed event type values.
func (t EventType) Valid() bool {
	switch t {
	case TypeLifecycle, TypeDispatch, TypeReceipt, TypeProcessed, TypeFailed:
		return true
	}
	return false
}

// Terminal reports whether events of this type end a flow.
func (t EventType) Terminal() bool {
	return t == TypeProcessed || t == TypeFailed
}

// Well-known actor names. Any string is accepted as an actor; these are
// the ones the relay itself emits.
const (
	ActorCLI     = "cli"
	ActorRelay   = "relay"
	ActorProbe   = "browser-probe"
	ActorSurface = "ui-surface"
)

// Metadata carries optional quantitative context attached to an event.
type Metadata struct {
	// Latency is the duration the emitting actor measured for the
	// operation. Zero means no latency was measured.
	Latency time.Duration `json:"latency,omitempty"`

	// ErrorCount is the number of errors the emitting actor observed.
	ErrorCount int `json:"error_count,omitempty"`

	// RetryCount is the number of retries performed before emission.
	RetryCount int `json:"retry_count,omitempty"`
}

// HasLatency reports whether the event carried a latency measurement.
func (m *Metadata) HasLatency() bool {
	return m != nil && m.Latency > 0
}

// IntegrationEvent is an immutable fact emitted by one actor. Events
// sharing a CorrelationID belong to the same logical end-to-end flow.
type IntegrationEvent struct {
	// ID uniquely identifies this event. Recording the same ID twice is
	// a no-op for flow tracking.
	ID string `json:"id"`

	// CorrelationID groups events into one flow.
	CorrelationID string `json:"correlation_id"`

	// Timestamp is when the emitting actor created the event.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event kind.
	Type EventType `json:"type"`

	// Source is the emitting actor.
	Source string `json:"source"`

	// Target is the actor the event is addressed to, if any.
	Target string `json:"target,omitempty"`

	// Status is the emitting actor's status at emission time.
	Status string `json:"status,omitempty"`

	// Payload carries event-specific data.
	Payload any `json:"payload,omitempty"`

	// Metadata carries optional latency and error counters.
	Metadata *Metadata `json:"metadata,omitempty"`
}

// NewEvent creates an integration event with a fresh ID and the current
// time.
func NewEvent(eventType EventType, correlationID, source string) IntegrationEvent {
	return IntegrationEvent{
		ID:            uuid.NewString(),
		CorrelationID: correlationID,
		Timestamp:     time.Now(),
		Type:          eventType,
		Source:        source,
	}
}

// NewCorrelationID generates an opaque correlation identifier.
func NewCorrelationID() string {
	return "wr-" + uuid.NewString()
}
