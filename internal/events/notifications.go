package events

import "time"

// NotificationKind identifies the type of notification being published.
type NotificationKind string

const (
	// FlowCompleted is published when a flow receives its terminal
	// processed event.
	FlowCompleted NotificationKind = "flow.completed"

	// FlowFailed is published when a flow receives its terminal failed
	// event.
	FlowFailed NotificationKind = "flow.failed"

	// BottleneckDetected is published when the detector records a new
	// bottleneck.
	BottleneckDetected NotificationKind = "bottleneck.detected"

	// BottleneckResolved is published when a bottleneck is resolved.
	BottleneckResolved NotificationKind = "bottleneck.resolved"

	// ComponentUnhealthy is published when the staleness sweep forces a
	// component to critical, or an error-rate update crosses into
	// critical.
	ComponentUnhealthy NotificationKind = "component.unhealthy"

	// SurfaceStateChanged is published when the state classifier
	// confirms a stable UI-surface transition.
	SurfaceStateChanged NotificationKind = "surface.state_changed"

	// EventRecorded is published for every integration event accepted
	// by the monitor; watchers use it for raw tails.
	EventRecorded NotificationKind = "event.recorded"
)

// Notification represents a published monitor notification.
type Notification struct {
	// Kind identifies the notification type.
	Kind NotificationKind `json:"kind"`

	// Timestamp is when the notification was created.
	Timestamp time.Time `json:"timestamp"`

	// Payload contains kind-specific data.
	Payload any `json:"payload,omitempty"`
}

// NewNotification creates a notification with the given kind and payload.
func NewNotification(kind NotificationKind, payload any) Notification {
	return Notification{
		Kind:      kind,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}

// NotificationHandler is a function that processes notifications.
type NotificationHandler func(n Notification)

// SurfaceTransition is the payload of SurfaceStateChanged notifications
// and of the processed events the classifier feeds into the monitor.
type SurfaceTransition struct {
	From string `json:"from"`
	To   string `json:"to"`
}
