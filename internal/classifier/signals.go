// Package classifier infers the operational state of the controlled UI
// surface from a set of individually-unreliable signals and reports
// stable transitions into the event stream.
package classifier

import "context"

// SignalSnapshot is one read of the raw readiness indicators on the
// controlled surface. No single field is authoritative.
type SignalSnapshot struct {
	// InputMissing is true when the primary input element is absent
	// entirely (surface not yet loaded).
	InputMissing bool `json:"input_missing"`

	// InputDisabled reports the primary input's disabled attribute.
	InputDisabled bool `json:"input_disabled"`

	// ProcessingVisible reports whether a "working" indicator is shown.
	ProcessingVisible bool `json:"processing_visible"`

	// AbortVisible reports whether an abort affordance is shown.
	AbortVisible bool `json:"abort_visible"`

	// ErrorVisible reports whether an error banner is shown.
	ErrorVisible bool `json:"error_visible"`
}

// SignalSource reads the current signal set from the controlled
// surface. Implementations include the browser probe's remote snapshot
// feed and test fakes. Snapshot should honor ctx deadlines; the
// classification budget is enforced by the caller's deadline, not by
// the source itself.
type SignalSource interface {
	Snapshot(ctx context.Context) (SignalSnapshot, error)
}

// SignalSourceFunc adapts a function to the SignalSource interface.
type SignalSourceFunc func(ctx context.Context) (SignalSnapshot, error)

// Snapshot calls f.
func (f SignalSourceFunc) Snapshot(ctx context.Context) (SignalSnapshot, error) {
	return f(ctx)
}
