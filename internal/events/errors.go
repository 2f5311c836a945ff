package events

import "errors"

// ErrBusClosed is returned by Publish once Close has been called on the
// notification bus. Subscriptions made after close are inert.
var ErrBusClosed = errors.New("notification bus closed")
