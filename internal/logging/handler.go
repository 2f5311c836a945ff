package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// SwappableHandler is a slog.Handler whose delegate can be replaced at
// runtime. Loggers built on it keep working across the replacement,
// which is what lets the bootstrap stderr logger become the full
// stderr+file logger once config has loaded.
type SwappableHandler struct {
	delegate atomic.Pointer[slog.Handler]
}

// NewSwappableHandler wraps the given delegate.
func NewSwappableHandler(h slog.Handler) *SwappableHandler {
	s := &SwappableHandler{}
	s.delegate.Store(&h)
	return s
}

// Swap replaces the delegate. Safe to call while other goroutines log.
func (s *SwappableHandler) Swap(h slog.Handler) {
	s.delegate.Store(&h)
}

func (s *SwappableHandler) load() slog.Handler {
	return *s.delegate.Load()
}

// Enabled implements slog.Handler.
func (s *SwappableHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return s.load().Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (s *SwappableHandler) Handle(ctx context.Context, r slog.Record) error {
	return s.load().Handle(ctx, r)
}

// WithAttrs implements slog.Handler. The derived handler holds its own
// delegate; swapping the parent does not retroactively change handlers
// derived before the swap.
func (s *SwappableHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return NewSwappableHandler(s.load().WithAttrs(attrs))
}

// WithGroup implements slog.Handler.
func (s *SwappableHandler) WithGroup(name string) slog.Handler {
	return NewSwappableHandler(s.load().WithGroup(name))
}
