package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestSwappableHandler_DelegatesEnabled(t *testing.T) {
	var buf bytes.Buffer
	sh := NewSwappableHandler(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	ctx := context.Background()
	if sh.Enabled(ctx, slog.LevelInfo) {
		t.Error("expected info to be filtered at warn level")
	}
	if !sh.Enabled(ctx, slog.LevelError) {
		t.Error("expected error to pass at warn level")
	}
}

func TestSwappableHandler_SwapReroutesOutput(t *testing.T) {
	var before, after bytes.Buffer
	sh := NewSwappableHandler(slog.NewTextHandler(&before, nil))
	logger := slog.New(sh)

	logger.Info("relay starting")
	sh.Swap(slog.NewJSONHandler(&after, nil))
	logger.Info("relay listening", "port", 8931)

	if !strings.Contains(before.String(), "relay starting") {
		t.Errorf("pre-swap output missing, got: %s", before.String())
	}
	if strings.Contains(before.String(), "relay listening") {
		t.Error("post-swap record leaked to the old handler")
	}
	if !strings.Contains(after.String(), `"relay listening"`) {
		t.Errorf("post-swap output missing, got: %s", after.String())
	}
	if !strings.Contains(after.String(), `"port":8931`) {
		t.Errorf("post-swap attributes missing, got: %s", after.String())
	}
}

func TestSwappableHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	sh := NewSwappableHandler(slog.NewTextHandler(&buf, nil))

	derived, ok := sh.WithAttrs([]slog.Attr{slog.String("component", "monitor")}).(*SwappableHandler)
	if !ok {
		t.Fatal("expected WithAttrs to return a *SwappableHandler")
	}

	slog.New(derived).Info("sweep complete")
	if !strings.Contains(buf.String(), "component=monitor") {
		t.Errorf("expected bound attribute in output, got: %s", buf.String())
	}
}

func TestSwappableHandler_WithGroup(t *testing.T) {
	var buf bytes.Buffer
	sh := NewSwappableHandler(slog.NewJSONHandler(&buf, nil))

	derived := sh.WithGroup("dispatch")
	slog.New(derived).Info("sent", "action", "FILL_PROMPT")

	if !strings.Contains(buf.String(), `"dispatch"`) {
		t.Errorf("expected group in output, got: %s", buf.String())
	}
}
