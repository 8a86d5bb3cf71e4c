package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"udip-dashboard/internal/config"
)

func TestStartSpan_ChildInheritsTrace(t *testing.T) {
	ctx, parent := StartSpan(context.Background(), "pipeline.run")
	_, child := StartSpan(ctx, "pipeline.delay")

	if len(parent.TraceID) != 16 || len(parent.SpanID) != 16 {
		t.Errorf("ids = %q / %q, want 16 hex chars", parent.TraceID, parent.SpanID)
	}
	if child.TraceID != parent.TraceID {
		t.Error("child should share the parent's trace id")
	}
	if child.ParentID != parent.SpanID {
		t.Errorf("child parent = %q, want %q", child.ParentID, parent.SpanID)
	}
	if child.SpanID == parent.SpanID {
		t.Error("child needs its own span id")
	}
}

func TestSpan_End(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, ok := StartSpan(context.Background(), "pipeline.pricing")
	ok.SetTag("products", "10")
	ok.End(logger)

	_, failed := StartSpan(context.Background(), "pipeline.failure")
	failed.SetError(errors.New("single class"))
	failed.End(logger)

	out := buf.String()
	for _, want := range []string{
		"level=DEBUG msg=\"span finished\"",
		"operation=pipeline.pricing",
		"products=10",
		"level=ERROR msg=\"span failed\"",
		"error=\"single class\"",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
	if ok.Duration == nil || failed.EndTime == nil {
		t.Error("End should finish the span")
	}
}

func TestRequestID(t *testing.T) {
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("GetRequestID() = %q on empty context", got)
	}
	ctx := WithRequestID(context.Background(), "abc")
	if got := GetRequestID(ctx); got != "abc" {
		t.Errorf("GetRequestID() = %q", got)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLoggerTo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, config.LoggerConfig{Level: "info", Format: "text"})

	logger.Debug("hidden")
	Component(logger, "forecaster").Info("fitted", "elapsed", 1500*time.Microsecond)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug record logged at info level")
	}
	for _, want := range []string{"service=udip-dashboard", "component=forecaster", "elapsed_ms=1.5"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestComponent_NilLogger(t *testing.T) {
	if Component(nil, "loader") == nil {
		t.Fatal("Component(nil) returned nil")
	}
}
