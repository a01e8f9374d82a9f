package logging

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v want %v", in, got, want)
		}
	}
}

func TestNewWithFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "vidcms.log")
	logger, closer := New(Options{Level: "debug", File: file})
	if logger == nil || closer == nil {
		t.Fatal("expected logger and closer")
	}
	logger.Info("hello")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	if FromContext(ctx) != slog.Default() {
		t.Fatal("expected default logger")
	}

	ctx = WithRequestID(ctx, "req-1")
	if RequestIDFromContext(ctx) != "req-1" {
		t.Fatal("expected request id")
	}

	ctx, span := StartSpan(ctx, "unit")
	defer span.End()
	if TraceIDFromContext(ctx) == "" || SpanIDFromContext(ctx) == "" {
		t.Fatal("expected trace and span ids")
	}

	child, childSpan := StartSpan(ctx, "child")
	defer childSpan.End()
	if TraceIDFromContext(child) != TraceIDFromContext(ctx) {
		t.Fatal("child span should share the trace id")
	}
	if SpanIDFromContext(child) == SpanIDFromContext(ctx) {
		t.Fatal("child span should have its own id")
	}
}

func TestWithFallbackLogger(t *testing.T) {
	fallback := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := WithFallbackLogger(context.Background(), fallback)
	if FromContext(ctx) != fallback {
		t.Fatal("expected fallback logger on a bare context")
	}

	scoped := slog.New(slog.NewJSONHandler(io.Discard, nil))
	ctx = WithFallbackLogger(WithLogger(context.Background(), scoped), fallback)
	if FromContext(ctx) != scoped {
		t.Fatal("existing logger must win over the fallback")
	}
}
