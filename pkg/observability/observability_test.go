package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/Black-And-White-Club/photoseason/config"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew_ProductionLogsJSON(t *testing.T) {
	var buf bytes.Buffer
	obs := newWithWriter(config.ObservabilityConfig{Environment: "production"}, &buf)

	obs.Logger.Info("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if entry["service"] != ServiceName {
		t.Errorf("service = %v, want %s", entry["service"], ServiceName)
	}
	if obs.Tracer == nil || obs.Metrics == nil || obs.Registry == nil {
		t.Fatal("observability components not initialised")
	}
}

func TestNew_DevelopmentLogsText(t *testing.T) {
	var buf bytes.Buffer
	obs := newWithWriter(config.ObservabilityConfig{Environment: "development", LogLevel: "warn"}, &buf)

	obs.Logger.Info("dropped")
	obs.Logger.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("info line written at warn level: %q", out)
	}
	if !strings.Contains(out, "msg=kept") {
		t.Errorf("warn line missing: %q", out)
	}
}

func TestNewTracerProvider_NoEndpointDropsSpans(t *testing.T) {
	tp, shutdown, err := newTracerProvider(context.Background(), config.ObservabilityConfig{})
	if err != nil {
		t.Fatalf("newTracerProvider() error = %v", err)
	}
	if shutdown != nil {
		t.Error("expected no shutdown func without an endpoint")
	}

	_, span := tp.Tracer("test").Start(context.Background(), "job")
	defer span.End()
	if span.IsRecording() || span.SpanContext().IsValid() {
		t.Error("span recorded with tracing disabled")
	}
}

func TestNewTracerProvider_EndpointRecordsSpans(t *testing.T) {
	ctx := context.Background()
	tp, shutdown, err := newTracerProvider(ctx, config.ObservabilityConfig{
		Environment:  "test",
		OTLPEndpoint: "127.0.0.1:4317",
		OTLPInsecure: true,
		SampleRate:   1,
	})
	if err != nil {
		t.Fatalf("newTracerProvider() error = %v", err)
	}
	if shutdown == nil {
		t.Fatal("expected a shutdown func")
	}

	_, span := tp.Tracer("test").Start(ctx, "job")
	if !span.IsRecording() || !span.SpanContext().IsSampled() {
		t.Error("span not recorded with tracing enabled")
	}
	span.End()

	// nothing listens on the endpoint; only the bounded flush matters
	shutdownCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	_ = shutdown(shutdownCtx)
}

func TestObservability_ShutdownRunsOnce(t *testing.T) {
	obs := newWithWriter(config.ObservabilityConfig{}, io.Discard)
	calls := 0
	obs.shutdown = func(context.Context) error {
		calls++
		return nil
	}

	for range 3 {
		if err := obs.Shutdown(context.Background()); err != nil {
			t.Fatalf("Shutdown() error = %v", err)
		}
	}
	if calls != 1 {
		t.Errorf("shutdown ran %d times, want 1", calls)
	}
}

func TestObservability_ShutdownWithoutTracing(t *testing.T) {
	obs := newWithWriter(config.ObservabilityConfig{}, io.Discard)
	if err := obs.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}
