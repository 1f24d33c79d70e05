package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	rankingmetrics "github.com/Black-And-White-Club/photoseason/app/modules/ranking/infrastructure/metrics"
	"github.com/Black-And-White-Club/photoseason/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ServiceName labels logs and spans.
const ServiceName = "photoseason"

// Observability bundles the logger, tracer and metrics handed to every module.
type Observability struct {
	Logger   *slog.Logger
	Tracer   trace.Tracer
	Registry *prometheus.Registry
	Metrics  *rankingmetrics.PrometheusMetrics

	shutdownOnce sync.Once
	shutdown     func(context.Context) error
}

// New builds the observability stack from configuration. Production
// environments log JSON; everything else logs text. Spans are exported over
// OTLP/gRPC when an endpoint is configured and dropped otherwise.
func New(ctx context.Context, cfg config.ObservabilityConfig) (*Observability, error) {
	obs := newWithWriter(cfg, os.Stdout)

	tp, shutdown, err := newTracerProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if shutdown != nil {
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.TraceContext{})
		obs.shutdown = shutdown
		obs.Logger.InfoContext(ctx, "Tracing enabled",
			slog.String("otlp_endpoint", cfg.OTLPEndpoint),
			slog.Float64("sample_rate", cfg.SampleRate),
		)
	}
	obs.Tracer = tp.Tracer(ServiceName)
	return obs, nil
}

func newWithWriter(cfg config.ObservabilityConfig, w io.Writer) *Observability {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.LogLevel)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Environment, "production") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(handler).With(
		slog.String("service", ServiceName),
		slog.String("environment", cfg.Environment),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Observability{
		Logger:   logger,
		Tracer:   noop.NewTracerProvider().Tracer(ServiceName),
		Registry: reg,
		Metrics:  rankingmetrics.NewPrometheusMetrics(reg),
	}
}

// newTracerProvider returns a batching OTLP provider and its shutdown func,
// or a no-op provider and a nil shutdown when no endpoint is set.
func newTracerProvider(ctx context.Context, cfg config.ObservabilityConfig) (trace.TracerProvider, func(context.Context) error, error) {
	if cfg.OTLPEndpoint == "" {
		return noop.NewTracerProvider(), nil, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.OTLPInsecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", ServiceName),
		attribute.String("deployment.environment", cfg.Environment),
	))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
	)
	return tp, tp.Shutdown, nil
}

// Shutdown flushes pending spans and stops the exporter. It is safe to call
// more than once.
func (o *Observability) Shutdown(ctx context.Context) error {
	var err error
	o.shutdownOnce.Do(func() {
		if o.shutdown != nil {
			err = o.shutdown(ctx)
		}
	})
	return err
}

// ParseLevel maps a level name onto slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
