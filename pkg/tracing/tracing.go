// Package tracing wires OpenTelemetry spans through tool calls, trip
// evaluation and provider requests. Without an exporter every span is a no-op.
package tracing

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	ServiceName = "tripcarbon"
	TracerName  = "github.com/NERVsystems/tripcarbon"

	shutdownTimeout = 5 * time.Second
)

// Tracer is replaced by InitTracingWithConfig. The zero state drops spans.
var Tracer trace.Tracer = noop.NewTracerProvider().Tracer(TracerName)

// Config selects where spans go. Exporter wins over Endpoint; with neither,
// tracing stays disabled.
type Config struct {
	Endpoint    string
	Insecure    bool
	SampleRatio float64
	Environment string

	// Exporter receives spans synchronously. Tests pass an in-memory one.
	Exporter sdktrace.SpanExporter
}

// ConfigFromEnv reads OTLP_ENDPOINT, OTLP_INSECURE, TRACE_SAMPLE_RATIO and
// ENVIRONMENT.
func ConfigFromEnv() Config {
	cfg := Config{
		Endpoint:    os.Getenv("OTLP_ENDPOINT"),
		Insecure:    true,
		SampleRatio: 1,
		Environment: os.Getenv("ENVIRONMENT"),
	}
	if v, err := strconv.ParseBool(os.Getenv("OTLP_INSECURE")); err == nil {
		cfg.Insecure = v
	}
	if v, err := strconv.ParseFloat(os.Getenv("TRACE_SAMPLE_RATIO"), 64); err == nil && v >= 0 && v <= 1 {
		cfg.SampleRatio = v
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	return cfg
}

// InitTracing is InitTracingWithConfig with ConfigFromEnv.
func InitTracing(ctx context.Context, version string) (shutdown func(context.Context) error, err error) {
	return InitTracingWithConfig(ctx, version, ConfigFromEnv())
}

// InitTracingWithConfig installs a tracer provider for cfg and returns a
// function that flushes and stops it.
func InitTracingWithConfig(ctx context.Context, version string, cfg Config) (shutdown func(context.Context) error, err error) {
	var spanOpt sdktrace.TracerProviderOption
	switch {
	case cfg.Exporter != nil:
		spanOpt = sdktrace.WithSyncer(cfg.Exporter)
	case cfg.Endpoint != "":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err := otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
		if err != nil {
			return nil, fmt.Errorf("otlp exporter for %s: %w", cfg.Endpoint, err)
		}
		spanOpt = sdktrace.WithBatcher(exporter)
	default:
		Tracer = noop.NewTracerProvider().Tracer(TracerName)
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(ServiceName),
		semconv.ServiceVersion(version),
		semconv.DeploymentEnvironment(cfg.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		spanOpt,
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	Tracer = tp.Tracer(TracerName)

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
		return tp.Shutdown(ctx)
	}, nil
}

func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer.Start(ctx, name, opts...)
}

// Fail marks span as failed with err. A nil err only sets the description.
func Fail(span trace.Span, err error, description string) {
	if err != nil {
		span.RecordError(err)
	}
	span.SetStatus(codes.Error, description)
}

// The helpers below act on the span in ctx and do nothing when it is not
// recording.

func RecordError(ctx context.Context, err error, opts ...trace.EventOption) {
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.RecordError(err, opts...)
	}
}

func SetStatus(ctx context.Context, code codes.Code, description string) {
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetStatus(code, description)
	}
}

func AddEvent(ctx context.Context, name string, opts ...trace.EventOption) {
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.AddEvent(name, opts...)
	}
}

func SetAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(attrs...)
	}
}
