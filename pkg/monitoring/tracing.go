package monitoring

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig holds tracing configuration
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// JaegerEndpoint is optional. Without it spans are still created (trace
	// IDs show up in logs and response headers) but nothing is exported.
	JaegerEndpoint string
	SamplingRate   float64
}

// TracingManager handles distributed tracing
type TracingManager struct {
	tracer     trace.Tracer
	provider   *sdktrace.TracerProvider
	propagator propagation.TextMapPropagator
}

// NewTracingManager creates a new tracing manager
func NewTracingManager(config *TracingConfig) (*TracingManager, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			semconv.DeploymentEnvironment(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(config.SamplingRate))),
	}

	if config.JaegerEndpoint != "" {
		exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(config.JaegerEndpoint)))
		if err != nil {
			return nil, fmt.Errorf("failed to create Jaeger exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	propagator := propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagator)

	return &TracingManager{
		tracer:     tp.Tracer(config.ServiceName),
		provider:   tp,
		propagator: propagator,
	}, nil
}

// tracerOrNoop lets a nil manager (tracing disabled, tests) hand out
// non-recording spans.
func (tm *TracingManager) tracerOrNoop() trace.Tracer {
	if tm == nil {
		return trace.NewNoopTracerProvider().Tracer("")
	}
	return tm.tracer
}

// StartHTTPSpan starts a span for an inbound HTTP request
func (tm *TracingManager) StartHTTPSpan(ctx context.Context, method, path string) (context.Context, trace.Span) {
	return tm.tracerOrNoop().Start(ctx, fmt.Sprintf("%s %s", method, path),
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.route", path),
		),
	)
}

// StartDatabaseSpan starts a span for a database operation
func (tm *TracingManager) StartDatabaseSpan(ctx context.Context, operation, table string) (context.Context, trace.Span) {
	return tm.tracerOrNoop().Start(ctx, fmt.Sprintf("db.%s %s", operation, table),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", operation),
			attribute.String("db.sql.table", table),
		),
	)
}

// RecordError marks span as failed
func (tm *TracingManager) RecordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// ExtractTraceContext extracts trace context from HTTP headers
func (tm *TracingManager) ExtractTraceContext(ctx context.Context, headers http.Header) context.Context {
	if tm == nil {
		return ctx
	}
	return tm.propagator.Extract(ctx, propagation.HeaderCarrier(headers))
}

// InjectTraceContext injects trace context into HTTP headers
func (tm *TracingManager) InjectTraceContext(ctx context.Context, headers http.Header) {
	if tm == nil {
		return
	}
	tm.propagator.Inject(ctx, propagation.HeaderCarrier(headers))
}

// TraceIDFromContext returns the trace ID of the span in ctx, if any
func TraceIDFromContext(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// Shutdown flushes and stops the tracer provider
func (tm *TracingManager) Shutdown(ctx context.Context) error {
	if tm == nil {
		return nil
	}
	return tm.provider.Shutdown(ctx)
}
