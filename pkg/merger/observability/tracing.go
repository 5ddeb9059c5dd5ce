package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is the merger tracer instance.
// Uses the global OTel tracer provider.
var tracer = otel.Tracer("merger")

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartIngestSpan starts a span for one inbound record dispatch.
	StartIngestSpan(ctx context.Context, topic string) (context.Context, trace.Span)

	// StartCorrelationSpan starts a span for a spawned correlation job.
	// The correlation span should be a child of the ingest span.
	StartCorrelationSpan(ctx context.Context, topic string, key int32) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the current span in context.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

// otelSpanManager implements SpanManager using OpenTelemetry.
type otelSpanManager struct{}

// NewSpanManager returns a SpanManager that uses OpenTelemetry.
//
// The span manager uses the global OTel tracer provider. Configure the
// provider before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

// StartIngestSpan starts a span for one inbound record dispatch.
func (m *otelSpanManager) StartIngestSpan(ctx context.Context, topic string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "merger.ingest",
		trace.WithAttributes(
			attribute.String("topic", topic),
		),
		trace.WithSpanKind(trace.SpanKindConsumer),
	)
}

// StartCorrelationSpan starts a span for a spawned correlation job.
func (m *otelSpanManager) StartCorrelationSpan(ctx context.Context, topic string, key int32) (context.Context, trace.Span) {
	return tracer.Start(ctx, "merger.correlate."+topic,
		trace.WithAttributes(
			attribute.String("topic", topic),
			attribute.Int64("key", int64(key)),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the current span.
func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
