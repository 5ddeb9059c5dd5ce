package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records correlation engine metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordConsumed records an inbound record, by topic.
	RecordConsumed(ctx context.Context, topic string)

	// RecordCorrelation records a finished correlation job with its
	// duration and terminal error status.
	RecordCorrelation(ctx context.Context, topic string, duration time.Duration, err error)

	// RecordRetry records one retry attempt during correlation.
	RecordRetry(ctx context.Context, topic string)

	// RecordEmitted records a published invoice.
	RecordEmitted(ctx context.Context, items int)

	// RecordDeadLetter records a record routed to the dead-letter stream.
	RecordDeadLetter(ctx context.Context, recordType, reason string)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	consumed           metric.Int64Counter
	correlations       metric.Int64Counter
	correlationLatency metric.Float64Histogram
	retries            metric.Int64Counter
	emitted            metric.Int64Counter
	invoiceItems       metric.Int64Histogram
	deadLetters        metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("merger")

	consumed, err := meter.Int64Counter("merger.records.consumed",
		metric.WithDescription("Number of records consumed from input streams"),
	)
	if err != nil {
		return nil, err
	}

	correlations, err := meter.Int64Counter("merger.correlations",
		metric.WithDescription("Number of finished correlation jobs"),
	)
	if err != nil {
		return nil, err
	}

	correlationLatency, err := meter.Float64Histogram("merger.correlation.latency_ms",
		metric.WithDescription("Correlation job latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	retries, err := meter.Int64Counter("merger.correlation.retries",
		metric.WithDescription("Number of correlation retry attempts"),
	)
	if err != nil {
		return nil, err
	}

	emitted, err := meter.Int64Counter("merger.invoices.emitted",
		metric.WithDescription("Number of invoices published"),
	)
	if err != nil {
		return nil, err
	}

	invoiceItems, err := meter.Int64Histogram("merger.invoice.items",
		metric.WithDescription("Line items per emitted invoice"),
	)
	if err != nil {
		return nil, err
	}

	deadLetters, err := meter.Int64Counter("merger.deadletters",
		metric.WithDescription("Number of records routed to the dead-letter stream"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		consumed:           consumed,
		correlations:       correlations,
		correlationLatency: correlationLatency,
		retries:            retries,
		emitted:            emitted,
		invoiceItems:       invoiceItems,
		deadLetters:        deadLetters,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordConsumed records an inbound record.
func (m *otelMetrics) RecordConsumed(ctx context.Context, topic string) {
	m.consumed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("topic", topic),
	))
}

// RecordCorrelation records a finished correlation job.
func (m *otelMetrics) RecordCorrelation(ctx context.Context, topic string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("topic", topic),
		attribute.Bool("success", err == nil),
	}

	m.correlations.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.correlationLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordRetry records a correlation retry attempt.
func (m *otelMetrics) RecordRetry(ctx context.Context, topic string) {
	m.retries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("topic", topic),
	))
}

// RecordEmitted records a published invoice.
func (m *otelMetrics) RecordEmitted(ctx context.Context, items int) {
	m.emitted.Add(ctx, 1)
	m.invoiceItems.Record(ctx, int64(items))
}

// RecordDeadLetter records a dead-lettered record.
func (m *otelMetrics) RecordDeadLetter(ctx context.Context, recordType, reason string) {
	m.deadLetters.Add(ctx, 1, metric.WithAttributes(
		attribute.String("record_type", recordType),
		attribute.String("reason", reason),
	))
}
