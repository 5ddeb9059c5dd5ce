// Package observability provides structured logging, metrics, and tracing
// for the correlation engine.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds correlation context to a logger.
// Returns a new logger with topic, key, and attempt fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, "Command", 10, 1)
//	enriched.Info("resolving client") // includes topic, key, attempt
func EnrichLogger(logger *slog.Logger, topic string, key int32, attempt int) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("topic", topic),
		slog.Int64("key", int64(key)),
		slog.Int("attempt", attempt),
	)
}

// LogRecordReceived logs an inbound record at debug level.
func LogRecordReceived(logger *slog.Logger, topic, key string) {
	if logger == nil {
		return
	}
	logger.Debug("record received",
		slog.String("topic", topic),
		slog.String("key", key),
	)
}

// LogDecodeError logs a malformed record that was dropped.
func LogDecodeError(logger *slog.Logger, topic string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("malformed record dropped",
		slog.String("topic", topic),
		slog.String("error", err.Error()),
	)
}

// LogRetry logs a backoff between correlation attempts.
func LogRetry(logger *slog.Logger, topic string, key int32, next time.Duration, err error) {
	if logger == nil {
		return
	}
	logger.Debug("correlation retry scheduled",
		slog.String("topic", topic),
		slog.Int64("key", int64(key)),
		slog.Duration("backoff", next),
		slog.String("error", err.Error()),
	)
}

// LogInvoiceEmitted logs a completed invoice publication.
func LogInvoiceEmitted(logger *slog.Logger, invoiceID int32, items int, total float64) {
	if logger == nil {
		return
	}
	logger.Info("invoice emitted",
		slog.Int64("invoice_id", int64(invoiceID)),
		slog.Int("items", items),
		slog.Float64("total", total),
	)
}

// LogDeadLetter logs a record moved to the dead-letter stream.
func LogDeadLetter(logger *slog.Logger, recordType string, key int32, reason string) {
	if logger == nil {
		return
	}
	logger.Warn("record dead-lettered",
		slog.String("record_type", recordType),
		slog.Int64("key", int64(key)),
		slog.String("reason", reason),
	)
}

// LogPublishLost logs a message lost after publish retries were exhausted.
func LogPublishLost(logger *slog.Logger, topic string, key string, err error) {
	if logger == nil {
		return
	}
	logger.Error("message lost after publish retries",
		slog.String("topic", topic),
		slog.String("key", key),
		slog.String("error", err.Error()),
	)
}

// LogTransportError logs a failed read from the bus. The ingestion loop
// logs these and keeps going.
func LogTransportError(logger *slog.Logger, err error) {
	if logger == nil {
		return
	}
	logger.Error("transport error",
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
