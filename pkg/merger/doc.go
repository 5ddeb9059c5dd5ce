// Package merger correlates three independently produced event streams -
// Client, Command, Product - into completed Invoice documents, and routes
// anything that cannot be correlated within a bounded retry budget to a
// dead-letter stream.
//
// # Overview
//
// Events for a single logical order arrive asynchronously, in any order,
// from any producer. The engine merges them exactly once into one
// aggregate despite missing or late data, while the ingestion path keeps
// accepting new events without blocking on in-flight correlations:
//
//   - Client records are absorbed into the correlation store synchronously.
//   - Each Command spawns an independent job that claims the owning client
//     (retrying under exponential backoff) and creates the invoice shell.
//   - Each Product spawns an independent job that attaches the line item
//     to its invoice, detects completion, and hands off to the emitter.
//   - Jobs that exhaust their retry budget dead-letter the original record.
//
// # Basic Usage
//
//	b := bus.NewChannelBus(bus.DefaultConfig)
//	engine := merger.New(b, merger.WithLogger(slog.Default()))
//
//	sub := b.Subscribe(record.TopicClient, record.TopicCommand, record.TopicProduct)
//	go engine.Run(ctx, sub)
//
// Completed invoices appear on the Invoice stream keyed by invoice id;
// failed records appear on the DeadLetterQueue stream keyed by their
// natural id, wrapped in a record.DeadLetter envelope.
//
// # Guarantees
//
//   - At most one invoice exists per command id (create-if-absent).
//   - Aggregation is idempotent: re-delivery of a product changes nothing.
//   - Completion fires exactly once, even under concurrent delivery.
//   - Ingestion never blocks on a correlation outcome; only transport
//     errors surface on the ingestion loop, and they are logged and
//     looped past.
//
// Correlation state is held in memory only. On restart it is rebuilt from
// the stream; that is a known limitation, not a guarantee.
package merger
