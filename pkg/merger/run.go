package merger

import (
	"context"
	stderrors "errors"

	"github.com/invoicestream/merger/pkg/merger/bus"
	merrors "github.com/invoicestream/merger/pkg/merger/errors"
	"github.com/invoicestream/merger/pkg/merger/observability"
	"github.com/invoicestream/merger/pkg/merger/record"
)

// Run is the ingestion loop. It reads records from the consumer
// sequentially and dispatches by topic: Client records mutate the store
// synchronously; Command and Product records each spawn an independent
// job so a stuck correlation never delays ingestion of later events.
//
// Run returns nil when the consumer closes and ctx.Err() when the context
// is cancelled. Transport errors are logged and looped past. Call Wait
// afterwards to let in-flight jobs finish.
func (e *Engine) Run(ctx context.Context, consumer bus.Consumer) error {
	for {
		msg, err := consumer.Receive(ctx)
		if err != nil {
			if stderrors.Is(err, bus.ErrClosed) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			observability.LogTransportError(e.logger, err)
			continue
		}

		e.dispatch(ctx, msg)
	}
}

// dispatch routes one inbound record. Decode failures are logged and
// dropped; they were never valid business objects and are not retried or
// dead-lettered.
func (e *Engine) dispatch(ctx context.Context, msg bus.Message) {
	e.metrics.RecordConsumed(ctx, msg.Topic)
	observability.LogRecordReceived(e.logger, msg.Topic, msg.Key)

	spanCtx, span := e.spans.StartIngestSpan(ctx, msg.Topic)

	switch msg.Topic {
	case record.TopicClient:
		client, err := e.codecs.Client.Decode(msg.Value)
		if err != nil {
			e.dropMalformed(msg.Topic, err)
			e.spans.EndSpanWithError(span, err)
			return
		}
		e.store.UpsertClient(client)

	case record.TopicCommand:
		cmd, err := e.codecs.Command.Decode(msg.Value)
		if err != nil {
			e.dropMalformed(msg.Topic, err)
			e.spans.EndSpanWithError(span, err)
			return
		}
		e.spawnCommand(spanCtx, cmd)

	case record.TopicProduct:
		product, err := e.codecs.Product.Decode(msg.Value)
		if err != nil {
			e.dropMalformed(msg.Topic, err)
			e.spans.EndSpanWithError(span, err)
			return
		}
		e.spawnProduct(spanCtx, product)

	default:
		// Not one of ours; skip.
	}

	e.spans.EndSpanWithError(span, nil)
}

func (e *Engine) dropMalformed(topic string, err error) {
	observability.LogDecodeError(e.logger, topic, &merrors.DecodeError{Topic: topic, Err: err})
}

// spawnCommand starts the correlation job for a command, unless one is
// already running for the same command id.
func (e *Engine) spawnCommand(ctx context.Context, cmd record.Command) {
	if !e.tryAcquire(cmd.ID) {
		if e.logger != nil {
			e.logger.Debug("correlation already in flight, skipping",
				"command_id", cmd.ID)
		}
		return
	}

	// Jobs run to completion even if the ingestion context is cancelled;
	// the only bound is the retry budget.
	jobCtx := context.WithoutCancel(ctx)

	e.jobs.Add(1)
	go func() {
		defer e.jobs.Done()
		defer e.release(cmd.ID)
		e.correlateCommand(jobCtx, cmd)
	}()
}

// spawnProduct starts the aggregation job for a product. No dedup is
// needed: the store's add is idempotent by product id.
func (e *Engine) spawnProduct(ctx context.Context, product record.Product) {
	jobCtx := context.WithoutCancel(ctx)

	e.jobs.Add(1)
	go func() {
		defer e.jobs.Done()
		e.aggregateProduct(jobCtx, product)
	}()
}
