package merger

import (
	"context"
	"time"

	merrors "github.com/invoicestream/merger/pkg/merger/errors"
	"github.com/invoicestream/merger/pkg/merger/observability"
	"github.com/invoicestream/merger/pkg/merger/record"
	"github.com/invoicestream/merger/pkg/merger/store"
)

// correlateCommand resolves the owning client for a command and creates
// the invoice shell keyed by command id, or dead-letters the command
// after the retry budget is exhausted.
func (e *Engine) correlateCommand(ctx context.Context, cmd record.Command) {
	ctx, span := e.spans.StartCorrelationSpan(ctx, record.TopicCommand, cmd.ID)
	start := time.Now()

	err := e.doCorrelateCommand(ctx, cmd)

	e.metrics.RecordCorrelation(ctx, record.TopicCommand, time.Since(start), err)
	e.spans.EndSpanWithError(span, err)
}

func (e *Engine) doCorrelateCommand(ctx context.Context, cmd record.Command) error {
	// Re-delivery of an already-correlated command is a no-op; the
	// client record was consumed the first time around.
	if e.store.HasInvoice(cmd.ID) {
		if e.logger != nil {
			e.logger.Debug("duplicate command dropped", "command_id", cmd.ID)
		}
		return nil
	}

	res := merrors.WithRetryContext(ctx, e.jobRetry(record.TopicCommand, cmd.ID),
		func(context.Context) (record.Client, error) {
			if client, ok := e.store.TakeClient(cmd.ClientID); ok {
				return client, nil
			}
			return record.Client{}, &merrors.NotFoundError{Kind: "client", Key: cmd.ClientID}
		})
	if res.Err != nil {
		e.deadLetterCommand(ctx, cmd)
		return res.Err
	}
	client := res.Value

	created := e.store.CreateInvoiceIfAbsent(cmd.ID, func() *store.Invoice {
		return store.NewInvoice(cmd, client)
	})
	if !created {
		// Lost a race with a duplicate delivery that correlated first.
		// Hand the claimed client back so it stays available.
		e.store.UpsertClient(client)
		if e.logger != nil {
			e.logger.Debug("invoice already exists, client returned",
				"command_id", cmd.ID, "client_id", client.ID)
		}
		return nil
	}

	if e.logger != nil {
		e.logger.Info("invoice shell created",
			"command_id", cmd.ID,
			"client_id", client.ID,
			"expected_items", cmd.Size)
	}
	return nil
}

// jobRetry returns the engine's retry policy with the observation hook
// bound to this job's topic and key.
func (e *Engine) jobRetry(topic string, key int32) merrors.RetryConfig {
	cfg := e.retry
	cfg.Notify = func(err error, next time.Duration) {
		observability.LogRetry(e.logger, topic, key, next, err)
		e.metrics.RecordRetry(context.Background(), topic)
	}
	return cfg
}
