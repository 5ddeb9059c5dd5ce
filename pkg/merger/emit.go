package merger

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/invoicestream/merger/pkg/merger/bus"
	merrors "github.com/invoicestream/merger/pkg/merger/errors"
	"github.com/invoicestream/merger/pkg/merger/observability"
	"github.com/invoicestream/merger/pkg/merger/record"
	"github.com/invoicestream/merger/pkg/merger/store"
)

// emitInvoice publishes a completed invoice to the output stream, keyed
// by invoice id. The caller must own the aggregate exclusively (it has
// already been removed from the store).
func (e *Engine) emitInvoice(ctx context.Context, inv *store.Invoice) error {
	inv.MarkEmitted()
	snapshot := inv.Snapshot()

	data, err := e.codecs.Invoice.Encode(snapshot)
	if err != nil {
		// Encoding our own aggregate should never fail; treat like a
		// malformed record and drop.
		observability.LogDecodeError(e.logger, record.TopicInvoice, err)
		return err
	}

	if err := e.publish(ctx, bus.Message{
		Topic: record.TopicInvoice,
		Key:   strconv.Itoa(int(snapshot.ID)),
		Value: data,
	}); err != nil {
		return err
	}

	observability.LogInvoiceEmitted(e.logger, snapshot.ID, len(snapshot.Products), snapshot.TotalPrice)
	e.metrics.RecordEmitted(ctx, len(snapshot.Products))
	return nil
}

// deadLetterCommand routes a command whose client never resolved to the
// dead-letter stream.
func (e *Engine) deadLetterCommand(ctx context.Context, cmd record.Command) {
	data, err := e.codecs.Command.Encode(cmd)
	if err != nil {
		observability.LogDecodeError(e.logger, record.TopicCommand, err)
		return
	}
	e.deadLetter(ctx, record.DeadLetter{
		ID:             uuid.NewString(),
		Reason:         record.ReasonClientNotFound,
		CorrelationKey: cmd.ClientID,
		RecordType:     record.TopicCommand,
		Record:         data,
		FailedAt:       time.Now().UTC(),
	}, cmd.ID)
}

// deadLetterProduct routes a product whose invoice never appeared to the
// dead-letter stream.
func (e *Engine) deadLetterProduct(ctx context.Context, product record.Product) {
	data, err := e.codecs.Product.Encode(product)
	if err != nil {
		observability.LogDecodeError(e.logger, record.TopicProduct, err)
		return
	}
	e.deadLetter(ctx, record.DeadLetter{
		ID:             uuid.NewString(),
		Reason:         record.ReasonInvoiceNotFound,
		CorrelationKey: product.CommandID,
		RecordType:     record.TopicProduct,
		Record:         data,
		FailedAt:       time.Now().UTC(),
	}, product.ID)
}

// deadLetter publishes an envelope keyed by the failing record's natural
// id, and archives it when an archive is configured.
func (e *Engine) deadLetter(ctx context.Context, dl record.DeadLetter, naturalID int32) {
	observability.LogDeadLetter(e.logger, dl.RecordType, naturalID, dl.Reason)
	e.metrics.RecordDeadLetter(ctx, dl.RecordType, dl.Reason)

	if e.archive != nil {
		if err := e.archive.Save(dl); err != nil && e.logger != nil {
			e.logger.Error("dead-letter archive write failed",
				"id", dl.ID, "error", err.Error())
		}
	}

	data, err := e.codecs.DeadLetter.Encode(dl)
	if err != nil {
		observability.LogDecodeError(e.logger, record.TopicDeadLetter, err)
		return
	}
	_ = e.publish(ctx, bus.Message{
		Topic: record.TopicDeadLetter,
		Key:   strconv.Itoa(int(naturalID)),
		Value: data,
	})
}

// publish writes to an output stream, retrying transient failures under
// the engine's backoff policy. After the final attempt the message is
// logged as lost.
func (e *Engine) publish(ctx context.Context, msg bus.Message) error {
	cfg := e.retry
	cfg.Notify = func(err error, next time.Duration) {
		if e.logger != nil {
			e.logger.Debug("publish retry scheduled",
				"topic", msg.Topic, "key", msg.Key,
				"backoff", next, "error", err.Error())
		}
	}

	res := merrors.WithRetryContext(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		if err := e.pub.Publish(ctx, msg); err != nil {
			return struct{}{}, &merrors.PublishError{Topic: msg.Topic, Err: err}
		}
		return struct{}{}, nil
	})
	if res.Err != nil {
		observability.LogPublishLost(e.logger, msg.Topic, msg.Key, res.Err)
		return res.Err
	}
	return nil
}
