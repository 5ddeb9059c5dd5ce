package merger

import (
	"context"
	"time"

	merrors "github.com/invoicestream/merger/pkg/merger/errors"
	"github.com/invoicestream/merger/pkg/merger/record"
	"github.com/invoicestream/merger/pkg/merger/store"
)

// aggregateProduct attaches a line item to its invoice, detects
// completion, or dead-letters the product after the retry budget is
// exhausted.
func (e *Engine) aggregateProduct(ctx context.Context, product record.Product) {
	ctx, span := e.spans.StartCorrelationSpan(ctx, record.TopicProduct, product.ID)
	start := time.Now()

	err := e.doAggregateProduct(ctx, product)

	e.metrics.RecordCorrelation(ctx, record.TopicProduct, time.Since(start), err)
	e.spans.EndSpanWithError(span, err)
}

func (e *Engine) doAggregateProduct(ctx context.Context, product record.Product) error {
	// completed is set inside the store's critical section at the moment
	// the expected item count is first reached. The mutation callback
	// removes the invoice in the same critical section, so exactly one
	// job ever observes a non-nil completed, even under concurrent
	// delivery of the final items.
	var completed *store.Invoice

	res := merrors.WithRetryContext(ctx, e.jobRetry(record.TopicProduct, product.ID),
		func(context.Context) (struct{}, error) {
			found := e.store.MutateInvoice(product.CommandID, func(inv *store.Invoice) bool {
				inv.AddProduct(product)
				if inv.Ready() && inv.MarkComplete() {
					completed = inv
					return true
				}
				return false
			})
			if !found {
				return struct{}{}, &merrors.NotFoundError{Kind: "invoice", Key: product.CommandID}
			}
			return struct{}{}, nil
		})
	if res.Err != nil {
		e.deadLetterProduct(ctx, product)
		return res.Err
	}

	if completed != nil {
		// Removed from the store above; this job owns it exclusively.
		return e.emitInvoice(ctx, completed)
	}
	return nil
}
