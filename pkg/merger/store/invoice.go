package store

import (
	"sort"

	"github.com/invoicestream/merger/pkg/merger/record"
)

// State is the lifecycle phase of an in-progress invoice.
// Transitions are monotone: there is no way back out of a terminal state.
type State int

const (
	// StateAwaitingProducts means the shell exists and line items are
	// still being collected.
	StateAwaitingProducts State = iota

	// StateComplete means the expected item count has been reached and
	// the invoice has been handed to the emitter.
	StateComplete

	// StateEmitted means the invoice was published to the output stream.
	StateEmitted

	// StateDeadLettered means the invoice was routed to the dead-letter
	// stream and will never complete.
	StateDeadLettered
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateAwaitingProducts:
		return "awaiting_products"
	case StateComplete:
		return "complete"
	case StateEmitted:
		return "emitted"
	case StateDeadLettered:
		return "dead_lettered"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateEmitted || s == StateDeadLettered
}

// Invoice is the aggregate under construction for one command id.
// It is only ever touched inside Store critical sections; callers never
// hold a reference that outlives the mutation callback.
type Invoice struct {
	ID     int32
	Date   string
	Client record.Client

	// items is a set keyed by product id, making aggregation idempotent
	// under at-least-once delivery.
	items map[int32]record.Product

	total float64
	size  int32
	state State
}

// NewInvoice creates an invoice shell awaiting its line items.
func NewInvoice(cmd record.Command, client record.Client) *Invoice {
	return &Invoice{
		ID:     cmd.ID,
		Date:   cmd.Date,
		Client: client,
		items:  make(map[int32]record.Product, cmd.Size),
		size:   cmd.Size,
		state:  StateAwaitingProducts,
	}
}

// AddProduct adds a line item, keyed by product id. Re-delivery of the
// same product is a no-op, so the running total and item count are
// insensitive to duplicates. Returns true if the item was newly added.
func (inv *Invoice) AddProduct(p record.Product) bool {
	if _, ok := inv.items[p.ID]; ok {
		return false
	}
	inv.items[p.ID] = p
	inv.total += p.Price
	return true
}

// ItemCount returns the number of distinct line items collected so far.
func (inv *Invoice) ItemCount() int {
	return len(inv.items)
}

// ExpectedCount returns the item count promised by the command.
// Immutable after creation.
func (inv *Invoice) ExpectedCount() int32 {
	return inv.size
}

// Total returns the running total price.
func (inv *Invoice) Total() float64 {
	return inv.total
}

// State returns the current lifecycle phase.
func (inv *Invoice) State() State {
	return inv.state
}

// Ready reports whether the expected item count has been reached while
// the invoice is still collecting. Excess items never re-arm completion.
func (inv *Invoice) Ready() bool {
	return inv.state == StateAwaitingProducts && len(inv.items) >= int(inv.size)
}

// MarkComplete transitions AwaitingProducts -> Complete.
// Returns false if the invoice is not in the collecting phase.
func (inv *Invoice) MarkComplete() bool {
	if inv.state != StateAwaitingProducts {
		return false
	}
	inv.state = StateComplete
	return true
}

// MarkEmitted transitions Complete -> Emitted.
func (inv *Invoice) MarkEmitted() bool {
	if inv.state != StateComplete {
		return false
	}
	inv.state = StateEmitted
	return true
}

// MarkDeadLettered transitions any non-terminal state -> DeadLettered.
func (inv *Invoice) MarkDeadLettered() bool {
	if inv.state.Terminal() {
		return false
	}
	inv.state = StateDeadLettered
	return true
}

// Snapshot materializes the wire-level invoice. Products are ordered by
// id so the output is deterministic regardless of arrival order.
func (inv *Invoice) Snapshot() record.Invoice {
	products := make([]record.Product, 0, len(inv.items))
	for _, p := range inv.items {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })

	return record.Invoice{
		ID:         inv.ID,
		Date:       inv.Date,
		Client:     inv.Client,
		Products:   products,
		TotalPrice: inv.total,
		Size:       inv.size,
	}
}
