// Package record defines the wire-level records exchanged over the message
// bus and the codec boundary used to encode and decode them.
//
// The engine only ever sees these types through a Codec, so the binding to a
// concrete wire format (JSON here, a schema-registry codec in other
// deployments) stays outside the correlation logic.
package record

import (
	"encoding/json"
	"time"
)

// Topic names for the input and output streams.
const (
	TopicClient     = "Client"
	TopicCommand    = "Command"
	TopicProduct    = "Product"
	TopicInvoice    = "Invoice"
	TopicDeadLetter = "DeadLetterQueue"
)

// Client identifies the customer that owns a command.
// Immutable once ingested.
type Client struct {
	ID      int32  `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

// Command is the order header. Size is the number of line items the
// producer promises to deliver; it is fixed at creation and never revised.
type Command struct {
	ID       int32  `json:"id"`
	ClientID int32  `json:"client_id"`
	Date     string `json:"date"` // YYYY-MM-DD
	Size     int32  `json:"size"`
}

// Product is a single line item referencing its owning command.
type Product struct {
	ID        int32   `json:"id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	CommandID int32   `json:"command_id"`
}

// Invoice is the completed aggregate published to the Invoice stream.
type Invoice struct {
	ID         int32     `json:"id"`
	Date       string    `json:"date"`
	Client     Client    `json:"client"`
	Products   []Product `json:"products"`
	TotalPrice float64   `json:"total_price"`
	Size       int32     `json:"size"`
}

// Dead-letter reasons.
const (
	ReasonClientNotFound  = "client-not-found"
	ReasonInvoiceNotFound = "invoice-not-found"
)

// DeadLetter is the terminal envelope published to the dead-letter stream.
// It carries the original failing record, not the partial aggregate.
type DeadLetter struct {
	ID             string          `json:"id"`
	Reason         string          `json:"reason"`
	CorrelationKey int32           `json:"correlation_key"`
	RecordType     string          `json:"record_type"` // topic name of the original record
	Record         json.RawMessage `json:"record"`
	FailedAt       time.Time       `json:"failed_at"`
}
