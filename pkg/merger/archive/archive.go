// Package archive provides persistent storage for dead-lettered records so
// they can be reviewed and replayed offline after the process exits.
package archive

import (
	"errors"

	"github.com/invoicestream/merger/pkg/merger/record"
)

// ErrStoreClosed is returned when operating on a closed store.
var ErrStoreClosed = errors.New("archive store is closed")

// ErrNotFound is returned when an entry doesn't exist.
var ErrNotFound = errors.New("dead letter not found")

// Store persists dead-letter envelopes.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save stores an envelope. Overwrites if the envelope id already exists.
	Save(dl record.DeadLetter) error

	// Get retrieves an envelope by id.
	// Returns ErrNotFound if it doesn't exist.
	Get(id string) (record.DeadLetter, error)

	// List returns up to limit envelopes, newest first.
	// limit <= 0 means no limit.
	List(limit int) ([]record.DeadLetter, error)

	// Delete removes an envelope. Returns nil if it doesn't exist.
	Delete(id string) error

	// Count returns the number of stored envelopes.
	Count() (int, error)

	// Close releases any resources (connections, files).
	Close() error
}
