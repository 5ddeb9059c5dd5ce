package errors

import "fmt"

// NotFoundError indicates a correlation miss: the record needed to make
// progress has not arrived yet.
type NotFoundError struct {
	Kind string // "client" or "invoice"
	Key  int32
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.Key)
}

// DecodeError indicates a malformed record that can never become valid.
type DecodeError struct {
	Topic string
	Err   error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s record: %v", e.Topic, e.Err)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// PublishError indicates a failure writing to an output stream.
type PublishError struct {
	Topic string
	Err   error
}

// Error implements the error interface.
func (e *PublishError) Error() string {
	return fmt.Sprintf("publish to %s: %v", e.Topic, e.Err)
}

// Unwrap returns the underlying error.
func (e *PublishError) Unwrap() error {
	return e.Err
}
