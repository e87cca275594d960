package wire

import "errors"

// Domain-specific errors for wire codec operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrMalformedPayload is returned when an inbound payload is not a JSON
	// object. Callers must log and drop the message, never crash ingestion.
	ErrMalformedPayload = errors.New("wire: malformed payload")

	// ErrUnexpectedTopic is returned when a topic does not follow the
	// device/<serial>/<channel> convention.
	ErrUnexpectedTopic = errors.New("wire: unexpected topic")

	// ErrInvalidCommand is returned when a command structure is incomplete.
	ErrInvalidCommand = errors.New("wire: invalid command")
)
