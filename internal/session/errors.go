package session

import "errors"

// Domain-specific errors for session operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrAuthRejected is returned when the broker refuses the credential
	// pair. Retrying without a refreshed token will not succeed.
	ErrAuthRejected = errors.New("session: authentication rejected")

	// ErrConnectTimeout is returned when a connect attempt does not complete
	// within the configured timeout.
	ErrConnectTimeout = errors.New("session: connect timed out")

	// ErrConnectFailed is returned for network-level connect failures.
	ErrConnectFailed = errors.New("session: connect failed")

	// ErrNotConnected is returned when attempting operations that require an
	// established connection.
	ErrNotConnected = errors.New("session: not connected")

	// ErrPublishFailed is returned when a publish operation fails or times out.
	ErrPublishFailed = errors.New("session: publish failed")

	// ErrSubscribeFailed is returned when a subscribe operation fails. The
	// subscription stays tracked and is retried on the next reconnect.
	ErrSubscribeFailed = errors.New("session: subscribe failed")

	// ErrInvalidTopic is returned when an empty topic is provided.
	ErrInvalidTopic = errors.New("session: topic cannot be empty")

	// ErrClosed is returned when using a session after Stop().
	ErrClosed = errors.New("session: closed")
)
