package command

import "errors"

// Domain-specific errors for command dispatch.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrUnknownDevice is returned when a command targets a device with no
	// registered session. Surfaced synchronously to the caller.
	ErrUnknownDevice = errors.New("command: unknown device")

	// ErrPublishFailed is returned when the underlying publish errors; the
	// command transitions straight to failed and is not tracked.
	ErrPublishFailed = errors.New("command: publish failed")
)
