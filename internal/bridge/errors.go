package bridge

import "errors"

// Sentinel errors returned by bridge operations. Use errors.Is to match.
var (
	// ErrDeviceExists indicates a registration for an already-registered serial.
	ErrDeviceExists = errors.New("bridge: device already registered")

	// ErrUnknownDevice indicates an operation on an unregistered serial.
	ErrUnknownDevice = errors.New("bridge: unknown device")

	// ErrInvalidDevice indicates a serial that cannot form a valid topic.
	ErrInvalidDevice = errors.New("bridge: invalid device id")

	// ErrClosed indicates an operation on a bridge after Close.
	ErrClosed = errors.New("bridge: closed")

	// ErrHistoryDisabled indicates a history query without a configured repository.
	ErrHistoryDisabled = errors.New("bridge: snapshot history not configured")
)
