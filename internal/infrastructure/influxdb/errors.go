package influxdb

import "errors"

// Sentinel errors for telemetry client operations, checkable with
// errors.Is(). Write failures do not surface here: writes are batched and
// asynchronous, so they arrive through the SetOnError callback instead.
var (
	// ErrNotConnected indicates the client has no established connection.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed indicates the initial ping or health probe failed.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrDisabled indicates telemetry is switched off in configuration.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
