package command

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/printwatch/printwatch-core/internal/state"
	"github.com/printwatch/printwatch-core/internal/wire"
)

// Dispatcher timing defaults.
const (
	defaultTimeout       = 30 * time.Second
	defaultSweepInterval = 1 * time.Second
)

// Status is the lifecycle state of a tracked command.
type Status string

const (
	StatusPending      Status = "pending"
	StatusAcknowledged Status = "acknowledged"
	StatusTimedOut     Status = "timed_out"
	StatusFailed       Status = "failed"
)

// Pending describes one outstanding command awaiting acknowledgement.
// Instances handed to the result callback are snapshots in a terminal state.
type Pending struct {
	CorrelationID string
	DeviceID      string
	Command       string
	IssuedAt      time.Time
	Deadline      time.Time
	Status        Status
}

// Publisher delivers an encoded command payload toward a device. Implemented
// by the bridge, which routes to the per-device session. Must return
// ErrUnknownDevice when no session exists for the device.
type Publisher interface {
	PublishCommand(deviceID, topic string, payload []byte) error
}

// Logger defines the logging interface used by the dispatcher.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Options configures a Dispatcher.
type Options struct {
	// Publisher routes encoded commands to device sessions. Required.
	Publisher Publisher

	// OnResult is invoked once per command on its terminal transition
	// (acknowledged, timed out, or failed by device teardown). Optional.
	OnResult func(Pending)

	// DefaultTimeout applies when Submit is called with timeout <= 0.
	DefaultTimeout time.Duration

	// SweepInterval is the timeout sweep period used by Run.
	SweepInterval time.Duration

	// Logger is an optional structured logger.
	Logger Logger
}

// Dispatcher assigns correlation ids to outgoing commands and resolves or
// expires them as reports arrive.
//
// Thread Safety: all methods are safe for concurrent use.
type Dispatcher struct {
	publisher      Publisher
	onResult       func(Pending)
	logger         Logger
	defaultTimeout time.Duration
	sweepInterval  time.Duration

	seq atomic.Uint64

	mu      sync.Mutex
	pending map[string]*Pending
}

// New creates a dispatcher. Run the sweep loop with Run() in a goroutine.
func New(opts Options) (*Dispatcher, error) {
	if opts.Publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = defaultTimeout
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = defaultSweepInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Dispatcher{
		publisher:      opts.Publisher,
		onResult:       opts.OnResult,
		logger:         logger,
		defaultTimeout: opts.DefaultTimeout,
		sweepInterval:  opts.SweepInterval,
		pending:        make(map[string]*Pending),
	}, nil
}

// Submit encodes and publishes a command, returning its correlation id.
//
// The command is tracked until a report echoes the id back, the deadline
// passes, or the device is torn down. Submit itself never blocks on the
// network beyond the session's bounded publish handoff.
func (d *Dispatcher) Submit(deviceID string, cmd wire.Command, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = d.defaultTimeout
	}

	id := strconv.FormatUint(d.seq.Add(1), 10)
	topic, payload, err := wire.EncodeCommand(deviceID, cmd, id)
	if err != nil {
		return "", err
	}

	now := time.Now()
	entry := &Pending{
		CorrelationID: id,
		DeviceID:      deviceID,
		Command:       cmd.Name,
		IssuedAt:      now,
		Deadline:      now.Add(timeout),
		Status:        StatusPending,
	}

	// Record before publishing so an acknowledgement racing the publish
	// return cannot be missed.
	d.mu.Lock()
	d.pending[id] = entry
	d.mu.Unlock()

	if pubErr := d.publisher.PublishCommand(deviceID, topic, payload); pubErr != nil {
		d.mu.Lock()
		delete(d.pending, id)
		d.mu.Unlock()
		if errors.Is(pubErr, ErrUnknownDevice) {
			return "", pubErr
		}
		return "", fmt.Errorf("%w: %w", ErrPublishFailed, pubErr)
	}

	d.logger.Debug("command submitted",
		"device_id", deviceID,
		"command", cmd.Name,
		"correlation_id", id,
	)
	return id, nil
}

// HandleReport resolves a pending command when the report for the same
// device echoes its correlation id. Reports without a sequence_id, or with
// one the dispatcher is not tracking, are ignored.
func (d *Dispatcher) HandleReport(deviceID string, delta state.Tree) {
	id, ok := wire.SequenceID(delta)
	if !ok {
		return
	}

	d.mu.Lock()
	entry, tracked := d.pending[id]
	if !tracked || entry.DeviceID != deviceID {
		d.mu.Unlock()
		return
	}
	delete(d.pending, id)
	entry.Status = StatusAcknowledged
	result := *entry
	d.mu.Unlock()

	d.logger.Debug("command acknowledged",
		"device_id", deviceID,
		"correlation_id", id,
	)
	d.notify(result)
}

// SweepExpired transitions overdue commands to timed out and returns them.
// Run calls this on a fixed interval; it is exported for callers that drive
// their own clock.
func (d *Dispatcher) SweepExpired(now time.Time) []Pending {
	d.mu.Lock()
	var expired []Pending
	for id, entry := range d.pending {
		if now.Before(entry.Deadline) {
			continue
		}
		delete(d.pending, id)
		entry.Status = StatusTimedOut
		expired = append(expired, *entry)
	}
	d.mu.Unlock()
	return expired
}

// FailDevice fails every pending command for a device. Called on device
// unregistration and shutdown. Returns the failed commands.
func (d *Dispatcher) FailDevice(deviceID string) []Pending {
	d.mu.Lock()
	var failed []Pending
	for id, entry := range d.pending {
		if entry.DeviceID != deviceID {
			continue
		}
		delete(d.pending, id)
		entry.Status = StatusFailed
		failed = append(failed, *entry)
	}
	d.mu.Unlock()

	for _, result := range failed {
		d.notify(result)
	}
	return failed
}

// FailAll fails every pending command. Called on bridge shutdown.
func (d *Dispatcher) FailAll() {
	d.mu.Lock()
	var failed []Pending
	for id, entry := range d.pending {
		delete(d.pending, id)
		entry.Status = StatusFailed
		failed = append(failed, *entry)
	}
	d.mu.Unlock()

	for _, result := range failed {
		d.notify(result)
	}
}

// PendingCount returns the number of commands awaiting acknowledgement.
func (d *Dispatcher) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Run sweeps for expired commands until the context is cancelled. Timed-out
// commands are reported through the result callback; expiry is non-fatal
// since some command types never echo an acknowledgement.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, result := range d.SweepExpired(now) {
				d.logger.Warn("command timed out",
					"device_id", result.DeviceID,
					"command", result.Command,
					"correlation_id", result.CorrelationID,
				)
				d.notify(result)
			}
		}
	}
}

func (d *Dispatcher) notify(result Pending) {
	if d.onResult != nil {
		d.onResult(result)
	}
}
