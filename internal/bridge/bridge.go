package bridge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/printwatch/printwatch-core/internal/command"
	"github.com/printwatch/printwatch-core/internal/session"
	"github.com/printwatch/printwatch-core/internal/state"
	"github.com/printwatch/printwatch-core/internal/wire"
)

// Bridge defaults.
const (
	defaultQueueCapacity  = 32
	defaultCommandTimeout = 30 * time.Second
	persistTimeout        = 5 * time.Second
)

// Logger defines the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// transport is the per-device connection the bridge drives. Satisfied by
// *session.Session; narrowed so tests can substitute a fake through the
// session factory.
type transport interface {
	Start() error
	Stop()
	Status() session.Status
	Subscribe(topic string) error
	Publish(topic string, payload []byte) error
}

var _ transport = (*session.Session)(nil)

// Options configures a Bridge.
type Options struct {
	// Session is the broker and timing template shared by every device
	// session. DeviceID is filled in per registration.
	Session session.Config

	// Credentials supplies broker passwords for every session. Required.
	Credentials session.CredentialProvider

	// CommandTimeout is the acknowledgement deadline for SendCommand.
	CommandTimeout time.Duration

	// QueueCapacity bounds each device's update queue.
	QueueCapacity int

	// OnUpdate receives every state change, in arrival order per device.
	// Called from a per-device worker goroutine. Optional.
	OnUpdate func(Update)

	// DeliverUnchanged forwards reports to OnUpdate even when the merge
	// produced no change, such as periodic heartbeats. ChangedPaths is
	// empty for those updates. Default is change-only delivery.
	DeliverUnchanged bool

	// OnCommandResult receives terminal command outcomes. Optional.
	OnCommandResult func(command.Pending)

	// OnStatus receives session lifecycle transitions per device. Optional.
	OnStatus func(deviceID string, status session.Status)

	// History persists full-state snapshots on every change. Optional.
	History SnapshotRepository

	// Telemetry receives changed numeric readings. Optional.
	Telemetry TelemetryWriter

	// Logger is an optional structured logger.
	Logger Logger
}

// DeviceState is a point-in-time view of one printer.
//
// Fields is a deep copy; callers own it and may mutate it freely.
type DeviceState struct {
	DeviceID         string
	Fields           state.Tree
	LastUpdate       time.Time
	ConnectionStatus session.Status
}

// Stats summarises bridge activity since construction.
type Stats struct {
	Devices         int
	PendingCommands int
	ReportsMerged   uint64
	DecodeErrors    uint64
	DroppedUpdates  uint64
	CommandsSent    uint64
}

// Bridge owns the device fleet: one broker session, one authoritative state
// tree, and one bounded update queue per registered printer.
type Bridge struct {
	sessionCfg     session.Config
	credentials    session.CredentialProvider
	commandTimeout time.Duration
	queueCapacity  int
	onUpdate       func(Update)
	deliverAll     bool
	onStatus       func(deviceID string, status session.Status)
	history        SnapshotRepository
	telemetry      TelemetryWriter
	logger         Logger
	topics         wire.Topics
	dispatcher     *command.Dispatcher

	// newSession builds the transport for one device. Tests replace it
	// before registering devices.
	newSession func(session.Options) (transport, error)

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once

	mu      sync.RWMutex
	devices map[string]*deviceEntry
	closed  bool

	reportsMerged  atomic.Uint64
	decodeErrors   atomic.Uint64
	droppedUpdates atomic.Uint64
	commandsSent   atomic.Uint64
}

// deviceEntry is the bridge's per-printer record.
type deviceEntry struct {
	id        string
	transport transport
	queue     *updateQueue

	mu         sync.RWMutex
	state      state.Tree
	lastUpdate time.Time
}

// New creates a bridge and starts its command sweep loop. Callers must
// Close it to release sessions and workers.
func New(opts Options) (*Bridge, error) {
	if opts.Credentials == nil {
		return nil, fmt.Errorf("credential provider is required")
	}
	if opts.Session.BrokerHost == "" {
		return nil, fmt.Errorf("broker host is required")
	}
	if opts.Session.AccountID == "" {
		return nil, fmt.Errorf("account id is required")
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = defaultCommandTimeout
	}
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = defaultQueueCapacity
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		sessionCfg:     opts.Session,
		credentials:    opts.Credentials,
		commandTimeout: opts.CommandTimeout,
		queueCapacity:  opts.QueueCapacity,
		onUpdate:       opts.OnUpdate,
		deliverAll:     opts.DeliverUnchanged,
		onStatus:       opts.OnStatus,
		history:        opts.History,
		telemetry:      opts.Telemetry,
		logger:         logger,
		ctx:            ctx,
		cancel:         cancel,
		devices:        make(map[string]*deviceEntry),
	}
	b.newSession = func(sessionOpts session.Options) (transport, error) {
		return session.New(sessionOpts)
	}

	onResult := opts.OnCommandResult
	dispatcher, err := command.New(command.Options{
		Publisher:      b,
		OnResult:       onResult,
		DefaultTimeout: opts.CommandTimeout,
		Logger:         logger,
	})
	if err != nil {
		cancel()
		return nil, err
	}
	b.dispatcher = dispatcher

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.dispatcher.Run(b.ctx)
	}()

	return b, nil
}

// RegisterDevice adds a printer to the fleet and starts its broker session.
// The session connects and resynchronises in the background; registration
// returns immediately.
func (b *Bridge) RegisterDevice(deviceID string) error {
	if !validDeviceID(deviceID) {
		return fmt.Errorf("%w: %q", ErrInvalidDevice, deviceID)
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	if _, exists := b.devices[deviceID]; exists {
		b.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDeviceExists, deviceID)
	}

	entry := &deviceEntry{
		id:    deviceID,
		queue: newUpdateQueue(b.queueCapacity, &b.droppedUpdates),
	}

	cfg := b.sessionCfg
	cfg.DeviceID = deviceID
	sess, err := b.newSession(session.Options{
		Config:      cfg,
		Credentials: b.credentials,
		Handler:     b.ingest(entry),
		OnStatus:    b.watchStatus(deviceID),
		Logger:      b.logger,
	})
	if err != nil {
		b.mu.Unlock()
		return fmt.Errorf("creating session for %s: %w", deviceID, err)
	}
	entry.transport = sess

	// Track the subscription before the session starts so it is applied
	// on the first connect and every reconnect.
	if err := sess.Subscribe(b.topics.Report(deviceID)); err != nil {
		b.mu.Unlock()
		return fmt.Errorf("subscribing for %s: %w", deviceID, err)
	}

	b.devices[deviceID] = entry
	b.wg.Add(1)
	go b.consume(entry)
	b.mu.Unlock()

	if err := sess.Start(); err != nil {
		b.removeDevice(deviceID)
		return fmt.Errorf("starting session for %s: %w", deviceID, err)
	}

	b.logger.Info("device registered", "device_id", deviceID)
	return nil
}

// UnregisterDevice removes a printer, stops its session, and fails its
// pending commands. The last merged state is discarded.
func (b *Bridge) UnregisterDevice(deviceID string) error {
	entry := b.removeDevice(deviceID)
	if entry == nil {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}
	b.logger.Info("device unregistered", "device_id", deviceID)
	return nil
}

// removeDevice detaches and tears down one device entry. Returns nil when
// the device is not registered.
func (b *Bridge) removeDevice(deviceID string) *deviceEntry {
	b.mu.Lock()
	entry, ok := b.devices[deviceID]
	if ok {
		delete(b.devices, deviceID)
	}
	b.mu.Unlock()
	if !ok {
		return nil
	}

	// Stop blocks until the session's callbacks have drained, so no push
	// can race the queue close below.
	entry.transport.Stop()
	entry.queue.close()
	b.dispatcher.FailDevice(deviceID)
	return entry
}

// SendCommand submits a control command to a printer and returns its
// correlation id. The command is acknowledged, timed out, or failed through
// the OnCommandResult callback.
func (b *Bridge) SendCommand(deviceID string, cmd wire.Command) (string, error) {
	b.mu.RLock()
	closed := b.closed
	_, ok := b.devices[deviceID]
	b.mu.RUnlock()
	if closed {
		return "", ErrClosed
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}

	id, err := b.dispatcher.Submit(deviceID, cmd, b.commandTimeout)
	if err != nil {
		if errors.Is(err, command.ErrUnknownDevice) {
			return "", fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
		}
		return "", err
	}
	b.commandsSent.Add(1)
	return id, nil
}

// PublishCommand routes an encoded command to the device's session. It
// implements the dispatcher's publisher contract.
func (b *Bridge) PublishCommand(deviceID, topic string, payload []byte) error {
	b.mu.RLock()
	entry, ok := b.devices[deviceID]
	b.mu.RUnlock()
	if !ok {
		return command.ErrUnknownDevice
	}
	return entry.transport.Publish(topic, payload)
}

// Snapshot returns a deep-copied view of a printer's current state.
func (b *Bridge) Snapshot(deviceID string) (DeviceState, error) {
	b.mu.RLock()
	entry, ok := b.devices[deviceID]
	b.mu.RUnlock()
	if !ok {
		return DeviceState{}, fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}

	entry.mu.RLock()
	fields := state.DeepCopy(entry.state)
	lastUpdate := entry.lastUpdate
	entry.mu.RUnlock()

	return DeviceState{
		DeviceID:         deviceID,
		Fields:           fields,
		LastUpdate:       lastUpdate,
		ConnectionStatus: entry.transport.Status(),
	}, nil
}

// ConnectionStatus returns the session lifecycle state for a printer.
func (b *Bridge) ConnectionStatus(deviceID string) (session.Status, error) {
	b.mu.RLock()
	entry, ok := b.devices[deviceID]
	b.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}
	return entry.transport.Status(), nil
}

// Devices returns the registered printer serials, sorted.
func (b *Bridge) Devices() []string {
	b.mu.RLock()
	ids := make([]string, 0, len(b.devices))
	for id := range b.devices {
		ids = append(ids, id)
	}
	b.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// History returns recent persisted snapshots for a printer, newest first.
func (b *Bridge) History(ctx context.Context, deviceID string, limit int) ([]SnapshotEntry, error) {
	if b.history == nil {
		return nil, ErrHistoryDisabled
	}
	return b.history.Snapshots(ctx, deviceID, limit)
}

// Stats returns activity counters since construction.
func (b *Bridge) Stats() Stats {
	b.mu.RLock()
	devices := len(b.devices)
	b.mu.RUnlock()
	return Stats{
		Devices:         devices,
		PendingCommands: b.dispatcher.PendingCount(),
		ReportsMerged:   b.reportsMerged.Load(),
		DecodeErrors:    b.decodeErrors.Load(),
		DroppedUpdates:  b.droppedUpdates.Load(),
		CommandsSent:    b.commandsSent.Load(),
	}
}

// Close stops every session, fails all pending commands, and waits for the
// workers to drain. Idempotent.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		entries := make([]*deviceEntry, 0, len(b.devices))
		for _, entry := range b.devices {
			entries = append(entries, entry)
		}
		b.devices = make(map[string]*deviceEntry)
		b.mu.Unlock()

		for _, entry := range entries {
			entry.transport.Stop()
			entry.queue.close()
		}
		b.dispatcher.FailAll()
		b.cancel()
		b.wg.Wait()
		b.logger.Info("bridge closed")
	})
}

// ingest builds the inbound message handler for one device. Decode, merge,
// correlate, then hand off to the device's queue. Runs on the session's
// receive path, so everything slow is deferred to the worker.
func (b *Bridge) ingest(entry *deviceEntry) session.MessageHandler {
	return func(topic string, payload []byte) error {
		deviceID, delta, err := wire.Decode(topic, payload)
		if err != nil {
			b.decodeErrors.Add(1)
			return err
		}
		if deviceID != entry.id {
			b.decodeErrors.Add(1)
			return fmt.Errorf("%w: report for %s on session %s", wire.ErrUnexpectedTopic, deviceID, entry.id)
		}

		entry.mu.Lock()
		result := state.Merge(entry.state, delta)
		entry.state = result.State
		entry.lastUpdate = time.Now().UTC()
		entry.mu.Unlock()
		b.reportsMerged.Add(1)

		b.dispatcher.HandleReport(deviceID, delta)

		if len(result.Conflicts) > 0 {
			b.logger.Warn("report reshaped state",
				"device_id", deviceID,
				"paths", result.Conflicts,
			)
		}
		if len(result.Changed) > 0 || b.deliverAll {
			entry.queue.push(Update{
				DeviceID:     deviceID,
				State:        state.DeepCopy(result.State),
				ChangedPaths: result.Changed,
			})
		}
		return nil
	}
}

// watchStatus reacts to session lifecycle transitions for one device. A
// fresh connection triggers a full-state resync request, since reports
// published while the session was down are gone for good.
func (b *Bridge) watchStatus(deviceID string) func(session.Status) {
	return func(status session.Status) {
		b.logger.Debug("session status changed",
			"device_id", deviceID,
			"status", string(status),
		)
		if b.onStatus != nil {
			b.onStatus(deviceID, status)
		}
		if status != session.StatusConnected {
			return
		}
		if _, err := b.dispatcher.Submit(deviceID, wire.PushAll(), b.commandTimeout); err != nil {
			b.logger.Warn("resync request failed",
				"device_id", deviceID,
				"error", err,
			)
		}
	}
}

// consume drains one device's update queue, delivering each change to the
// snapshot repository, the telemetry writer, and the update callback.
func (b *Bridge) consume(entry *deviceEntry) {
	defer b.wg.Done()
	for update := range entry.queue.ch {
		b.deliver(update)
	}
}

func (b *Bridge) deliver(update Update) {
	if b.history != nil && len(update.ChangedPaths) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		if err := b.history.RecordSnapshot(ctx, update.DeviceID, update.State, update.ChangedPaths, TriggerReport); err != nil {
			b.logger.Error("recording snapshot",
				"device_id", update.DeviceID,
				"error", err,
			)
		}
		cancel()
	}
	if b.telemetry != nil {
		writeTelemetry(b.telemetry, update, time.Now().UTC())
	}
	if b.onUpdate != nil {
		b.onUpdate(update)
	}
}

// validDeviceID rejects serials that would corrupt topic routing.
func validDeviceID(deviceID string) bool {
	if deviceID == "" {
		return false
	}
	return !strings.ContainsAny(deviceID, "/+#\x00 \t\r\n")
}
