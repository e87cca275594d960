package bridge

import (
	"context"
	"time"

	"github.com/printwatch/printwatch-core/internal/state"
)

// Snapshot trigger values.
const (
	TriggerReport = "report"
	TriggerManual = "manual"
)

// SnapshotEntry is one persisted full-state snapshot of a printer.
//
// Snapshots are written on every merged report, giving a local audit trail
// of what the fleet looked like even when the time-series sink is down.
type SnapshotEntry struct {
	// ID is the auto-incremented primary key for the snapshot row.
	ID int64 `json:"id"`

	// DeviceID is the printer serial.
	DeviceID string `json:"device_id"`

	// Snapshot is the full merged state tree at the time of the change.
	Snapshot state.Tree `json:"snapshot"`

	// ChangedPaths lists the leaf paths the triggering report touched.
	ChangedPaths []string `json:"changed_paths"`

	// Trigger identifies what caused the snapshot (report, manual).
	Trigger string `json:"trigger"`

	// CreatedAt is the snapshot timestamp (UTC).
	CreatedAt time.Time `json:"created_at"`
}

// SnapshotRepository stores and retrieves printer state snapshots.
//
// Implementations must be thread-safe and use UTC timestamps.
type SnapshotRepository interface {
	// RecordSnapshot persists one state snapshot for a printer.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - deviceID: Printer serial
	//   - snapshot: Full merged state tree to persist
	//   - changedPaths: Leaf paths touched by the triggering report
	//   - trigger: Origin of the snapshot (report, manual)
	//
	// Returns:
	//   - error: nil on success, otherwise the underlying persistence error
	RecordSnapshot(ctx context.Context, deviceID string, snapshot state.Tree, changedPaths []string, trigger string) error

	// Snapshots returns recent snapshots for a printer, newest first.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - deviceID: Printer serial
	//   - limit: Maximum entries to return (implementation may clamp bounds)
	//
	// Returns:
	//   - []SnapshotEntry: Ordered newest-first entries (may be empty)
	//   - error: nil on success, otherwise the underlying query error
	Snapshots(ctx context.Context, deviceID string, limit int) ([]SnapshotEntry, error)
}
