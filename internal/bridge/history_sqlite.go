package bridge

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/printwatch/printwatch-core/internal/state"
)

const (
	defaultSnapshotLimit = 50
	maxSnapshotLimit     = 200
)

// SQLiteSnapshotRepository implements SnapshotRepository using SQLite.
//
// Trees and changed-path lists are stored as JSON in the printer_snapshots
// table. Writes happen off the ingest path, so SQLite's single-writer model
// is not a throughput concern here.
type SQLiteSnapshotRepository struct {
	db *sql.DB
}

// NewSQLiteSnapshotRepository creates a snapshot repository over an open
// SQLite connection. The printer_snapshots table must already exist; run
// migrations before constructing the repository.
func NewSQLiteSnapshotRepository(db *sql.DB) *SQLiteSnapshotRepository {
	return &SQLiteSnapshotRepository{db: db}
}

// RecordSnapshot inserts a new snapshot row for a printer.
func (r *SQLiteSnapshotRepository) RecordSnapshot(ctx context.Context, deviceID string, snapshot state.Tree, changedPaths []string, trigger string) error {
	if deviceID == "" {
		return fmt.Errorf("device id is required")
	}
	if trigger == "" {
		trigger = TriggerReport
	}
	if snapshot == nil {
		snapshot = state.Tree{}
	}

	snapshotJSON, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshalling snapshot: %w", err)
	}
	pathsJSON, err := json.Marshal(changedPaths)
	if err != nil {
		return fmt.Errorf("marshalling changed paths: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO printer_snapshots (device_id, snapshot, changed_paths, trigger_source) VALUES (?, ?, ?, ?)",
		deviceID,
		string(snapshotJSON),
		string(pathsJSON),
		trigger,
	)
	if err != nil {
		return fmt.Errorf("inserting snapshot: %w", err)
	}

	return nil
}

// Snapshots returns recent snapshot rows for a printer, newest first.
// The limit defaults to 50 and is clamped to 200.
func (r *SQLiteSnapshotRepository) Snapshots(ctx context.Context, deviceID string, limit int) ([]SnapshotEntry, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device id is required")
	}
	if limit <= 0 {
		limit = defaultSnapshotLimit
	}
	if limit > maxSnapshotLimit {
		limit = maxSnapshotLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, device_id, snapshot, changed_paths, trigger_source, created_at
		 FROM printer_snapshots
		 WHERE device_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		deviceID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying snapshots: %w", err)
	}
	defer rows.Close()

	entries := make([]SnapshotEntry, 0, limit)
	for rows.Next() {
		var entry SnapshotEntry
		var snapshotJSON string
		var pathsJSON string
		var createdAt string

		if err := rows.Scan(&entry.ID, &entry.DeviceID, &snapshotJSON, &pathsJSON, &entry.Trigger, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}

		if err := json.Unmarshal([]byte(snapshotJSON), &entry.Snapshot); err != nil {
			return nil, fmt.Errorf("unmarshalling snapshot: %w", err)
		}
		if err := json.Unmarshal([]byte(pathsJSON), &entry.ChangedPaths); err != nil {
			return nil, fmt.Errorf("unmarshalling changed paths: %w", err)
		}

		timestamp, err := parseSnapshotTimestamp(createdAt)
		if err != nil {
			return nil, err
		}
		entry.CreatedAt = timestamp

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snapshots: %w", err)
	}

	return entries, nil
}

// PruneSnapshots deletes snapshot rows older than the given retention window
// and returns the number of rows removed.
func (r *SQLiteSnapshotRepository) PruneSnapshots(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM printer_snapshots WHERE created_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting snapshots: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}

	return rowsAffected, nil
}

// parseSnapshotTimestamp parses a timestamp stored by SQLite, which may or
// may not carry sub-second precision depending on how the row was written.
func parseSnapshotTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("created_at is empty")
	}

	timestamp, err := time.Parse(time.RFC3339, value)
	if err == nil {
		return timestamp, nil
	}

	fallback, fallbackErr := time.Parse("2006-01-02 15:04:05", value)
	if fallbackErr == nil {
		return fallback.UTC(), nil
	}

	return time.Time{}, fmt.Errorf("parsing created_at: %w", err)
}
