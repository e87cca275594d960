package bridge

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/printwatch/printwatch-core/internal/state"
)

// setupSnapshotTestDB creates an in-memory SQLite database with the
// printer_snapshots table.
func setupSnapshotTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE printer_snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id TEXT NOT NULL,
			snapshot TEXT NOT NULL,
			changed_paths TEXT NOT NULL DEFAULT '[]',
			trigger_source TEXT NOT NULL DEFAULT 'report',
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;
		CREATE INDEX idx_printer_snapshots_device ON printer_snapshots(device_id, created_at DESC);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// insertSnapshotRow inserts a snapshot row with a specific timestamp.
func insertSnapshotRow(t *testing.T, db *sql.DB, deviceID, snapshotJSON string, createdAt time.Time) {
	t.Helper()

	_, err := db.Exec(
		"INSERT INTO printer_snapshots (device_id, snapshot, changed_paths, trigger_source, created_at) VALUES (?, ?, '[]', 'report', ?)",
		deviceID,
		snapshotJSON,
		createdAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		t.Fatalf("failed to insert snapshot row: %v", err)
	}
}

// TestRecordSnapshot verifies snapshot writes and retrieval.
func TestRecordSnapshot(t *testing.T) {
	db := setupSnapshotTestDB(t)
	repo := NewSQLiteSnapshotRepository(db)
	ctx := context.Background()

	tree := state.Tree{"print": map[string]any{"nozzle_temper": 210.5, "gcode_state": "RUNNING"}}
	paths := []string{"print.gcode_state", "print.nozzle_temper"}
	if err := repo.RecordSnapshot(ctx, "dev-1", tree, paths, TriggerReport); err != nil {
		t.Fatalf("RecordSnapshot() error = %v", err)
	}

	entries, err := repo.Snapshots(ctx, "dev-1", 10)
	if err != nil {
		t.Fatalf("Snapshots() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries length = %d, want 1", len(entries))
	}

	entry := entries[0]
	if entry.DeviceID != "dev-1" {
		t.Errorf("DeviceID = %s, want dev-1", entry.DeviceID)
	}
	if entry.Trigger != TriggerReport {
		t.Errorf("Trigger = %s, want report", entry.Trigger)
	}
	if v, _ := state.Leaf(entry.Snapshot, "print.nozzle_temper"); v != 210.5 {
		t.Errorf("nozzle_temper = %v, want 210.5", v)
	}
	if len(entry.ChangedPaths) != 2 || entry.ChangedPaths[0] != "print.gcode_state" {
		t.Errorf("ChangedPaths = %v, want %v", entry.ChangedPaths, paths)
	}
	if entry.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

// TestRecordSnapshotValidation verifies input validation.
func TestRecordSnapshotValidation(t *testing.T) {
	db := setupSnapshotTestDB(t)
	repo := NewSQLiteSnapshotRepository(db)
	ctx := context.Background()

	if err := repo.RecordSnapshot(ctx, "", state.Tree{}, nil, TriggerReport); err == nil {
		t.Error("RecordSnapshot() accepted empty device id")
	}

	// Nil snapshot and empty trigger fall back to defaults.
	if err := repo.RecordSnapshot(ctx, "dev-1", nil, nil, ""); err != nil {
		t.Fatalf("RecordSnapshot() error = %v", err)
	}
	entries, err := repo.Snapshots(ctx, "dev-1", 10)
	if err != nil {
		t.Fatalf("Snapshots() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Trigger != TriggerReport {
		t.Errorf("entries = %+v, want one report-triggered entry", entries)
	}
}

// TestSnapshotsOrderingAndLimit verifies newest-first ordering and limit clamping.
func TestSnapshotsOrderingAndLimit(t *testing.T) {
	db := setupSnapshotTestDB(t)
	repo := NewSQLiteSnapshotRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	insertSnapshotRow(t, db, "dev-1", `{"print":{"layer_num":1}}`, base)
	insertSnapshotRow(t, db, "dev-1", `{"print":{"layer_num":2}}`, base.Add(time.Minute))
	insertSnapshotRow(t, db, "dev-1", `{"print":{"layer_num":3}}`, base.Add(2*time.Minute))
	insertSnapshotRow(t, db, "dev-2", `{"print":{"layer_num":9}}`, base.Add(3*time.Minute))

	entries, err := repo.Snapshots(ctx, "dev-1", 2)
	if err != nil {
		t.Fatalf("Snapshots() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries length = %d, want 2", len(entries))
	}
	if v, _ := state.Leaf(entries[0].Snapshot, "print.layer_num"); v != 3.0 {
		t.Errorf("first entry layer_num = %v, want 3 (newest first)", v)
	}
	if v, _ := state.Leaf(entries[1].Snapshot, "print.layer_num"); v != 2.0 {
		t.Errorf("second entry layer_num = %v, want 2", v)
	}

	// Unknown device returns an empty, non-nil slice.
	empty, err := repo.Snapshots(ctx, "dev-9", 10)
	if err != nil {
		t.Fatalf("Snapshots() error = %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("entries length = %d, want 0", len(empty))
	}

	if _, err := repo.Snapshots(ctx, "", 10); err == nil {
		t.Error("Snapshots() accepted empty device id")
	}
}

// TestPruneSnapshots verifies retention-based deletion.
func TestPruneSnapshots(t *testing.T) {
	db := setupSnapshotTestDB(t)
	repo := NewSQLiteSnapshotRepository(db)
	ctx := context.Background()

	insertSnapshotRow(t, db, "dev-1", `{}`, time.Now().UTC().Add(-48*time.Hour))
	insertSnapshotRow(t, db, "dev-1", `{}`, time.Now().UTC())

	deleted, err := repo.PruneSnapshots(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("PruneSnapshots() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	if _, err := repo.PruneSnapshots(ctx, 0); err == nil {
		t.Error("PruneSnapshots() accepted non-positive retention")
	}
}
