// Printwatch Core - Printer Fleet State Bridge
//
// This is the main entry point for the Printwatch Core application.
// Printwatch tracks a fleet of cloud-connected 3D printers:
//   - One broker session per printer with automatic reconnection
//   - Incremental report merging into authoritative state trees
//   - Correlated command dispatch with acknowledgement tracking
//   - Local snapshot history and optional time-series telemetry
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/printwatch/printwatch-core/migrations"

	"github.com/printwatch/printwatch-core/internal/bridge"
	"github.com/printwatch/printwatch-core/internal/command"
	"github.com/printwatch/printwatch-core/internal/infrastructure/config"
	"github.com/printwatch/printwatch-core/internal/infrastructure/database"
	"github.com/printwatch/printwatch-core/internal/infrastructure/influxdb"
	"github.com/printwatch/printwatch-core/internal/infrastructure/logging"
	"github.com/printwatch/printwatch-core/internal/session"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// pruneInterval is how often expired snapshot history is removed.
const pruneInterval = 24 * time.Hour

// statsInterval is how often aggregate bridge counters are reported to
// the telemetry store.
const statsInterval = time.Minute

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	// This is the Go pattern for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Run the application
	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Printwatch Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	snapshots := bridge.NewSQLiteSnapshotRepository(db.DB)

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		// Set up InfluxDB error callback
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Build the fleet bridge
	opts := bridge.Options{
		Session: session.Config{
			BrokerHost:       cfg.Cloud.Host,
			BrokerPort:       cfg.Cloud.Port,
			TLS:              cfg.Cloud.TLS,
			AccountID:        cfg.Fleet.AccountID,
			QoS:              byte(cfg.Cloud.QoS),
			KeepAlive:        cfg.GetKeepAlive(),
			ConnectTimeout:   cfg.GetConnectTimeout(),
			PublishTimeout:   cfg.GetPublishTimeout(),
			ReconnectInitial: cfg.GetReconnectInitial(),
			ReconnectMax:     cfg.GetReconnectMax(),
			ActivityGrace:    cfg.GetActivityGrace(),
		},
		Credentials:    session.Static(cfg.Fleet.AccessToken),
		CommandTimeout: cfg.GetCommandTimeout(),
		QueueCapacity:  cfg.Bridge.QueueCapacity,
		History:        snapshots,
		Logger:         log.With("component", "bridge"),
		OnUpdate: func(u bridge.Update) {
			log.Debug("printer state changed",
				"device_id", u.DeviceID,
				"changed_paths", u.ChangedPaths,
			)
		},
		OnCommandResult: func(p command.Pending) {
			log.Info("command resolved",
				"device_id", p.DeviceID,
				"command", p.Command,
				"correlation_id", p.CorrelationID,
				"status", string(p.Status),
			)
		},
	}
	if influxClient != nil {
		opts.Telemetry = influxClient
		opts.OnStatus = func(deviceID string, status session.Status) {
			influxClient.WriteConnectionEvent(deviceID, string(status))
		}
	}

	fleet, err := bridge.New(opts)
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}
	defer func() {
		log.Info("stopping bridge")
		fleet.Close()
	}()

	// Register every configured printer. Sessions connect in the background.
	for _, serial := range cfg.Fleet.Devices {
		if regErr := fleet.RegisterDevice(serial); regErr != nil {
			return fmt.Errorf("registering printer %s: %w", serial, regErr)
		}
	}
	log.Info("printers registered", "count", len(cfg.Fleet.Devices))

	// Prune old snapshot history periodically
	if retention := cfg.GetSnapshotRetention(); retention > 0 {
		go pruneSnapshots(ctx, snapshots, retention, log)
	}

	// Report aggregate bridge counters to telemetry
	if influxClient != nil {
		go reportStats(ctx, fleet, influxClient)
	}

	// Verify infrastructure is healthy
	if err := healthCheck(ctx, db, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	stats := fleet.Stats()
	log.Info("final bridge stats",
		"reports_merged", stats.ReportsMerged,
		"commands_sent", stats.CommandsSent,
		"decode_errors", stats.DecodeErrors,
		"dropped_updates", stats.DroppedUpdates,
	)

	// Deferred Close() calls will run in reverse order:
	// 1. Bridge (sessions, workers, pending commands)
	// 2. InfluxDB (if enabled)
	// 3. Database

	log.Info("Printwatch Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses PRINTWATCH_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("PRINTWATCH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// pruneSnapshots removes expired snapshot history on a fixed interval.
func pruneSnapshots(ctx context.Context, repo *bridge.SQLiteSnapshotRepository, retention time.Duration, log *logging.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := repo.PruneSnapshots(ctx, retention)
			if err != nil {
				log.Error("pruning snapshots", "error", err)
				continue
			}
			if deleted > 0 {
				log.Info("pruned snapshot history", "rows", deleted)
			}
		}
	}
}

// reportStats writes the bridge's aggregate counters to InfluxDB on a
// fixed interval, as a coarse fleet-health signal alongside the
// per-printer metrics.
func reportStats(ctx context.Context, fleet *bridge.Bridge, client *influxdb.Client) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := fleet.Stats()
			client.WritePoint("bridge_stats", nil, map[string]interface{}{
				"devices":          stats.Devices,
				"pending_commands": stats.PendingCommands,
				"reports_merged":   stats.ReportsMerged,
				"decode_errors":    stats.DecodeErrors,
				"dropped_updates":  stats.DroppedUpdates,
				"commands_sent":    stats.CommandsSent,
			}, time.Now())
		}
	}
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, influxClient *influxdb.Client) error {
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.HealthCheck(checkCtx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(checkCtx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
