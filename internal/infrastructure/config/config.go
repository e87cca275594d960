package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Printwatch Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Fleet    FleetConfig    `yaml:"fleet"`
	Cloud    CloudConfig    `yaml:"cloud"`
	Bridge   BridgeConfig   `yaml:"bridge"`
	Database DatabaseConfig `yaml:"database"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// FleetConfig identifies the cloud account and the printers to track.
type FleetConfig struct {
	// AccountID is the numeric cloud account identifier. It forms the
	// broker username ("u_<account_id>").
	AccountID string `yaml:"account_id"`

	// AccessToken is the broker password. Prefer setting it through the
	// PRINTWATCH_ACCESS_TOKEN environment variable over the file.
	AccessToken string `yaml:"access_token"`

	// Devices lists the printer serials to register at startup.
	Devices []string `yaml:"devices"`
}

// CloudConfig contains cloud MQTT broker connection settings.
type CloudConfig struct {
	Host           string               `yaml:"host"`
	Port           int                  `yaml:"port"`
	TLS            bool                 `yaml:"tls"`
	QoS            int                  `yaml:"qos"`
	KeepAlive      int                  `yaml:"keepalive"`
	ConnectTimeout int                  `yaml:"connect_timeout"`
	PublishTimeout int                  `yaml:"publish_timeout"`
	Reconnect      CloudReconnectConfig `yaml:"reconnect"`

	// ActivityGrace is how long a session may stay silent (in seconds)
	// before it is recycled. Zero disables the watchdog.
	ActivityGrace int `yaml:"activity_grace"`
}

// CloudReconnectConfig contains reconnection backoff settings (in seconds).
type CloudReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// BridgeConfig contains fleet bridge tuning.
type BridgeConfig struct {
	// CommandTimeout is the command acknowledgement deadline in seconds.
	CommandTimeout int `yaml:"command_timeout"`

	// QueueCapacity bounds each printer's update queue.
	QueueCapacity int `yaml:"queue_capacity"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// SnapshotRetentionDays bounds how long printer snapshots are kept.
	// Zero disables pruning.
	SnapshotRetentionDays int `yaml:"snapshot_retention_days"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains file-based logging settings.
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: PRINTWATCH_SECTION_KEY
// For example: PRINTWATCH_DATABASE_PATH, PRINTWATCH_CLOUD_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Cloud: CloudConfig{
			Host:           "us.mqtt.bambulab.com",
			Port:           8883,
			TLS:            true,
			QoS:            0,
			KeepAlive:      30,
			ConnectTimeout: 15,
			PublishTimeout: 5,
			Reconnect: CloudReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     300,
			},
			ActivityGrace: 300,
		},
		Bridge: BridgeConfig{
			CommandTimeout: 30,
			QueueCapacity:  32,
		},
		Database: DatabaseConfig{
			Path:                  "./data/printwatch.db",
			WALMode:               true,
			BusyTimeout:           5,
			SnapshotRetentionDays: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: PRINTWATCH_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Fleet
	if v := os.Getenv("PRINTWATCH_ACCOUNT_ID"); v != "" {
		cfg.Fleet.AccountID = v
	}
	if v := os.Getenv("PRINTWATCH_ACCESS_TOKEN"); v != "" {
		cfg.Fleet.AccessToken = v
	}

	// Cloud broker
	if v := os.Getenv("PRINTWATCH_CLOUD_HOST"); v != "" {
		cfg.Cloud.Host = v
	}

	// Database
	if v := os.Getenv("PRINTWATCH_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// InfluxDB
	if v := os.Getenv("PRINTWATCH_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("PRINTWATCH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Fleet validation. Credentials are mandatory: every session on the
	// cloud broker authenticates with the account token.
	if c.Fleet.AccountID == "" {
		errs = append(errs, "fleet.account_id is required (set PRINTWATCH_ACCOUNT_ID environment variable)")
	}
	if c.Fleet.AccessToken == "" {
		errs = append(errs, "fleet.access_token is required (set PRINTWATCH_ACCESS_TOKEN environment variable)")
	}

	// Cloud validation
	if c.Cloud.Host == "" {
		errs = append(errs, "cloud.host is required")
	}
	if c.Cloud.Port < 1 || c.Cloud.Port > 65535 {
		errs = append(errs, "cloud.port must be between 1 and 65535")
	}
	if c.Cloud.QoS < 0 || c.Cloud.QoS > 2 {
		errs = append(errs, "cloud.qos must be 0, 1, or 2")
	}
	if c.Cloud.Reconnect.InitialDelay < 1 {
		errs = append(errs, "cloud.reconnect.initial_delay must be at least 1 second")
	}
	if c.Cloud.Reconnect.MaxDelay < c.Cloud.Reconnect.InitialDelay {
		errs = append(errs, "cloud.reconnect.max_delay must be >= initial_delay")
	}

	// Bridge validation
	if c.Bridge.QueueCapacity < 1 {
		errs = append(errs, "bridge.queue_capacity must be at least 1")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// InfluxDB validation only matters when the sink is enabled.
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Token == "" {
			errs = append(errs, "influxdb.token is required when influxdb is enabled (set PRINTWATCH_INFLUXDB_TOKEN environment variable)")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetKeepAlive returns the MQTT keepalive interval as a Duration.
func (c *Config) GetKeepAlive() time.Duration {
	return time.Duration(c.Cloud.KeepAlive) * time.Second
}

// GetConnectTimeout returns the broker connect timeout as a Duration.
func (c *Config) GetConnectTimeout() time.Duration {
	return time.Duration(c.Cloud.ConnectTimeout) * time.Second
}

// GetPublishTimeout returns the publish handoff timeout as a Duration.
func (c *Config) GetPublishTimeout() time.Duration {
	return time.Duration(c.Cloud.PublishTimeout) * time.Second
}

// GetReconnectInitial returns the initial reconnect delay as a Duration.
func (c *Config) GetReconnectInitial() time.Duration {
	return time.Duration(c.Cloud.Reconnect.InitialDelay) * time.Second
}

// GetReconnectMax returns the reconnect delay ceiling as a Duration.
func (c *Config) GetReconnectMax() time.Duration {
	return time.Duration(c.Cloud.Reconnect.MaxDelay) * time.Second
}

// GetActivityGrace returns the session silence grace period as a Duration.
func (c *Config) GetActivityGrace() time.Duration {
	return time.Duration(c.Cloud.ActivityGrace) * time.Second
}

// GetCommandTimeout returns the command acknowledgement deadline as a Duration.
func (c *Config) GetCommandTimeout() time.Duration {
	return time.Duration(c.Bridge.CommandTimeout) * time.Second
}

// GetSnapshotRetention returns the snapshot retention window as a Duration.
// Zero means pruning is disabled.
func (c *Config) GetSnapshotRetention() time.Duration {
	return time.Duration(c.Database.SnapshotRetentionDays) * 24 * time.Hour
}
