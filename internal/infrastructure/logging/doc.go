// Package logging provides structured logging for Printwatch Core.
//
// It is a thin wrapper over log/slog: JSON or text output, level
// filtering, and service/version fields stamped on every record. Output
// goes to stdout, stderr, or a size-rotated file.
//
//	log := logging.New(cfg.Logging, version)
//	log.Info("printer registered", "device_id", serial)
//
// Component loggers hang off the root via With:
//
//	sessionLog := log.With("component", "session")
//
// Never log the cloud access token or the InfluxDB token; log key
// prefixes or lengths when a credential must be referenced at all.
package logging
