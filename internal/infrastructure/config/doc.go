// Package config loads and validates Printwatch Core configuration.
//
// Values come from three layers, later layers winning: built-in
// defaults, the YAML file, then PRINTWATCH_* environment variables.
// Secrets (the cloud access token, the InfluxDB token) belong in the
// environment, not the file.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//
// Load validates before returning, so a non-nil Config is usable as-is.
package config
