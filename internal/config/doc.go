// Package config loads, normalizes, and validates unitgo configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// UNITGO_LOG_LEVEL. The Config type centralizes every knob the dev daemon and
// CLI need: worker threads, loopback sizing, the dev HTTP bind address, log
// routing and the request journal.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
