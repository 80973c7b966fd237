// Package config loads, normalizes, and validates docbatch configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and derives runtime values such as the
// converter pool size and the backoff schedule. The Config type centralizes
// every knob the daemon and CLI need so the store, scratch, and socket paths
// are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
