// Package config loads, normalizes, and validates prmanager configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the PRMANAGER_API_URL environment
// fallback. The Config type centralizes every knob the dashboard and CLI need:
// where the pipeline backend lives, how often to poll it, how many workflow
// entries to request per page, and where logs and the watch lock go.
//
// Always obtain settings through this package so downstream code receives
// sanitized URLs, canonical log formats, and clear validation errors.
package config
