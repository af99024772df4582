// Package config loads, normalizes, and validates scribe configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads optional .env files, and honours
// environment fallbacks such as SCRIBE_API_BIND and HF_TOKEN. The Config type
// centralizes every knob the daemon and CLI need: worker pool sizing,
// admission thresholds, retention horizon, upload limits, and whisperx
// settings.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
