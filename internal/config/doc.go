// Package config loads, normalizes, and validates reelkeep configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// EMBY_API_KEY and TMDB_API_KEY. The Config type centralizes every knob the
// daemon and CLI need so the media server, metadata provider, state directory,
// and schedules are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
