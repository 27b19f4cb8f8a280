// Package config loads, normalizes, and validates needle configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// NEEDLE_LIBRARY_DIR. Quality profiles, custom formats, delay profiles,
// indexers and download clients are declared here and turned into runtime
// objects by the packages that own them.
package config
