// Package config loads, normalizes, and validates the TOML configuration for
// abrpack: paths, external tool names, transcode settings, the quality
// ladder, and logging options.
package config
