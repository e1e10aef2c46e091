// Package config loads and validates the governor configuration.
//
// Configuration is a YAML document. Loading applies defaults, then
// GOVERNOR_* environment overrides, then validates the result. A
// zero-value file is a valid configuration running in-memory on
// localhost defaults.
package config
