// Package config handles loading and parsing the Lantern configuration file.
//
// # Overview
//
// This package reads Lantern's TOML configuration to tune the ingestion
// pipeline and the viewer. Every field is optional; a missing file or a
// partial file falls back to defaults, so Lantern works out of the box.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/lantern/config.toml (default)
//  3. If the config file doesn't exist, fall back to defaults
//  4. If the file exists but fields are missing or zero, use defaults
//
// # Default Values
//
//   - store_capacity: 20000 records
//   - queue_capacity: 4096 records
//   - overflow_policy: "drop_oldest"
//   - batch_size: 256
//   - max_batch_wait: "100ms"
//   - default_level: "info"
//   - match_mode: "substring"
//   - seed_lines: 500
//
// # TOML Format
//
// Example lantern config.toml:
//
//	store_capacity = 50000
//	overflow_policy = "drop_newest"
//	max_batch_wait = "250ms"
//	default_level = "warn"
//	match_mode = "regex"
//	input = "~/logs/app.ndjson"
//
// Tilde expansion is performed for the config location and the input path.
//
// # Error Handling
//
// Load returns errors for:
//   - Path expansion failures (e.g., cannot determine home directory)
//   - File read errors (except os.ErrNotExist, which triggers defaults)
//   - TOML parsing errors
//   - Invalid enum values (overflow_policy, match_mode) and durations
//
// Missing config files are NOT an error - defaults are used instead.
//
// The config package is read-only and stateless - it loads configuration
// once at startup and returns a plain Config struct. No global state or
// singleton patterns are used.
package config
