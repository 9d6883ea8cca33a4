// Package config loads the process-torrents configuration.
//
// Configuration is layered with koanf: built-in defaults, then the YAML or
// TOML config file, then PROCESS_TORRENTS_* environment variables for the
// scalar settings. The result is decoded into Config, path values have a
// leading ~ expanded, and the whole is validated before use.
package config
