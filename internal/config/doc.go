// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper.
//
// A project file (./tplcache.cue, ./tplcache.toml or ./tplcache.yaml) takes
// precedence over the user file in the platform config directory
// (~/.config/tplcache/config.* on Linux). Every format is validated against
// the embedded CUE schema (config_schema.cue) before being merged over the
// defaults. TPLCACHE_* environment variables override file values.
package config
