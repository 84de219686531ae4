// Package config loads, validates, and defaults reelforge's TOML
// configuration.
//
// Configuration resolves from an explicit --config path, then
// ~/.config/reelforge/config.toml, then a project-local reelforge.toml,
// falling back to built-in defaults when no file exists. Loaded values are
// normalized (path expansion, env-var key fallback) before validation so the
// rest of the system can treat a *Config as always usable.
package config
