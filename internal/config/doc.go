// Package config loads, normalizes, and validates squish configuration.
//
// Files are TOML. Load looks at an explicit path first, then
// ~/.config/squish/config.toml, then ./squish.toml, and falls back to
// Default() when none exist. Paths are expanded (including ~), secrets fall
// back to environment variables, and Validate rejects values the rest of the
// program cannot work with. CreateSample writes the embedded sample file for
// `squish config init`.
package config
