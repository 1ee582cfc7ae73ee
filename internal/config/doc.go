// Package config loads and validates the tapedeck configuration file.
//
// # Overview
//
// Tapedeck reads one TOML file describing where the datasets live and how
// aggressively to keep them fresh. Ambient settings (cadences, thresholds,
// cache backend) all have defaults; the transport settings do not, because
// there is no sensible guess for where the user's spreadsheet API is.
//
// # File Format
//
// Example ~/.config/tapedeck/config.toml:
//
//	api_base_url = "https://sheetapi.example.com/tabs"
//	proxies = ["https://corsproxy.example.com/?url="]
//	delta_sync = true
//	poll_interval = "15m"
//	fresh_for = "5m"
//	stale_for = "20m"
//	cache_backend = "file"
//	cache_dir = "~/.cache/tapedeck"
//
//	[[dataset]]
//	name = "scores"
//	key_column = "ticker"
//
//	[[dataset]]
//	name = "fundamentals"
//	key_column = "ticker"
//	csv_export_url = "https://sheets.example.com/export?id=abc"
//
// Durations accept human-friendly strings ("5m", "1h30m"). Tilde paths are
// expanded. A dataset without base_url inherits api_base_url.
//
// # Validation
//
// Load returns a *ValidationError for anything the user must fix: a missing
// file, an unparsable duration, an unknown cache backend, a dataset without
// a resolvable base URL. Each carries a remediation hint for display; these
// are the only configuration problems tapedeck surfaces as fatal.
package config
