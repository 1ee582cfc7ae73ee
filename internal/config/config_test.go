package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
api_base_url = "https://api.example.com"

[[dataset]]
name = "scores"
key_column = "ticker"
`

// configWith builds a config body with extra top-level keys. They have to sit
// above the [[dataset]] block: TOML scopes anything after it into the table.
func configWith(topLevel string) string {
	return `
api_base_url = "https://api.example.com"
` + topLevel + `

[[dataset]]
name = "scores"
key_column = "ticker"
`
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.PollInterval != 15*time.Minute {
		t.Errorf("PollInterval = %v, want 15m", cfg.PollInterval)
	}
	if cfg.InitialPollDelay != 5*time.Second {
		t.Errorf("InitialPollDelay = %v, want 5s", cfg.InitialPollDelay)
	}
	if cfg.FreshFor != 5*time.Minute || cfg.StaleFor != 20*time.Minute {
		t.Errorf("thresholds = %v/%v, want 5m/20m", cfg.FreshFor, cfg.StaleFor)
	}
	if !cfg.DeltaSync {
		t.Error("DeltaSync = false, want enabled by default")
	}
	if cfg.CacheBackend != "memory" {
		t.Errorf("CacheBackend = %q, want memory", cfg.CacheBackend)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
api_base_url = "https://api.example.com"
proxies = ["https://p1.example.com/?url=", "https://p2.example.com/?url="]
delta_sync = false
poll_interval = "1h30m"
fresh_for = "2m"
stale_for = "10m"
cache_backend = "file"

[[dataset]]
name = "scores"
key_column = "ticker"

[[dataset]]
name = "fundamentals"
base_url = "https://other.example.com"
`))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.PollInterval != 90*time.Minute {
		t.Errorf("PollInterval = %v, want 1h30m", cfg.PollInterval)
	}
	if cfg.DeltaSync {
		t.Error("DeltaSync = true, want disabled")
	}
	if len(cfg.Proxies) != 2 {
		t.Errorf("Proxies = %v", cfg.Proxies)
	}

	sources := cfg.Sources()
	if len(sources) != 2 {
		t.Fatalf("Sources = %d entries, want 2", len(sources))
	}
	if sources[0].BaseURL != "https://api.example.com" {
		t.Errorf("scores base URL = %q, want the global one", sources[0].BaseURL)
	}
	if sources[1].BaseURL != "https://other.example.com" {
		t.Errorf("fundamentals base URL = %q, want the override", sources[1].BaseURL)
	}
	if sources[0].KeyColumn != "ticker" {
		t.Errorf("KeyColumn = %q", sources[0].KeyColumn)
	}
}

func TestLoadMissingFileIsValidationError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
	if verr.Hint == "" {
		t.Error("ValidationError without a remediation hint")
	}
}

func TestLoadRejections(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{
			"no datasets",
			`api_base_url = "https://api.example.com"`,
			"dataset",
		},
		{
			"bad duration",
			configWith(`poll_interval = "soon"`),
			"poll_interval",
		},
		{
			"unknown backend",
			configWith(`cache_backend = "redis"`),
			"cache_backend",
		},
		{
			"postgres without dsn",
			configWith(`cache_backend = "postgres"`),
			"postgres_url",
		},
		{
			"fresh past stale",
			configWith(`fresh_for = "30m"`),
			"fresh_for",
		},
		{
			"dataset without base url",
			"[[dataset]]\nname = \"scores\"\n",
			"api_base_url",
		},
		{
			"duplicate dataset",
			minimalConfig + "\n[[dataset]]\nname = \"scores\"\n",
			"dataset.name",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error = %v, want *ValidationError", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", verr.Field, tt.wantField)
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := expandPath("~/cache/tapedeck")
	if err != nil {
		t.Fatalf("expandPath returned error: %v", err)
	}
	want := filepath.Join(home, "cache", "tapedeck")
	if got != want {
		t.Errorf("expandPath = %q, want %q", got, want)
	}
}
