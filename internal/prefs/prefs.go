// Package prefs persists the dashboard's cosmetic state: the color theme
// and the dataset tab to restore on the next start. Unlike the config file,
// preferences are never required; any problem reading them falls back to
// defaults so a corrupt prefs.toml cannot keep tapedeck from starting.
package prefs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	defaultPrefsPath = "~/.config/tapedeck/prefs.toml"
	defaultTheme     = "Dracula"
)

// Prefs is the saved dashboard state.
type Prefs struct {
	Theme string `toml:"theme"`
	// LastDataset is the tab restored on the next start.
	LastDataset string `toml:"last_dataset"`
}

// DefaultPath returns the default preferences file location.
func DefaultPath() string { return defaultPrefsPath }

func defaults() Prefs { return Prefs{Theme: defaultTheme} }

// Load reads preferences from path, or the default location when path is
// empty. Every failure mode, missing file included, degrades to defaults
// with a nil error.
func Load(path string) (Prefs, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return defaults(), nil
	}
	raw, err := os.ReadFile(resolved)
	if err != nil {
		return defaults(), nil
	}
	p := defaults()
	if err := toml.Unmarshal(raw, &p); err != nil {
		return defaults(), nil
	}
	if strings.TrimSpace(p.Theme) == "" {
		p.Theme = defaultTheme
	}
	return p, nil
}

// Save writes preferences to path, creating parent directories as needed.
// Unlike Load, Save reports failures.
func Save(path string, p Prefs) error {
	resolved, err := resolvePath(path)
	if err != nil {
		return fmt.Errorf("resolve prefs path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}
	raw, err := toml.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode prefs: %w", err)
	}
	if err := os.WriteFile(resolved, raw, 0o644); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	return nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		path = defaultPrefsPath
	}
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
