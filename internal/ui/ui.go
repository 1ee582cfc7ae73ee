// Package ui renders the tapedeck dashboard: one tab per dataset, a table
// of its rows, and a status line showing freshness, version and the last
// change summary. Terminal focus doubles as the page-visibility signal for
// the background scheduler: blurring the window pauses polls, refocusing
// resumes them.
package ui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rfoley/tapedeck/internal/diff"
	"github.com/rfoley/tapedeck/internal/hub"
)

// Options configure the dashboard.
type Options struct {
	Context context.Context
	Hub     *hub.Hub
	// ThemeName selects the color theme; unknown names fall back.
	ThemeName string
	// PrefsPath is where preferences are saved on quit.
	PrefsPath string
	// InitialDataset selects the tab restored from preferences.
	InitialDataset string
	// SetVisible propagates terminal focus to the scheduler's gate.
	SetVisible func(bool)
}

// Run blocks until the user quits or the context is cancelled. It installs
// the hub's notification callback for its lifetime.
func Run(opts Options) error {
	if opts.Hub == nil {
		return fmt.Errorf("ui requires a hub")
	}
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	opts.Context = ctx

	p := tea.NewProgram(newModel(opts),
		tea.WithAltScreen(),
		tea.WithReportFocus(),
		tea.WithContext(ctx),
	)

	opts.Hub.SetNotify(func(name string, s diff.Summary) {
		p.Send(notifyMsg{name: name, summary: s})
	})
	defer opts.Hub.SetNotify(nil)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}
