package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rfoley/tapedeck/internal/diff"
	"github.com/rfoley/tapedeck/internal/hub"
	"github.com/rfoley/tapedeck/internal/prefs"
)

const viewTick = 5 * time.Second

type refreshedMsg struct {
	name string
	view hub.View
	err  error
}

type refreshAllDoneMsg struct{ err error }

// notifyMsg is sent by the hub's notification callback when a refresh
// changed enough rows to matter.
type notifyMsg struct {
	name    string
	summary diff.Summary
}

type tickMsg time.Time

// Model is the root Bubble Tea state.
type Model struct {
	ctx       context.Context
	hub       *hub.Hub
	names     []string
	active    int
	views     map[string]hub.View
	theme     Theme
	styles    Styles
	prefsPath string

	table   table.Model
	spinner spinner.Model
	width   int
	height  int
	ready   bool
	focused bool

	setVisible func(bool)

	notice      string
	noticeUntil time.Time
}

func newModel(opts Options) Model {
	theme := ThemeByName(opts.ThemeName)
	styles := theme.Styles()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Accent))

	tbl := table.New(table.WithFocused(true))
	tbl.SetStyles(tableStyles(theme))

	names := make([]string, 0, len(opts.Hub.Datasets()))
	for _, d := range opts.Hub.Datasets() {
		names = append(names, d.Name())
	}
	active := 0
	for i, name := range names {
		if name == opts.InitialDataset {
			active = i
		}
	}

	return Model{
		ctx:        opts.Context,
		hub:        opts.Hub,
		names:      names,
		active:     active,
		views:      make(map[string]hub.View),
		theme:      theme,
		styles:     styles,
		prefsPath:  opts.PrefsPath,
		table:      tbl,
		spinner:    sp,
		focused:    true,
		setVisible: opts.SetVisible,
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, tickCmd()}
	for _, d := range m.hub.Datasets() {
		cmds = append(cmds, fetchCmd(m.ctx, d))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.layoutTable()
		return m, nil

	case tea.FocusMsg:
		m.focused = true
		if m.setVisible != nil {
			m.setVisible(true)
		}
		return m, nil

	case tea.BlurMsg:
		m.focused = false
		if m.setVisible != nil {
			m.setVisible(false)
		}
		return m, nil

	case refreshedMsg:
		m.views[msg.name] = msg.view
		if msg.name == m.currentName() {
			m.layoutTable()
		}
		return m, nil

	case refreshAllDoneMsg:
		if msg.err != nil {
			m.notice = "refresh all: " + msg.err.Error()
		} else {
			m.notice = "all datasets refreshed"
		}
		m.noticeUntil = time.Now().Add(5 * time.Second)
		return m, m.pullViews()

	case notifyMsg:
		m.notice = fmt.Sprintf("%s: %d added, %d removed, %d updated",
			msg.name, msg.summary.Added, msg.summary.Removed, msg.summary.Updated)
		m.noticeUntil = time.Now().Add(10 * time.Second)
		return m, nil

	case tickMsg:
		if time.Now().After(m.noticeUntil) {
			m.notice = ""
		}
		return m, tea.Batch(tickCmd(), m.pullViews())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.savePrefs()
		return m, tea.Quit

	case "tab", "]":
		m.active = (m.active + 1) % max(1, len(m.names))
		m.layoutTable()
		return m, nil

	case "shift+tab", "[":
		m.active = (m.active - 1 + max(1, len(m.names))) % max(1, len(m.names))
		m.layoutTable()
		return m, nil

	case "r":
		if d := m.currentDataset(); d != nil {
			return m, refetchCmd(m.ctx, d)
		}
		return m, nil

	case "R":
		return m, refreshAllCmd(m.ctx, m.hub)

	case "e":
		if d := m.currentDataset(); d != nil {
			path, err := exportCSV(d.Name(), m.views[d.Name()].Data)
			if err != nil {
				m.notice = "export: " + err.Error()
			} else {
				m.notice = "exported " + path
			}
			m.noticeUntil = time.Now().Add(5 * time.Second)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) currentName() string {
	if len(m.names) == 0 {
		return ""
	}
	return m.names[m.active]
}

func (m *Model) currentDataset() *hub.Dataset {
	return m.hub.Dataset(m.currentName())
}

func (m *Model) savePrefs() {
	_ = prefs.Save(m.prefsPath, prefs.Prefs{
		Theme:       m.theme.Name,
		LastDataset: m.currentName(),
	})
}

// pullViews refreshes the local copies of every dataset view, picking up
// background work that completed since the last tick.
func (m *Model) pullViews() tea.Cmd {
	for _, d := range m.hub.Datasets() {
		m.views[d.Name()] = d.View()
	}
	m.layoutTable()
	return nil
}

func tickCmd() tea.Cmd {
	return tea.Tick(viewTick, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func fetchCmd(ctx context.Context, d *hub.Dataset) tea.Cmd {
	return func() tea.Msg {
		view, err := d.Fetch(ctx)
		return refreshedMsg{name: d.Name(), view: view, err: err}
	}
}

func refetchCmd(ctx context.Context, d *hub.Dataset) tea.Cmd {
	return func() tea.Msg {
		view, outcome := d.Refetch(ctx, true)
		return refreshedMsg{name: d.Name(), view: view, err: outcome.Err}
	}
}

func refreshAllCmd(ctx context.Context, h *hub.Hub) tea.Cmd {
	return func() tea.Msg {
		return refreshAllDoneMsg{err: h.RefreshAll(ctx)}
	}
}
