package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/rfoley/tapedeck/internal/hub"
)

func (m Model) View() string {
	if !m.ready {
		return "loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderTabs())
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	b.WriteString(m.table.View())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) renderTabs() string {
	parts := []string{m.styles.Title.Render("tapedeck")}
	for i, name := range m.names {
		style := m.styles.Tab
		if i == m.active {
			style = m.styles.TabActive
		}
		parts = append(parts, style.Render(name))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m Model) renderStatus() string {
	view := m.views[m.currentName()]

	var parts []string
	switch {
	case view.Loading:
		parts = append(parts, m.spinner.View()+" fetching")
	case view.Err != nil:
		parts = append(parts, m.styles.Danger.Render("error: "+view.Err.Error()))
	case view.LastUpdated.IsZero():
		parts = append(parts, m.styles.StatusLine.Render("no data yet"))
	default:
		age := time.Since(view.LastUpdated)
		style := m.styles.Fresh
		if age >= 5*time.Minute {
			style = m.styles.Stale
		}
		parts = append(parts, style.Render("updated "+formatAge(age)+" ago"))
	}

	if view.Version > 0 {
		parts = append(parts, m.styles.StatusLine.Render(fmt.Sprintf("v%d", view.Version)))
	}
	parts = append(parts, m.styles.StatusLine.Render(fmt.Sprintf("%d rows", view.Data.Len())))
	if view.IsOffline() {
		parts = append(parts, m.styles.Danger.Render("offline"))
	}
	if s := view.LastChange; s.Changes() > 0 {
		parts = append(parts, m.styles.StatusLine.Render(
			fmt.Sprintf("last change +%d −%d ~%d", s.Added, s.Removed, s.Updated)))
	}
	if !m.focused {
		parts = append(parts, m.styles.StatusLine.Render("paused (unfocused)"))
	}
	return strings.Join(parts, "  ")
}

func (m Model) renderFooter() string {
	if m.notice != "" {
		return m.styles.Notice.Render(m.notice)
	}
	return m.styles.Help.Render("tab/[/]: dataset  r: refresh  R: refresh all  e: export csv  q: quit")
}

// layoutTable rebuilds the table for the active dataset and current size.
func (m *Model) layoutTable() {
	view := m.views[m.currentName()]
	cols, rows := tableContent(view, max(m.width-2, 20))
	m.table.SetColumns(cols)
	m.table.SetRows(rows)
	if m.height > 0 {
		m.table.SetHeight(max(m.height-4, 3))
	}
	if m.width > 0 {
		m.table.SetWidth(m.width)
	}
}

// tableContent converts a dataset view into bubbles table columns and rows,
// distributing the width evenly across columns.
func tableContent(view hub.View, width int) ([]table.Column, []table.Row) {
	columns := view.Data.Columns
	if len(columns) == 0 {
		return []table.Column{{Title: "no data", Width: width}}, nil
	}
	colWidth := max(width/len(columns), 6)
	cols := make([]table.Column, len(columns))
	for i, name := range columns {
		cols[i] = table.Column{Title: name, Width: colWidth}
	}
	rows := make([]table.Row, 0, view.Data.Len())
	for _, rec := range view.Data.Rows {
		row := make(table.Row, len(columns))
		for i, name := range columns {
			row[i] = rec[name]
		}
		rows = append(rows, row)
	}
	return cols, rows
}

func tableStyles(theme Theme) table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color(theme.Border)).
		BorderBottom(true).
		Bold(true).
		Foreground(lipgloss.Color(theme.Accent))
	s.Selected = s.Selected.
		Foreground(lipgloss.Color(theme.SelectionText)).
		Background(lipgloss.Color(theme.SelectionBg)).
		Bold(false)
	return s
}

// formatAge renders a duration the way the status line wants it: coarse and
// short.
func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
