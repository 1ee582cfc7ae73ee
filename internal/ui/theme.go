package ui

import "github.com/charmbracelet/lipgloss"

// Theme defines the dashboard's colors.
type Theme struct {
	Name string

	Text          string
	Muted         string
	Accent        string
	Success       string
	Warning       string
	Danger        string
	Border        string
	SelectionBg   string
	SelectionText string
}

var themes = map[string]Theme{
	"Dracula": {
		Name:          "Dracula",
		Text:          "#f8f8f2",
		Muted:         "#6272a4",
		Accent:        "#bd93f9",
		Success:       "#50fa7b",
		Warning:       "#f1fa8c",
		Danger:        "#ff5555",
		Border:        "#44475a",
		SelectionBg:   "#44475a",
		SelectionText: "#f8f8f2",
	},
	"Slate": {
		Name:          "Slate",
		Text:          "#e2e8f0",
		Muted:         "#64748b",
		Accent:        "#7dd3fc",
		Success:       "#86efac",
		Warning:       "#fde047",
		Danger:        "#f87171",
		Border:        "#334155",
		SelectionBg:   "#334155",
		SelectionText: "#f1f5f9",
	},
}

const defaultThemeName = "Dracula"

// ThemeByName resolves a theme, falling back to the default for unknown
// names so a stale prefs file cannot break startup.
func ThemeByName(name string) Theme {
	if t, ok := themes[name]; ok {
		return t
	}
	return themes[defaultThemeName]
}

// Styles are the lipgloss styles derived from a Theme.
type Styles struct {
	Title      lipgloss.Style
	Tab        lipgloss.Style
	TabActive  lipgloss.Style
	StatusLine lipgloss.Style
	Fresh      lipgloss.Style
	Stale      lipgloss.Style
	Danger     lipgloss.Style
	Notice     lipgloss.Style
	Help       lipgloss.Style
	Border     lipgloss.Style
}

// Styles builds the style set for the theme.
func (t Theme) Styles() Styles {
	return Styles{
		Title:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(t.Accent)),
		Tab:        lipgloss.NewStyle().Foreground(lipgloss.Color(t.Muted)).Padding(0, 1),
		TabActive:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(t.Text)).Background(lipgloss.Color(t.SelectionBg)).Padding(0, 1),
		StatusLine: lipgloss.NewStyle().Foreground(lipgloss.Color(t.Muted)),
		Fresh:      lipgloss.NewStyle().Foreground(lipgloss.Color(t.Success)),
		Stale:      lipgloss.NewStyle().Foreground(lipgloss.Color(t.Warning)),
		Danger:     lipgloss.NewStyle().Foreground(lipgloss.Color(t.Danger)),
		Notice:     lipgloss.NewStyle().Foreground(lipgloss.Color(t.Warning)).Bold(true),
		Help:       lipgloss.NewStyle().Foreground(lipgloss.Color(t.Muted)),
		Border:     lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color(t.Border)),
	}
}
