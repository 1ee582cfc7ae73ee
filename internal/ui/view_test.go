package ui

import (
	"testing"
	"time"

	"github.com/rfoley/tapedeck/internal/dataset"
	"github.com/rfoley/tapedeck/internal/hub"
)

func TestFormatAge(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{30 * time.Second, "30s"},
		{90 * time.Second, "1m"},
		{6 * time.Minute, "6m"},
		{61 * time.Minute, "1h01m"},
		{135 * time.Minute, "2h15m"},
	}
	for _, tt := range tests {
		if got := formatAge(tt.d); got != tt.want {
			t.Errorf("formatAge(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestTableContent(t *testing.T) {
	view := hub.View{Data: dataset.Table{
		Columns: []string{"ticker", "score"},
		Rows: []dataset.Record{
			{"ticker": "AAPL", "score": "92"},
			{"ticker": "MSFT", "score": "88"},
		},
	}}
	cols, rows := tableContent(view, 80)
	if len(cols) != 2 || cols[0].Title != "ticker" {
		t.Fatalf("columns = %+v", cols)
	}
	if len(rows) != 2 || rows[1][0] != "MSFT" {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestTableContentEmpty(t *testing.T) {
	cols, rows := tableContent(hub.View{}, 80)
	if len(cols) != 1 || rows != nil {
		t.Fatalf("cols = %+v rows = %+v, want a placeholder column", cols, rows)
	}
}

func TestThemeByNameFallsBack(t *testing.T) {
	if got := ThemeByName("NoSuchTheme"); got.Name != defaultThemeName {
		t.Errorf("ThemeByName fallback = %q, want %q", got.Name, defaultThemeName)
	}
	if got := ThemeByName("Slate"); got.Name != "Slate" {
		t.Errorf("ThemeByName(Slate) = %q", got.Name)
	}
}
