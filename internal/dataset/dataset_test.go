package dataset

import (
	"errors"
	"reflect"
	"testing"
)

func TestFromGrid_KeysRowsByHeader(t *testing.T) {
	// The XOM row is short (padded); the NVDA row has an excess cell (dropped).
	grid := [][]string{
		{"ticker", "score", "sector"},
		{"AAPL", "82", "tech"},
		{"XOM", "64"},
		{"NVDA", "91", "tech", "extra"},
	}

	tab, err := FromGrid(grid)
	if err != nil {
		t.Fatalf("FromGrid returned error: %v", err)
	}
	if got, want := tab.Columns, []string{"ticker", "score", "sector"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Columns = %v, want %v", got, want)
	}
	if tab.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", tab.Len())
	}
	if got := tab.Rows[1]["sector"]; got != "" {
		t.Errorf("padded cell = %q, want empty", got)
	}
	if got := tab.Rows[2]["score"]; got != "91" {
		t.Errorf("Rows[2][score] = %q, want 91", got)
	}
	if _, ok := tab.Rows[2]["extra"]; ok {
		t.Errorf("excess cell leaked into record: %v", tab.Rows[2])
	}
}

func TestFromGrid_NoHeader(t *testing.T) {
	for _, grid := range [][][]string{nil, {}, {{}}} {
		if _, err := FromGrid(grid); !errors.Is(err, ErrNoHeader) {
			t.Errorf("FromGrid(%v) error = %v, want ErrNoHeader", grid, err)
		}
	}
}

func TestClone_Independent(t *testing.T) {
	orig := mustTable(t, [][]string{
		{"ticker", "score"},
		{"AAPL", "82"},
	})

	dup := orig.Clone()
	dup.Rows[0]["score"] = "0"
	dup.Columns[0] = "zzz"

	if orig.Rows[0]["score"] != "82" {
		t.Errorf("clone mutation leaked into original row: %v", orig.Rows[0])
	}
	if orig.Columns[0] != "ticker" {
		t.Errorf("clone mutation leaked into original header: %v", orig.Columns)
	}
}

func TestApply_UpsertAndDelete(t *testing.T) {
	tab := mustTable(t, [][]string{
		{"ticker", "score"},
		{"AAPL", "82"},
		{"XOM", "64"},
		{"NVDA", "91"},
	})
	key := KeyColumn("ticker")

	got := tab.Apply([]Change{
		{Key: "XOM", Op: OpUpsert, Row: Record{"ticker": "XOM", "score": "70"}},
		{Key: "TSLA", Op: OpUpsert, Row: Record{"ticker": "TSLA", "score": "55"}},
		{Key: "AAPL", Op: OpDelete},
		{Key: "GONE", Op: OpDelete}, // unknown key is a no-op
	}, key)

	wantOrder := []string{"XOM", "NVDA", "TSLA"}
	if len(got.Rows) != len(wantOrder) {
		t.Fatalf("Apply produced %d rows, want %d: %v", len(got.Rows), len(wantOrder), got.Rows)
	}
	for i, want := range wantOrder {
		if got.Rows[i]["ticker"] != want {
			t.Errorf("Rows[%d] = %q, want %q", i, got.Rows[i]["ticker"], want)
		}
	}
	if got.Rows[0]["score"] != "70" {
		t.Errorf("upsert did not replace row in place: %v", got.Rows[0])
	}

	// Receiver untouched.
	if tab.Len() != 3 || tab.Rows[0]["ticker"] != "AAPL" {
		t.Errorf("Apply mutated its receiver: %v", tab.Rows)
	}
}

func TestApply_LastOpWins(t *testing.T) {
	tab := mustTable(t, [][]string{
		{"ticker", "score"},
		{"AAPL", "82"},
	})
	key := KeyColumn("ticker")

	gone := tab.Apply([]Change{
		{Key: "AAPL", Op: OpUpsert, Row: Record{"ticker": "AAPL", "score": "99"}},
		{Key: "AAPL", Op: OpDelete},
	}, key)
	if gone.Len() != 0 {
		t.Errorf("upsert-then-delete left %v, want empty", gone.Rows)
	}

	back := tab.Apply([]Change{
		{Key: "AAPL", Op: OpDelete},
		{Key: "AAPL", Op: OpUpsert, Row: Record{"ticker": "AAPL", "score": "99"}},
	}, key)
	if back.Len() != 1 || back.Rows[0]["score"] != "99" {
		t.Errorf("delete-then-upsert produced %v, want single row score=99", back.Rows)
	}
}

func TestApply_Idempotent(t *testing.T) {
	tab := mustTable(t, [][]string{
		{"ticker", "score"},
		{"AAPL", "82"},
		{"XOM", "64"},
	})
	key := KeyColumn("ticker")
	batch := []Change{
		{Key: "AAPL", Op: OpDelete},
		{Key: "XOM", Op: OpUpsert, Row: Record{"ticker": "XOM", "score": "65"}},
		{Key: "TSLA", Op: OpUpsert, Row: Record{"ticker": "TSLA", "score": "40"}},
	}

	once := tab.Apply(batch, key)
	twice := once.Apply(batch, key)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("Apply not idempotent:\nonce:  %v\ntwice: %v", once.Rows, twice.Rows)
	}
}

func TestGrid_RoundTrip(t *testing.T) {
	grid := [][]string{
		{"ticker", "score"},
		{"AAPL", "82"},
		{"XOM", "64"},
	}
	tab := mustTable(t, grid)
	if got := tab.Grid(); !reflect.DeepEqual(got, grid) {
		t.Errorf("Grid() = %v, want %v", got, grid)
	}
}

func mustTable(t *testing.T, grid [][]string) Table {
	t.Helper()
	tab, err := FromGrid(grid)
	if err != nil {
		t.Fatalf("FromGrid returned error: %v", err)
	}
	return tab
}
