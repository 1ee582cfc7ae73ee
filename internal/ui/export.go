package ui

import (
	"encoding/csv"
	"fmt"
	"os"
	"time"

	"github.com/rfoley/tapedeck/internal/dataset"
)

// exportCSV writes the table to a timestamped file in the working directory
// and returns its path.
func exportCSV(name string, t dataset.Table) (string, error) {
	if t.Len() == 0 && len(t.Columns) == 0 {
		return "", fmt.Errorf("nothing to export")
	}
	path := fmt.Sprintf("%s-%s.csv", name, time.Now().Format("20060102-150405"))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.WriteAll(t.Grid()); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}
