package feed

import (
	"fmt"
	"net/url"
	"strings"
)

// SourceConfig identifies one remote dataset. Instances are built from the
// config file at startup and never mutated afterwards.
type SourceConfig struct {
	// SourceName is the dataset's name on the wire, e.g. "scores".
	SourceName string
	// BaseURL is the API root the JSON tiers resolve against.
	BaseURL string
	// CSVExportURL overrides the derived CSV export location for datasets
	// whose spreadsheet lives somewhere other than under BaseURL.
	CSVExportURL string
	// KeyColumn names the column holding each row's identity. Empty means
	// the first column.
	KeyColumn string
}

// Validate reports whether the config is complete enough to fetch with.
func (c SourceConfig) Validate() error {
	if strings.TrimSpace(c.SourceName) == "" {
		return fmt.Errorf("source name is empty")
	}
	base := strings.TrimSpace(c.BaseURL)
	if base == "" {
		return fmt.Errorf("source %q has no base URL", c.SourceName)
	}
	if _, err := url.Parse(base); err != nil {
		return fmt.Errorf("source %q base URL: %w", c.SourceName, err)
	}
	return nil
}

// Snapshot is one complete, versioned copy of a dataset. The first grid row
// is the header. Version 0 marks an unversioned source (full-JSON or CSV
// tier), which the delta path cannot poll against.
type Snapshot struct {
	Version int64
	Grid    [][]string
}

// Change is one keyed mutation in a delta poll response.
type Change struct {
	Key string            `json:"key"`
	Op  string            `json:"op"`
	Row map[string]string `json:"row,omitempty"`
}

// DeltaResult is the outcome of one delta poll. When NeedsReload is set the
// server could not diff from the requested version and Changes is empty; the
// caller must fetch a full snapshot instead of merging.
type DeltaResult struct {
	FromVersion int64
	Version     int64
	Changes     []Change
	NeedsReload bool
}
