package feed

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Fetcher is the transport boundary the sync layers depend on. *Client
// implements it; tests substitute fakes.
type Fetcher interface {
	// FetchVersioned fetches a snapshot from the versioned JSON tier only.
	FetchVersioned(ctx context.Context, src SourceConfig) (*Snapshot, error)
	// FetchSnapshot walks the full tier chain until one tier succeeds.
	FetchSnapshot(ctx context.Context, src SourceConfig) (*Snapshot, error)
	// PollChanges asks the versioned tier for rows changed since a version.
	PollChanges(ctx context.Context, src SourceConfig, since int64) (*DeltaResult, error)
}

var _ Fetcher = (*Client)(nil)

const (
	defaultTimeout    = 10 * time.Second
	defaultProxyDelay = 500 * time.Millisecond
	defaultUserAgent  = "tapedeck/0.1"

	// maxBodyBytes bounds how much of a response is read. Sheets of the size
	// tapedeck handles fit comfortably; anything larger is a wrong payload.
	maxBodyBytes = 16 << 20
)

// Options tune a Client. Zero values pick defaults.
type Options struct {
	// Proxies is the ordered CORS proxy rotation for the CSV tier. Each is a
	// URL prefix the export URL is appended to, query-escaped.
	Proxies []string
	// Timeout applies per request attempt, not per chain.
	Timeout time.Duration
	// ProxyDelay spaces consecutive proxy attempts.
	ProxyDelay time.Duration
	UserAgent  string
}

// Client fetches dataset payloads over the tiered transport: versioned JSON,
// then plain JSON, then a CSV export through rotating CORS proxies.
type Client struct {
	http       *http.Client
	proxies    []string
	proxyDelay time.Duration
	userAgent  string
}

// NewClient builds a Client from opts.
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	// A negative ProxyDelay disables the pause entirely (tests).
	proxyDelay := opts.ProxyDelay
	if proxyDelay == 0 {
		proxyDelay = defaultProxyDelay
	} else if proxyDelay < 0 {
		proxyDelay = 0
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		http:       &http.Client{Timeout: timeout},
		proxies:    opts.Proxies,
		proxyDelay: proxyDelay,
		userAgent:  userAgent,
	}
}

// FetchVersioned fetches a full snapshot from the versioned JSON endpoint.
// A failure here means the delta path is unavailable; it does not advance
// the chain by itself.
func (c *Client) FetchVersioned(ctx context.Context, src SourceConfig) (*Snapshot, error) {
	raw, err := c.get(ctx, joinURL(src.BaseURL, "v1/values/"+url.PathEscape(src.SourceName)))
	if err != nil {
		return nil, &TierError{Tier: "versioned-json", Kind: KindTransport, Err: err}
	}
	var payload struct {
		Version int64             `json:"version"`
		Values  []json.RawMessage `json:"values"`
	}
	if err := decodeJSON(raw, &payload); err != nil {
		return nil, &TierError{Tier: "versioned-json", Kind: KindParse, Err: err}
	}
	grid, err := gridFromJSON(payload.Values)
	if err != nil {
		return nil, &TierError{Tier: "versioned-json", Kind: KindParse, Err: err}
	}
	return &Snapshot{Version: payload.Version, Grid: grid}, nil
}

// PollChanges requests rows changed since the given version. A NeedsReload
// result means the server cannot diff that far back.
func (c *Client) PollChanges(ctx context.Context, src SourceConfig, since int64) (*DeltaResult, error) {
	u := joinURL(src.BaseURL, "v1/changes/"+url.PathEscape(src.SourceName)) +
		"?since=" + strconv.FormatInt(since, 10)
	raw, err := c.get(ctx, u)
	if err != nil {
		return nil, &TierError{Tier: "versioned-json", Kind: KindTransport, Err: err}
	}
	var payload struct {
		Version     int64    `json:"version"`
		Changes     []Change `json:"changes"`
		NeedsReload bool     `json:"needsReload"`
	}
	if err := decodeJSON(raw, &payload); err != nil {
		return nil, &TierError{Tier: "versioned-json", Kind: KindParse, Err: err}
	}
	return &DeltaResult{
		FromVersion: since,
		Version:     payload.Version,
		Changes:     payload.Changes,
		NeedsReload: payload.NeedsReload,
	}, nil
}

// FetchSnapshot tries each tier in order and returns the first snapshot any
// of them produces. Every attempt's failure is collected; when the chain is
// exhausted the caller gets one ExhaustedError listing all of them.
func (c *Client) FetchSnapshot(ctx context.Context, src SourceConfig) (*Snapshot, error) {
	var attempts []*TierError

	record := func(err error) {
		if te, ok := err.(*TierError); ok {
			attempts = append(attempts, te)
			return
		}
		attempts = append(attempts, &TierError{Tier: "unknown", Kind: KindTransport, Err: err})
	}

	snap, err := c.FetchVersioned(ctx, src)
	if err == nil {
		return snap, nil
	}
	record(err)

	snap, err = c.fetchFullJSON(ctx, src)
	if err == nil {
		return snap, nil
	}
	record(err)

	for i, proxy := range c.proxies {
		if i > 0 {
			if err := c.pause(ctx); err != nil {
				record(&TierError{Tier: "csv-proxy", Kind: KindTransport, Err: err})
				break
			}
		}
		snap, err = c.fetchCSV(ctx, src, proxy)
		if err == nil {
			return snap, nil
		}
		record(err)
	}

	return nil, &ExhaustedError{Source: src.SourceName, Attempts: attempts}
}

func (c *Client) fetchFullJSON(ctx context.Context, src SourceConfig) (*Snapshot, error) {
	raw, err := c.get(ctx, joinURL(src.BaseURL, "values/"+url.PathEscape(src.SourceName)))
	if err != nil {
		return nil, &TierError{Tier: "full-json", Kind: KindTransport, Err: err}
	}
	var values []json.RawMessage
	if err := decodeJSON(raw, &values); err != nil {
		return nil, &TierError{Tier: "full-json", Kind: KindParse, Err: err}
	}
	grid, err := gridFromJSON(values)
	if err != nil {
		return nil, &TierError{Tier: "full-json", Kind: KindParse, Err: err}
	}
	return &Snapshot{Grid: grid}, nil
}

func (c *Client) fetchCSV(ctx context.Context, src SourceConfig, proxy string) (*Snapshot, error) {
	target := src.CSVExportURL
	if target == "" {
		target = joinURL(src.BaseURL, "export/"+url.PathEscape(src.SourceName)+".csv")
	}
	raw, err := c.get(ctx, proxy+url.QueryEscape(target))
	if err != nil {
		return nil, &TierError{Tier: "csv-proxy", Kind: KindTransport, Err: err}
	}
	if looksLikeHTML(raw) {
		return nil, &TierError{Tier: "csv-proxy", Kind: KindParse,
			Err: fmt.Errorf("response is HTML, not CSV")}
	}
	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1
	grid, err := reader.ReadAll()
	if err != nil {
		return nil, &TierError{Tier: "csv-proxy", Kind: KindParse, Err: fmt.Errorf("parse csv: %w", err)}
	}
	if len(grid) == 0 {
		return nil, &TierError{Tier: "csv-proxy", Kind: KindParse, Err: fmt.Errorf("empty csv body")}
	}
	return &Snapshot{Grid: grid}, nil
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json, text/csv")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func (c *Client) pause(ctx context.Context) error {
	if c.proxyDelay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.proxyDelay):
		return nil
	}
}

// decodeJSON unmarshals raw into dest, first rejecting bodies that are
// visibly HTML. Proxies and sheet hosts answer 200 with a login page often
// enough that the sniff has to come before the parser.
func decodeJSON(raw []byte, dest any) error {
	if looksLikeHTML(raw) {
		return fmt.Errorf("response is HTML, not JSON")
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func looksLikeHTML(raw []byte) bool {
	head := strings.ToLower(string(bytes.TrimSpace(raw)))
	if len(head) > 256 {
		head = head[:256]
	}
	return strings.HasPrefix(head, "<!doctype html") ||
		strings.HasPrefix(head, "<html") ||
		strings.Contains(head, "<head>") ||
		strings.Contains(head, "<body")
}

// gridFromJSON converts rows of mixed-type JSON cells into strings, keeping
// numbers in their literal wire form.
func gridFromJSON(rows []json.RawMessage) ([][]string, error) {
	grid := make([][]string, len(rows))
	for i, rawRow := range rows {
		dec := json.NewDecoder(bytes.NewReader(rawRow))
		dec.UseNumber()
		var cells []any
		if err := dec.Decode(&cells); err != nil {
			return nil, fmt.Errorf("decode row %d: %w", i, err)
		}
		row := make([]string, len(cells))
		for j, cell := range cells {
			switch v := cell.(type) {
			case nil:
				row[j] = ""
			case string:
				row[j] = v
			case json.Number:
				row[j] = v.String()
			case bool:
				row[j] = strconv.FormatBool(v)
			default:
				return nil, fmt.Errorf("row %d cell %d: unsupported value %T", i, j, cell)
			}
		}
		grid[i] = row
	}
	return grid, nil
}

func joinURL(base, rel string) string {
	return strings.TrimRight(base, "/") + "/" + rel
}
