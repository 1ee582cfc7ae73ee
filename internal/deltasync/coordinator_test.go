package deltasync

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/rfoley/tapedeck/internal/cache"
	"github.com/rfoley/tapedeck/internal/dataset"
	"github.com/rfoley/tapedeck/internal/feed"
)

type memBackend struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemBackend() *memBackend { return &memBackend{data: make(map[string][]byte)} }

func (b *memBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	raw, ok := b.data[key]
	return raw, ok, nil
}

func (b *memBackend) Set(_ context.Context, key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = value
	return nil
}

func (b *memBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, key)
	return nil
}

func (b *memBackend) Clear(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = make(map[string][]byte)
	return nil
}

// fakeSource scripts the versioned tier.
type fakeSource struct {
	snapshots int
	polls     int
	snapshot  *feed.Snapshot
	snapErr   error
	poll      *feed.DeltaResult
	pollErr   error
}

func (f *fakeSource) FetchVersioned(context.Context, feed.SourceConfig) (*feed.Snapshot, error) {
	f.snapshots++
	if f.snapErr != nil {
		return nil, f.snapErr
	}
	return f.snapshot, nil
}

func (f *fakeSource) PollChanges(_ context.Context, _ feed.SourceConfig, since int64) (*feed.DeltaResult, error) {
	f.polls++
	if f.pollErr != nil {
		return nil, f.pollErr
	}
	res := *f.poll
	res.FromVersion = since
	return &res, nil
}

var testSrc = feed.SourceConfig{SourceName: "scores", BaseURL: "http://api.local", KeyColumn: "ticker"}

func newCoordinator(source Source) (*Coordinator, *cache.Store[dataset.Table]) {
	store := cache.New[dataset.Table](newMemBackend(), clockwork.NewFakeClock(), cache.Options{})
	return New(store, source, 0), store
}

func grid(rows ...[]string) [][]string {
	return append([][]string{{"ticker", "score"}}, rows...)
}

func rowKeys(t dataset.Table) []string {
	keys := make([]string, 0, t.Len())
	for _, r := range t.Rows {
		keys = append(keys, r["ticker"])
	}
	return keys
}

func TestInitSyncSnapshotsOnceThenServesCache(t *testing.T) {
	source := &fakeSource{snapshot: &feed.Snapshot{Version: 3, Grid: grid([]string{"AAPL", "92"})}}
	coord, _ := newCoordinator(source)

	res, err := coord.InitSync(context.Background(), testSrc, "scores", nil)
	if err != nil {
		t.Fatalf("InitSync returned error: %v", err)
	}
	if res.Version != 3 || res.Data.Len() != 1 {
		t.Fatalf("Result = v%d with %d rows, want v3 with 1", res.Version, res.Data.Len())
	}
	if coord.State("scores") != Synced {
		t.Errorf("state = %v, want synced", coord.State("scores"))
	}

	// Second call is served from cache.
	if _, err := coord.InitSync(context.Background(), testSrc, "scores", nil); err != nil {
		t.Fatalf("second InitSync returned error: %v", err)
	}
	if source.snapshots != 1 {
		t.Errorf("snapshot fetches = %d, want 1", source.snapshots)
	}
}

func TestInitSyncExpiredEntryRefetches(t *testing.T) {
	source := &fakeSource{snapshot: &feed.Snapshot{Version: 3, Grid: grid([]string{"AAPL", "92"})}}
	clock := clockwork.NewFakeClock()
	store := cache.New[dataset.Table](newMemBackend(), clock, cache.Options{})
	coord := New(store, source, 0)

	if _, err := coord.InitSync(context.Background(), testSrc, "scores", nil); err != nil {
		t.Fatalf("seed InitSync returned error: %v", err)
	}

	// Past the TTL the entry reads as a miss; serving it would leave the
	// dataset permanently off the network.
	clock.Advance(21 * time.Minute)
	source.snapshot = &feed.Snapshot{Version: 7, Grid: grid([]string{"NVDA", "99"})}

	res, err := coord.InitSync(context.Background(), testSrc, "scores", nil)
	if err != nil {
		t.Fatalf("InitSync returned error: %v", err)
	}
	if source.snapshots != 2 {
		t.Errorf("snapshot fetches = %d, want a refetch for the expired entry", source.snapshots)
	}
	if res.Version != 7 {
		t.Errorf("Version = %d, want the new snapshot's 7", res.Version)
	}
	if got := rowKeys(res.Data); !reflect.DeepEqual(got, []string{"NVDA"}) {
		t.Errorf("rows = %v, want the refetched rows", got)
	}
}

func TestInitSyncTransform(t *testing.T) {
	source := &fakeSource{snapshot: &feed.Snapshot{
		Version: 1,
		Grid:    grid([]string{"AAPL", "92"}, []string{"", "0"}),
	}}
	coord, _ := newCoordinator(source)

	dropBlank := func(tb dataset.Table) dataset.Table {
		out := tb.Clone()
		out.Rows = out.Rows[:0]
		for _, r := range tb.Rows {
			if r["ticker"] != "" {
				out.Rows = append(out.Rows, r)
			}
		}
		return out
	}
	res, err := coord.InitSync(context.Background(), testSrc, "scores", dropBlank)
	if err != nil {
		t.Fatalf("InitSync returned error: %v", err)
	}
	if got := rowKeys(res.Data); !reflect.DeepEqual(got, []string{"AAPL"}) {
		t.Errorf("rows = %v, want [AAPL]", got)
	}
}

func TestSyncOnceMergesChanges(t *testing.T) {
	source := &fakeSource{
		snapshot: &feed.Snapshot{Version: 3, Grid: grid([]string{"AAPL", "92"}, []string{"MSFT", "88"})},
		poll: &feed.DeltaResult{Version: 4, Changes: []feed.Change{
			{Key: "AAPL", Op: "upsert", Row: map[string]string{"ticker": "AAPL", "score": "95"}},
			{Key: "TSLA", Op: "upsert", Row: map[string]string{"ticker": "TSLA", "score": "70"}},
			{Key: "MSFT", Op: "delete"},
		}},
	}
	coord, store := newCoordinator(source)
	if _, err := coord.InitSync(context.Background(), testSrc, "scores", nil); err != nil {
		t.Fatalf("InitSync returned error: %v", err)
	}

	res, err := coord.SyncOnce(context.Background(), testSrc, "scores", nil)
	if err != nil {
		t.Fatalf("SyncOnce returned error: %v", err)
	}
	if res.Version != 4 {
		t.Errorf("Version = %d, want 4", res.Version)
	}
	if got := rowKeys(res.Data); !reflect.DeepEqual(got, []string{"AAPL", "TSLA"}) {
		t.Errorf("rows = %v, want [AAPL TSLA]", got)
	}
	if got := res.Data.Rows[0]["score"]; got != "95" {
		t.Errorf("AAPL score = %q, want 95", got)
	}

	entry, ok := store.GetDelta(context.Background(), "scores")
	if !ok || entry.Version != 4 {
		t.Fatalf("cached entry = %+v, want version 4", entry)
	}
}

func TestApplyChangesIsIdempotent(t *testing.T) {
	source := &fakeSource{
		snapshot: &feed.Snapshot{Version: 1, Grid: grid([]string{"AAPL", "92"})},
	}
	coord, _ := newCoordinator(source)
	if _, err := coord.InitSync(context.Background(), testSrc, "scores", nil); err != nil {
		t.Fatalf("InitSync returned error: %v", err)
	}

	batch := &feed.DeltaResult{Version: 2, Changes: []feed.Change{
		{Key: "AAPL", Op: "upsert", Row: map[string]string{"ticker": "AAPL", "score": "93"}},
		{Key: "NVDA", Op: "upsert", Row: map[string]string{"ticker": "NVDA", "score": "99"}},
	}}
	keyOf := dataset.KeyColumn("ticker")

	first, err := coord.ApplyChanges(context.Background(), batch, "scores", keyOf)
	if err != nil {
		t.Fatalf("first apply returned error: %v", err)
	}
	second, err := coord.ApplyChanges(context.Background(), batch, "scores", keyOf)
	if err != nil {
		t.Fatalf("second apply returned error: %v", err)
	}
	if !reflect.DeepEqual(first.Data.Rows, second.Data.Rows) {
		t.Errorf("re-applied batch changed data:\nfirst  %v\nsecond %v", first.Data.Rows, second.Data.Rows)
	}
	if second.Version != 2 {
		t.Errorf("Version = %d, want 2", second.Version)
	}
}

func TestApplyChangesLastOpWins(t *testing.T) {
	source := &fakeSource{
		snapshot: &feed.Snapshot{Version: 1, Grid: grid([]string{"AAPL", "92"})},
	}
	coord, _ := newCoordinator(source)
	if _, err := coord.InitSync(context.Background(), testSrc, "scores", nil); err != nil {
		t.Fatalf("InitSync returned error: %v", err)
	}

	batch := &feed.DeltaResult{Version: 2, Changes: []feed.Change{
		{Key: "AAPL", Op: "upsert", Row: map[string]string{"ticker": "AAPL", "score": "50"}},
		{Key: "AAPL", Op: "delete"},
	}}
	res, err := coord.ApplyChanges(context.Background(), batch, "scores", dataset.KeyColumn("ticker"))
	if err != nil {
		t.Fatalf("ApplyChanges returned error: %v", err)
	}
	if res.Data.Len() != 0 {
		t.Errorf("rows = %v, want none after trailing delete", res.Data.Rows)
	}
}

func TestNeedsReloadTriggersSnapshotNotMerge(t *testing.T) {
	source := &fakeSource{
		snapshot: &feed.Snapshot{Version: 5, Grid: grid([]string{"AAPL", "92"})},
		poll:     &feed.DeltaResult{NeedsReload: true},
	}
	coord, _ := newCoordinator(source)
	if _, err := coord.InitSync(context.Background(), testSrc, "scores", nil); err != nil {
		t.Fatalf("InitSync returned error: %v", err)
	}
	source.snapshot = &feed.Snapshot{Version: 9, Grid: grid([]string{"NVDA", "99"})}

	res, err := coord.SyncOnce(context.Background(), testSrc, "scores", nil)
	if err != nil {
		t.Fatalf("SyncOnce returned error: %v", err)
	}
	if res.Version != 9 {
		t.Errorf("Version = %d, want the reload snapshot's 9", res.Version)
	}
	if got := rowKeys(res.Data); !reflect.DeepEqual(got, []string{"NVDA"}) {
		t.Errorf("rows = %v, want the snapshot rows, not a merge", got)
	}
	if source.snapshots != 2 {
		t.Errorf("snapshot fetches = %d, want 2", source.snapshots)
	}
}

func TestVersionRegressionForcesReload(t *testing.T) {
	source := &fakeSource{
		snapshot: &feed.Snapshot{Version: 10, Grid: grid([]string{"AAPL", "92"})},
		poll: &feed.DeltaResult{Version: 4, Changes: []feed.Change{
			{Key: "AAPL", Op: "delete"},
		}},
	}
	coord, _ := newCoordinator(source)
	if _, err := coord.InitSync(context.Background(), testSrc, "scores", nil); err != nil {
		t.Fatalf("InitSync returned error: %v", err)
	}

	res, err := coord.SyncOnce(context.Background(), testSrc, "scores", nil)
	if err != nil {
		t.Fatalf("SyncOnce returned error: %v", err)
	}
	// The regressed batch must not be merged; the reload snapshot wins.
	if res.Data.Len() != 1 || res.Version != 10 {
		t.Errorf("Result = v%d with %d rows, want v10 with 1", res.Version, res.Data.Len())
	}
	if source.snapshots != 2 {
		t.Errorf("snapshot fetches = %d, want reload", source.snapshots)
	}
}

func TestPollFailureIsSyncError(t *testing.T) {
	source := &fakeSource{
		snapshot: &feed.Snapshot{Version: 1, Grid: grid([]string{"AAPL", "92"})},
		pollErr:  fmt.Errorf("connection refused"),
	}
	coord, _ := newCoordinator(source)
	if _, err := coord.InitSync(context.Background(), testSrc, "scores", nil); err != nil {
		t.Fatalf("InitSync returned error: %v", err)
	}

	_, err := coord.SyncOnce(context.Background(), testSrc, "scores", nil)
	var syncErr *SyncError
	if !errors.As(err, &syncErr) {
		t.Fatalf("error = %v, want *SyncError", err)
	}
	if coord.State("scores") != Degraded {
		t.Errorf("state = %v, want degraded", coord.State("scores"))
	}
}

func TestUnknownOpRejected(t *testing.T) {
	source := &fakeSource{
		snapshot: &feed.Snapshot{Version: 1, Grid: grid([]string{"AAPL", "92"})},
	}
	coord, _ := newCoordinator(source)
	if _, err := coord.InitSync(context.Background(), testSrc, "scores", nil); err != nil {
		t.Fatalf("InitSync returned error: %v", err)
	}

	batch := &feed.DeltaResult{Version: 2, Changes: []feed.Change{{Key: "AAPL", Op: "truncate"}}}
	_, err := coord.ApplyChanges(context.Background(), batch, "scores", dataset.KeyColumn("ticker"))
	var syncErr *SyncError
	if !errors.As(err, &syncErr) {
		t.Fatalf("error = %v, want *SyncError for unknown op", err)
	}
}
