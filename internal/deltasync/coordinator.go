package deltasync

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/rfoley/tapedeck/internal/cache"
	"github.com/rfoley/tapedeck/internal/dataset"
	"github.com/rfoley/tapedeck/internal/feed"
)

// State tracks where a dataset sits in the sync lifecycle.
type State int

const (
	Uninitialized State = iota
	Snapshotting
	Synced
	Polling
	Degraded
)

func (s State) String() string {
	switch s {
	case Snapshotting:
		return "snapshotting"
	case Synced:
		return "synced"
	case Polling:
		return "polling"
	case Degraded:
		return "degraded"
	default:
		return "uninitialized"
	}
}

// Source is the slice of the transport the coordinator needs: the
// versioned tier only. feed.Client implements it.
type Source interface {
	FetchVersioned(ctx context.Context, src feed.SourceConfig) (*feed.Snapshot, error)
	PollChanges(ctx context.Context, src feed.SourceConfig, since int64) (*feed.DeltaResult, error)
}

// Transform reshapes a freshly fetched table before it is cached, e.g. to
// drop helper columns or reorder rows. Nil means identity.
type Transform func(dataset.Table) dataset.Table

// Result is the outcome of a sync step. NeedsReload means the delta path
// could not produce data and the caller must fetch a full snapshot.
type Result struct {
	Data        dataset.Table
	Version     int64
	NeedsReload bool
}

// SyncError marks a failure on the versioned path. It is never surfaced to
// users: the fetch layer reacts by falling back to the plain tier chain.
type SyncError struct {
	Op  string
	Key string
	Err error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("delta sync %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// Coordinator drives version-based incremental sync for each cached dataset.
// It owns the per-key sync state machine; the cache store holds the data.
type Coordinator struct {
	store  *cache.Store[dataset.Table]
	source Source
	ttl    time.Duration

	mu     sync.Mutex
	states map[string]State
}

// New builds a Coordinator over the given cache store and versioned source.
// A non-positive ttl lets the store apply its default.
func New(store *cache.Store[dataset.Table], source Source, ttl time.Duration) *Coordinator {
	return &Coordinator{
		store:  store,
		source: source,
		ttl:    ttl,
		states: make(map[string]State),
	}
}

// State reports the sync state for a cache key.
func (c *Coordinator) State(key string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[key]
}

func (c *Coordinator) setState(key string, s State) {
	c.mu.Lock()
	c.states[key] = s
	c.mu.Unlock()
}

// InitSync establishes a versioned entry for cacheKey. An existing fresh or
// stale versioned entry is returned as-is, without network access; an expired
// one reads as a miss here like everywhere else. Otherwise a full snapshot is
// fetched from the versioned tier, transformed, and stored under its version.
// Errors propagate so the caller can fall back to the plain fetch path.
func (c *Coordinator) InitSync(ctx context.Context, src feed.SourceConfig, cacheKey string, transform Transform) (Result, error) {
	if entry, ok := c.store.GetDelta(ctx, cacheKey); ok {
		c.setState(cacheKey, Synced)
		return Result{Data: entry.Data, Version: entry.Version}, nil
	}
	return c.reload(ctx, src, cacheKey, transform)
}

// PollChanges asks the source for rows changed since the given version.
func (c *Coordinator) PollChanges(ctx context.Context, src feed.SourceConfig, since int64) (*feed.DeltaResult, error) {
	res, err := c.source.PollChanges(ctx, src, since)
	if err != nil {
		return nil, &SyncError{Op: "poll", Key: src.SourceName, Err: err}
	}
	return res, nil
}

// ApplyChanges merges a delta batch into the cached table. Changes apply in
// batch order, so the last operation for a key wins, and re-applying the
// same batch leaves the data unchanged. A NeedsReload batch is never merged,
// and neither is one whose version precedes the cached one; both come back as
// Result{NeedsReload: true} for the caller to resolve with a snapshot.
func (c *Coordinator) ApplyChanges(ctx context.Context, res *feed.DeltaResult, cacheKey string, key dataset.KeyFunc) (Result, error) {
	if res.NeedsReload {
		return Result{NeedsReload: true}, nil
	}
	entry, ok := c.store.GetDelta(ctx, cacheKey)
	if !ok {
		return Result{NeedsReload: true}, nil
	}
	if res.Version < entry.Version {
		log.Printf("deltasync: %s version %d behind cached %d, forcing reload",
			cacheKey, res.Version, entry.Version)
		return Result{NeedsReload: true}, nil
	}

	changes := make([]dataset.Change, 0, len(res.Changes))
	for _, ch := range res.Changes {
		op := dataset.Op(ch.Op)
		if op != dataset.OpUpsert && op != dataset.OpDelete {
			return Result{}, &SyncError{Op: "apply", Key: cacheKey,
				Err: fmt.Errorf("unknown change op %q", ch.Op)}
		}
		changes = append(changes, dataset.Change{Key: ch.Key, Op: op, Row: dataset.Record(ch.Row)})
	}

	merged := entry.Data.Apply(changes, key)
	if err := c.store.SetDelta(ctx, cacheKey, merged, res.Version, c.ttl); err != nil {
		return Result{}, &SyncError{Op: "apply", Key: cacheKey, Err: err}
	}
	return Result{Data: merged, Version: res.Version}, nil
}

// SyncOnce performs one incremental sync round for cacheKey: poll since the
// cached version, merge the batch, and fall back to a fresh snapshot when
// either side reports it cannot diff. Any error is a SyncError; callers log
// it and drop to the plain fetch path for the attempt.
func (c *Coordinator) SyncOnce(ctx context.Context, src feed.SourceConfig, cacheKey string, transform Transform) (Result, error) {
	entry, ok := c.store.GetDelta(ctx, cacheKey)
	if !ok {
		return c.InitSync(ctx, src, cacheKey, transform)
	}

	c.setState(cacheKey, Polling)
	res, err := c.PollChanges(ctx, src, entry.Version)
	if err != nil {
		c.setState(cacheKey, Degraded)
		return Result{}, err
	}

	keyOf := entry.Data.Key()
	if src.KeyColumn != "" {
		keyOf = dataset.KeyColumn(src.KeyColumn)
	}
	applied, err := c.ApplyChanges(ctx, res, cacheKey, keyOf)
	if err != nil {
		c.setState(cacheKey, Degraded)
		return Result{}, err
	}
	if applied.NeedsReload {
		if err := c.store.Unset(ctx, cacheKey); err != nil {
			log.Printf("deltasync: drop %s before reload: %v", cacheKey, err)
		}
		return c.reload(ctx, src, cacheKey, transform)
	}
	c.setState(cacheKey, Synced)
	return applied, nil
}

func (c *Coordinator) reload(ctx context.Context, src feed.SourceConfig, cacheKey string, transform Transform) (Result, error) {
	c.setState(cacheKey, Snapshotting)
	snap, err := c.source.FetchVersioned(ctx, src)
	if err != nil {
		c.setState(cacheKey, Degraded)
		return Result{}, &SyncError{Op: "snapshot", Key: cacheKey, Err: err}
	}
	table, err := dataset.FromGrid(snap.Grid)
	if err != nil {
		c.setState(cacheKey, Degraded)
		return Result{}, &SyncError{Op: "snapshot", Key: cacheKey, Err: err}
	}
	if transform != nil {
		table = transform(table)
	}
	if err := c.store.SetDelta(ctx, cacheKey, table, snap.Version, c.ttl); err != nil {
		c.setState(cacheKey, Degraded)
		return Result{}, &SyncError{Op: "snapshot", Key: cacheKey, Err: err}
	}
	c.setState(cacheKey, Synced)
	return Result{Data: table, Version: snap.Version}, nil
}
