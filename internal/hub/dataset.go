package hub

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/rfoley/tapedeck/internal/cache"
	"github.com/rfoley/tapedeck/internal/dataset"
	"github.com/rfoley/tapedeck/internal/diff"
	"github.com/rfoley/tapedeck/internal/feed"
)

// View is the consumer-facing state of one dataset: the rows, whether a
// blocking fetch is underway, the last user-relevant error, and the summary
// of the most recent refresh. Reads return copies; the UI never shares
// memory with the fetch path.
type View struct {
	Data                dataset.Table
	Loading             bool
	Err                 error
	LastUpdated         time.Time
	LastChange          diff.Summary
	Version             int64
	ConsecutiveFailures int
}

// IsOffline reports whether the source has been unreachable for multiple
// refreshes in a row.
func (v View) IsOffline() bool {
	return v.ConsecutiveFailures >= 2
}

type refreshMode int

const (
	// modeAuto tries delta sync first, then the full tier chain.
	modeAuto refreshMode = iota
	// modeForce skips the delta path entirely: full tier chain only.
	modeForce
)

// Dataset is one consumer handle. All methods are safe for concurrent use.
type Dataset struct {
	hub      *Hub
	name     string
	src      feed.SourceConfig
	cacheKey string

	mu   sync.RWMutex
	view View
}

// Name returns the dataset's source name.
func (d *Dataset) Name() string { return d.name }

// Fetch returns the dataset's rows, fetching only as much as freshness
// demands: a fresh cache entry is returned as-is; a stale one is returned
// immediately while a background revalidation starts; a miss (or expired
// entry) blocks on a foreground fetch. Only that last, user-visible path can
// return an error.
func (d *Dataset) Fetch(ctx context.Context) (View, error) {
	entry, f := d.hub.store.Lookup(ctx, d.cacheKey)
	switch f {
	case cache.Fresh:
		d.adopt(entry)
		return d.View(), nil
	case cache.Stale:
		d.adopt(entry)
		// The revalidation must outlive the read that triggered it, so it
		// runs under the hub's background context, not the caller's.
		d.hub.sched.Revalidate(d.hub.backgroundCtx(ctx), d.cacheKey, func(ctx context.Context) error {
			return d.refresh(ctx, modeAuto).Err
		})
		return d.View(), nil
	}

	// Expired rows stay on screen while the blocking fetch runs.
	if entry != nil {
		d.adopt(entry)
	}
	_, err := d.blockingRefresh(ctx, modeAuto)
	return d.View(), err
}

// Refetch refreshes now, blocking until done. force bypasses both the cache
// and the delta path, walking the full tier chain the way the user's
// "refresh" action demands.
func (d *Dataset) Refetch(ctx context.Context, force bool) (View, Outcome) {
	if !force {
		view, err := d.Fetch(ctx)
		if err != nil {
			return view, failed(err)
		}
		return view, okOutcome()
	}
	outcome, err := d.blockingRefresh(ctx, modeForce)
	if err != nil && outcome.Err == nil {
		// Joined a flight someone else started; adopt its failure.
		outcome = failed(err)
	}
	return d.View(), outcome
}

// blockingRefresh runs a foreground refresh under the dataset's
// single-flight guard, so it joins any background revalidation already up
// instead of issuing a second fetch.
func (d *Dataset) blockingRefresh(ctx context.Context, mode refreshMode) (Outcome, error) {
	d.setLoading(true)
	defer d.setLoading(false)

	outcome := okOutcome()
	err := d.hub.sched.Do(ctx, d.cacheKey, func(ctx context.Context) error {
		outcome = d.refresh(ctx, mode)
		return outcome.Err
	})
	return outcome, err
}

// refresh fetches new rows, stores them, diffs them against the previous
// ones and publishes the result. Completion order decides the final state:
// when a manual refresh and a slower background poll overlap, whichever
// finishes last wins. That race is inherited behavior, kept on purpose.
func (d *Dataset) refresh(ctx context.Context, mode refreshMode) Outcome {
	old := d.currentRows()
	degradedReason := ""

	if mode == modeAuto && d.hub.deltaEnabled {
		res, err := d.hub.coord.SyncOnce(ctx, d.src, d.cacheKey, nil)
		if err == nil {
			return d.commit(old, res.Data, res.Version, "")
		}
		log.Printf("hub: %s delta sync failed, falling back to full fetch: %v", d.name, err)
		degradedReason = "delta sync failed"
	}

	snap, err := d.hub.fetcher.FetchSnapshot(ctx, d.src)
	if err != nil {
		return d.fail(fmt.Errorf("fetch %s: %w", d.name, err))
	}
	table, err := dataset.FromGrid(snap.Grid)
	if err != nil {
		return d.fail(fmt.Errorf("fetch %s: %w", d.name, err))
	}
	d.storeTable(ctx, table, snap.Version)
	return d.commit(old, table, snap.Version, degradedReason)
}

// pollOnce is the scheduler's periodic job: delta sync only, no tier-chain
// fallback, and silent failure. The scheduler logs and backs off.
func (d *Dataset) pollOnce(ctx context.Context) error {
	old := d.currentRows()
	res, err := d.hub.coord.SyncOnce(ctx, d.src, d.cacheKey, nil)
	if err != nil {
		d.recordSilentFailure()
		return err
	}
	d.commit(old, res.Data, res.Version, "")
	return nil
}

// storeTable caches a table fetched by the plain path. A versioned snapshot
// is stored as a delta entry so incremental sync can resume from it; an
// unversioned one gets a plain entry the delta path reads as absent.
func (d *Dataset) storeTable(ctx context.Context, table dataset.Table, version int64) {
	var err error
	if version > 0 {
		err = d.hub.store.SetDelta(ctx, d.cacheKey, table, version, d.hub.ttl)
		if errors.Is(err, cache.ErrVersionRegression) {
			if err = d.hub.store.Unset(ctx, d.cacheKey); err == nil {
				err = d.hub.store.SetDelta(ctx, d.cacheKey, table, version, d.hub.ttl)
			}
		}
	} else {
		err = d.hub.store.Set(ctx, d.cacheKey, table, d.hub.ttl)
	}
	if err != nil {
		log.Printf("hub: cache %s: %v", d.name, err)
	}
}

func (d *Dataset) keyOf(table dataset.Table) dataset.KeyFunc {
	if d.src.KeyColumn != "" {
		return dataset.KeyColumn(d.src.KeyColumn)
	}
	return table.Key()
}

// commit publishes freshly fetched rows to the view and raises a
// notification when the change is significant.
func (d *Dataset) commit(old []dataset.Record, table dataset.Table, version int64, degradedReason string) Outcome {
	summary := diff.Detect(old, table.Rows, d.keyOf(table), d.hub.threshold)

	d.mu.Lock()
	d.view.Data = table
	d.view.Err = nil
	d.view.LastUpdated = d.hub.clock.Now()
	d.view.LastChange = summary
	d.view.Version = version
	d.view.ConsecutiveFailures = 0
	d.mu.Unlock()

	if summary.Significant {
		if notify := d.hub.notifyFn(); notify != nil {
			notify(d.name, summary)
		}
	}
	if degradedReason != "" {
		return degraded(degradedReason)
	}
	return okOutcome()
}

// fail records a user-visible fetch failure. The previous rows are kept.
func (d *Dataset) fail(err error) Outcome {
	d.mu.Lock()
	d.view.Err = err
	d.view.ConsecutiveFailures++
	d.mu.Unlock()
	return failed(err)
}

// recordSilentFailure bumps the failure streak without surfacing an error;
// background polls degrade quietly but still feed the offline indicator.
func (d *Dataset) recordSilentFailure() {
	d.mu.Lock()
	d.view.ConsecutiveFailures++
	d.mu.Unlock()
}

// adopt publishes a cache entry to the view without touching the network.
func (d *Dataset) adopt(entry *cache.DeltaEntry[dataset.Table]) {
	updated := entry.StoredAt
	if entry.IsDelta && !entry.LastUpdated.IsZero() {
		updated = entry.LastUpdated
	}
	d.mu.Lock()
	d.view.Data = entry.Data
	d.view.Err = nil
	d.view.LastUpdated = updated
	d.view.Version = entry.Version
	d.mu.Unlock()
}

func (d *Dataset) setLoading(loading bool) {
	d.mu.Lock()
	d.view.Loading = loading
	d.mu.Unlock()
}

func (d *Dataset) currentRows() []dataset.Record {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.view.Data.Clone().Rows
}

// View returns a copy of the current state. The table is cloned, so callers
// can hold or mutate it freely.
func (d *Dataset) View() View {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v := d.view
	v.Data = d.view.Data.Clone()
	return v
}
