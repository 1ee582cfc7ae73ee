package hub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/rfoley/tapedeck/internal/cache"
	"github.com/rfoley/tapedeck/internal/dataset"
	"github.com/rfoley/tapedeck/internal/deltasync"
	"github.com/rfoley/tapedeck/internal/diff"
	"github.com/rfoley/tapedeck/internal/feed"
	"github.com/rfoley/tapedeck/internal/revalidate"
)

// NotifyFunc receives the change summary of a refresh whose magnitude
// crossed the significance threshold.
type NotifyFunc func(name string, change diff.Summary)

// Options wire a Hub. Store, Fetcher, Coordinator, Scheduler and Clock are
// required.
type Options struct {
	Store       *cache.Store[dataset.Table]
	Fetcher     feed.Fetcher
	Coordinator *deltasync.Coordinator
	Scheduler   *revalidate.Scheduler
	Clock       clockwork.Clock

	// DeltaEnabled turns the versioned sync path on. Off, every refresh
	// walks the plain tier chain and the poll loop stands down.
	DeltaEnabled bool
	// TTL for cached entries; non-positive picks the store default.
	TTL time.Duration
	// DiffThreshold for change significance; non-positive picks
	// diff.DefaultThreshold.
	DiffThreshold float64
}

// Hub hands out one Dataset handle per configured source and owns the pieces
// they share. It is the boundary the UI consumes.
type Hub struct {
	store        *cache.Store[dataset.Table]
	fetcher      feed.Fetcher
	coord        *deltasync.Coordinator
	sched        *revalidate.Scheduler
	clock        clockwork.Clock
	deltaEnabled bool
	ttl          time.Duration
	threshold    float64

	mu       sync.RWMutex
	datasets map[string]*Dataset
	order    []string
	notify   NotifyFunc
	bg       context.Context
}

// New builds an empty Hub; add sources with Register.
func New(opts Options) *Hub {
	return &Hub{
		store:        opts.Store,
		fetcher:      opts.Fetcher,
		coord:        opts.Coordinator,
		sched:        opts.Scheduler,
		clock:        opts.Clock,
		deltaEnabled: opts.DeltaEnabled,
		ttl:          opts.TTL,
		threshold:    opts.DiffThreshold,
		datasets:     make(map[string]*Dataset),
	}
}

// Register adds a dataset for the given source. An invalid source config is
// fatal for that dataset and reported here, before any fetch is attempted.
func (h *Hub) Register(src feed.SourceConfig) (*Dataset, error) {
	if err := src.Validate(); err != nil {
		return nil, fmt.Errorf("register dataset: %w", err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.datasets[src.SourceName]; exists {
		return nil, fmt.Errorf("register dataset: %q already registered", src.SourceName)
	}
	d := &Dataset{
		hub:      h,
		name:     src.SourceName,
		src:      src,
		cacheKey: "dataset:" + src.SourceName,
	}
	h.datasets[src.SourceName] = d
	h.order = append(h.order, src.SourceName)
	return d, nil
}

// Dataset returns the handle for name, or nil when unregistered.
func (h *Hub) Dataset(name string) *Dataset {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.datasets[name]
}

// Datasets returns all handles in registration order.
func (h *Hub) Datasets() []*Dataset {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Dataset, 0, len(h.order))
	for _, name := range h.order {
		out = append(out, h.datasets[name])
	}
	return out
}

// SetNotify installs the callback for significant changes. One callback
// serves the whole hub; passing nil disables notification.
func (h *Hub) SetNotify(fn NotifyFunc) {
	h.mu.Lock()
	h.notify = fn
	h.mu.Unlock()
}

func (h *Hub) notifyFn() NotifyFunc {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.notify
}

// backgroundCtx is the context background refreshes run under: the polling
// context once StartPolling recorded one, else the caller's own.
func (h *Hub) backgroundCtx(fallback context.Context) context.Context {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.bg != nil {
		return h.bg
	}
	return fallback
}

// StartPolling launches the periodic delta-sync loop for every registered
// dataset. The context also becomes the anchor for background revalidations
// kicked off by stale reads, so a short-lived caller context cannot cancel
// them. With delta sync disabled only that anchor is recorded; the cache's
// stale-while-revalidate path still refreshes on reads.
func (h *Hub) StartPolling(ctx context.Context) {
	h.mu.Lock()
	h.bg = ctx
	h.mu.Unlock()
	if !h.deltaEnabled {
		return
	}
	for _, d := range h.Datasets() {
		d := d
		h.sched.StartPolling(ctx, d.cacheKey, d.pollOnce)
	}
}

// RefreshAll drops the whole cache and refetches every dataset through the
// full tier chain, concurrently. The first failure is returned but the other
// datasets still finish.
func (h *Hub) RefreshAll(ctx context.Context) error {
	if err := h.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, d := range h.Datasets() {
		d := d
		g.Go(func() error {
			_, outcome := d.Refetch(ctx, true)
			return outcome.Err
		})
	}
	return g.Wait()
}
