package app

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/rfoley/tapedeck/internal/cache"
	"github.com/rfoley/tapedeck/internal/cache/filestore"
	"github.com/rfoley/tapedeck/internal/cache/lrustore"
	"github.com/rfoley/tapedeck/internal/cache/pgstore"
	"github.com/rfoley/tapedeck/internal/config"
	"github.com/rfoley/tapedeck/internal/dataset"
	"github.com/rfoley/tapedeck/internal/deltasync"
	"github.com/rfoley/tapedeck/internal/feed"
	"github.com/rfoley/tapedeck/internal/hub"
	"github.com/rfoley/tapedeck/internal/prefs"
	"github.com/rfoley/tapedeck/internal/revalidate"
	"github.com/rfoley/tapedeck/internal/ui"
)

// Options configure the tapedeck application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/tapedeck/prefs.toml
	PollEvery  time.Duration
}

// Run boots the dashboard until the context is cancelled or the user quits.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	if opts.PollEvery > 0 {
		cfg.PollInterval = opts.PollEvery
	}

	userPrefs, _ := prefs.Load(opts.PrefsPath)

	backend, closeBackend, err := newBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBackend()

	clock := clockwork.NewRealClock()
	store := cache.New[dataset.Table](backend, clock, cache.Options{
		FreshFor: cfg.FreshFor,
		StaleFor: cfg.StaleFor,
	})

	client := feed.NewClient(feed.Options{
		Proxies: cfg.Proxies,
		Timeout: cfg.RequestTimeout,
	})

	// The UI flips this on terminal focus/blur; the scheduler reads it
	// before every background fetch and poll tick.
	var visible atomic.Bool
	visible.Store(true)

	sched := revalidate.New(clock, revalidate.VisibilityFunc(visible.Load), revalidate.Options{
		Interval:     cfg.PollInterval,
		InitialDelay: cfg.InitialPollDelay,
	})

	h := hub.New(hub.Options{
		Store:        store,
		Fetcher:      client,
		Coordinator:  deltasync.New(store, client, cfg.StaleFor),
		Scheduler:    sched,
		Clock:        clock,
		DeltaEnabled: cfg.DeltaSync,
		TTL:          cfg.StaleFor,
	})
	for _, src := range cfg.Sources() {
		if _, err := h.Register(src); err != nil {
			return err
		}
	}

	pollCtx, stopPolling := context.WithCancel(ctx)
	defer stopPolling()
	h.StartPolling(pollCtx)

	err = ui.Run(ui.Options{
		Context:        ctx,
		Hub:            h,
		ThemeName:      userPrefs.Theme,
		PrefsPath:      opts.PrefsPath,
		InitialDataset: userPrefs.LastDataset,
		SetVisible:     visible.Store,
	})

	stopPolling()
	sched.Wait()
	return err
}

// newBackend builds the cache backend the config selects, plus its cleanup.
func newBackend(ctx context.Context, cfg config.Config) (cache.Backend, func(), error) {
	switch cfg.CacheBackend {
	case "file":
		store, err := filestore.New(cfg.CacheDir)
		if err != nil {
			return nil, nil, fmt.Errorf("init file cache: %w", err)
		}
		return store, func() {}, nil
	case "postgres":
		store, err := pgstore.Open(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, fmt.Errorf("init postgres cache: %w", err)
		}
		return store, func() {
			if err := store.Close(); err != nil {
				log.Printf("close postgres cache: %v", err)
			}
		}, nil
	default:
		return lrustore.New(0), func() {}, nil
	}
}
