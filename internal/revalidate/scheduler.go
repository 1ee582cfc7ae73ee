package revalidate

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultInterval is the delta-poll cadence.
	DefaultInterval = 15 * time.Minute
	// DefaultInitialDelay staggers the first poll after start so a dashboard
	// with several datasets does not open with a burst of requests.
	DefaultInitialDelay = 5 * time.Second
	// maxBackoff caps the failure backoff regardless of streak length.
	maxBackoff = time.Hour
)

// Visibility reports whether the dashboard is currently on screen. All
// background work is gated on it: nothing fetches or polls while hidden.
type Visibility interface {
	Visible() bool
}

// VisibilityFunc adapts a func to the Visibility interface.
type VisibilityFunc func() bool

func (f VisibilityFunc) Visible() bool { return f() }

// Always is the Visibility for headless use: never hidden.
var Always Visibility = VisibilityFunc(func() bool { return true })

// Job is one unit of refresh work. Errors are the scheduler's to log; they
// never propagate past it.
type Job func(ctx context.Context) error

// Options tune a Scheduler. Zero values pick the defaults.
type Options struct {
	Interval     time.Duration
	InitialDelay time.Duration
}

// Scheduler decides when each dataset refreshes in the background. It owns
// the per-key single-flight guard and the periodic poll loops; it never
// decides what a refresh does, only when one may run.
type Scheduler struct {
	clock        clockwork.Clock
	visibility   Visibility
	interval     time.Duration
	initialDelay time.Duration

	group singleflight.Group
	wg    sync.WaitGroup
}

// New builds a Scheduler. A nil visibility means Always.
func New(clock clockwork.Clock, visibility Visibility, opts Options) *Scheduler {
	if visibility == nil {
		visibility = Always
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	initialDelay := opts.InitialDelay
	if initialDelay <= 0 {
		initialDelay = DefaultInitialDelay
	}
	return &Scheduler{
		clock:        clock,
		visibility:   visibility,
		interval:     interval,
		initialDelay: initialDelay,
	}
}

// Do runs job under key's single-flight guard, blocking until it completes.
// A caller arriving while another flight for key is up joins that flight and
// observes its result; exactly one job executes.
func (s *Scheduler) Do(ctx context.Context, key string, job Job) error {
	_, err, _ := s.group.Do(key, func() (any, error) {
		return nil, job(ctx)
	})
	return err
}

// Revalidate kicks off a non-blocking background refresh for key, joined to
// any flight already up for it. Nothing runs while the dashboard is hidden.
// Failures are logged and swallowed.
func (s *Scheduler) Revalidate(ctx context.Context, key string, job Job) {
	if !s.visibility.Visible() {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.Do(ctx, key, job); err != nil {
			log.Printf("revalidate %s: %v", key, err)
		}
	}()
}

// StartPolling runs poll for key on the configured cadence until ctx is
// cancelled: first after the initial delay, then every interval. Ticks that
// land while hidden are skipped, not queued; becoming visible again simply
// resumes the cadence. Consecutive failures back the cadence off
// exponentially until the next success.
func (s *Scheduler) StartPolling(ctx context.Context, key string, poll Job) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		failures := 0
		wait := s.initialDelay
		for {
			timer := s.clock.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.Chan():
			}

			if !s.visibility.Visible() {
				wait = s.interval
				continue
			}

			if err := s.Do(ctx, key, poll); err != nil {
				failures++
				wait = calculateBackoff(failures, s.interval)
				log.Printf("poll %s failed (%d consecutive): %v", key, failures, err)
				continue
			}
			failures = 0
			wait = s.interval
		}
	}()
}

// Wait blocks until every background goroutine has returned. Call after
// cancelling the context that drives them.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// calculateBackoff doubles the base interval per consecutive failure, capped
// at maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	d := base
	for i := 0; i < failures; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}
