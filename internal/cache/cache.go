package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jonboulle/clockwork"
)

// Default freshness thresholds, overridable per store via Options.
const (
	DefaultFreshFor = 5 * time.Minute
	DefaultStaleFor = 20 * time.Minute
)

// ErrVersionRegression is returned by SetDelta when a write would move a
// key's version backwards. Callers treat it as a consistency violation and
// reload from a full snapshot.
var ErrVersionRegression = errors.New("cache: version regression")

// Backend is the minimal keyed byte store a Store persists into. Backends
// must be safe for concurrent use. Get returns found=false for absent keys
// and reserves the error return for storage failures.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// Options tune a Store's freshness thresholds. Zero values pick the defaults.
type Options struct {
	// FreshFor is the age below which an entry reads as Fresh.
	FreshFor time.Duration
	// StaleFor is the TTL applied to entries written without an explicit one;
	// an entry older than its TTL reads as Expired (a miss).
	StaleFor time.Duration
}

// Store is a typed cache over a byte Backend. Entries are JSON-encoded; a
// payload that fails to decode is treated as a miss, never as an error.
type Store[T any] struct {
	backend  Backend
	clock    clockwork.Clock
	freshFor time.Duration
	staleFor time.Duration
}

// New builds a Store on the given backend and clock.
func New[T any](backend Backend, clock clockwork.Clock, opts Options) *Store[T] {
	freshFor := opts.FreshFor
	if freshFor <= 0 {
		freshFor = DefaultFreshFor
	}
	staleFor := opts.StaleFor
	if staleFor <= 0 {
		staleFor = DefaultStaleFor
	}
	return &Store[T]{
		backend:  backend,
		clock:    clock,
		freshFor: freshFor,
		staleFor: staleFor,
	}
}

// Get returns the entry for key when it is Fresh or Stale. Expired and absent
// keys read as a miss, as do storage or decode failures.
func (s *Store[T]) Get(ctx context.Context, key string) (*Entry[T], bool) {
	e, f := s.Lookup(ctx, key)
	if !f.Usable() {
		return nil, false
	}
	return &e.Entry, true
}

// Lookup returns the stored entry together with its freshness class. Unlike
// Get it also returns Expired entries, so callers can keep old rows on screen
// while a blocking refresh runs. The entry is nil only for Missing.
func (s *Store[T]) Lookup(ctx context.Context, key string) (*DeltaEntry[T], Freshness) {
	e, ok := s.read(ctx, key)
	if !ok {
		return nil, Missing
	}
	return e, s.classify(e)
}

// GetDelta returns the versioned entry for key when one exists and has not
// expired. Entries written by the plain full-fetch path carry no version and
// read as a miss here.
func (s *Store[T]) GetDelta(ctx context.Context, key string) (*DeltaEntry[T], bool) {
	e, f := s.Lookup(ctx, key)
	if e == nil || !e.IsDelta || !f.Usable() {
		return nil, false
	}
	return e, true
}

// Set overwrites key with data. A non-positive ttl picks the store default.
// The write is atomic from a reader's point of view: readers observe either
// the old entry or the new one, never a blend.
func (s *Store[T]) Set(ctx context.Context, key string, data T, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.staleFor
	}
	return s.write(ctx, key, &DeltaEntry[T]{
		Entry: Entry[T]{Key: key, Data: data, StoredAt: s.clock.Now(), TTL: ttl},
	})
}

// SetDelta overwrites key with versioned data. Writes that would lower the
// stored version fail with ErrVersionRegression and leave the entry alone.
func (s *Store[T]) SetDelta(ctx context.Context, key string, data T, version int64, ttl time.Duration) error {
	if cur, ok := s.read(ctx, key); ok && cur.IsDelta && version < cur.Version {
		return fmt.Errorf("cache: key %q version %d behind stored %d: %w",
			key, version, cur.Version, ErrVersionRegression)
	}
	if ttl <= 0 {
		ttl = s.staleFor
	}
	now := s.clock.Now()
	return s.write(ctx, key, &DeltaEntry[T]{
		Entry:       Entry[T]{Key: key, Data: data, StoredAt: now, TTL: ttl},
		Version:     version,
		LastUpdated: now,
		IsDelta:     true,
	})
}

// IsFresh reports whether key holds an entry younger than the fresh
// threshold.
func (s *Store[T]) IsFresh(ctx context.Context, key string) bool {
	_, f := s.Lookup(ctx, key)
	return f == Fresh
}

// IsStale reports whether key holds an entry past the fresh threshold but
// still inside its TTL. IsFresh and IsStale are mutually exclusive.
func (s *Store[T]) IsStale(ctx context.Context, key string) bool {
	_, f := s.Lookup(ctx, key)
	return f == Stale
}

// Unset removes one key. The sync layer uses it before re-snapshotting a
// dataset whose server-side version history moved backwards; SetDelta would
// otherwise keep refusing the write.
func (s *Store[T]) Unset(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, key)
}

// Clear drops every entry. Used by the user-facing "refresh everything"
// action.
func (s *Store[T]) Clear(ctx context.Context) error {
	return s.backend.Clear(ctx)
}

func (s *Store[T]) classify(e *DeltaEntry[T]) Freshness {
	age := s.clock.Now().Sub(e.StoredAt)
	ttl := e.TTL
	if ttl <= 0 {
		ttl = s.staleFor
	}
	fresh := s.freshFor
	if fresh > ttl {
		fresh = ttl
	}
	switch {
	case age < fresh:
		return Fresh
	case age < ttl:
		return Stale
	default:
		return Expired
	}
}

func (s *Store[T]) read(ctx context.Context, key string) (*DeltaEntry[T], bool) {
	raw, found, err := s.backend.Get(ctx, key)
	if err != nil {
		log.Printf("cache: read %q failed, treating as miss: %v", key, err)
		return nil, false
	}
	if !found {
		return nil, false
	}
	var e DeltaEntry[T]
	if err := json.Unmarshal(raw, &e); err != nil {
		log.Printf("cache: decode %q failed, treating as miss: %v", key, err)
		return nil, false
	}
	return &e, true
}

func (s *Store[T]) write(ctx context.Context, key string, e *DeltaEntry[T]) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode cache entry %q: %w", key, err)
	}
	if err := s.backend.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("store cache entry %q: %w", key, err)
	}
	return nil
}
