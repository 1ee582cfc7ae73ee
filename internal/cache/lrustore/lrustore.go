// Package lrustore provides a bounded in-memory cache backend.
//
// Entries beyond the configured size are evicted least-recently-used
// first. An evicted entry surfaces as an ordinary cache miss, which the
// freshness layer already handles by fetching again.
package lrustore

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/rfoley/tapedeck/internal/cache"
)

// DefaultSize bounds the store when the caller passes a non-positive size.
const DefaultSize = 256

// Store is a fixed-capacity LRU keyed by cache key.
type Store struct {
	entries *lru.Cache[string, []byte]
}

var _ cache.Backend = (*Store)(nil)

// New returns a Store holding at most size entries.
func New(size int) *Store {
	if size <= 0 {
		size = DefaultSize
	}
	entries, err := lru.New[string, []byte](size)
	if err != nil {
		panic(err) // lru.New fails only for size <= 0
	}
	return &Store{entries: entries}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	raw, ok := s.entries.Get(key)
	return raw, ok, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.entries.Add(key, value)
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.entries.Remove(key)
	return nil
}

func (s *Store) Clear(_ context.Context) error {
	s.entries.Purge()
	return nil
}
