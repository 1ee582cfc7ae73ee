// Package cache implements the keyed payload store with TTL-based freshness
// classification that the sync and revalidation layers build on.
//
// # Overview
//
// Every dataset tapedeck tracks lives under one cache key. A successful fetch
// overwrites the whole entry; nothing ever mutates an entry in place. Reads
// classify the entry's age into Fresh, Stale, Expired or Missing, and the
// caller decides what to do with that: serve it, serve it while refreshing in
// the background, or treat it as a miss and fetch in the foreground.
//
// # Freshness Model
//
// Classification is a pure function of now minus StoredAt:
//
//	age < FreshFor          → Fresh   (serve, do nothing)
//	FreshFor ≤ age < TTL    → Stale   (serve, refresh in background)
//	TTL ≤ age               → Expired (behaves exactly like a miss)
//	no record               → Missing
//
// FreshFor defaults to 5 minutes and the per-entry TTL to 20 minutes; both
// are configurable. Expired records are ignored rather than deleted so a
// caller that wants optimistic display can still Lookup the old rows while a
// blocking fetch runs.
//
// # Backends
//
// The Store is generic over its payload and delegates persistence to a
// Backend: a minimal keyed byte store (Get/Set/Delete/Clear). Three backends
// ship with tapedeck:
//
//   - lrustore: bounded in-memory store, the default
//   - filestore: one file per key under the user's cache directory
//   - pgstore: a single-table Postgres document store for headless deployments
//
// A Backend failure is never fatal: read errors (including undecodable
// payloads) degrade to a miss, write errors are returned but callers are free
// to ignore them. A broken cache must never break a data fetch.
//
// # Versioned Entries
//
// The delta-sync path stores DeltaEntry records carrying the dataset version
// the server reported. SetDelta refuses to move a key's version backwards
// (ErrVersionRegression); the sync coordinator reacts to that by forcing a
// full reload. Plain Set writes a version-less entry, which the delta path
// treats as absent.
//
// # Time
//
// The clock is constructor-injected (clockwork.Clock); tests drive freshness
// transitions with a fake clock instead of sleeping.
package cache
