// Package deltasync keeps cached datasets current by transferring only the
// rows that changed since the version already on hand.
//
// # Lifecycle
//
// Each cache key moves through a small state machine:
//
//	Uninitialized → Snapshotting → Synced ⇄ Polling → Degraded
//
// InitSync establishes the versioned entry (from cache when one exists, from
// a full snapshot otherwise). SyncOnce then polls for changes since the
// cached version and merges them. Whenever the server cannot diff
// (needsReload), or the reported version precedes the cached one, the
// coordinator abandons merging and takes a fresh snapshot instead; a batch
// flagged needsReload is never merged.
//
// # Guarantees
//
// A key's cached version never decreases across successful syncs; the cache
// store enforces that independently with ErrVersionRegression. Merging is
// idempotent: re-applying a batch the cache already reflects produces the
// same table. Within one batch, later operations on a key override earlier
// ones.
//
// # Failure Policy
//
// Every failure on this path is wrapped in a SyncError and the key marked
// Degraded. Callers never show these to users: the fetch layer logs them and
// falls back to the plain tier chain for that attempt.
package deltasync
