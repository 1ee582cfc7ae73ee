// Package hub is the consumer boundary of the freshness engine: one Dataset
// handle per configured source, each exposing the rows, a loading flag, the
// last error and the last-change summary.
//
// # Read Path
//
// Dataset.Fetch consults the cache first and does the least work freshness
// allows:
//
//	fresh  → return the cached rows, nothing else runs
//	stale  → return the cached rows, start a background revalidation
//	miss   → block on a foreground fetch (delta sync first, full tier
//	         chain when the delta path fails)
//
// Expired entries count as misses but their rows stay on the view while the
// blocking fetch runs. Refetch(force=true) bypasses cache and delta path
// both, for the user's explicit refresh; Hub.RefreshAll clears the cache and
// force-refetches every dataset concurrently.
//
// # Failure Surface
//
// Only a foreground fetch that exhausts the whole tier chain sets View.Err.
// Delta-sync failures fall back to the plain path and mark the Outcome
// Degraded; background failures are logged, counted toward the offline
// indicator, and otherwise invisible.
//
// # Write Ordering
//
// Refreshes publish wholesale on completion with no generation counters:
// when a manual refresh overlaps an in-flight background poll, the one that
// completes last determines the final cached state. The single-flight guard
// makes that overlap rare but force-refetches can still cross a poll.
package hub
