// Package revalidate schedules background refresh work for datasets.
//
// The scheduler enforces three rules and nothing else:
//
//   - Single flight per dataset: concurrent refresh attempts for one key
//     share a single executing job via golang.org/x/sync/singleflight.
//   - Visibility gating: no background fetch or poll runs while the
//     dashboard is off screen. Missed ticks are not replayed; regaining
//     focus resumes the normal cadence.
//   - Quiet failure: background errors are logged and swallowed. A streak
//     of poll failures stretches the cadence exponentially until a poll
//     succeeds again.
//
// What a refresh actually does is the caller's Job; foreground fetches can
// share the same guard through Do so a blocking fetch joins an in-flight
// background one instead of doubling the request.
package revalidate
