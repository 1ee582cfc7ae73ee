// Package feed fetches dataset payloads from the spreadsheet-backed API over
// a tiered transport.
//
// # Tier Chain
//
// A full fetch walks an ordered chain, each tier tried only after the one
// before it failed:
//
//  1. versioned JSON  GET {base}/v1/values/{source}
//  2. full JSON       GET {base}/values/{source}
//  3. CSV export, requested through a rotating list of CORS proxies with a
//     short pause between attempts
//
// Every request carries a fixed timeout. A tier failure is recorded as a
// TierError and the chain advances; only when every tier has failed does the
// caller see an error, a single ExhaustedError listing each attempt. Hosts
// and proxies that answer 200 with an HTML login page are caught by content
// sniffing and counted as parse failures, never as valid empty data.
//
// # Delta Polling
//
// The versioned tier additionally answers incremental polls:
//
//	GET {base}/v1/changes/{source}?since=N
//
// returning the rows changed since version N, or needsReload when N is too
// far behind to diff against. Only this tier is delta-capable; snapshots from
// the other tiers carry version 0 and the sync layer treats them as
// unversioned.
package feed
