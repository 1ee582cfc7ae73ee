// Package app is tapedeck's composition root: it loads configuration and
// preferences, builds the cache backend the config asks for, wires the
// fetcher, sync coordinator, scheduler and hub together, and hands the
// result to the dashboard UI.
//
// # Wiring
//
// Dependencies flow one way. The cache store gets a backend (memory, file
// or postgres) and a real clock; the feed client gets the proxy rotation
// and timeout; the delta-sync coordinator and the hub share the store and
// client; the revalidation scheduler gets a visibility flag the UI flips on
// terminal focus and blur. Nothing here holds state of its own: app.Run
// builds the graph, starts the poll loops, runs the UI, and tears down.
package app
