// Package journal persists one row per request served by the dev daemon.
//
// The journal is a small SQLite database (pure Go driver, no cgo) that the
// control socket queries for `unitapp requests`. Rows record what the handler
// did with the request: final status code, whether the daemon had to answer
// with its fallback, how many chunks were streamed and how long it took.
package journal
