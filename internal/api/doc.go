// Package api defines wire-format types and converters shared by the IPC
// socket and the dev server's /_unitgo/ HTTP endpoints. It translates journal
// entries, registry and loopback statistics, and log events into
// transport-friendly DTOs so the CLI can render them without importing the
// daemon.
//
// # Key Types
//
// DaemonStatus: running state, bind address, context registry state,
// loopback counters and journal totals.
//
// Request: one journaled dev server request.
//
// LogEvent/LogStreamResponse: structured log payloads for tailing.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds and
// durations are reported in milliseconds.
package api
