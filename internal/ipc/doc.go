// Package ipc exposes the dev daemon over JSON-RPC on a Unix socket and ships
// the matching client used by the CLI.
//
// It owns socket lifecycle management and the request/response DTOs. Payloads
// reuse the api package types so the socket and the /_unitgo/ HTTP endpoints
// stay in step. The client decorates calls with a dial timeout so CLI commands
// fail fast when the daemon is offline.
package ipc
