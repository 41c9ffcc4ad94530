// Package logs reads daemon logs for the CLI.
//
// StreamClient long-polls the dev server's /_unitgo/logs endpoint for
// structured events. Tail reads the daemon's log file directly, supports
// negative offsets for "last N lines" and waits for new lines in follow mode;
// the IPC server uses it when the HTTP endpoint is unreachable.
package logs
