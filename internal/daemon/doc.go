// Package daemon runs the unitgo dev daemon.
//
// It wires configuration, the request journal, an in-process loopback daemon
// and a set of unit contexts into a single lifecycle with flock-based locking
// to prevent multiple instances. The contexts serve the configured
// application; the dev HTTP server turns real HTTP traffic into loopback
// requests for them and exposes read-only inspection endpoints under
// /_unitgo/.
//
// Keep orchestration here: request conversion lives in devserver and the
// context lifecycle in unit.
package daemon
