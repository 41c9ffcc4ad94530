// Package nxt describes the native boundary between application code and the
// process-management daemon library (libunit).
//
// It owns the status and log-level codes the daemon understands, the
// shared-memory pointer encoding (Sptr) used by request structures, and the
// Lib/Ctx/RequestInfo/Buf interfaces a daemon backend implements. The unit
// package drives these interfaces; the libunit subpackage binds them to the C
// library through cgo and the loopback package implements them in-process.
//
// Nothing in this package blocks or allocates native resources on its own; it
// is the contract, not a backend.
package nxt
