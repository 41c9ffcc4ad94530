// Package shm maps shared-memory segments and carves them into fixed-size
// chunks.
//
// A Segment is an anonymous MAP_SHARED mapping, the same kind of region the
// daemon hands to application processes. A Pool divides a segment into
// equally sized chunks and allocates contiguous runs of them for request
// metadata and response buffers. Allocations never move and are released
// explicitly; the pool never grows.
package shm
