package shm

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// ErrClosed is returned when a segment has already been unmapped.
var ErrClosed = errors.New("shm: segment closed")

// Segment is a shared-memory mapping.
type Segment struct {
	mu  sync.Mutex
	mem []byte
}

// Map creates an anonymous shared mapping of size bytes.
func Map(size int) (*Segment, error) {
	if size <= 0 {
		return nil, fmt.Errorf("shm: invalid segment size %d", size)
	}
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("shm: mmap %d bytes: %w", size, err)
	}
	return &Segment{mem: mem}, nil
}

// Bytes returns the mapped region, or nil once closed.
func (s *Segment) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mem
}

// Size returns the mapping length.
func (s *Segment) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.mem)
}

// Close unmaps the segment. Any slice previously obtained from Bytes must not
// be used afterwards.
func (s *Segment) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mem == nil {
		return ErrClosed
	}
	err := unix.Munmap(s.mem)
	s.mem = nil
	if err != nil {
		return fmt.Errorf("shm: munmap: %w", err)
	}
	return nil
}
