package shm

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrExhausted reports that no free run of chunks can hold an allocation.
	ErrExhausted = errors.New("shm: pool exhausted")
	// ErrTooLarge reports an allocation bigger than the whole pool. It is
	// always wrapped together with ErrExhausted.
	ErrTooLarge = errors.New("shm: allocation exceeds pool capacity")
)

// Span is an allocated run of chunks.
type Span struct {
	first  int
	chunks int
	data   []byte
}

// Bytes returns the allocated region. Its length is the requested size, its
// capacity covers every chunk of the span.
func (s Span) Bytes() []byte { return s.data }

// Offset returns the span's byte offset inside the segment.
func (s Span) Offset(chunkSize int) int { return s.first * chunkSize }

// Valid reports whether the span was returned by a successful Alloc.
func (s Span) Valid() bool { return s.chunks > 0 }

// Pool hands out contiguous chunk runs from a segment.
type Pool struct {
	mu        sync.Mutex
	mem       []byte
	chunkSize int
	used      []bool
	inUse     int
}

// NewPool divides seg into chunks of chunkSize bytes. Trailing bytes that do
// not fill a whole chunk are left unused.
func NewPool(seg *Segment, chunkSize int) (*Pool, error) {
	if seg == nil {
		return nil, errors.New("shm: pool requires a segment")
	}
	mem := seg.Bytes()
	if mem == nil {
		return nil, ErrClosed
	}
	if chunkSize <= 0 || chunkSize > len(mem) {
		return nil, fmt.Errorf("shm: invalid chunk size %d for %d byte segment", chunkSize, len(mem))
	}
	count := len(mem) / chunkSize
	return &Pool{
		mem:       mem,
		chunkSize: chunkSize,
		used:      make([]bool, count),
	}, nil
}

// ChunkSize returns the size of one chunk.
func (p *Pool) ChunkSize() int { return p.chunkSize }

// Capacity returns the largest allocation the pool could ever satisfy.
func (p *Pool) Capacity() int { return len(p.used) * p.chunkSize }

// InUse returns the number of allocated chunks.
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inUse
}

// Chunks returns the total number of chunks.
func (p *Pool) Chunks() int { return len(p.used) }

// Alloc reserves size bytes using first fit over contiguous chunks. The
// returned region is zeroed.
func (p *Pool) Alloc(size int) (Span, error) {
	if size <= 0 {
		return Span{}, fmt.Errorf("shm: invalid allocation size %d", size)
	}
	need := (size + p.chunkSize - 1) / p.chunkSize
	if need > len(p.used) {
		return Span{}, fmt.Errorf("%w: %w: %d bytes, capacity %d", ErrExhausted, ErrTooLarge, size, p.Capacity())
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	run := 0
	for i := range p.used {
		if p.used[i] {
			run = 0
			continue
		}
		run++
		if run < need {
			continue
		}
		first := i - need + 1
		for j := first; j <= i; j++ {
			p.used[j] = true
		}
		p.inUse += need
		start := first * p.chunkSize
		end := start + need*p.chunkSize
		region := p.mem[start:end:end]
		clear(region)
		return Span{first: first, chunks: need, data: region[:size]}, nil
	}
	return Span{}, fmt.Errorf("%w: no run of %d free chunks", ErrExhausted, need)
}

// Release returns a span's chunks to the pool. Releasing an invalid or
// already released span is a no-op.
func (p *Pool) Release(s Span) {
	if !s.Valid() {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for j := s.first; j < s.first+s.chunks && j < len(p.used); j++ {
		if p.used[j] {
			p.used[j] = false
			p.inUse--
		}
	}
}
