package loopback

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"unsafe"

	"unitgo/internal/shm"
	"unitgo/nxt"
)

// Field is one request or response header.
type Field struct {
	Name  string
	Value string
}

// Request describes a request the daemon delivers to the application.
type Request struct {
	Method     string
	Version    string
	Remote     string
	Local      string
	ServerName string
	// Target is the raw request target. Path and Query are derived from it
	// when left empty.
	Target string
	Path   string
	Query  string
	TLS    bool
	Fields []Field
	Body   []byte
}

// pending is a request laid out in shared memory and waiting for, or being
// served by, an application context.
type pending struct {
	id      uint64
	span    shm.Span
	req     nxt.Request
	body    []byte
	bodyPos int
	sink    Sink

	// claimed is set by whichever of a serving context or an abandoning
	// caller gets to the request first.
	claimed    atomic.Bool
	done       chan struct{}
	completion Completion
	err        error
}

func (p *pending) claim() bool { return p.claimed.CompareAndSwap(false, true) }

const slotSize = 4

// Fixed string slots in layout order.
const (
	slotMethod = iota
	slotVersion
	slotRemote
	slotLocal
	slotServerName
	slotTarget
	slotPath
	slotQuery
	fixedSlots
)

// prepare copies req into a span of the shared segment. The region starts
// with one 4-byte offset slot per string, followed by string bytes and the
// body. Each slot holds the distance from the slot itself to its string,
// which is how the daemon encodes pointers that stay valid in every process
// mapping the segment.
func (d *Daemon) prepare(req *Request, sink Sink) (*pending, error) {
	r := *req
	if r.Method == "" {
		r.Method = "GET"
	}
	if r.Version == "" {
		r.Version = "HTTP/1.1"
	}
	if r.Target == "" {
		r.Target = "/"
	}
	if r.Path == "" && r.Query == "" {
		r.Path, r.Query, _ = strings.Cut(r.Target, "?")
	}

	for _, s := range []struct {
		name  string
		value string
	}{
		{"method", r.Method},
		{"version", r.Version},
		{"remote", r.Remote},
		{"local", r.Local},
	} {
		if len(s.value) > math.MaxUint8 {
			return nil, fmt.Errorf("%w: %s longer than %d bytes", ErrInvalidRequest, s.name, math.MaxUint8)
		}
	}
	for _, f := range r.Fields {
		if len(f.Name) > math.MaxUint8 {
			return nil, fmt.Errorf("%w: field name %q... longer than %d bytes", ErrInvalidRequest, f.Name[:16], math.MaxUint8)
		}
	}

	strs := []string{r.Method, r.Version, r.Remote, r.Local, r.ServerName, r.Target, r.Path, r.Query}
	for _, f := range r.Fields {
		strs = append(strs, f.Name, f.Value)
	}
	size := len(strs) * slotSize
	for _, s := range strs {
		size += len(s)
	}
	size += len(r.Body)

	span, err := d.pool.Alloc(size)
	if err != nil {
		return nil, fmt.Errorf("loopback: lay out request: %w", err)
	}
	mem := span.Bytes()

	pos := len(strs) * slotSize
	for i, s := range strs {
		slot := i * slotSize
		binary.LittleEndian.PutUint32(mem[slot:], uint32(pos-slot))
		copy(mem[pos:], s)
		pos += len(s)
	}
	body := mem[pos : pos+len(r.Body) : pos+len(r.Body)]
	copy(body, r.Body)

	sptr := func(i int) nxt.Sptr {
		slot := i * slotSize
		return nxt.Sptr{
			Base:   unsafe.Pointer(&mem[slot]),
			Offset: binary.LittleEndian.Uint32(mem[slot:]),
		}
	}

	nr := nxt.Request{
		Method:           sptr(slotMethod),
		MethodLength:     uint8(len(r.Method)),
		Version:          sptr(slotVersion),
		VersionLength:    uint8(len(r.Version)),
		Remote:           sptr(slotRemote),
		RemoteLength:     uint8(len(r.Remote)),
		Local:            sptr(slotLocal),
		LocalLength:      uint8(len(r.Local)),
		ServerName:       sptr(slotServerName),
		ServerNameLength: uint32(len(r.ServerName)),
		Target:           sptr(slotTarget),
		TargetLength:     uint32(len(r.Target)),
		Path:             sptr(slotPath),
		PathLength:       uint32(len(r.Path)),
		Query:            sptr(slotQuery),
		QueryLength:      uint32(len(r.Query)),
		TLS:              r.TLS,
		ContentLength:    uint64(len(r.Body)),
		Fields:           make([]nxt.Field, len(r.Fields)),
	}
	for i, f := range r.Fields {
		base := fixedSlots + 2*i
		nr.Fields[i] = nxt.Field{
			Name:        sptr(base),
			NameLength:  uint8(len(f.Name)),
			Value:       sptr(base + 1),
			ValueLength: uint32(len(f.Value)),
		}
	}

	id := d.nextRequestID.Add(1)
	return &pending{
		id:         id,
		span:       span,
		req:        nr,
		body:       body,
		sink:       sink,
		done:       make(chan struct{}),
		completion: Completion{ID: id},
	}, nil
}
