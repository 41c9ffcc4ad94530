package unit

import (
	"errors"
	"fmt"
	"io"
	"math"

	"unitgo/nxt"
)

const maxEmptyReads = 100

var (
	_ io.WriteCloser  = (*BodyWriter)(nil)
	_ io.StringWriter = (*BodyWriter)(nil)
	_ io.ReaderFrom   = (*BodyWriter)(nil)
)

// BodyWriter streams the response body through shared-memory chunks of a
// fixed size. A full chunk is sent at once and the next one is allocated on
// the following write. It is confined to the handler's goroutine.
//
// Close must be deferred directly (defer w.Close()) or called explicitly.
// When deferred during a panic it discards the pending chunk and lets the
// original panic continue.
type BodyWriter struct {
	resp   *Response
	size   int
	buf    nxt.Buf
	mem    []byte
	n      int
	chunks int
	err    error
	closed bool
}

// NewBodyWriter allocates the first chunk of size bytes. Allocation failure
// is reported as a *StreamError wrapping a *RequestError, so returning it
// from the handler completes the request with that status.
func (resp *Response) NewBodyWriter(size int) (*BodyWriter, error) {
	if size <= 0 || uint64(size) > math.MaxUint32 {
		return nil, fmt.Errorf("unit: invalid chunk size %d", size)
	}
	if resp.req.finished {
		return nil, ErrRequestFinished
	}
	w := &BodyWriter{resp: resp, size: size}
	if err := w.alloc(); err != nil {
		return nil, err
	}
	resp.req.writers = append(resp.req.writers, w)
	return w, nil
}

func (w *BodyWriter) alloc() error {
	b := w.resp.req.info.ResponseBufAlloc(uint32(w.size))
	if b == nil {
		return &StreamError{Op: "alloc", Err: &RequestError{Code: nxt.Error}}
	}
	mem := b.Bytes()
	if len(mem) > w.size {
		mem = mem[:w.size]
	}
	w.buf = b
	w.mem = mem
	w.n = 0
	return nil
}

// Available returns the free bytes left in the current chunk.
func (w *BodyWriter) Available() int {
	if w.buf == nil {
		return 0
	}
	return len(w.mem) - w.n
}

// Buffered returns the bytes written to the current chunk but not yet sent.
func (w *BodyWriter) Buffered() int { return w.n }

// Chunks returns the number of chunks sent so far.
func (w *BodyWriter) Chunks() int { return w.chunks }

func (w *BodyWriter) usable() error {
	if w.closed {
		return ErrWriterClosed
	}
	return w.err
}

// ensure makes sure a chunk with free space is available.
func (w *BodyWriter) ensure() error {
	if w.buf != nil {
		return nil
	}
	if err := w.alloc(); err != nil {
		w.err = err
		return err
	}
	return nil
}

func (w *BodyWriter) Write(p []byte) (int, error) {
	if err := w.usable(); err != nil {
		return 0, err
	}
	written := 0
	for len(p) > 0 {
		if err := w.ensure(); err != nil {
			return written, err
		}
		c := copy(w.mem[w.n:], p)
		w.n += c
		written += c
		p = p[c:]
		if w.n == len(w.mem) {
			if err := w.Flush(); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

func (w *BodyWriter) WriteString(s string) (int, error) {
	if err := w.usable(); err != nil {
		return 0, err
	}
	written := 0
	for len(s) > 0 {
		if err := w.ensure(); err != nil {
			return written, err
		}
		c := copy(w.mem[w.n:], s)
		w.n += c
		written += c
		s = s[c:]
		if w.n == len(w.mem) {
			if err := w.Flush(); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

// ReadFrom reads from src straight into the shared-memory chunks until EOF,
// sending each chunk as it fills.
func (w *BodyWriter) ReadFrom(src io.Reader) (int64, error) {
	if err := w.usable(); err != nil {
		return 0, err
	}
	var total int64
	empty := 0
	for {
		if err := w.ensure(); err != nil {
			return total, err
		}
		n, err := src.Read(w.mem[w.n:])
		if n == 0 && err == nil {
			if empty++; empty >= maxEmptyReads {
				return total, &StreamError{Op: "read", Err: io.ErrNoProgress}
			}
			continue
		}
		empty = 0
		if n < 0 || n > len(w.mem)-w.n {
			return total, &StreamError{Op: "read", Err: errors.New("invalid read count")}
		}
		w.n += n
		total += int64(n)
		if w.n == len(w.mem) {
			if ferr := w.Flush(); ferr != nil {
				return total, ferr
			}
		}
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, &StreamError{Op: "read", Err: err}
		}
	}
}

// Flush sends the buffered bytes of the current chunk. An empty chunk is
// kept for the next write.
func (w *BodyWriter) Flush() error {
	if err := w.usable(); err != nil {
		return err
	}
	if w.buf == nil || w.n == 0 {
		return nil
	}
	b, n := w.buf, w.n
	w.buf, w.mem, w.n = nil, nil, 0
	if rc := b.Send(n); rc != nxt.OK {
		b.Free()
		w.err = &StreamError{Op: "flush", Err: &RequestError{Code: rc}}
		return w.err
	}
	w.chunks++
	return nil
}

// Close flushes the pending chunk and releases the writer. Called while the
// goroutine is panicking, it discards the chunk and re-raises the original
// panic without raising another.
func (w *BodyWriter) Close() error {
	if v := recover(); v != nil {
		w.discard()
		panic(v)
	}
	return w.close()
}

func (w *BodyWriter) close() error {
	if w.closed {
		return nil
	}
	err := w.Flush()
	if w.buf != nil {
		w.buf.Free()
		w.buf, w.mem, w.n = nil, nil, 0
	}
	w.closed = true
	return err
}

// Discard frees the pending chunk without sending it and closes the writer.
func (w *BodyWriter) Discard() { w.discard() }

func (w *BodyWriter) discard() {
	if w.closed {
		return
	}
	w.closed = true
	if w.buf != nil {
		w.buf.Free()
		w.buf, w.mem, w.n = nil, nil, 0
	}
}
