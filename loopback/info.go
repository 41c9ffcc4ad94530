package loopback

import (
	"bytes"
	"context"
	"log/slog"

	"unitgo/internal/logging"
	"unitgo/internal/shm"
	"unitgo/nxt"
)

// Recorded native operations.
const (
	OpResponseInit       = "response_init"
	OpResponseAddField   = "response_add_field"
	OpResponseAddContent = "response_add_content"
	OpResponseSend       = "response_send"
	OpResponseBufAlloc   = "response_buf_alloc"
	OpBufSend            = "buf_send"
	OpBufFree            = "buf_free"
	OpRequestRead        = "request_read"
	OpRequestDone        = "request_done"
	OpRequestLog         = "req_log"
)

// FallbackStatus is sent when a request completes without having sent a
// response of its own.
const FallbackStatus = 503

// Call is one recorded native operation.
type Call struct {
	Op        string
	Status    uint16
	MaxFields uint32
	MaxSize   uint32
	Name      string
	Value     string
	Data      []byte
	Size      uint32
	Level     nxt.LogLevel
	RC        nxt.Status
}

// Completion describes how the application finished a request.
type Completion struct {
	ID uint64
	// Status is the code passed to request_done.
	Status nxt.Status
	// Fallback reports whether the daemon had to answer on the application's
	// behalf.
	Fallback bool
	Calls    []Call
}

// Ops returns the recorded calls with the given op.
func (c *Completion) Ops(op string) []Call {
	var out []Call
	for _, call := range c.Calls {
		if call.Op == op {
			out = append(out, call)
		}
	}
	return out
}

// Count returns how many times op was called.
func (c *Completion) Count(op string) int { return len(c.Ops(op)) }

// Sink receives the response stream of one request.
type Sink interface {
	WriteHeader(status int, fields []Field)
	Write(p []byte) error
}

type discardSink struct{}

func (discardSink) WriteHeader(int, []Field) {}
func (discardSink) Write([]byte) error       { return nil }

// Recorder is a Sink that keeps the whole response in memory. Read it only
// after Dispatch has returned.
type Recorder struct {
	Code   int
	Fields []Field
	Body   bytes.Buffer
	Writes int

	wroteHeader bool
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) WriteHeader(status int, fields []Field) {
	if r.wroteHeader {
		return
	}
	r.wroteHeader = true
	r.Code = status
	r.Fields = append(r.Fields[:0], fields...)
}

func (r *Recorder) Write(p []byte) error {
	r.Writes++
	_, err := r.Body.Write(p)
	return err
}

// Header returns the first response field named name.
func (r *Recorder) Header(name string) (string, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// requestInfo is the daemon's view of one request in flight. It is only used
// from the goroutine serving the request.
type requestInfo struct {
	d   *Daemon
	ctx *appCtx
	p   *pending

	initialized bool
	sent        bool
	finished    bool

	status    uint16
	maxFields uint32
	maxSize   uint32
	used      uint32
	fields    []Field
	content   bytes.Buffer
	bufs      []*buf
}

func (ri *requestInfo) record(c Call) nxt.Status {
	ri.p.completion.Calls = append(ri.p.completion.Calls, c)
	return c.RC
}

func (ri *requestInfo) Ctx() nxt.Ctx { return ri.ctx }

func (ri *requestInfo) Request() *nxt.Request { return &ri.p.req }

func (ri *requestInfo) ResponseInit(status uint16, maxFieldsCount, maxFieldsSize uint32) nxt.Status {
	c := Call{Op: OpResponseInit, Status: status, MaxFields: maxFieldsCount, MaxSize: maxFieldsSize, RC: nxt.OK}
	if ri.finished || ri.sent {
		c.RC = nxt.Error
		return ri.record(c)
	}
	ri.initialized = true
	ri.status = status
	ri.maxFields = maxFieldsCount
	ri.maxSize = maxFieldsSize
	ri.used = 0
	ri.fields = ri.fields[:0]
	ri.content.Reset()
	return ri.record(c)
}

func (ri *requestInfo) ResponseAddField(name, value []byte) nxt.Status {
	c := Call{Op: OpResponseAddField, Name: string(name), Value: string(value), RC: nxt.OK}
	switch {
	case !ri.initialized || ri.sent || ri.finished:
		c.RC = nxt.Error
	case uint32(len(ri.fields)) >= ri.maxFields:
		c.RC = nxt.Error
	case uint64(ri.used)+uint64(len(name))+uint64(len(value)) > uint64(ri.maxSize):
		c.RC = nxt.Error
	default:
		ri.fields = append(ri.fields, Field{Name: c.Name, Value: c.Value})
		ri.used += uint32(len(name) + len(value))
	}
	return ri.record(c)
}

func (ri *requestInfo) ResponseAddContent(p []byte) nxt.Status {
	c := Call{Op: OpResponseAddContent, Data: bytes.Clone(p), RC: nxt.OK}
	switch {
	case !ri.initialized || ri.sent || ri.finished:
		c.RC = nxt.Error
	case uint64(ri.used)+uint64(len(p)) > uint64(ri.maxSize):
		c.RC = nxt.Error
	default:
		ri.content.Write(p)
		ri.used += uint32(len(p))
	}
	return ri.record(c)
}

func (ri *requestInfo) ResponseSend() nxt.Status {
	c := Call{Op: OpResponseSend, RC: nxt.OK}
	if !ri.initialized || ri.sent || ri.finished {
		c.RC = nxt.Error
		return ri.record(c)
	}
	c.RC = ri.sendHeaders()
	return ri.record(c)
}

func (ri *requestInfo) sendHeaders() nxt.Status {
	ri.sent = true
	ri.p.sink.WriteHeader(int(ri.status), append([]Field(nil), ri.fields...))
	if ri.content.Len() > 0 {
		if err := ri.p.sink.Write(bytes.Clone(ri.content.Bytes())); err != nil {
			return nxt.Error
		}
	}
	return nxt.OK
}

func (ri *requestInfo) ResponseBufAlloc(size uint32) nxt.Buf {
	c := Call{Op: OpResponseBufAlloc, Size: size, RC: nxt.OK}
	if !ri.initialized || ri.finished || size == 0 {
		c.RC = nxt.Error
		ri.record(c)
		return nil
	}
	span, err := ri.d.pool.Alloc(int(size))
	if err != nil {
		ri.d.logger.Debug("response chunk allocation failed",
			logging.Uint64("dispatch_id", ri.p.id),
			logging.Int64("size", int64(size)),
			logging.Error(err))
		c.RC = nxt.Error
		ri.record(c)
		return nil
	}
	ri.record(c)
	b := &buf{ri: ri, span: span}
	ri.bufs = append(ri.bufs, b)
	return b
}

func (ri *requestInfo) Read(dst []byte) int {
	n := copy(dst, ri.p.body[ri.p.bodyPos:])
	ri.p.bodyPos += n
	ri.record(Call{Op: OpRequestRead, Size: uint32(n), RC: nxt.OK})
	return n
}

func (ri *requestInfo) Done(rc nxt.Status) {
	if ri.finished {
		return
	}
	ri.record(Call{Op: OpRequestDone, RC: rc})
	if !ri.sent {
		if rc == nxt.OK && ri.initialized {
			ri.sendHeaders()
		} else {
			ri.sent = true
			ri.p.completion.Fallback = true
			ri.p.sink.WriteHeader(FallbackStatus, nil)
		}
	}
	ri.finished = true
	ri.p.completion.Status = rc
	for _, b := range ri.bufs {
		if !b.released {
			b.release()
		}
	}
	ri.d.pool.Release(ri.p.span)
	ri.d.completed()
	close(ri.p.done)
}

func (ri *requestInfo) Log(level nxt.LogLevel, msg string) {
	ri.record(Call{Op: OpRequestLog, Level: level, Value: msg, RC: nxt.OK})
	ri.d.logger.Log(context.Background(), slogLevel(level), msg, logging.Uint64("dispatch_id", ri.p.id))
}

func slogLevel(level nxt.LogLevel) slog.Level {
	switch level {
	case nxt.LogAlert, nxt.LogError:
		return slog.LevelError
	case nxt.LogWarn:
		return slog.LevelWarn
	case nxt.LogDebug:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// buf is a response chunk carved from the shared segment.
type buf struct {
	ri       *requestInfo
	span     shm.Span
	released bool
}

func (b *buf) Bytes() []byte {
	if b.released {
		return nil
	}
	return b.span.Bytes()
}

func (b *buf) Send(n int) nxt.Status {
	c := Call{Op: OpBufSend, Size: uint32(max(n, 0)), RC: nxt.OK}
	if b.released || b.ri.finished || n < 0 || n > len(b.span.Bytes()) {
		c.RC = nxt.Error
		return b.ri.record(c)
	}
	if !b.ri.sent {
		if rc := b.ri.sendHeaders(); rc != nxt.OK {
			c.RC = rc
			return b.ri.record(c)
		}
	}
	c.Data = bytes.Clone(b.span.Bytes()[:n])
	if err := b.ri.p.sink.Write(c.Data); err != nil {
		c.RC = nxt.Error
		return b.ri.record(c)
	}
	b.release()
	return b.ri.record(c)
}

func (b *buf) Free() {
	if b.released {
		return
	}
	b.ri.record(Call{Op: OpBufFree, Size: uint32(len(b.span.Bytes())), RC: nxt.OK})
	b.release()
}

func (b *buf) release() {
	b.released = true
	b.ri.d.pool.Release(b.span)
}
