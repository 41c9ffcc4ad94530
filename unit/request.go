package unit

import (
	"bytes"
	"io"
	"iter"
	"math"
	"strings"

	"unitgo/internal/logging"
	"unitgo/nxt"
)

// Request is one in-flight request. It is only valid inside the handler
// that received it and must not be shared with other goroutines. All string
// accessors return copies, so values may be kept after the handler returns.
// The daemon does not guarantee UTF-8 and none is enforced.
type Request struct {
	info     nxt.RequestInfo
	raw      *nxt.Request
	data     *contextData
	response *Response
	// writers are the body writers opened by the handler, closed or not.
	writers  []*BodyWriter
	finished bool
}

func newRequest(info nxt.RequestInfo, data *contextData) *Request {
	return &Request{info: info, raw: info.Request(), data: data}
}

func (r *Request) finish() { r.finished = true }

// settleWriters closes the body writers the handler left open. After a
// successful handler their pending bytes are sent; otherwise they are
// dropped. A failed flush changes rc to the flush status.
func (r *Request) settleWriters(rc nxt.Status) nxt.Status {
	for _, w := range r.writers {
		if w.closed {
			continue
		}
		if rc != nxt.OK {
			w.discard()
			continue
		}
		if r.data != nil {
			logging.WarnWithContext(r.data.logger, "handler returned with an open body writer", "writer_not_closed",
				logging.Int("buffered", w.n),
				logging.String(logging.FieldErrorHint, "defer Close on every BodyWriter"))
		}
		if err := w.close(); err != nil {
			rc = StatusOf(err)
		}
	}
	r.writers = nil
	return rc
}

func (r *Request) view() *nxt.Request {
	if r.finished || r.raw == nil {
		return &nxt.Request{}
	}
	return r.raw
}

// Method returns the request method.
func (r *Request) Method() string {
	v := r.view()
	return v.Method.String(uint32(v.MethodLength))
}

// Version returns the protocol version, such as "HTTP/1.1".
func (r *Request) Version() string {
	v := r.view()
	return v.Version.String(uint32(v.VersionLength))
}

// Remote returns the client address.
func (r *Request) Remote() string {
	v := r.view()
	return v.Remote.String(uint32(v.RemoteLength))
}

// Local returns the address the daemon accepted the connection on.
func (r *Request) Local() string {
	v := r.view()
	return v.Local.String(uint32(v.LocalLength))
}

func (r *Request) ServerName() string {
	v := r.view()
	return v.ServerName.String(v.ServerNameLength)
}

// Target returns the raw request target including the query.
func (r *Request) Target() string {
	v := r.view()
	return v.Target.String(v.TargetLength)
}

func (r *Request) Path() string {
	v := r.view()
	return v.Path.String(v.PathLength)
}

func (r *Request) Query() string {
	v := r.view()
	return v.Query.String(v.QueryLength)
}

// TLS reports whether the client connection used TLS.
func (r *Request) TLS() bool { return r.view().TLS }

// ContentLength returns the size of the buffered request body.
func (r *Request) ContentLength() uint64 { return r.view().ContentLength }

// Fields iterates over the request fields in the order the client sent them.
func (r *Request) Fields() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, f := range r.view().Fields {
			if !yield(f.Name.String(uint32(f.NameLength)), f.Value.String(f.ValueLength)) {
				return
			}
		}
	}
}

// Field returns the value of the first field named name, compared without
// regard to case.
func (r *Request) Field(name string) (string, bool) {
	for _, f := range r.view().Fields {
		if strings.EqualFold(string(f.Name.Resolve(uint32(f.NameLength))), name) {
			return f.Value.String(f.ValueLength), true
		}
	}
	return "", false
}

// Read reads from the request body. The daemon buffers the whole body before
// dispatch, so Read never blocks. It returns io.EOF once the body is
// exhausted.
func (r *Request) Read(p []byte) (int, error) {
	if r.finished {
		return 0, ErrRequestFinished
	}
	if len(p) == 0 {
		return 0, nil
	}
	n := r.info.Read(p)
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// ReadBody reads the remaining body.
func (r *Request) ReadBody() ([]byte, error) {
	var buf bytes.Buffer
	if n := r.ContentLength(); n > 0 && n <= math.MaxInt32 {
		buf.Grow(int(n))
	}
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Log writes msg to the daemon's log for this request.
func (r *Request) Log(level nxt.LogLevel, msg string) {
	if r.finished {
		return
	}
	r.info.Log(level, msg)
}

// Header is one response field.
type Header struct {
	Name  string
	Value string
}

// CreateResponse commits the response status and reserves room for up to
// fieldCountMax fields and totalBytesMax bytes of field names, values and
// content. A request has at most one response: later calls return
// ErrResponseStarted without contacting the daemon.
func (r *Request) CreateResponse(status uint16, fieldCountMax, totalBytesMax int) (*Response, error) {
	if r.finished {
		return nil, ErrRequestFinished
	}
	if r.response != nil {
		return nil, ErrResponseStarted
	}
	if fieldCountMax < 0 || uint64(fieldCountMax) > math.MaxUint32 {
		return nil, ErrTooManyFields
	}
	if totalBytesMax < 0 || uint64(totalBytesMax) > math.MaxUint32 {
		return nil, ErrContentTooLong
	}
	if err := statusError(r.info.ResponseInit(status, uint32(fieldCountMax), uint32(totalBytesMax))); err != nil {
		return nil, err
	}
	r.response = &Response{req: r}
	return r.response, nil
}

// SendResponse sends a complete response in one step: it sizes the
// response from headers and body, adds every header and the body, then
// sends it. Streamed chunks may follow through the returned Response.
func (r *Request) SendResponse(status uint16, headers []Header, body []byte) (*Response, error) {
	total := uint64(len(body))
	for _, h := range headers {
		if len(h.Name) > math.MaxUint8 {
			return nil, ErrFieldNameTooLong
		}
		if uint64(len(h.Value)) > math.MaxUint32 {
			return nil, ErrFieldValueTooLong
		}
		total += uint64(len(h.Name)) + uint64(len(h.Value))
	}
	if total > math.MaxUint32 {
		return nil, ErrContentTooLong
	}

	resp, err := r.CreateResponse(status, len(headers), int(total))
	if err != nil {
		return nil, err
	}
	for _, h := range headers {
		if err := resp.AddField(h.Name, h.Value); err != nil {
			return nil, err
		}
	}
	if len(body) > 0 {
		if err := resp.AddContent(body); err != nil {
			return nil, err
		}
	}
	if err := resp.Send(); err != nil {
		return nil, err
	}
	return resp, nil
}
