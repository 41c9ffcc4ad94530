// Package unithttp serves net/http handlers through unit contexts.
package unithttp

import (
	"bytes"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"slices"

	"unitgo/nxt"
	"unitgo/unit"
)

// DefaultChunkSize is the shared-memory chunk size used once a handler
// starts streaming.
const DefaultChunkSize = 16 << 10

// Adapter is a unit.Handler that runs an http.Handler. Responses are buffered
// and sent in one step unless the handler flushes, after which the body is
// streamed in chunks.
type Adapter struct {
	Handler   http.Handler
	ChunkSize int
}

// Handler wraps h.
func Handler(h http.Handler) *Adapter {
	return &Adapter{Handler: h}
}

// HandlerFunc wraps fn.
func HandlerFunc(fn func(http.ResponseWriter, *http.Request)) *Adapter {
	return Handler(http.HandlerFunc(fn))
}

func (a *Adapter) ServeUnit(req *unit.Request) error {
	hreq, err := NewRequest(req)
	if err != nil {
		req.Log(nxt.LogError, err.Error())
		return unit.NewRequestError(nxt.Error)
	}

	chunk := a.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	w := &responseWriter{req: req, header: make(http.Header), chunkSize: chunk}

	defer func() {
		if v := recover(); v != nil {
			req.Log(nxt.LogError, "panic while serving http request")
			w.abort()
			panic(v)
		}
	}()
	a.Handler.ServeHTTP(w, hreq)
	return w.finish()
}

// NewRequest converts req into an *http.Request whose body reads the
// buffered request body.
func NewRequest(req *unit.Request) (*http.Request, error) {
	target := req.Target()
	u, err := url.ParseRequestURI(target)
	if err != nil {
		return nil, fmt.Errorf("parse request target %q: %w", target, err)
	}
	host := req.ServerName()
	if h, ok := req.Field("Host"); ok && h != "" {
		host = h
	}
	u.Host = host
	u.Scheme = "http"
	if req.TLS() {
		u.Scheme = "https"
	}

	hreq, err := http.NewRequest(req.Method(), u.String(), io.NopCloser(req))
	if err != nil {
		return nil, err
	}
	if major, minor, ok := http.ParseHTTPVersion(req.Version()); ok {
		hreq.Proto, hreq.ProtoMajor, hreq.ProtoMinor = req.Version(), major, minor
	}
	hreq.RequestURI = target
	hreq.Host = host
	hreq.RemoteAddr = req.Remote()
	hreq.ContentLength = int64(req.ContentLength())
	for name, value := range req.Fields() {
		hreq.Header.Add(name, value)
	}
	return hreq, nil
}

// responseWriter buffers the response until the handler returns or flushes.
type responseWriter struct {
	req       *unit.Request
	header    http.Header
	status    int
	body      bytes.Buffer
	chunkSize int

	resp   *unit.Response
	stream *unit.BodyWriter
	err    error
}

var (
	_ http.ResponseWriter = (*responseWriter)(nil)
	_ http.Flusher        = (*responseWriter)(nil)
	_ io.StringWriter     = (*responseWriter)(nil)
)

func (w *responseWriter) Header() http.Header { return w.header }

func (w *responseWriter) WriteHeader(status int) {
	if w.status != 0 || w.resp != nil {
		return
	}
	w.status = status
}

func (w *responseWriter) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	if w.status == 0 {
		w.WriteHeader(http.StatusOK)
	}
	if w.stream != nil {
		n, err := w.stream.Write(p)
		w.err = err
		return n, err
	}
	return w.body.Write(p)
}

func (w *responseWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// Flush commits the headers and buffered body, then switches to streaming.
func (w *responseWriter) Flush() {
	if w.err != nil {
		return
	}
	if w.stream == nil {
		w.err = w.commit()
		if w.err != nil {
			return
		}
		w.stream, w.err = w.resp.NewBodyWriter(w.chunkSize)
		return
	}
	w.err = w.stream.Flush()
}

func (w *responseWriter) fields() []unit.Header {
	var out []unit.Header
	for _, name := range slices.Sorted(maps.Keys(w.header)) {
		for _, value := range w.header[name] {
			out = append(out, unit.Header{Name: name, Value: value})
		}
	}
	return out
}

func (w *responseWriter) statusCode() uint16 {
	if w.status == 0 {
		return http.StatusOK
	}
	return uint16(w.status)
}

func (w *responseWriter) commit() error {
	if w.resp != nil {
		return nil
	}
	if w.body.Len() > 0 && w.header.Get("Content-Type") == "" {
		w.header.Set("Content-Type", http.DetectContentType(w.body.Bytes()))
	}
	resp, err := w.req.SendResponse(w.statusCode(), w.fields(), w.body.Bytes())
	if err != nil {
		return err
	}
	w.resp = resp
	w.body.Reset()
	return nil
}

func (w *responseWriter) finish() error {
	if w.err != nil {
		w.abort()
		return w.err
	}
	if w.stream != nil {
		return w.stream.Close()
	}
	return w.commit()
}

func (w *responseWriter) abort() {
	if w.stream != nil {
		w.stream.Discard()
	}
}
