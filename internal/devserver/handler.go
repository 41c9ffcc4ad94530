package devserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"unitgo/internal/journal"
	"unitgo/internal/logging"
	"unitgo/internal/shm"
	"unitgo/loopback"
	"unitgo/nxt"
)

// RequestIDHeader carries the request id on every response.
const RequestIDHeader = "X-Request-Id"

// Dispatcher delivers a request to the application. *loopback.Daemon
// satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *loopback.Request, sink loopback.Sink) (*loopback.Completion, error)
}

// Journal persists one entry per served request. *journal.Store satisfies it.
type Journal interface {
	Record(ctx context.Context, e *journal.Entry) error
}

// Options tunes the handler.
type Options struct {
	// MaxBodyBytes caps request bodies; zero means no limit.
	MaxBodyBytes int64
	// RequestTimeout bounds how long a request may wait for the application.
	RequestTimeout time.Duration
	Journal        Journal
	Logger         *slog.Logger
}

type handler struct {
	d      Dispatcher
	opts   Options
	logger *slog.Logger
}

// Handler returns an http.Handler that serves every request through d.
func Handler(d Dispatcher, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &handler{
		d:      d,
		opts:   opts,
		logger: logger.With(logging.String(logging.FieldComponent, "devserver")),
	}
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := uuid.NewString()
	ctx := logging.WithRequestID(r.Context(), id)
	logger := logging.WithContext(ctx, h.logger)
	w.Header().Set(RequestIDHeader, id)

	entry := &journal.Entry{
		RequestID: id,
		Method:    r.Method,
		Target:    r.RequestURI,
		Remote:    remoteHost(r.RemoteAddr),
	}
	defer func() {
		entry.Duration = time.Since(start)
		h.finish(ctx, logger, entry)
	}()

	body, err := readBody(w, r, h.opts.MaxBodyBytes)
	if err != nil {
		status := http.StatusBadRequest
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			status = http.StatusRequestEntityTooLarge
		}
		entry.Status = status
		entry.Error = err.Error()
		http.Error(w, http.StatusText(status), status)
		return
	}
	entry.RequestBytes = int64(len(body))

	if h.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opts.RequestTimeout)
		defer cancel()
	}

	sink := &responseSink{w: w}
	done, err := h.d.Dispatch(ctx, newRequest(r, body), sink)
	status, written, sent := sink.close()
	entry.ResponseBytes = written
	if err != nil {
		entry.Error = err.Error()
		logger.DebugContext(ctx, "dispatch failed", logging.Error(err), logging.Body("request_body", body))
		if sent {
			entry.Status = status
			return
		}
		entry.Status = errorStatus(err)
		http.Error(w, http.StatusText(entry.Status), entry.Status)
		return
	}

	entry.Status = status
	entry.RC = done.Status.String()
	entry.Fallback = done.Fallback
	entry.Chunks = done.Count(loopback.OpBufSend)
	if done.Status != nxt.OK {
		entry.Error = fmt.Sprintf("request completed with %s", done.Status)
	}
}

func (h *handler) finish(ctx context.Context, logger *slog.Logger, entry *journal.Entry) {
	attrs := []slog.Attr{
		logging.String("method", entry.Method),
		logging.String("target", entry.Target),
		logging.Int("status", entry.Status),
		logging.Duration("duration", entry.Duration),
		logging.Int64("response_bytes", entry.ResponseBytes),
	}
	if entry.RC != "" {
		attrs = append(attrs, logging.String("rc", entry.RC))
	}
	switch {
	case entry.Fallback:
		logger.LogAttrs(ctx, slog.LevelWarn, "request answered by fallback",
			append(attrs,
				logging.String(logging.FieldEventType, "request_fallback"),
				logging.String(logging.FieldImpact, "client received a 503 instead of the application response"),
				logging.String(logging.FieldErrorHint, "make sure the handler sends a response before returning"))...)
	case entry.Status >= http.StatusInternalServerError || entry.Error != "":
		if entry.Error != "" {
			attrs = append(attrs, logging.String("error", entry.Error))
		}
		logger.LogAttrs(ctx, slog.LevelWarn, "request failed",
			append(attrs, logging.String(logging.FieldEventType, "request_failed"))...)
	default:
		logger.LogAttrs(ctx, slog.LevelInfo, "request served",
			append(attrs, logging.String(logging.FieldEventType, "request_served"))...)
	}

	if h.opts.Journal == nil {
		return
	}
	// The request context may already be cancelled by the client.
	if err := h.opts.Journal.Record(context.WithoutCancel(ctx), entry); err != nil {
		logger.Warn("journal write failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "journal_write_failed"),
			logging.String(logging.FieldImpact, "request missing from unitapp requests"))
	}
}

func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	src := r.Body
	if limit > 0 {
		src = http.MaxBytesReader(w, r.Body, limit)
	}
	body, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	return body, nil
}

// newRequest converts r. Host is delivered as the first field, followed by
// the remaining headers sorted by name.
func newRequest(r *http.Request, body []byte) *loopback.Request {
	req := &loopback.Request{
		Method:     r.Method,
		Version:    r.Proto,
		Remote:     remoteHost(r.RemoteAddr),
		ServerName: hostOnly(r.Host),
		Target:     r.RequestURI,
		Path:       r.URL.EscapedPath(),
		Query:      r.URL.RawQuery,
		TLS:        r.TLS != nil,
		Body:       body,
	}
	if req.Target == "" {
		req.Target = r.URL.RequestURI()
	}
	if addr, ok := r.Context().Value(http.LocalAddrContextKey).(net.Addr); ok {
		req.Local = remoteHost(addr.String())
	}
	if r.Host != "" {
		req.Fields = append(req.Fields, loopback.Field{Name: "Host", Value: r.Host})
	}
	for _, name := range slices.Sorted(maps.Keys(r.Header)) {
		for _, value := range r.Header[name] {
			req.Fields = append(req.Fields, loopback.Field{Name: name, Value: value})
		}
	}
	return req
}

// errorStatus maps a Dispatch failure onto the status sent to the client.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, loopback.ErrQuit), errors.Is(err, loopback.ErrNotInitialized):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, loopback.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, shm.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, shm.ErrExhausted):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

func hostOnly(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return strings.Trim(host, "[]")
}
