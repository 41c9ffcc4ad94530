package devserver

import (
	"errors"
	"net/http"
	"sync"

	"unitgo/loopback"
)

var errSinkClosed = errors.New("devserver: response already finished")

// responseSink streams a loopback response into an http.ResponseWriter.
// Dispatch may give up on a request that the application is still serving,
// so writes after close are refused.
type responseSink struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	closed  bool
	status  int
	written int64
}

func (s *responseSink) WriteHeader(status int, fields []loopback.Field) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.status != 0 {
		return
	}
	if status < 100 || status > 999 {
		status = http.StatusBadGateway
	}
	header := s.w.Header()
	for _, f := range fields {
		header.Add(f.Name, f.Value)
	}
	s.status = status
	s.w.WriteHeader(status)
}

func (s *responseSink) Write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSinkClosed
	}
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.w.Write(p)
	s.written += int64(n)
	if err != nil {
		return err
	}
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

// close stops the sink and reports what reached the client.
func (s *responseSink) close() (status int, written int64, sent bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return s.status, s.written, s.status != 0
}
