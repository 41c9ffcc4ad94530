package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"unitgo/internal/api"
	"unitgo/internal/config"
	"unitgo/internal/devserver"
	"unitgo/internal/logging"
	"unitgo/loopback"
)

// inspectPrefix is reserved for daemon endpoints; every other path reaches
// the application.
const inspectPrefix = "/_unitgo/"

type devServer struct {
	bind   string
	token  string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newDevServer(cfg *config.Config, d *Daemon, loop *loopback.Daemon, logger *slog.Logger) *devServer {
	srv := &devServer{
		bind:   strings.TrimSpace(cfg.Dev.Bind),
		token:  cfg.Dev.APIToken,
		logger: logging.NewComponentLogger(logger, "devserver"),
		daemon: d,
	}

	var j devserver.Journal
	if d.store != nil {
		j = d.store
	}
	mux := http.NewServeMux()
	mux.HandleFunc(inspectPrefix+"status", srv.requireToken(srv.handleStatus))
	mux.HandleFunc(inspectPrefix+"requests", srv.requireToken(srv.handleRequests))
	mux.HandleFunc(inspectPrefix+"requests/", srv.requireToken(srv.handleRequest))
	mux.HandleFunc(inspectPrefix+"logs", srv.requireToken(srv.handleLogs))
	mux.Handle("/", devserver.Handler(loop, devserver.Options{
		MaxBodyBytes:   cfg.Dev.MaxBodyBytes,
		RequestTimeout: time.Duration(cfg.Dev.RequestTimeout) * time.Second,
		Journal:        j,
		Logger:         logger,
	}))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *devServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("dev server listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("dev server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("dev server listening",
		logging.String("bind", listener.Addr().String()),
		logging.String(logging.FieldEventType, "dev_server_listening"))
	return nil
}

func (s *devServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

// addr is the bound address, which differs from bind when port 0 was asked.
func (s *devServer) addr() string {
	if s == nil {
		return ""
	}
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.bind
}

func (s *devServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()).API())
}

func (s *devServer) handleRequests(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	entries, err := s.daemon.Requests(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.RequestListResponse{Requests: api.FromEntries(entries)})
}

func (s *devServer) handleRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, inspectPrefix+"requests/")
	if id == "" || strings.Contains(id, "/") {
		s.writeError(w, http.StatusNotFound, "request not found")
		return
	}
	entry, err := s.daemon.Request(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if entry == nil {
		s.writeError(w, http.StatusNotFound, "request not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.RequestResponse{Request: api.FromEntry(*entry)})
}

func (s *devServer) handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	hub := s.daemon.LogStream()
	if hub == nil {
		s.writeJSON(w, http.StatusOK, api.LogStreamResponse{})
		return
	}

	query := r.URL.Query()
	since, _ := strconv.ParseUint(query.Get("since"), 10, 64)
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = 200
	}
	follow := query.Get("follow") == "1" || strings.EqualFold(query.Get("follow"), "true")
	tail := query.Get("tail") == "1" || strings.EqualFold(query.Get("tail"), "true")

	filter := logging.EventFilter{
		Component: query.Get("component"),
		Context:   query.Get("context"),
		RequestID: query.Get("request"),
	}

	var (
		events []logging.LogEvent
		next   uint64
	)
	if tail && since == 0 && !follow {
		events, next = hub.TailMatching(limit, filter)
	} else {
		var err error
		events, next, err = hub.FetchMatching(r.Context(), since, limit, follow, filter)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	s.writeJSON(w, http.StatusOK, api.LogStreamResponse{
		Events: api.FromLogEvents(events),
		Next:   next,
	})
}

func (s *devServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *devServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

func (s *devServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return logging.NewNop()
}
