package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"unitgo/internal/api"
	"unitgo/internal/config"
	"unitgo/internal/journal"
	"unitgo/internal/logging"
	"unitgo/loopback"
	"unitgo/unit"
	"unitgo/unit/unithttp"
)

// stopTimeout bounds how long Stop waits for the contexts to leave Run.
const stopTimeout = 10 * time.Second

// Daemon coordinates the loopback daemon, the unit contexts serving the
// application and the dev HTTP server, and enforces single-instance execution.
type Daemon struct {
	cfg     *config.Config
	base    *slog.Logger
	logger  *slog.Logger
	store   *journal.Store
	hub     *logging.StreamHub
	app     unit.Handler
	logPath string

	lockPath string
	lock     *flock.Flock

	mu        sync.Mutex
	loop      *loopback.Daemon
	registry  *unit.Registry
	server    *devServer
	threads   chan struct{}
	threadErr error
	startedAt time.Time

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Bind         string
	StartedAt    time.Time
	Threads      int
	FaultPolicy  string
	LockFilePath string
	JournalPath  string
	LogPath      string
	Registry     unit.RegistryStats
	Loopback     loopback.Stats
	Journal      journal.Summary
	JournalError string
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithApp replaces the built-in demo application.
func WithApp(h unit.Handler) Option {
	return func(d *Daemon) {
		if h != nil {
			d.app = h
		}
	}
}

// WithLogPath records the log file reported by Status.
func WithLogPath(path string) Option {
	return func(d *Daemon) { d.logPath = path }
}

// WithLogStream attaches the hub served by the logs endpoints.
func WithLogStream(hub *logging.StreamHub) Option {
	return func(d *Daemon) { d.hub = hub }
}

// New constructs a daemon. store may be nil when the journal is disabled.
func New(cfg *config.Config, store *journal.Store, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || logger == nil {
		return nil, errors.New("daemon requires config and logger")
	}

	lockPath := cfg.LockPath()
	app := unithttp.Handler(DemoApp())
	app.ChunkSize = cfg.App.ChunkSize
	d := &Daemon{
		cfg:      cfg,
		base:     logging.WithComponentLevels(logger, cfg.Logging.ComponentLevels),
		store:    store,
		app:      app,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.logger = logging.NewComponentLogger(d.base, "daemon")
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Start acquires the daemon lock, brings up the unit contexts and starts the
// dev HTTP server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	policy, err := unit.ParseFaultPolicy(d.cfg.App.FaultPolicy)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("ensure state directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another unitgo dev daemon instance is already running")
	}

	loop, err := loopback.New(loopback.Options{
		SegmentSize:     d.cfg.ShmSize(),
		ChunkSize:       d.cfg.ChunkSize(),
		HandshakeRounds: d.cfg.Dev.HandshakeRounds,
		QueueDepth:      d.cfg.Dev.QueueDepth,
		Logger:          d.base,
	})
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("start loopback daemon: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	server := newDevServer(d.cfg, d, loop, d.base)
	if err := server.start(runCtx); err != nil {
		cancel()
		_ = loop.Close()
		_ = d.lock.Unlock()
		return err
	}

	registry := unit.NewRegistry(loop)
	threads := make(chan struct{})

	d.mu.Lock()
	d.loop = loop
	d.registry = registry
	d.server = server
	d.threads = threads
	d.threadErr = nil
	d.startedAt = time.Now().UTC()
	d.ctx, d.cancel = runCtx, cancel
	d.mu.Unlock()

	go d.runThreads(registry, policy, threads)

	d.running.Store(true)
	d.logger.Info("unitgo dev daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("bind", server.addr()),
		logging.Int("threads", d.cfg.App.Threads),
		logging.Kind("fault_policy", policy),
		logging.String("lock", d.lockPath))
	return nil
}

func (d *Daemon) runThreads(registry *unit.Registry, policy unit.FaultPolicy, done chan struct{}) {
	setup := func(ctx *unit.Context) error {
		ctx.SetHandler(d.app)
		d.logger.Debug("context ready",
			logging.String(logging.FieldContext, ctx.Name()),
			logging.Bool("root", ctx.IsRoot()))
		return nil
	}
	err := registry.RunThreads(d.cfg.App.Threads, setup,
		unit.WithName(d.cfg.App.Name),
		unit.WithFaultPolicy(policy),
		unit.WithLogger(d.base))

	d.mu.Lock()
	d.threadErr = err
	d.mu.Unlock()
	close(done)

	if err == nil {
		return
	}
	var fault *unit.Fault
	if errors.As(err, &fault) {
		logging.ErrorWithContext(d.logger, "handler panicked", "handler_fault",
			logging.Error(err),
			logging.Int("panics", fault.Count),
			logging.Alert("handler_fault"),
			logging.String(logging.FieldErrorHint, "inspect the stack in the debug log and fix the handler"))
		d.logger.Debug("handler fault stack", logging.String("stack", string(fault.Stack)))
		return
	}
	if d.running.Load() {
		logging.ErrorWithContext(d.logger, "unit contexts exited", "contexts_exited",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check shared memory sizing and the loopback daemon log"))
	}
}

// Stop shuts down the HTTP server, asks the contexts to quit and releases the
// daemon lock.
func (d *Daemon) Stop() {
	if !d.running.CompareAndSwap(true, false) {
		return
	}

	d.mu.Lock()
	server, loop, threads, cancel := d.server, d.loop, d.threads, d.cancel
	d.cancel = nil
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	server.stop()
	loop.Quit()
	select {
	case <-threads:
	case <-time.After(stopTimeout):
		logging.WarnWithContext(d.logger, "unit contexts did not stop in time", "stop_timeout",
			logging.Duration("timeout", stopTimeout),
			logging.String(logging.FieldImpact, "shared memory stays mapped until the process exits"))
		loop = nil
	}
	if loop != nil {
		if err := loop.Close(); err != nil {
			d.logger.Warn("failed to unmap loopback segment", logging.Error(err))
		}
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.mu.Lock()
	d.ctx = nil
	d.mu.Unlock()
	d.logger.Info("unitgo dev daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Wait blocks until the unit contexts have returned or ctx ends, and reports
// the error RunThreads returned.
func (d *Daemon) Wait(ctx context.Context) error {
	d.mu.Lock()
	threads := d.threads
	d.mu.Unlock()
	if threads == nil {
		return errors.New("daemon not started")
	}
	select {
	case <-threads:
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.threadErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Requests returns the newest journal entries.
func (d *Daemon) Requests(ctx context.Context, limit int) ([]journal.Entry, error) {
	if d.store == nil {
		return nil, errors.New("request journal disabled")
	}
	return d.store.List(ctx, limit)
}

// Request returns one journal entry, or nil when it is unknown.
func (d *Daemon) Request(ctx context.Context, requestID string) (*journal.Entry, error) {
	if d.store == nil {
		return nil, errors.New("request journal disabled")
	}
	return d.store.Get(ctx, requestID)
}

// LogStream returns the hub behind the logs endpoints, if any.
func (d *Daemon) LogStream() *logging.StreamHub {
	return d.hub
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Threads:      d.cfg.App.Threads,
		FaultPolicy:  d.cfg.App.FaultPolicy,
		LockFilePath: d.lockPath,
		LogPath:      d.logPath,
	}

	d.mu.Lock()
	loop, registry, server := d.loop, d.registry, d.server
	status.StartedAt = d.startedAt
	d.mu.Unlock()

	if status.Running {
		status.Bind = server.addr()
		status.Loopback = loop.Stats()
		status.Registry = registry.Stats()
	}
	if d.store != nil {
		status.JournalPath = d.store.Path()
		summary, err := d.store.Summary(ctx)
		if err != nil {
			status.JournalError = err.Error()
		}
		status.Journal = summary
	}
	return status
}

// API converts s into its wire representation.
func (s Status) API() api.DaemonStatus {
	dto := api.DaemonStatus{
		Running:      s.Running,
		PID:          s.PID,
		Bind:         s.Bind,
		Threads:      s.Threads,
		FaultPolicy:  s.FaultPolicy,
		LockFilePath: s.LockFilePath,
		LogPath:      s.LogPath,
		Registry:     api.FromRegistryStats(s.Registry),
		Loopback:     api.FromLoopbackStats(s.Loopback),
		Journal:      api.FromJournalSummary(s.JournalPath, s.Journal, s.JournalError),
	}
	if !s.StartedAt.IsZero() {
		dto.StartedAt = s.StartedAt.Format(time.RFC3339)
	}
	return dto
}
