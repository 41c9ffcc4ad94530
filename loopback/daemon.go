package loopback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"unitgo/internal/logging"
	"unitgo/internal/shm"
	"unitgo/nxt"
)

const (
	defaultSegmentSize     = 4 << 20
	defaultChunkSize       = 16 << 10
	defaultHandshakeRounds = 1
	defaultQueueDepth      = 64
)

var (
	// ErrQuit is returned by Dispatch once the daemon has been asked to quit.
	ErrQuit = errors.New("loopback: daemon quit")
	// ErrInvalidRequest is returned by Dispatch for requests the layout
	// cannot encode.
	ErrInvalidRequest = errors.New("loopback: invalid request")
	// ErrNotInitialized is returned when no root context exists.
	ErrNotInitialized = errors.New("loopback: application not initialized")
)

// Options configures a loopback daemon.
type Options struct {
	// SegmentSize is the shared-memory segment size in bytes.
	SegmentSize int
	// ChunkSize is the allocation granularity inside the segment.
	ChunkSize int
	// HandshakeRounds is the number of RunOnce iterations the root context
	// must pump before the ready callback fires.
	HandshakeRounds int
	// FailHandshake makes every handshake iteration report an error.
	FailHandshake bool
	// InitErr, when set, is returned by Init.
	InitErr error
	// QueueDepth bounds the number of dispatched but unclaimed requests.
	QueueDepth int
	Logger     *slog.Logger
}

// Stats counts native calls made against the daemon.
type Stats struct {
	Inits        int
	CtxAllocs    int
	RunOnces     int
	Runs         int
	Dones        int
	LiveContexts int
	Dispatched   int
	Completed    int
	// Abandoned counts dispatched requests no context claimed before the
	// caller gave up or the daemon quit.
	Abandoned    int
	ChunksInUse  int
}

// Daemon is an in-process daemon implementing nxt.Lib.
type Daemon struct {
	opts   Options
	logger *slog.Logger

	seg  *shm.Segment
	pool *shm.Pool

	queue    chan *pending
	quit     chan struct{}
	quitOnce sync.Once

	mu        sync.Mutex
	callbacks nxt.Callbacks
	root      *appCtx
	nextCtxID int
	stats     Stats
	events    []string

	nextRequestID atomic.Uint64
}

// New maps the shared segment and returns an idle daemon.
func New(opts Options) (*Daemon, error) {
	if opts.SegmentSize <= 0 {
		opts.SegmentSize = defaultSegmentSize
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = defaultChunkSize
	}
	if opts.HandshakeRounds <= 0 {
		opts.HandshakeRounds = defaultHandshakeRounds
	}
	if opts.QueueDepth <= 0 {
		opts.QueueDepth = defaultQueueDepth
	}

	seg, err := shm.Map(opts.SegmentSize)
	if err != nil {
		return nil, err
	}
	pool, err := shm.NewPool(seg, opts.ChunkSize)
	if err != nil {
		_ = seg.Close()
		return nil, err
	}

	return &Daemon{
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "loopback"),
		seg:    seg,
		pool:   pool,
		queue:  make(chan *pending, opts.QueueDepth),
		quit:   make(chan struct{}),
	}, nil
}

// Quit asks every running context to return from Run. Contexts that call Run
// afterwards return immediately. Requests still queued are abandoned and
// their callers get ErrQuit.
func (d *Daemon) Quit() {
	d.quitOnce.Do(func() {
		close(d.quit)
		d.event("quit")
		for {
			select {
			case p := <-d.queue:
				if p.claim() {
					d.abandon(p, ErrQuit)
				}
			default:
				return
			}
		}
	})
}

// Close quits and unmaps the shared segment. Requests still in flight must
// have completed.
func (d *Daemon) Close() error {
	d.Quit()
	return d.seg.Close()
}

// Stats returns a snapshot of call counters.
func (d *Daemon) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.stats
	s.ChunksInUse = d.pool.InUse()
	return s
}

// Events returns the ordered lifecycle events (init, ctx_alloc, done, quit).
func (d *Daemon) Events() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.events...)
}

func (d *Daemon) event(format string, args ...any) {
	d.mu.Lock()
	d.events = append(d.events, fmt.Sprintf(format, args...))
	d.mu.Unlock()
}

// appCtx is one application context attached to the daemon.
type appCtx struct {
	d    *Daemon
	id   int
	data any
	root bool

	ready          bool
	handshakesLeft int
	done           atomic.Bool
}

func (c *appCtx) Data() any { return c.data }

// Init implements nxt.Lib.
func (d *Daemon) Init(params nxt.InitParams) (nxt.Ctx, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stats.Inits++
	if d.opts.InitErr != nil {
		return nil, d.opts.InitErr
	}
	if d.root != nil && !d.root.done.Load() {
		return nil, errors.New("loopback: application already initialized")
	}
	d.nextCtxID++
	root := &appCtx{
		d:              d,
		id:             d.nextCtxID,
		data:           params.CtxData,
		root:           true,
		handshakesLeft: d.opts.HandshakeRounds,
	}
	if params.Callbacks.ReadyHandler == nil {
		root.ready = true
	}
	d.callbacks = params.Callbacks
	d.root = root
	d.stats.LiveContexts++
	d.events = append(d.events, fmt.Sprintf("init#%d", root.id))
	return root, nil
}

// CtxAlloc implements nxt.Lib.
func (d *Daemon) CtxAlloc(parent nxt.Ctx, data any) (nxt.Ctx, error) {
	p, ok := parent.(*appCtx)
	if !ok || p.d != d {
		return nil, errors.New("loopback: parent context belongs to another daemon")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.stats.CtxAllocs++
	if d.root == nil || d.root.done.Load() {
		return nil, ErrNotInitialized
	}
	d.nextCtxID++
	c := &appCtx{d: d, id: d.nextCtxID, data: data, ready: true}
	d.stats.LiveContexts++
	d.events = append(d.events, fmt.Sprintf("ctx_alloc#%d", c.id))
	return c, nil
}

// RunOnce implements nxt.Lib. Before the root is ready each call is one
// handshake round; afterwards it processes at most one queued request
// without blocking.
func (d *Daemon) RunOnce(ctx nxt.Ctx) nxt.Status {
	c, ok := d.own(ctx)
	if !ok {
		return nxt.Error
	}

	d.mu.Lock()
	d.stats.RunOnces++
	if !c.ready {
		if d.opts.FailHandshake {
			d.mu.Unlock()
			return nxt.Error
		}
		c.handshakesLeft--
		if c.handshakesLeft > 0 {
			d.mu.Unlock()
			return nxt.OK
		}
		c.ready = true
		ready := d.callbacks.ReadyHandler
		d.mu.Unlock()
		d.event("ready#%d", c.id)
		if ready != nil {
			return ready(c)
		}
		return nxt.OK
	}
	d.mu.Unlock()

	select {
	case p := <-d.queue:
		d.handle(c, p)
	default:
	}
	return nxt.OK
}

// Run implements nxt.Lib. It serves queued requests until Quit.
func (d *Daemon) Run(ctx nxt.Ctx) nxt.Status {
	c, ok := d.own(ctx)
	if !ok {
		return nxt.Error
	}

	d.mu.Lock()
	d.stats.Runs++
	ready := c.ready
	d.mu.Unlock()
	if !ready {
		return nxt.Error
	}

	d.logger.Debug("context running", logging.Int("ctx_id", c.id))
	for {
		select {
		case <-d.quit:
			return nxt.OK
		default:
		}
		select {
		case <-d.quit:
			return nxt.OK
		case p := <-d.queue:
			d.handle(c, p)
		}
	}
}

// Done implements nxt.Lib.
func (d *Daemon) Done(ctx nxt.Ctx) {
	c, ok := ctx.(*appCtx)
	if !ok || c.d != d {
		return
	}
	if !c.done.CompareAndSwap(false, true) {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats.Dones++
	d.stats.LiveContexts--
	if c.root {
		d.events = append(d.events, fmt.Sprintf("done#%d(root)", c.id))
		return
	}
	d.events = append(d.events, fmt.Sprintf("done#%d", c.id))
}

func (d *Daemon) own(ctx nxt.Ctx) (*appCtx, bool) {
	c, ok := ctx.(*appCtx)
	if !ok || c.d != d || c.done.Load() {
		return nil, false
	}
	return c, true
}

// Dispatch lays out req in shared memory, queues it for the next free context
// and waits for the application to complete it. The response is streamed to
// sink as the application emits it.
func (d *Daemon) Dispatch(ctx context.Context, req *Request, sink Sink) (*Completion, error) {
	if req == nil {
		return nil, errors.New("loopback: nil request")
	}
	if sink == nil {
		sink = discardSink{}
	}
	select {
	case <-d.quit:
		return nil, ErrQuit
	default:
	}

	p, err := d.prepare(req, sink)
	if err != nil {
		return nil, err
	}

	select {
	case d.queue <- p:
	case <-ctx.Done():
		d.pool.Release(p.span)
		return nil, ctx.Err()
	case <-d.quit:
		d.pool.Release(p.span)
		return nil, ErrQuit
	}

	d.mu.Lock()
	d.stats.Dispatched++
	d.mu.Unlock()

	select {
	case <-p.done:
	case <-ctx.Done():
		if p.claim() {
			d.abandon(p, ctx.Err())
		}
		return nil, ctx.Err()
	case <-d.quit:
		if p.claim() {
			d.abandon(p, ErrQuit)
			return nil, ErrQuit
		}
		select {
		case <-p.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	return &p.completion, nil
}

// abandon completes a request no context will serve. The caller must have
// won p.claim.
func (d *Daemon) abandon(p *pending, err error) {
	p.err = err
	d.pool.Release(p.span)
	d.mu.Lock()
	d.stats.Abandoned++
	d.mu.Unlock()
	close(p.done)
}

func (d *Daemon) handle(c *appCtx, p *pending) {
	if !p.claim() {
		return
	}
	d.mu.Lock()
	handler := d.callbacks.RequestHandler
	d.mu.Unlock()

	info := &requestInfo{d: d, ctx: c, p: p}
	if handler == nil {
		info.Done(nxt.Error)
		return
	}
	handler(info)
	if !info.finished {
		d.logger.Warn("request handler returned without completing the request",
			logging.Uint64("dispatch_id", p.id),
			logging.String(logging.FieldEventType, "request_not_done"),
			logging.String(logging.FieldErrorHint, "call RequestInfo.Done exactly once"))
		info.Done(nxt.Error)
	}
}

func (d *Daemon) completed() {
	d.mu.Lock()
	d.stats.Completed++
	d.mu.Unlock()
}
