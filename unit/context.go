package unit

import (
	"log/slog"
	"runtime"
	"sync/atomic"

	"unitgo/internal/logging"
	"unitgo/nxt"
)

// Handler serves one request. Returning nil completes the request with
// nxt.OK; returning a *RequestError completes it with that code; any other
// error completes it with nxt.Error.
type Handler interface {
	ServeUnit(req *Request) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(req *Request) error

func (f HandlerFunc) ServeUnit(req *Request) error { return f(req) }

type handlerBox struct {
	h Handler
}

// contextData is the per-connection state handed to native code as opaque
// user data. The dispatch trampoline resolves the handler through it.
type contextData struct {
	name    string
	logger  *slog.Logger
	handler atomic.Pointer[handlerBox]
	ready   atomic.Bool
	faults  faultSlot
}

func markReady(ctx nxt.Ctx) nxt.Status {
	data, ok := ctx.Data().(*contextData)
	if !ok {
		return nxt.Error
	}
	data.ready.Store(true)
	return nxt.OK
}

type contextKind int

const (
	kindRoot contextKind = iota
	kindSecondary
	kindInert
)

func (k contextKind) String() string {
	switch k {
	case kindRoot:
		return "root"
	case kindSecondary:
		return "secondary"
	default:
		return "inert"
	}
}

// Context owns one connection to the daemon. A Context is meant to be used
// by a single goroutine: install a handler, call Run, then Close.
//
// Close must be deferred directly (defer ctx.Close()) so it can tell whether
// the goroutine is panicking; a root Context never blocks during a panic.
type Context struct {
	reg    *Registry
	kind   contextKind
	root   *rootConn
	sec    *secondaryConn
	data   *contextData
	policy FaultPolicy
	logger *slog.Logger
	closed atomic.Bool
}

// New creates a context in r. The first successful call performs the
// readiness handshake and returns the root context; later calls return
// secondary contexts immediately. Once the root is finalized New returns
// inert contexts whose Run returns at once.
func (r *Registry) New(opts ...Option) (*Context, error) {
	o := newOptions(opts)
	data := &contextData{
		name:   o.name,
		logger: logging.NewComponentLogger(o.logger, "unit"),
	}
	if o.name != "" {
		data.logger = data.logger.With(logging.String(logging.FieldContext, o.name))
	}
	if o.thread >= 0 {
		data.logger = data.logger.With(logging.Thread(o.thread))
	}
	c := &Context{reg: r, data: data, policy: o.policy, logger: data.logger}

	g, err := r.acquire()
	if err != nil {
		return nil, err
	}
	defer g.release()

	st := g.state()
	switch st.status {
	case statusUninitialized:
		root, err := g.createRoot(data)
		if err != nil {
			c.logger.Error("unit initialization failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "init_failed"),
				logging.String(logging.FieldErrorHint, "check that the process was started by the daemon"))
			return nil, err
		}
		c.kind = kindRoot
		c.root = root
		c.logger.Debug("root context ready")
	case statusInitFailed:
		return nil, st.err
	case statusInitialized:
		sec, finished, err := g.createSecondary(data)
		if err != nil {
			return nil, err
		}
		if finished {
			c.kind = kindInert
			c.logger.Debug("root already finished; returning inert context")
			break
		}
		c.kind = kindSecondary
		c.sec = sec
		c.logger.Debug("secondary context created")
	default:
		c.kind = kindInert
	}
	return c, nil
}

// IsRoot reports whether c owns the root connection.
func (c *Context) IsRoot() bool { return c.kind == kindRoot }

// IsInert reports whether c is a no-op context created after the root
// finished.
func (c *Context) IsInert() bool { return c.kind == kindInert }

// Name returns the name given with WithName.
func (c *Context) Name() string { return c.data.name }

// SetHandler installs the handler for requests served by this context. It
// must not be called while Run is executing. It is a no-op on an inert
// context.
func (c *Context) SetHandler(h Handler) {
	if c.kind == kindInert || h == nil {
		return
	}
	c.data.handler.Store(&handlerBox{h: h})
}

// SetHandlerFunc installs fn as the handler.
func (c *Context) SetHandlerFunc(fn func(req *Request) error) {
	if fn == nil {
		return
	}
	c.SetHandler(HandlerFunc(fn))
}

func (c *Context) native() nxt.Ctx {
	if c.kind == kindRoot {
		return c.root.ctx
	}
	return c.sec.ctx
}

// Run serves requests on the calling goroutine, locked to its OS thread,
// until the daemon asks the application to quit. A handler panic does not
// stop the loop; the first one is surfaced once the loop returns, according
// to the context's FaultPolicy.
func (c *Context) Run() error {
	if c.kind == kindInert {
		return nil
	}
	if c.closed.Load() {
		return ErrContextClosed
	}

	rc := c.loop()
	if f := c.data.faults.take(); f != nil {
		if c.policy == FaultReturn {
			return f
		}
		panic(f)
	}
	return statusError(rc)
}

func (c *Context) loop() nxt.Status {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	c.logger.Debug("context loop started", logging.Kind("kind", c.kind))
	rc := c.reg.lib.Run(c.native())
	c.logger.Debug("context loop finished", logging.RC(rc))
	return rc
}

// Close releases the connection. Closing the root blocks until every
// secondary context has been closed, unless the goroutine is panicking, in
// which case the root connection is leaked and the panic continues. Close
// is idempotent.
func (c *Context) Close() error {
	v := recover()
	err := c.close(v != nil)
	if v != nil {
		panic(v)
	}
	return err
}

func (c *Context) close(panicking bool) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.data.handler.Store(nil)

	switch c.kind {
	case kindRoot:
		g, err := c.reg.acquire()
		if err != nil {
			c.logger.Warn("root context leaked",
				logging.Error(err),
				logging.String(logging.FieldEventType, "root_leaked"),
				logging.String(logging.FieldErrorHint, "an earlier panic poisoned the registry"),
				logging.String(logging.FieldImpact, "the daemon connection is not released"))
			return err
		}
		defer g.release()
		if !g.finalizeRoot(c.root, panicking) {
			hint := "close secondary contexts before the root"
			if c.reg.poisoned {
				hint = "a panic poisoned the registry while the root was waiting"
			}
			c.logger.Warn("root context leaked",
				logging.Bool("panicking", panicking),
				logging.String(logging.FieldEventType, "root_leaked"),
				logging.String(logging.FieldErrorHint, hint),
				logging.String(logging.FieldImpact, "the daemon connection is not released"))
			if c.reg.poisoned {
				return ErrRegistryPoisoned
			}
			return nil
		}
		c.logger.Debug("root context finalized")
	case kindSecondary:
		c.reg.lib.Done(c.sec.ctx)
		g, err := c.reg.acquire()
		if err != nil {
			return err
		}
		defer g.release()
		g.releaseSecondary()
		c.sec.root = nil
		c.logger.Debug("secondary context released")
	}
	return nil
}
