package unit

import (
	"fmt"
	"sync"
	"weak"

	"unitgo/nxt"
)

type registryStatus int

const (
	statusUninitialized registryStatus = iota
	statusInitFailed
	statusInitialized
	statusFinalized
)

func (s registryStatus) String() string {
	switch s {
	case statusUninitialized:
		return "uninitialized"
	case statusInitFailed:
		return "init_failed"
	case statusInitialized:
		return "initialized"
	case statusFinalized:
		return "finalized"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// registryState is only read or written with Registry.mu held.
type registryState struct {
	status registryStatus
	err    *InitError
	// root observes the root connection without keeping it alive.
	root weak.Pointer[rootConn]
	// live counts secondary connections that have not been released.
	live int
}

// rootConn is the first native connection of a registry. Secondary
// connections hold it strongly so it outlives all of them.
type rootConn struct {
	ctx       nxt.Ctx
	data      *contextData
	finalized bool
}

type secondaryConn struct {
	root *rootConn
	ctx  nxt.Ctx
	data *contextData
}

// Registry coordinates the root connection and the secondary connections
// derived from it. Most programs use the process-wide registry through New;
// NewRegistry exists for alternative backends such as the loopback daemon.
type Registry struct {
	lib nxt.Lib

	mu       sync.Mutex
	cond     *sync.Cond
	state    registryState
	poisoned bool
}

// NewRegistry returns an uninitialized registry backed by lib.
func NewRegistry(lib nxt.Lib) *Registry {
	r := &Registry{lib: lib}
	r.cond = sync.NewCond(&r.mu)
	return r
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// DefaultRegistry returns the process-wide registry bound to libunit. It is
// built on first use.
func DefaultRegistry() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry(defaultLib())
	})
	return defaultRegistry
}

// New creates a context in the process-wide registry. The first successful
// call creates the root connection; later calls create secondary ones.
func New(opts ...Option) (*Context, error) {
	return DefaultRegistry().New(opts...)
}

// RegistryStats is a snapshot of registry state.
type RegistryStats struct {
	Status      string
	Secondaries int
	Poisoned    bool
}

// Stats returns a snapshot of the registry state.
func (r *Registry) Stats() RegistryStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RegistryStats{
		Status:      r.state.status.String(),
		Secondaries: r.state.live,
		Poisoned:    r.poisoned,
	}
}

// guard is exclusive access to the registry state.
type guard struct {
	r *Registry
}

func (r *Registry) acquire() (*guard, error) {
	r.mu.Lock()
	if r.poisoned {
		r.mu.Unlock()
		return nil, ErrRegistryPoisoned
	}
	return &guard{r: r}, nil
}

// release must be deferred directly. A panic raised while the guard was held
// poisons the registry before propagating.
func (g *guard) release() {
	if v := recover(); v != nil {
		g.r.poisoned = true
		g.r.cond.Broadcast()
		g.r.mu.Unlock()
		panic(v)
	}
	g.r.mu.Unlock()
}

func (g *guard) state() *registryState { return &g.r.state }

// createRoot establishes the root connection and blocks until the daemon
// has acknowledged it. Any failure is recorded and returned to every later
// caller.
func (g *guard) createRoot(data *contextData) (*rootConn, error) {
	st := g.state()
	lib := g.r.lib

	ctx, err := lib.Init(nxt.InitParams{
		Callbacks: nxt.Callbacks{
			RequestHandler: dispatch,
			ReadyHandler:   markReady,
		},
		CtxData: data,
	})
	if err != nil {
		return nil, g.fail(err)
	}

	for !data.ready.Load() {
		if rc := lib.RunOnce(ctx); rc != nxt.OK {
			lib.Done(ctx)
			return nil, g.fail(fmt.Errorf("readiness handshake: %w", &RequestError{Code: rc}))
		}
	}

	root := &rootConn{ctx: ctx, data: data}
	st.status = statusInitialized
	st.root = weak.Make(root)
	return root, nil
}

func (g *guard) fail(err error) *InitError {
	st := g.state()
	st.status = statusInitFailed
	st.err = &InitError{Err: err}
	return st.err
}

// createSecondary derives a connection from the live root. finished is true
// when the root is gone, in which case no native call was made.
func (g *guard) createSecondary(data *contextData) (conn *secondaryConn, finished bool, err error) {
	st := g.state()
	root := st.root.Value()
	if root == nil || root.finalized {
		return nil, true, nil
	}
	ctx, err := g.r.lib.CtxAlloc(root.ctx, data)
	if err != nil {
		return nil, false, &InitError{Err: fmt.Errorf("allocate secondary context: %w", err)}
	}
	st.live++
	return &secondaryConn{root: root, ctx: ctx, data: data}, false, nil
}

func (g *guard) releaseSecondary() {
	st := g.state()
	if st.live > 0 {
		st.live--
	}
	g.r.cond.Broadcast()
}

// finalizeRoot tears the root down once no secondary connection is alive.
// With onPanic set it never waits: the native connection is leaked instead.
// It reports whether the native connection was released.
func (g *guard) finalizeRoot(root *rootConn, onPanic bool) bool {
	st := g.state()
	for st.live > 0 {
		if onPanic || g.r.poisoned {
			root.finalized = true
			st.status = statusFinalized
			return false
		}
		g.r.cond.Wait()
	}
	if root.finalized {
		return false
	}
	root.finalized = true
	g.r.lib.Done(root.ctx)
	st.status = statusFinalized
	return true
}
