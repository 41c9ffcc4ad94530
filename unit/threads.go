package unit

import (
	"errors"
	"fmt"
	"sync"
)

// RunThreads serves requests on n contexts, each on its own OS thread. The
// root context is created first on the calling goroutine; the remaining n-1
// are secondary contexts running on new goroutines. setup is called once per
// context before Run, typically to install a handler. RunThreads returns when
// every context has returned from Run and been closed.
//
// Handler panics follow each context's FaultPolicy; with FaultRepanic a
// panic on a secondary context terminates the process like any unrecovered
// goroutine panic.
func (r *Registry) RunThreads(n int, setup func(ctx *Context) error, opts ...Option) error {
	if n < 1 {
		return fmt.Errorf("unit: thread count must be positive, got %d", n)
	}
	if setup == nil {
		return errors.New("unit: RunThreads requires a setup function")
	}

	root, err := r.New(append(opts[:len(opts):len(opts)], withThread(0))...)
	if err != nil {
		return err
	}

	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 1; i < n; i++ {
		wg.Go(func() {
			ctx, err := r.New(append(opts[:len(opts):len(opts)], withThread(i))...)
			if err != nil {
				errs[i] = err
				return
			}
			errs[i] = runContext(ctx, setup)
		})
	}

	errs[0] = runContext(root, setup)
	wg.Wait()
	return errors.Join(errs...)
}

// RunThreads runs n contexts of the process-wide registry.
func RunThreads(n int, setup func(ctx *Context) error, opts ...Option) error {
	return DefaultRegistry().RunThreads(n, setup, opts...)
}

func runContext(ctx *Context, setup func(ctx *Context) error) error {
	defer ctx.Close()
	if err := setup(ctx); err != nil {
		return err
	}
	return ctx.Run()
}
