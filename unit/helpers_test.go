package unit_test

import (
	"context"
	"testing"
	"time"

	"unitgo/loopback"
	"unitgo/unit"
)

const testTimeout = 5 * time.Second

func newLoopback(t *testing.T, opts loopback.Options) (*unit.Registry, *loopback.Daemon) {
	t.Helper()
	d, err := loopback.New(opts)
	if err != nil {
		t.Fatalf("loopback.New failed: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return unit.NewRegistry(d), d
}

func mustNew(t *testing.T, reg *unit.Registry, opts ...unit.Option) *unit.Context {
	t.Helper()
	ctx, err := reg.New(opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return ctx
}

// startRun runs ctx on its own goroutine and returns a channel that receives
// the result of Run.
func startRun(ctx *unit.Context) <-chan error {
	errc := make(chan error, 1)
	go func() { errc <- ctx.Run() }()
	return errc
}

func waitRun(t *testing.T, errc <-chan error) error {
	t.Helper()
	select {
	case err := <-errc:
		return err
	case <-time.After(testTimeout):
		t.Fatal("Run did not return")
		return nil
	}
}

func dispatch(t *testing.T, d *loopback.Daemon, req *loopback.Request) (*loopback.Completion, *loopback.Recorder) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	rec := loopback.NewRecorder()
	done, err := d.Dispatch(ctx, req, rec)
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	return done, rec
}

// serveOne installs handler on a fresh root context, dispatches req and
// shuts the loop down again.
func serveOne(t *testing.T, opts loopback.Options, req *loopback.Request, handler func(*unit.Request) error) (*loopback.Completion, *loopback.Recorder, error) {
	t.Helper()
	reg, d := newLoopback(t, opts)
	ctx := mustNew(t, reg, unit.WithFaultPolicy(unit.FaultReturn))
	ctx.SetHandlerFunc(handler)
	errc := startRun(ctx)

	done, rec := dispatch(t, d, req)

	d.Quit()
	runErr := waitRun(t, errc)
	if err := ctx.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	return done, rec, runErr
}
