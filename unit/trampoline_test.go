package unit_test

import (
	"errors"
	"fmt"
	"testing"

	"unitgo/loopback"
	"unitgo/nxt"
	"unitgo/unit"
)

func TestHandlerOutcomeMapping(t *testing.T) {
	tests := []struct {
		name    string
		handler func(*unit.Request) error
		want    nxt.Status
	}{
		{"nil error", func(req *unit.Request) error {
			_, err := req.SendResponse(204, nil, nil)
			return err
		}, nxt.OK},
		{"request error passes its code", func(*unit.Request) error {
			return unit.NewRequestError(nxt.Again)
		}, nxt.Again},
		{"wrapped request error", func(*unit.Request) error {
			return fmt.Errorf("upstream: %w", unit.NewRequestError(nxt.Cancelled))
		}, nxt.Cancelled},
		{"plain error", func(*unit.Request) error {
			return errors.New("boom")
		}, nxt.Error},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			done, _, err := serveOne(t, loopback.Options{}, &loopback.Request{}, tt.handler)
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			if done.Status != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, done.Status)
			}
		})
	}
}

func TestStatusOf(t *testing.T) {
	if got := unit.StatusOf(nil); got != nxt.OK {
		t.Fatalf("expected ok, got %v", got)
	}
	if got := unit.StatusOf(errors.New("x")); got != nxt.Error {
		t.Fatalf("expected error, got %v", got)
	}
	err := fmt.Errorf("wrapped: %w", unit.NewRequestError(nxt.Again))
	if got := unit.StatusOf(err); got != nxt.Again {
		t.Fatalf("expected again, got %v", got)
	}
	if !errors.Is(err, unit.NewRequestError(nxt.Again)) || errors.Is(err, unit.NewRequestError(nxt.Error)) {
		t.Fatal("RequestError should match by code")
	}
}

func TestMissingHandlerFinishesWithError(t *testing.T) {
	reg, d := newLoopback(t, loopback.Options{})
	ctx := mustNew(t, reg)
	errc := startRun(ctx)

	done, rec := dispatch(t, d, &loopback.Request{})
	if done.Status != nxt.Error || rec.Code != loopback.FallbackStatus {
		t.Fatalf("expected error with fallback, got %v %d", done.Status, rec.Code)
	}

	d.Quit()
	if err := waitRun(t, errc); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	_ = ctx.Close()
}

func TestPanicIsReraisedAfterRun(t *testing.T) {
	reg, d := newLoopback(t, loopback.Options{})
	ctx := mustNew(t, reg)
	ctx.SetHandlerFunc(func(req *unit.Request) error {
		if req.Path() == "/panic" {
			panic(fmt.Sprintf("bad path %s", req.Path()))
		}
		_, err := req.SendResponse(200, nil, []byte("fine"))
		return err
	})

	recovered := make(chan any, 1)
	go func() {
		defer func() { recovered <- recover() }()
		_ = ctx.Run()
	}()

	first, _ := dispatch(t, d, &loopback.Request{Target: "/panic"})
	_, rec := dispatch(t, d, &loopback.Request{Target: "/ok"})
	second, _ := dispatch(t, d, &loopback.Request{Target: "/panic"})

	if first.Status != nxt.Error || second.Status != nxt.Error {
		t.Fatalf("expected panicking requests to finish with error, got %v and %v", first.Status, second.Status)
	}
	if rec.Code != 200 || rec.Body.String() != "fine" {
		t.Fatalf("expected loop to keep serving after a panic, got %d %q", rec.Code, rec.Body.String())
	}

	d.Quit()
	v := <-recovered
	fault, ok := v.(*unit.Fault)
	if !ok {
		t.Fatalf("expected *Fault panic, got %T %v", v, v)
	}
	if fault.Value != "bad path /panic" || fault.Count != 2 {
		t.Fatalf("unexpected fault %+v", fault)
	}
	if len(fault.Stack) == 0 {
		t.Fatal("expected captured stack")
	}
	_ = ctx.Close()
}

func TestFaultUnwrapsErrorValues(t *testing.T) {
	cause := errors.New("typed failure")
	_, _, err := serveOne(t, loopback.Options{}, &loopback.Request{}, func(*unit.Request) error {
		panic(cause)
	})
	if !errors.Is(err, cause) {
		t.Fatalf("expected fault to unwrap to the panic error, got %v", err)
	}
}
