// Package loopback implements the daemon side of the native boundary inside
// the current process.
//
// A Daemon satisfies nxt.Lib, so unit contexts can be created, run and torn
// down against it exactly as against libunit. Requests are laid out in a real
// shared-memory segment using the daemon's base+offset pointer encoding, and
// response chunks are allocated from the same segment. Every native call a
// request makes is recorded in its Completion, which makes the package useful
// both as a test double and as the engine behind the dev server.
//
// Typical use in a test:
//
//	d, _ := loopback.New(loopback.Options{})
//	defer d.Close()
//	reg := unit.NewRegistry(d)
//	ctx, _ := reg.New()
//	ctx.SetHandlerFunc(handle)
//	go ctx.Run()
//	rec := loopback.NewRecorder()
//	done, _ := d.Dispatch(context.Background(), &loopback.Request{Method: "GET", Target: "/"}, rec)
package loopback
