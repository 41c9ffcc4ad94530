// Package unit lets a Go process serve requests dispatched by an NGINX Unit
// style application daemon.
//
// The first Context created in a process is the root connection: New blocks
// until the daemon has acknowledged it. Every later Context is a secondary
// connection derived from the root and is meant to run on its own OS thread.
// The root is only released after every secondary has been closed; contexts
// created after that are inert and their Run returns immediately.
//
//	ctx, err := unit.New()
//	if err != nil {
//		return err
//	}
//	defer ctx.Close()
//	ctx.SetHandlerFunc(func(req *unit.Request) error {
//		_, err := req.SendResponse(200, []unit.Header{{Name: "Content-Type", Value: "text/plain"}}, []byte("Hello world!\n"))
//		return err
//	})
//	return ctx.Run()
//
// Handler panics are stopped before they reach the daemon's native frames.
// The request is completed with an error status and the panic is raised
// again on the goroutine that called Run once the loop returns (see
// FaultPolicy).
//
// Building with -tags libunit binds the process-wide registry to libunit
// through cgo. Without the tag New reports an InitError; the loopback package
// provides an in-process daemon for tests and local development.
package unit
