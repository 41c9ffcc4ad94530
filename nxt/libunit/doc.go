// Package libunit binds nxt.Lib to the NGINX Unit application library
// through cgo. It is only compiled with the libunit build tag and needs the
// unit development headers and libunit at build time:
//
//	go build -tags libunit ./...
//
// Context user data crosses the C boundary as a runtime/cgo.Handle, so no Go
// pointer is ever stored in C memory. The two exported callbacks forward to
// the nxt.Callbacks given to Init; libunit runs one application per process,
// so the callbacks are process-wide.
package libunit
