// Package devserver fronts a loopback daemon with net/http.
//
// Each incoming request gets a request id, is converted into a loopback
// request and dispatched to whichever unit context is free. Response headers
// are written when the application sends them and body chunks are flushed as
// they arrive, so streaming handlers stream end to end. Every request is
// written to the journal when one is configured.
package devserver
