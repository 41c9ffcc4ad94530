package unit

import (
	"runtime/debug"

	"unitgo/internal/logging"
	"unitgo/nxt"
)

// dispatch is the request callback registered with the daemon. It runs on
// the thread executing the context's loop and must never let a panic
// escape, because the caller may be a native frame.
func dispatch(info nxt.RequestInfo) {
	data, _ := info.Ctx().Data().(*contextData)
	req := newRequest(info, data)
	rc := req.settleWriters(serve(data, req))
	req.finish()
	info.Done(rc)
}

func serve(data *contextData, req *Request) (rc nxt.Status) {
	if data == nil {
		return nxt.Error
	}
	box := data.handler.Load()
	if box == nil {
		logging.WarnWithContext(data.logger, "request received with no handler installed", "handler_missing",
			logging.String(logging.FieldErrorHint, "call SetHandler before Run"),
			logging.String(logging.FieldImpact, "the daemon answers with its fallback error"))
		return nxt.Error
	}

	defer func() {
		if v := recover(); v != nil {
			first := data.faults.record(v, debug.Stack())
			logging.ErrorWithContext(data.logger, "request handler panicked", "handler_panic",
				logging.Any("panic", v),
				logging.Bool("first", first),
				logging.String("path", req.Path()),
				logging.String(logging.FieldErrorHint, "the panic is raised again after Run returns"))
			rc = nxt.Error
		}
	}()

	err := box.h.ServeUnit(req)
	rc = StatusOf(err)
	if err != nil && rc == nxt.Error {
		data.logger.Debug("request handler failed", logging.Error(err), logging.String("path", req.Path()))
	}
	return rc
}
