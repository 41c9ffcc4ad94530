//go:build libunit

package libunit

/*
#include <nxt_unit.h>
*/
import "C"

import "unitgo/nxt"

//export unitgoRequestHandler
func unitgoRequestHandler(req *C.nxt_unit_request_info_t) {
	info := newRequestInfo(req)
	cb := callbacks.Load()
	if cb == nil || cb.RequestHandler == nil {
		info.Done(nxt.Error)
		return
	}
	cb.RequestHandler(info)
}

//export unitgoReadyHandler
func unitgoReadyHandler(ctx *C.nxt_unit_ctx_t) C.int {
	cb := callbacks.Load()
	if cb == nil || cb.ReadyHandler == nil {
		return C.int(nxt.OK)
	}
	return C.int(cb.ReadyHandler(wrapCtx(ctx)))
}
