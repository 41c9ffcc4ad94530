//go:build libunit

package libunit

/*
#cgo LDFLAGS: -lunit
#include <stdint.h>
#include <stdlib.h>
#include <string.h>
#include <nxt_unit.h>
#include <nxt_unit_request.h>
#include <nxt_unit_field.h>

extern void unitgoRequestHandler(nxt_unit_request_info_t *req);
extern int unitgoReadyHandler(nxt_unit_ctx_t *ctx);

static nxt_unit_ctx_t *
unitgo_init(uintptr_t ctx_data)
{
	nxt_unit_init_t init;

	memset(&init, 0, sizeof(init));
	init.callbacks.request_handler = unitgoRequestHandler;
	init.callbacks.ready_handler = unitgoReadyHandler;
	init.ctx_data = (void *) ctx_data;

	return nxt_unit_init(&init);
}

static nxt_unit_ctx_t *
unitgo_ctx_alloc(nxt_unit_ctx_t *parent, uintptr_t data)
{
	return nxt_unit_ctx_alloc(parent, (void *) data);
}

static uintptr_t
unitgo_ctx_data(nxt_unit_ctx_t *ctx)
{
	return (uintptr_t) ctx->data;
}

static nxt_unit_field_t *
unitgo_field(nxt_unit_request_t *r, uint32_t i)
{
	return &r->fields[i];
}

static char *
unitgo_buf_start(nxt_unit_buf_t *b)
{
	return b->start;
}

static uint32_t
unitgo_buf_size(nxt_unit_buf_t *b)
{
	return (uint32_t) (b->end - b->start);
}

static int
unitgo_buf_send(nxt_unit_buf_t *b, uint32_t n)
{
	b->free = b->start + n;
	return nxt_unit_buf_send(b);
}

static void
unitgo_req_log(nxt_unit_request_info_t *req, int level, const char *msg)
{
	nxt_unit_req_log(req, level, "%s", msg);
}
*/
import "C"

import (
	"errors"
	"runtime/cgo"
	"sync/atomic"
	"unsafe"

	"unitgo/nxt"
)

var callbacks atomic.Pointer[nxt.Callbacks]

// Lib is the libunit-backed nxt.Lib.
type Lib struct{}

// New returns the libunit binding.
func New() *Lib { return &Lib{} }

type context struct {
	c *C.nxt_unit_ctx_t
}

func wrapCtx(c *C.nxt_unit_ctx_t) *context { return &context{c: c} }

func (x *context) handle() cgo.Handle {
	return cgo.Handle(uintptr(C.unitgo_ctx_data(x.c)))
}

func (x *context) Data() any {
	h := x.handle()
	if h == 0 {
		return nil
	}
	return h.Value()
}

func native(ctx nxt.Ctx) *C.nxt_unit_ctx_t {
	x, ok := ctx.(*context)
	if !ok || x == nil {
		return nil
	}
	return x.c
}

func (*Lib) Init(params nxt.InitParams) (nxt.Ctx, error) {
	cb := params.Callbacks
	callbacks.Store(&cb)

	h := cgo.NewHandle(params.CtxData)
	c := C.unitgo_init(C.uintptr_t(h))
	if c == nil {
		h.Delete()
		return nil, errors.New("libunit: nxt_unit_init failed")
	}
	return wrapCtx(c), nil
}

func (*Lib) CtxAlloc(parent nxt.Ctx, data any) (nxt.Ctx, error) {
	p := native(parent)
	if p == nil {
		return nil, errors.New("libunit: invalid parent context")
	}
	h := cgo.NewHandle(data)
	c := C.unitgo_ctx_alloc(p, C.uintptr_t(h))
	if c == nil {
		h.Delete()
		return nil, errors.New("libunit: nxt_unit_ctx_alloc failed")
	}
	return wrapCtx(c), nil
}

func (*Lib) Run(ctx nxt.Ctx) nxt.Status {
	c := native(ctx)
	if c == nil {
		return nxt.Error
	}
	return nxt.Status(C.nxt_unit_run(c))
}

func (*Lib) RunOnce(ctx nxt.Ctx) nxt.Status {
	c := native(ctx)
	if c == nil {
		return nxt.Error
	}
	return nxt.Status(C.nxt_unit_run_once(c))
}

func (*Lib) Done(ctx nxt.Ctx) {
	x, ok := ctx.(*context)
	if !ok || x == nil || x.c == nil {
		return
	}
	h := x.handle()
	C.nxt_unit_done(x.c)
	x.c = nil
	if h != 0 {
		h.Delete()
	}
}

// requestInfo adapts nxt_unit_request_info_t.
type requestInfo struct {
	r    *C.nxt_unit_request_info_t
	view *nxt.Request
}

func newRequestInfo(r *C.nxt_unit_request_info_t) *requestInfo {
	return &requestInfo{r: r}
}

func (ri *requestInfo) Ctx() nxt.Ctx { return wrapCtx(ri.r.ctx) }

func sptr(p *C.nxt_unit_sptr_t) nxt.Sptr {
	return nxt.Sptr{
		Base:   unsafe.Pointer(p),
		Offset: *(*uint32)(unsafe.Pointer(p)),
	}
}

func (ri *requestInfo) Request() *nxt.Request {
	if ri.view != nil {
		return ri.view
	}
	r := ri.r.request
	v := &nxt.Request{
		Method:           sptr(&r.method),
		MethodLength:     uint8(r.method_length),
		Version:          sptr(&r.version),
		VersionLength:    uint8(r.version_length),
		Remote:           sptr(&r.remote),
		RemoteLength:     uint8(r.remote_length),
		Local:            sptr(&r.local),
		LocalLength:      uint8(r.local_length),
		ServerName:       sptr(&r.server_name),
		ServerNameLength: uint32(r.server_name_length),
		Target:           sptr(&r.target),
		TargetLength:     uint32(r.target_length),
		Path:             sptr(&r.path),
		PathLength:       uint32(r.path_length),
		Query:            sptr(&r.query),
		QueryLength:      uint32(r.query_length),
		TLS:              r.tls != 0,
		ContentLength:    uint64(r.content_length),
	}
	n := uint32(r.fields_count)
	v.Fields = make([]nxt.Field, n)
	for i := range n {
		f := C.unitgo_field(r, C.uint32_t(i))
		v.Fields[i] = nxt.Field{
			Name:        sptr(&f.name),
			NameLength:  uint8(f.name_length),
			Value:       sptr(&f.value),
			ValueLength: uint32(f.value_length),
		}
	}
	ri.view = v
	return v
}

func bytesPtr(p []byte) *C.char {
	if len(p) == 0 {
		return nil
	}
	return (*C.char)(unsafe.Pointer(&p[0]))
}

func (ri *requestInfo) ResponseInit(status uint16, maxFieldsCount, maxFieldsSize uint32) nxt.Status {
	return nxt.Status(C.nxt_unit_response_init(ri.r, C.uint16_t(status), C.uint32_t(maxFieldsCount), C.uint32_t(maxFieldsSize)))
}

func (ri *requestInfo) ResponseAddField(name, value []byte) nxt.Status {
	return nxt.Status(C.nxt_unit_response_add_field(ri.r,
		bytesPtr(name), C.uint8_t(len(name)),
		bytesPtr(value), C.uint32_t(len(value))))
}

func (ri *requestInfo) ResponseAddContent(p []byte) nxt.Status {
	return nxt.Status(C.nxt_unit_response_add_content(ri.r, unsafe.Pointer(bytesPtr(p)), C.uint32_t(len(p))))
}

func (ri *requestInfo) ResponseSend() nxt.Status {
	return nxt.Status(C.nxt_unit_response_send(ri.r))
}

func (ri *requestInfo) ResponseBufAlloc(size uint32) nxt.Buf {
	b := C.nxt_unit_response_buf_alloc(ri.r, C.uint32_t(size))
	if b == nil {
		return nil
	}
	return &buf{b: b}
}

func (ri *requestInfo) Read(dst []byte) int {
	if len(dst) == 0 {
		return 0
	}
	n := C.nxt_unit_request_read(ri.r, unsafe.Pointer(&dst[0]), C.size_t(len(dst)))
	if n < 0 {
		return 0
	}
	return int(n)
}

func (ri *requestInfo) Done(rc nxt.Status) {
	C.nxt_unit_request_done(ri.r, C.int(rc))
}

func (ri *requestInfo) Log(level nxt.LogLevel, msg string) {
	cs := C.CString(msg)
	defer C.free(unsafe.Pointer(cs))
	C.unitgo_req_log(ri.r, C.int(level), cs)
}

// buf is an outgoing chunk in libunit's shared memory.
type buf struct {
	b *C.nxt_unit_buf_t
}

func (b *buf) Bytes() []byte {
	if b.b == nil {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(C.unitgo_buf_start(b.b))), int(C.unitgo_buf_size(b.b)))
}

func (b *buf) Send(n int) nxt.Status {
	if b.b == nil || n < 0 || n > int(C.unitgo_buf_size(b.b)) {
		return nxt.Error
	}
	rc := nxt.Status(C.unitgo_buf_send(b.b, C.uint32_t(n)))
	if rc == nxt.OK {
		b.b = nil
	}
	return rc
}

func (b *buf) Free() {
	if b.b == nil {
		return
	}
	C.nxt_unit_buf_free(b.b)
	b.b = nil
}
