package nxt

// Callbacks are the native entry points registered with the daemon.
type Callbacks struct {
	// RequestHandler is invoked once per inbound request on the thread
	// running the context that received it.
	RequestHandler func(req RequestInfo)
	// ReadyHandler is invoked once, on the root context only, when the
	// daemon has accepted the connection.
	ReadyHandler func(ctx Ctx) Status
}

// InitParams configures the root connection.
type InitParams struct {
	Callbacks Callbacks
	// CtxData is opaque user data attached to the root context.
	CtxData any
}

// Ctx is one native connection context.
type Ctx interface {
	// Data returns the opaque user data attached at creation.
	Data() any
}

// Lib is the daemon library. Init creates the root connection, CtxAlloc
// derives secondary ones from it. Run blocks until the daemon asks the
// application to quit; RunOnce processes at most one event.
type Lib interface {
	Init(params InitParams) (Ctx, error)
	CtxAlloc(parent Ctx, data any) (Ctx, error)
	Run(ctx Ctx) Status
	RunOnce(ctx Ctx) Status
	Done(ctx Ctx)
}

// RequestInfo is one in-flight request. It is confined to the thread that
// received it and must be completed with Done exactly once.
type RequestInfo interface {
	Ctx() Ctx
	Request() *Request

	// ResponseInit commits the status and the capacity reserved for fields
	// and content. maxFieldsSize covers names, values and content bytes.
	ResponseInit(status uint16, maxFieldsCount, maxFieldsSize uint32) Status
	// ResponseAddField appends a field. len(name) must fit in a uint8 and
	// len(value) in a uint32.
	ResponseAddField(name, value []byte) Status
	ResponseAddContent(p []byte) Status
	ResponseSend() Status
	// ResponseBufAlloc allocates a shared-memory chunk of size bytes, or
	// returns nil when the daemon cannot provide one.
	ResponseBufAlloc(size uint32) Buf

	// Read copies buffered body bytes into dst and returns the count; 0 once
	// the body is exhausted.
	Read(dst []byte) int
	Done(rc Status)
	Log(level LogLevel, msg string)
}

// Buf is a response chunk in shared memory.
type Buf interface {
	// Bytes returns the writable region of the chunk.
	Bytes() []byte
	// Send transmits the first n bytes and releases the chunk. A chunk
	// whose Send failed is still owned by the caller and must be freed.
	Send(n int) Status
	// Free releases the chunk without sending it.
	Free()
}
