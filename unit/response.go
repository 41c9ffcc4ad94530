package unit

import (
	"math"
)

// Response is the response of one request, obtained from
// Request.CreateResponse. The one-shot sequence is AddField, AddContent and
// Send; body chunks may be streamed afterwards with NewBodyWriter or
// SendChunk.
type Response struct {
	req  *Request
	sent bool
}

// Request returns the request this response answers.
func (resp *Response) Request() *Request { return resp.req }

// AddField appends a response field within the committed capacity. Names
// over 255 bytes and values over 4 GiB are rejected before contacting the
// daemon.
func (resp *Response) AddField(name, value string) error {
	if len(name) > math.MaxUint8 {
		return ErrFieldNameTooLong
	}
	if uint64(len(value)) > math.MaxUint32 {
		return ErrFieldValueTooLong
	}
	if resp.req.finished {
		return ErrRequestFinished
	}
	return statusError(resp.req.info.ResponseAddField([]byte(name), []byte(value)))
}

// AddContent appends body bytes within the committed capacity.
func (resp *Response) AddContent(p []byte) error {
	if uint64(len(p)) > math.MaxUint32 {
		return ErrContentTooLong
	}
	if resp.req.finished {
		return ErrRequestFinished
	}
	return statusError(resp.req.info.ResponseAddContent(p))
}

// Send transmits the status, fields and content added so far.
func (resp *Response) Send() error {
	if resp.req.finished {
		return ErrRequestFinished
	}
	if err := statusError(resp.req.info.ResponseSend()); err != nil {
		return err
	}
	resp.sent = true
	return nil
}

// Sent reports whether Send succeeded.
func (resp *Response) Sent() bool { return resp.sent }

// SendChunk allocates one chunk of size bytes, lets fn fill it through a
// BodyWriter and flushes whatever fn wrote. If fn writes more than size
// bytes, additional chunks are streamed. If fn fails or panics the pending
// chunk is discarded.
func (resp *Response) SendChunk(size int, fn func(w *BodyWriter) error) error {
	w, err := resp.NewBodyWriter(size)
	if err != nil {
		return err
	}
	defer func() {
		if v := recover(); v != nil {
			w.discard()
			panic(v)
		}
	}()
	if err := fn(w); err != nil {
		w.discard()
		return err
	}
	return w.close()
}
