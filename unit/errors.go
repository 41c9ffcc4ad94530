package unit

import (
	"errors"
	"fmt"

	"unitgo/nxt"
)

var (
	// ErrResponseStarted is returned when a request's response has already
	// been created.
	ErrResponseStarted = errors.New("unit: response already started")
	// ErrFieldNameTooLong is returned for field names over 255 bytes.
	ErrFieldNameTooLong = errors.New("unit: field name exceeds 255 bytes")
	// ErrFieldValueTooLong is returned for field values over 4 GiB.
	ErrFieldValueTooLong = errors.New("unit: field value exceeds 4 GiB")
	// ErrContentTooLong is returned when content or a response capacity
	// exceeds 4 GiB.
	ErrContentTooLong = errors.New("unit: content exceeds 4 GiB")
	// ErrTooManyFields is returned when the field capacity does not fit the
	// native counter.
	ErrTooManyFields = errors.New("unit: too many response fields")
	// ErrRegistryPoisoned is returned once a registry operation panicked
	// while holding the registry lock.
	ErrRegistryPoisoned = errors.New("unit: registry poisoned by an earlier panic")
	// ErrContextClosed is returned by Run on a closed context.
	ErrContextClosed = errors.New("unit: context closed")
	// ErrWriterClosed is returned by writes to a closed BodyWriter.
	ErrWriterClosed = errors.New("unit: body writer closed")
	// ErrRequestFinished is returned when a request is used after its
	// handler returned.
	ErrRequestFinished = errors.New("unit: request already finished")
)

// InitError reports that the root connection could not be established. It
// is sticky: every later attempt to create a context in the same registry
// returns the same value.
type InitError struct {
	Err error
}

func (e *InitError) Error() string {
	if e.Err == nil {
		return "unit: initialization failed"
	}
	return "unit: initialization failed: " + e.Err.Error()
}

func (e *InitError) Unwrap() error { return e.Err }

// RequestError wraps a native status code.
type RequestError struct {
	Code nxt.Status
}

// NewRequestError returns a RequestError for code. Handlers return it to
// finish a request with a specific status.
func NewRequestError(code nxt.Status) *RequestError {
	return &RequestError{Code: code}
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("unit: request failed: %s", e.Code)
}

// Is matches any RequestError carrying the same code.
func (e *RequestError) Is(target error) bool {
	t, ok := target.(*RequestError)
	return ok && t.Code == e.Code
}

// StreamError reports a local failure while allocating or flushing a
// response chunk.
type StreamError struct {
	Op  string
	Err error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("unit: stream %s: %v", e.Op, e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

// statusError converts a native status into an error.
func statusError(rc nxt.Status) error {
	if rc == nxt.OK {
		return nil
	}
	return &RequestError{Code: rc}
}

// StatusOf maps a handler result to the status reported to the daemon. A
// RequestError anywhere in the chain yields its code; any other error
// yields nxt.Error.
func StatusOf(err error) nxt.Status {
	if err == nil {
		return nxt.OK
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Code
	}
	return nxt.Error
}
