package logging

import (
	"context"
	"log/slog"
)

// FieldSessionID is the standardized structured logging key for diagnostic session identifiers.
const FieldSessionID = "session_id"

// runHandler stamps the daemon session on every record and lifts the request
// id out of the context passed to the *Context logging methods. A request id
// already bound through With is left alone.
type runHandler struct {
	next         slog.Handler
	sessionID    string
	hasRequestID bool
}

func newRunHandler(next slog.Handler, sessionID string) slog.Handler {
	if next == nil {
		return NoopHandler{}
	}
	return &runHandler{next: next, sessionID: sessionID}
}

func (h *runHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *runHandler) Handle(ctx context.Context, record slog.Record) error {
	if h.sessionID != "" {
		record.AddAttrs(slog.String(FieldSessionID, h.sessionID))
	}
	if !h.hasRequestID {
		if id, ok := RequestIDFromContext(ctx); ok && !recordHasKey(record, FieldRequestID) {
			record.AddAttrs(slog.String(FieldRequestID, id))
		}
	}
	return h.next.Handle(ctx, record)
}

func (h *runHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &runHandler{
		next:         h.next.WithAttrs(attrs),
		sessionID:    h.sessionID,
		hasRequestID: h.hasRequestID || HasAttrKey(attrs, FieldRequestID),
	}
}

func (h *runHandler) WithGroup(name string) slog.Handler {
	return &runHandler{
		next:         h.next.WithGroup(name),
		sessionID:    h.sessionID,
		hasRequestID: h.hasRequestID,
	}
}

func recordHasKey(record slog.Record, key string) bool {
	found := false
	record.Attrs(func(attr slog.Attr) bool {
		found = attr.Key == key
		return !found
	})
	return found
}
