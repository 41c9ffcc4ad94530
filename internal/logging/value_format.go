package logging

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"
	"unicode/utf8"
)

// Timestamps carry milliseconds so request traces on one thread stay ordered.
const logTimestampLayout = "2006-01-02 15:04:05.000"

// bodyPreviewLimit caps how many bytes of a []byte value are rendered.
const bodyPreviewLimit = 64

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.In(time.Local).Format(logTimestampLayout)
}

// attrString renders v unquoted, for header fields and stream events.
func attrString(v slog.Value) string {
	v = v.Resolve()
	if v.Kind() == slog.KindString {
		return v.String()
	}
	if v.Kind() == slog.KindAny {
		return anyString(v.Any())
	}
	return formatValue(v)
}

// formatValue renders v for console bullet lines, quoting when needed.
func formatValue(v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return quoteIfNeeded(v.String())
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindDuration:
		return roundDuration(v.Duration()).String()
	case slog.KindTime:
		return formatTimestamp(v.Time())
	case slog.KindAny:
		if b, ok := v.Any().([]byte); ok {
			return bodyPreview(b)
		}
		return quoteIfNeeded(anyString(v.Any()))
	default:
		return quoteIfNeeded(v.String())
	}
}

// anyString prefers error and Stringer forms, so status codes and request
// states print by name rather than number.
func anyString(value any) string {
	switch x := value.(type) {
	case nil:
		return "<nil>"
	case error:
		return x.Error()
	case fmt.Stringer:
		return x.String()
	case []byte:
		return bodyPreview(x)
	default:
		return fmt.Sprint(value)
	}
}

// bodyPreview quotes the head of a request or response body and notes the
// full length when it is cut.
func bodyPreview(b []byte) string {
	if len(b) <= bodyPreviewLimit {
		return strconv.Quote(string(b))
	}
	head := b[:bodyPreviewLimit]
	for len(head) > 0 && !utf8.Valid(head) {
		head = head[:len(head)-1]
	}
	return strconv.Quote(string(head)) + "... (" + strconv.Itoa(len(b)) + " bytes)"
}

func roundDuration(d time.Duration) time.Duration {
	switch {
	case d >= time.Second:
		return d.Round(time.Millisecond)
	case d >= time.Millisecond:
		return d.Round(10 * time.Microsecond)
	default:
		return d.Round(time.Microsecond)
	}
}

func quoteIfNeeded(s string) string {
	if needsQuotes(s) {
		return strconv.Quote(s)
	}
	return s
}

func needsQuotes(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		if r <= ' ' || r == '=' || r == '"' {
			return true
		}
	}
	return false
}
