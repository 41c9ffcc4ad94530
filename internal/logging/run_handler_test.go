package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestRunHandlerLiftsRequestIDFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newRunHandler(slog.NewJSONHandler(&buf, nil), "s-9"))

	ctx := WithRequestID(context.Background(), "req-1")
	logger.InfoContext(ctx, "dispatching")
	logger.Info("no context")

	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("expected two lines, got %d", len(lines))
	}
	if lines[0][FieldRequestID] != "req-1" || lines[0][FieldSessionID] != "s-9" {
		t.Fatalf("unexpected first line %v", lines[0])
	}
	if _, ok := lines[1][FieldRequestID]; ok {
		t.Fatalf("expected no request id without context, got %v", lines[1])
	}
}

func TestRunHandlerKeepsBoundRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newRunHandler(slog.NewJSONHandler(&buf, nil), ""))

	ctx := WithRequestID(context.Background(), "req-ctx")
	WithContext(ctx, logger).InfoContext(ctx, "bound once")
	logger.InfoContext(ctx, "explicit", slog.String(FieldRequestID, "req-call"))

	out := buf.String()
	if strings.Count(out, `"request_id"`) != 2 {
		t.Fatalf("expected exactly one request id per line, got %s", out)
	}
	lines := decodeLines(t, &buf)
	if lines[1][FieldRequestID] != "req-call" {
		t.Fatalf("expected call-site request id to win, got %v", lines[1])
	}
	if _, ok := lines[0][FieldSessionID]; ok {
		t.Fatalf("expected no session id when none is configured, got %v", lines[0])
	}
}

func TestRunHandlerNilNext(t *testing.T) {
	if _, ok := newRunHandler(nil, "s").(NoopHandler); !ok {
		t.Fatal("expected NoopHandler when next is nil")
	}
}
