package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("no space left on device") }

func TestDiagnosticTeeCapturesBelowPrimaryLevel(t *testing.T) {
	var primary, debug bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&primary, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logger := TeeDiagnostics(base, slog.NewJSONHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}))

	loop := NewComponentLogger(logger, "loopback")
	loop.Debug("chunk allocated", slog.Int("chunks", 2))
	loop.Info("request completed", RC(stringer("ok")))

	if strings.Contains(primary.String(), "chunk allocated") {
		t.Fatalf("primary should not see debug records: %s", primary.String())
	}
	if !strings.Contains(primary.String(), "request completed") {
		t.Fatalf("primary missing info record: %s", primary.String())
	}
	out := debug.String()
	if !strings.Contains(out, "chunk allocated") || !strings.Contains(out, "request completed") {
		t.Fatalf("debug log missing records: %s", out)
	}
	if strings.Count(out, `"component":"loopback"`) != 2 {
		t.Fatalf("expected component on both debug records: %s", out)
	}
}

func TestDiagnosticTeeReportsWriteFailureOnce(t *testing.T) {
	var primary bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&primary, nil))
	logger := TeeDiagnostics(base, slog.NewJSONHandler(failingWriter{}, nil))

	logger.Info("first")
	logger.Info("second")

	out := primary.String()
	if strings.Count(out, "diagnostic_log_failed") != 1 {
		t.Fatalf("expected one failure report, got %s", out)
	}
	if !strings.Contains(out, "first") || !strings.Contains(out, "second") {
		t.Fatalf("primary output lost records: %s", out)
	}
	if got := DiagnosticFailures(logger.With(slog.String("k", "v"))); got != 2 {
		t.Fatalf("DiagnosticFailures = %d, want 2", got)
	}
	if got := DiagnosticFailures(base); got != 0 {
		t.Fatalf("plain logger reported %d failures", got)
	}
}

func TestTeeDiagnosticsNilInputs(t *testing.T) {
	var buf bytes.Buffer
	h := slog.NewJSONHandler(&buf, nil)
	TeeDiagnostics(nil, h).Info("only diag")
	if !strings.Contains(buf.String(), "only diag") {
		t.Fatalf("expected diag-only logger to write, got %q", buf.String())
	}
	base := slog.New(h)
	if TeeDiagnostics(base, nil) != base {
		t.Fatal("expected logger unchanged without a diagnostic handler")
	}
	if TeeDiagnostics(nil, nil).Enabled(context.Background(), slog.LevelError) {
		t.Fatal("expected nop logger")
	}
}

type stringer string

func (s stringer) String() string { return string(s) }
