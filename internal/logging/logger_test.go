package logging_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"unitgo/internal/logging"
	"unitgo/nxt"
)

func readLog(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	return string(content)
}

func newHubLogger(t *testing.T, hub *logging.StreamHub) *slog.Logger {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "hub.log")
	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{logPath}, ErrorOutputPaths: []string{logPath}, Hub: hub})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return logger
}

func TestConsoleLoggerRendersSubjectAndFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{
		Format:           "console",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger = logging.NewComponentLogger(logger, "unit").With(logging.String(logging.FieldContext, "worker"), logging.Thread(1))
	logger.Info("request served",
		logging.String(logging.FieldRequestID, "abc"),
		logging.Int("status", 200),
		logging.String(logging.FieldEventType, "request_done"),
	)

	content := readLog(t, logPath)
	if !strings.Contains(content, "INFO [unit] worker/1 #abc - request served") {
		t.Fatalf("unexpected header line %q", content)
	}
	eventIdx := strings.Index(content, "- event_type: request_done")
	statusIdx := strings.Index(content, "- status: 200")
	if eventIdx < 0 || statusIdx < 0 || eventIdx > statusIdx {
		t.Fatalf("expected highlighted fields in order, got %q", content)
	}
	if strings.Contains(content, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerRendersStatusAndBodyPreview(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-values.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", OutputPaths: []string{logPath}, ErrorOutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("dispatch failed",
		logging.RC(nxt.Cancelled),
		logging.Body("request_body", []byte(strings.Repeat("a", 100))),
		logging.Duration("duration", 1234567*time.Nanosecond))

	content := readLog(t, logPath)
	for _, want := range []string{
		"    rc: cancelled\n",
		`    request_body: "` + strings.Repeat("a", 64) + `"... (100 bytes)`,
		"    duration: 1.23ms\n",
	} {
		if !strings.Contains(content, want) {
			t.Fatalf("expected %q in %q", want, content)
		}
	}
}

func TestJSONLoggerRendersStatusByName(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json-values.log")
	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{logPath}, ErrorOutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("request completed", logging.RC(nxt.Error), logging.Body("body", []byte("hi")))

	var line map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(readLog(t, logPath))), &line); err != nil {
		t.Fatalf("decode json line: %v", err)
	}
	if line["rc"] != "error" || line["body"] != `"hi"` {
		t.Fatalf("unexpected json line %v", line)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-debug.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", OutputPaths: []string{logPath}, ErrorOutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("message with caller", logging.String("k", "v"))

	content := readLog(t, logPath)
	if !strings.Contains(content, ".go:") || !strings.Contains(content, "    k: v") {
		t.Fatalf("expected caller and raw fields in debug logs, got %q", content)
	}
}

func TestJSONLoggerRenamesBuiltins(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}, ErrorOutputPaths: []string{logPath}, SessionID: "s-1"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Warn("json message", logging.String("k", "v"))

	var line map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(readLog(t, logPath))), &line); err != nil {
		t.Fatalf("decode json line: %v", err)
	}
	if line["level"] != "warn" || line["msg"] != "json message" || line["k"] != "v" || line[logging.FieldSessionID] != "s-1" {
		t.Fatalf("unexpected json line %v", line)
	}
	if _, ok := line["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", line)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"invalid": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := logging.ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewCreatesLogDirectory(t *testing.T) {
	logDir := filepath.Join(t.TempDir(), "nested", "logs")
	logPath := filepath.Join(logDir, logging.LogFileName)

	logger, err := logging.New(logging.Options{
		Level:            "debug",
		Format:           "console",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("debug message")

	if content := readLog(t, logPath); !strings.Contains(content, "debug message") {
		t.Fatalf("expected debug line in log file, got %q", content)
	}
}

func TestWithContextAddsRequestID(t *testing.T) {
	hub := logging.NewStreamHub(10)
	logger := newHubLogger(t, hub)

	ctx := logging.WithRequestID(context.Background(), "req-xyz")
	logging.WithContext(ctx, logger).Info("contextual log")

	events, _ := hub.Tail(1)
	if len(events) != 1 || events[0].RequestID != "req-xyz" {
		t.Fatalf("expected request id on event, got %+v", events)
	}
	if _, ok := logging.RequestIDFromContext(context.Background()); ok {
		t.Fatal("expected no request id on a bare context")
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	hub := logging.NewStreamHub(10)
	logger := newHubLogger(t, hub)
	logging.WarnWithContext(logger, "slow handler", "handler_slow", logging.String(logging.FieldErrorHint, "profile the handler"))

	events, _ := hub.Tail(1)
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	f := events[0].Fields
	if f[logging.FieldEventType] != "handler_slow" || f[logging.FieldErrorHint] != "profile the handler" || f[logging.FieldImpact] == "" {
		t.Fatalf("unexpected warn fields %v", f)
	}
}
