package daemonrun

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"unitgo/internal/logging"
)

func TestAttachDiagnosticLogCapturesDebugRecords(t *testing.T) {
	var primary bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&primary, &slog.HandlerOptions{Level: slog.LevelInfo}))
	debugDir := filepath.Join(t.TempDir(), "debug")

	logger := attachDiagnosticLog(base, debugDir, "run-1", "session-1")
	logging.NewComponentLogger(logger, "loopback").Debug("request queued", logging.Int("queued", 1))

	data, err := os.ReadFile(filepath.Join(debugDir, "unitgo-run-1.log"))
	if err != nil {
		t.Fatalf("read debug log: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "request queued") || !strings.Contains(out, `"session_id":"session-1"`) {
		t.Fatalf("debug log missing record or session: %s", out)
	}
	if !strings.Contains(out, "diagnostic_mode_enabled") {
		t.Fatalf("debug log missing the enable notice: %s", out)
	}
	if strings.Contains(primary.String(), "request queued") {
		t.Fatalf("primary log should stay at info: %s", primary.String())
	}
	if !strings.Contains(primary.String(), "diagnostic_mode_enabled") {
		t.Fatalf("primary log missing the enable notice: %s", primary.String())
	}
	if _, err := os.Lstat(filepath.Join(debugDir, logging.LogFileName)); err != nil {
		t.Fatalf("debug log pointer missing: %v", err)
	}
}
