package daemonrun_test

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"unitgo/internal/daemonctl"
	"unitgo/internal/daemonrun"
	"unitgo/internal/logging"
	"unitgo/internal/testsupport"
)

func TestRunServesUntilStopped(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Logging.Format = "json"

	done := make(chan error, 1)
	go func() {
		done <- daemonrun.Run(context.Background(), cfg, daemonrun.Options{LogLevel: "debug", Diagnostic: true})
	}()

	client, err := daemonctl.WaitForClient(cfg.SocketPath(), 5*time.Second)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping daemon run test: %v", err)
		}
		t.Fatalf("WaitForClient failed: %v", err)
	}
	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if !status.Running || status.Bind == "" {
		t.Fatalf("unexpected status: %+v", status)
	}
	if status.PID != os.Getpid() {
		t.Fatalf("pid = %d, want %d", status.PID, os.Getpid())
	}
	if !strings.HasPrefix(filepath.Base(status.LogPath), "unitgo-") {
		t.Fatalf("log path = %q", status.LogPath)
	}

	data, err := os.ReadFile(daemonrun.PIDPath(cfg))
	if err != nil {
		t.Fatalf("read pid file: %v", err)
	}
	if strings.TrimSpace(string(data)) != strconv.Itoa(os.Getpid()) {
		t.Fatalf("pid file = %q", data)
	}
	if _, err := os.Lstat(filepath.Join(cfg.Paths.LogDir, logging.LogFileName)); err != nil {
		t.Fatalf("log pointer missing: %v", err)
	}
	if _, err := os.Lstat(filepath.Join(cfg.Paths.LogDir, "debug", logging.LogFileName)); err != nil {
		t.Fatalf("debug log pointer missing: %v", err)
	}

	if _, err := client.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	client.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("Run did not return after stop")
	}
	if _, err := os.Stat(daemonrun.PIDPath(cfg)); !os.IsNotExist(err) {
		t.Fatalf("pid file should be removed, stat err = %v", err)
	}
}

func TestRunCancelledByContext(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutJournal())
	cfg.Logging.Format = "json"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- daemonrun.Run(ctx, cfg, daemonrun.Options{})
	}()

	client, err := daemonctl.WaitForClient(cfg.SocketPath(), 5*time.Second)
	if err != nil {
		cancel()
		t.Skipf("daemon did not come up: %v", err)
	}
	client.Close()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunRequiresConfig(t *testing.T) {
	if err := daemonrun.Run(context.Background(), nil, daemonrun.Options{}); err == nil {
		t.Fatal("expected error for nil config")
	}
}
