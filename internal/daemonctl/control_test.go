package daemonctl_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"unitgo/internal/daemon"
	"unitgo/internal/daemonctl"
	"unitgo/internal/ipc"
	"unitgo/internal/logging"
	"unitgo/internal/testsupport"
)

func startServedDaemon(t *testing.T) (*daemon.Daemon, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJournal(t, cfg)
	logger := logging.NewNop()
	d, err := daemon.New(cfg, store, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	srv, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)
	return d, cfg.SocketPath()
}

func TestEnsureStartedReportsRunningDaemon(t *testing.T) {
	_, socket := startServedDaemon(t)

	result, err := daemonctl.EnsureStarted(socket, "/nonexistent/unitapp", daemonctl.LaunchOptions{}, time.Second)
	if err != nil {
		t.Fatalf("EnsureStarted failed: %v", err)
	}
	if result.State != daemonctl.StartStateAlreadyRunning || result.Launched {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.PID != os.Getpid() || result.Bind == "" {
		t.Fatalf("unexpected pid/bind: %+v", result)
	}

	alive, pid, err := daemonctl.ProcessInfo(socket)
	if err != nil || !alive || pid != os.Getpid() {
		t.Fatalf("ProcessInfo = %v, %d, %v", alive, pid, err)
	}
}

func TestEnsureStartedLaunchFailure(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "missing.sock")
	if _, err := daemonctl.EnsureStarted(socket, "", daemonctl.LaunchOptions{}, time.Second); err == nil {
		t.Fatal("expected error for empty executable path")
	}
}

func TestStopAndTerminateStopsDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJournal(t, cfg)
	logger := logging.NewNop()
	d, err := daemon.New(cfg, store, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	srv, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logger)
	if err != nil {
		t.Skipf("skipping IPC test: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	result, err := daemonctl.StopAndTerminate(cfg, 5*time.Second)
	if err != nil {
		t.Fatalf("StopAndTerminate failed: %v", err)
	}
	if !result.StopAcknowledged || result.ForcedKill {
		t.Fatalf("unexpected stop result: %+v", result)
	}
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	if err := d.Wait(waitCtx); err != nil {
		t.Fatalf("Wait returned %v", err)
	}
}

func TestStopAndTerminateWithoutDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := daemonctl.StopAndTerminate(cfg, 100*time.Millisecond); !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
	if err := daemonctl.WaitForShutdown(cfg.SocketPath(), 100*time.Millisecond); err != nil {
		t.Fatalf("WaitForShutdown failed: %v", err)
	}
	alive, _, err := daemonctl.ProcessInfo(cfg.SocketPath())
	if err != nil || alive {
		t.Fatalf("ProcessInfo = %v, %v", alive, err)
	}
}

func TestBuildStatusSnapshotOffline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJournal(t, cfg)
	now := time.Now().UTC()
	testsupport.RecordEntry(t, store, "ok-1", 200, now)
	testsupport.RecordEntry(t, store, "bad-1", 503, now)

	status, err := daemonctl.BuildStatusSnapshot(context.Background(), cfg)
	if err != nil {
		t.Fatalf("BuildStatusSnapshot failed: %v", err)
	}
	if status.Running {
		t.Fatal("expected offline status")
	}
	if status.Journal.Total != 2 || status.Journal.Failed != 1 || status.Journal.Path != cfg.Journal.Path {
		t.Fatalf("unexpected journal status: %+v", status.Journal)
	}
	if status.Threads != cfg.App.Threads || status.LockFilePath != cfg.LockPath() {
		t.Fatalf("unexpected config fields: %+v", status)
	}
}

func TestBuildStatusSnapshotMissingJournal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	status, err := daemonctl.BuildStatusSnapshot(context.Background(), cfg)
	if err != nil {
		t.Fatalf("BuildStatusSnapshot failed: %v", err)
	}
	if status.Journal.Total != 0 || status.Journal.Error != "" {
		t.Fatalf("unexpected journal status: %+v", status.Journal)
	}
	if _, err := os.Stat(cfg.Journal.Path); !os.IsNotExist(err) {
		t.Fatalf("snapshot should not create the journal, stat err = %v", err)
	}
}

func TestForceKillProcessRefusesSelf(t *testing.T) {
	dir := t.TempDir()
	pidPath := filepath.Join(dir, "unitgo.pid")
	if err := os.WriteFile(pidPath, []byte("\n"), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	if _, err := daemonctl.ForceKillProcess(pidPath, "", os.Getpid()); err == nil {
		t.Fatal("expected refusal to kill the current process")
	}
	if _, err := daemonctl.ForceKillProcess(filepath.Join(dir, "missing.pid"), "", 0); err == nil {
		t.Fatal("expected error without a pid")
	}
}
