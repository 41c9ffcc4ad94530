package preflight

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"unitgo/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckSharedMemory(t *testing.T) {
	result := CheckSharedMemory(64<<10, 4<<10)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if result.Detail != "64 KiB, 16 chunks of 4 KiB" {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}

	if CheckSharedMemory(4<<10, 8<<10).Passed {
		t.Fatal("expected failure when a chunk exceeds the segment")
	}
}

func TestCheckBindAvailable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	busy := CheckBindAvailable(context.Background(), ln.Addr().String())
	if busy.Passed || !strings.Contains(busy.Detail, "already in use") {
		t.Fatalf("expected in-use failure, got %+v", busy)
	}
	if free := CheckBindAvailable(context.Background(), "127.0.0.1:0"); !free.Passed {
		t.Fatalf("expected pass for port 0, got %+v", free)
	}
	if empty := CheckBindAvailable(context.Background(), " "); empty.Passed {
		t.Fatal("expected failure for empty bind")
	}
}

func TestRunAll(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Journal.Path = filepath.Join(base, "state", "journal.db")
	cfg.Dev.Bind = "127.0.0.1:0"
	cfg.Dev.ShmSizeKiB = 256
	cfg.Dev.ChunkKiB = 4
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	results := RunAll(context.Background(), &cfg, Options{})
	if len(results) != 5 {
		t.Fatalf("expected 5 checks, got %d: %+v", len(results), results)
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}

	cfg.Journal.Enabled = false
	if got := RunAll(context.Background(), &cfg, Options{SkipBind: true}); len(got) != 3 {
		t.Fatalf("expected 3 checks, got %d", len(got))
	}

	if err := os.RemoveAll(cfg.Paths.LogDir); err != nil {
		t.Fatal(err)
	}
	failed := Failed(RunAll(context.Background(), &cfg, Options{SkipBind: true}))
	if len(failed) != 1 || failed[0].Name != "Log directory" {
		t.Fatalf("expected log directory failure, got %+v", failed)
	}
	if RunAll(context.Background(), nil, Options{}) != nil {
		t.Fatal("expected nil results for nil config")
	}
}
