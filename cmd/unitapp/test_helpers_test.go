package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"unitgo/internal/config"
	"unitgo/internal/daemon"
	"unitgo/internal/ipc"
	"unitgo/internal/journal"
	"unitgo/internal/logging"
	"unitgo/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *journal.Store
	daemon     *daemon.Daemon
	server     *ipc.Server
	socketPath string
	configPath string
	logPath    string
	bind       string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	base := testsupport.BaseDir(cfg)
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	configPath := filepath.Join(homeDir, ".config", "unitgo", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatalf("mkdir log dir: %v", err)
	}
	logPath := filepath.Join(cfg.Paths.LogDir, "unitgo-test.log")
	hub := logging.NewStreamHub(256)
	logger, err := logging.New(logging.Options{
		Level:            "debug",
		Format:           "json",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
		Hub:              hub,
	})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}

	store := testsupport.MustOpenJournal(t, cfg)
	d, err := daemon.New(cfg, store, logger, daemon.WithLogPath(logPath), daemon.WithLogStream(hub))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	socketPath := cfg.SocketPath()
	srv, err := ipc.NewServer(ctx, socketPath, d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping CLI test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	return &cliTestEnv{
		cfg:        cfg,
		store:      store,
		daemon:     d,
		server:     srv,
		socketPath: socketPath,
		configPath: configPath,
		logPath:    logPath,
		bind:       d.Status(ctx).Bind,
	}
}

func (env *cliTestEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get("http://" + env.bind + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if socket != "" {
		flags = append(flags, "--socket", socket)
	}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[app]\nthreads = %d\nfault_policy = %q\n\n"+
			"[dev]\nbind = %q\nshm_size_kib = %d\nchunk_kib = %d\nmax_body_bytes = %d\n\n"+
			"[paths]\nstate_dir = %q\nlog_dir = %q\n\n"+
			"[journal]\nenabled = %t\npath = %q\n",
		cfg.App.Threads,
		cfg.App.FaultPolicy,
		cfg.Dev.Bind,
		cfg.Dev.ShmSizeKiB,
		cfg.Dev.ChunkKiB,
		cfg.Dev.MaxBodyBytes,
		cfg.Paths.StateDir,
		cfg.Paths.LogDir,
		cfg.Journal.Enabled,
		cfg.Journal.Path,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected output to contain %q\n%s", substr, output)
	}
}
