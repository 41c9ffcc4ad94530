package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"unitgo/internal/api"
	"unitgo/internal/daemonctl"
	"unitgo/unit"
)

func TestCLIStatus(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== Dev Daemon ==")
	requireContains(t, out, "Running (pid")
	requireContains(t, out, "http://"+env.bind)
	requireContains(t, out, "initialized")
	requireContains(t, out, "dispatched")

	out, _, err = runCLI(t, []string{"status", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var status api.DaemonStatus
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("decode status: %v\n%s", err, out)
	}
	if !status.Running || status.Bind != env.bind || status.PID != os.Getpid() {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestCLIRequests(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"requests"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("requests: %v", err)
	}
	requireContains(t, out, "No requests journaled")

	resp := env.get(t, "/echo?x=1")
	id := resp.Header.Get("X-Request-Id")
	env.get(t, "/status/418")

	out, _, err = runCLI(t, []string{"requests"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("requests: %v", err)
	}
	requireContains(t, out, "/echo?x=1")
	requireContains(t, out, "418")
	requireContains(t, out, shortID(id))

	out, _, err = runCLI(t, []string{"requests", id}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("requests %s: %v", id, err)
	}
	requireContains(t, out, "Request ID:     "+id)
	requireContains(t, out, "Fallback:       no")

	out, _, err = runCLI(t, []string{"requests", "--json", "-n", "1"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("requests --json: %v", err)
	}
	var list []api.Request
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatalf("decode requests: %v\n%s", err, out)
	}
	if len(list) != 1 || list[0].Status != 418 {
		t.Fatalf("unexpected request list %+v", list)
	}

	if _, _, err := runCLI(t, []string{"requests", "missing"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected unknown request id to fail")
	}
}

func TestCLILogsFromDevServer(t *testing.T) {
	env := setupCLITestEnv(t)
	resp := env.get(t, "/echo")
	id := resp.Header.Get("X-Request-Id")

	out, _, err := runCLI(t, []string{"logs", "--component", "devserver", "-n", "200"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "[devserver]")
	requireContains(t, out, "request served")

	out, _, err = runCLI(t, []string{"logs", "--request", id, "-n", "200"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("logs --request: %v", err)
	}
	requireContains(t, out, "#"+id)
	if strings.Contains(out, "daemon started") {
		t.Fatalf("request filter leaked unrelated events:\n%s", out)
	}
}

func TestCLIStop(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"stop"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	requireContains(t, out, "Dev daemon stopped")
	if env.daemon.Status(t.Context()).Running {
		t.Fatal("daemon still running after stop")
	}
}

func TestCLIWithoutDaemon(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	base := t.TempDir()
	configPath := filepath.Join(base, "config.toml")
	content := "[paths]\nstate_dir = \"" + filepath.Join(base, "state") + "\"\nlog_dir = \"" + filepath.Join(base, "logs") + "\"\n\n" +
		"[journal]\npath = \"" + filepath.Join(base, "journal.db") + "\"\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	out, _, err := runCLI(t, []string{"stop"}, "", configPath)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	requireContains(t, out, "Dev daemon is not running")

	out, _, err = runCLI(t, []string{"status"}, "", configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Not running")
	requireContains(t, out, "== System Checks ==")
	requireContains(t, out, "Shared memory:")

	_, _, err = runCLI(t, []string{"requests"}, "", configPath)
	if err == nil || !strings.Contains(err.Error(), "unitapp dev") {
		t.Fatalf("expected dial hint, got %v", err)
	}
}

func TestClassifyExit(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
		hint bool
	}{
		{"ok", nil, 0, false},
		{"interrupted", fmt.Errorf("serve: %w", context.Canceled), exitInterrupted, false},
		{"no daemon", fmt.Errorf("stop: %w", daemonctl.ErrDaemonNotRunning), exitNoDaemon, true},
		{"init", &unit.InitError{Err: errors.New("no listen socket")}, exitInit, true},
		{"poisoned", errors.Join(errors.New("thread 2"), unit.ErrRegistryPoisoned), exitSoftware, true},
		{"other", errors.New("boom"), exitFailure, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, hint := classifyExit(tc.err)
			if code != tc.code || (hint != "") != tc.hint {
				t.Fatalf("classifyExit(%v) = %d, %q", tc.err, code, hint)
			}
		})
	}
}

func TestRunPrintsHintForMissingDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	var stderr bytes.Buffer
	code := run([]string{"--socket", filepath.Join(t.TempDir(), "absent.sock"), "--config", env.configPath, "requests"}, &stderr)
	if code != exitNoDaemon {
		t.Fatalf("exit code = %d, want %d; stderr %q", code, exitNoDaemon, stderr.String())
	}
	if !strings.Contains(stderr.String(), "daemon not running") || !strings.Contains(stderr.String(), "hint: start one with `unitapp dev`") {
		t.Fatalf("expected error and hint on stderr, got %q", stderr.String())
	}
}
