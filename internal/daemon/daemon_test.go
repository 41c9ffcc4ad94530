package daemon_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"unitgo/internal/config"
	"unitgo/internal/daemon"
	"unitgo/internal/logging"
	"unitgo/internal/testsupport"
	"unitgo/nxt"
	"unitgo/unit"
)

func newDaemon(t *testing.T, cfg *config.Config, opts ...daemon.Option) *daemon.Daemon {
	t.Helper()
	store := testsupport.MustOpenJournal(t, cfg)
	d, err := daemon.New(cfg, store, logging.NewNop(), opts...)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})
	return d
}

func startDaemon(t *testing.T, d *daemon.Daemon) string {
	t.Helper()
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	bind := d.Status(context.Background()).Bind
	if bind == "" {
		t.Fatal("expected bound address in status")
	}
	return "http://" + bind
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body failed: %v", err)
	}
	return resp, string(body)
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)
	ctx := context.Background()

	startDaemon(t, d)
	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.LockFilePath != cfg.LockPath() || status.JournalPath != cfg.Journal.Path {
		t.Fatalf("unexpected paths in status %+v", status)
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	status = d.Status(ctx)
	if status.Running {
		t.Fatal("expected daemon to be stopped")
	}
	if err := d.Wait(ctx); err != nil {
		t.Fatalf("expected clean context exit, got %v", err)
	}
}

func TestDaemonRejectsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first := newDaemon(t, cfg)
	startDaemon(t, first)

	second, err := daemon.New(cfg, nil, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	err = second.Start(context.Background())
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected lock contention error, got %v", err)
	}
}

func TestDaemonServesDemoApp(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithThreads(2))
	d := newDaemon(t, cfg)
	base := startDaemon(t, d)

	resp, body := get(t, base+"/hello?a=1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	if !strings.Contains(body, `"path":"/hello"`) || !strings.Contains(body, `"query":"a=1"`) {
		t.Fatalf("unexpected index body %s", body)
	}

	resp, body = get(t, base+"/stream?chunks=3&size=5")
	if resp.StatusCode != http.StatusOK || len(body) != 15 {
		t.Fatalf("unexpected stream response %d %q", resp.StatusCode, body)
	}

	entries, err := d.Requests(context.Background(), 10)
	if err != nil {
		t.Fatalf("Requests failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 journal entries, got %d", len(entries))
	}
	if entries[0].Target != "/stream?chunks=3&size=5" || entries[0].RC != "ok" {
		t.Fatalf("unexpected newest entry %+v", entries[0])
	}
	if entries[0].RequestID != resp.Header.Get("X-Request-Id") {
		t.Fatalf("journal id %q does not match response header %q", entries[0].RequestID, resp.Header.Get("X-Request-Id"))
	}

	status := d.Status(context.Background())
	if status.Journal.Total != 2 || status.Loopback.Completed != 2 {
		t.Fatalf("unexpected counters %+v / %+v", status.Journal, status.Loopback)
	}
	if status.Registry.Secondaries != 1 {
		t.Fatalf("expected one secondary context, got %+v", status.Registry)
	}
}

func TestDaemonReturnsHandlerFault(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)
	base := startDaemon(t, d)

	resp, _ := get(t, base+"/panic")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected fallback 503, got %d", resp.StatusCode)
	}
	// The loop keeps serving after a recovered panic.
	if resp, _ := get(t, base+"/status/202"); resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202 after fault, got %d", resp.StatusCode)
	}

	entries, err := d.Requests(context.Background(), 0)
	if err != nil {
		t.Fatalf("Requests failed: %v", err)
	}
	if len(entries) != 2 || !entries[1].Fallback || entries[1].RC != "error" {
		t.Fatalf("unexpected journal entries %+v", entries)
	}

	d.Stop()
	var fault *unit.Fault
	if err := d.Wait(context.Background()); !errors.As(err, &fault) {
		t.Fatalf("expected *unit.Fault after stop, got %v", err)
	}
	if fault.Count != 1 {
		t.Fatalf("expected one recorded panic, got %d", fault.Count)
	}
}

func TestDaemonWithApp(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutJournal())
	d, err := daemon.New(cfg, nil, logging.NewNop(), daemon.WithApp(unit.HandlerFunc(func(req *unit.Request) error {
		return unit.NewRequestError(nxt.Error)
	})))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	base := startDaemon(t, d)

	resp, _ := get(t, base+"/")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected fallback for failing app, got %d", resp.StatusCode)
	}
	if _, err := d.Requests(context.Background(), 1); err == nil {
		t.Fatal("expected requests to fail without a journal")
	}
}
