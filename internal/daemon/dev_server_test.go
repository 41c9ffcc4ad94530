package daemon_test

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"unitgo/internal/api"
	"unitgo/internal/daemon"
	"unitgo/internal/logging"
	"unitgo/internal/testsupport"
)

func getJSON(t *testing.T, url, token string, out any) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func TestDevServerStatusAndRequests(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)
	base := startDaemon(t, d)

	resp, _ := get(t, base+"/echo")
	id := resp.Header.Get("X-Request-Id")

	var status api.DaemonStatus
	if code := getJSON(t, base+"/_unitgo/status", "", &status); code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", code)
	}
	if !status.Running || status.FaultPolicy != "return" || status.Journal.Total != 1 {
		t.Fatalf("unexpected status %+v", status)
	}

	var list api.RequestListResponse
	if code := getJSON(t, base+"/_unitgo/requests?limit=5", "", &list); code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", code)
	}
	if len(list.Requests) != 1 || list.Requests[0].RequestID != id {
		t.Fatalf("unexpected request list %+v", list.Requests)
	}

	var one api.RequestResponse
	if code := getJSON(t, base+"/_unitgo/requests/"+id, "", &one); code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", code)
	}
	if one.Request.Target != "/echo" || one.Request.Status != http.StatusOK {
		t.Fatalf("unexpected request %+v", one.Request)
	}

	var missing api.ErrorResponse
	if code := getJSON(t, base+"/_unitgo/requests/nope", "", &missing); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
	if missing.Error == "" {
		t.Fatal("expected error message for unknown request")
	}

	// Inspection requests are not journaled.
	if entries, _ := d.Requests(context.Background(), 0); len(entries) != 1 {
		t.Fatalf("expected only the application request in the journal, got %d", len(entries))
	}
}

func TestDevServerRequiresToken(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Dev.APIToken = "s3cret"
	d := newDaemon(t, cfg)
	base := startDaemon(t, d)

	if code := getJSON(t, base+"/_unitgo/status", "", nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}
	if code := getJSON(t, base+"/_unitgo/status", "wrong", nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", code)
	}
	if code := getJSON(t, base+"/_unitgo/status", "s3cret", nil); code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", code)
	}
	// Application traffic is never gated.
	if resp, _ := get(t, base+"/"); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected application 200, got %d", resp.StatusCode)
	}
}

func TestDevServerLogs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	hub := logging.NewStreamHub(64)
	logPath := filepath.Join(cfg.Paths.LogDir, "test.log")
	logger, err := logging.New(logging.Options{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
		Hub:              hub,
	})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	store := testsupport.MustOpenJournal(t, cfg)
	d, err := daemon.New(cfg, store, logger, daemon.WithLogStream(hub), daemon.WithLogPath(logPath))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	base := startDaemon(t, d)

	resp, _ := get(t, base+"/")
	id := resp.Header.Get("X-Request-Id")

	var logs api.LogStreamResponse
	if code := getJSON(t, base+"/_unitgo/logs?tail=1", "", &logs); code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", code)
	}
	if len(logs.Events) == 0 || logs.Next == 0 {
		t.Fatalf("expected tailed events, got %+v", logs)
	}

	var filtered api.LogStreamResponse
	getJSON(t, base+"/_unitgo/logs?request="+id, "", &filtered)
	if len(filtered.Events) != 1 || filtered.Events[0].Message != "request served" {
		t.Fatalf("expected the served line for %s, got %+v", id, filtered.Events)
	}
	if filtered.Events[0].Component != "devserver" {
		t.Fatalf("unexpected component %q", filtered.Events[0].Component)
	}
	if d.Status(context.Background()).LogPath != logPath {
		t.Fatal("expected log path in status")
	}
}
