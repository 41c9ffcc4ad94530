package logs_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"unitgo/internal/api"
	"unitgo/internal/logs"
)

func TestNewStreamClientEmptyBind(t *testing.T) {
	client, err := logs.NewStreamClient("", "")
	if err != nil {
		t.Fatalf("NewStreamClient error: %v", err)
	}
	if client != nil {
		t.Fatal("expected nil client for empty bind")
	}
	if _, err := client.Fetch(context.Background(), logs.StreamQuery{}); !errors.Is(err, logs.ErrAPIUnavailable) {
		t.Fatalf("expected ErrAPIUnavailable from nil client, got %v", err)
	}
}

func TestStreamClientFetchBuildsQueryAndDecodes(t *testing.T) {
	var (
		gotPath  string
		gotQuery url.Values
		gotAuth  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.LogStreamResponse{
			Events: []api.LogEvent{{Level: "info", Message: "hello", RequestID: "req-1"}},
			Next:   42,
		})
	}))
	defer srv.Close()

	client, err := logs.NewStreamClient(strings.TrimPrefix(srv.URL, "http://"), "tok")
	if err != nil {
		t.Fatalf("NewStreamClient error: %v", err)
	}

	resp, err := client.Fetch(context.Background(), logs.StreamQuery{
		Since:     3,
		Limit:     50,
		Follow:    true,
		Tail:      true,
		Component: "devserver",
		Context:   "app",
		RequestID: "req-1",
	})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(resp.Events) != 1 || resp.Next != 42 || resp.Events[0].Message != "hello" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if gotPath != "/_unitgo/logs" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("unexpected authorization header %q", gotAuth)
	}

	for key, want := range map[string]string{
		"since":     "3",
		"limit":     "50",
		"follow":    "1",
		"tail":      "1",
		"component": "devserver",
		"context":   "app",
		"request":   "req-1",
	} {
		if got := gotQuery.Get(key); got != want {
			t.Fatalf("query[%s]: expected %q, got %q", key, want, got)
		}
	}
}

func TestStreamClientReportsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "unauthorized"})
	}))
	defer srv.Close()

	client, _ := logs.NewStreamClient(srv.URL, "")
	_, err := client.Fetch(context.Background(), logs.StreamQuery{})
	if err == nil || !strings.Contains(err.Error(), "unauthorized") {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
	if logs.IsAPIUnavailable(err) {
		t.Fatal("an answered request is not an unavailable API")
	}
}

func TestIsAPIUnavailable(t *testing.T) {
	if !logs.IsAPIUnavailable(logs.ErrAPIUnavailable) {
		t.Fatal("expected ErrAPIUnavailable to be unavailable")
	}
	if logs.IsAPIUnavailable(errors.New("other")) {
		t.Fatal("did not expect generic error to be unavailable")
	}

	client, _ := logs.NewStreamClient("127.0.0.1:1", "")
	_, err := client.Fetch(context.Background(), logs.StreamQuery{})
	if !logs.IsAPIUnavailable(err) {
		t.Fatalf("expected connection failure to be unavailable, got %v", err)
	}
}
