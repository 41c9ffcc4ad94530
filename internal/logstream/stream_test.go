package logstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"unitgo/internal/api"
	"unitgo/internal/ipc"
	"unitgo/internal/logs"
)

type fakeTail struct {
	requests []ipc.LogTailRequest
	lines    []string
}

func (f *fakeTail) LogTail(req ipc.LogTailRequest) (*ipc.LogTailResponse, error) {
	f.requests = append(f.requests, req)
	return &ipc.LogTailResponse{Lines: f.lines, Offset: 42}, nil
}

func TestStreamUsesAPIWhenAvailable(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_ = json.NewEncoder(w).Encode(api.LogStreamResponse{
			Events: []api.LogEvent{{Sequence: 1, Message: "request served"}},
			Next:   2,
		})
	}))
	defer srv.Close()

	client, err := logs.NewStreamClient(srv.URL, "")
	if err != nil {
		t.Fatalf("NewStreamClient failed: %v", err)
	}
	tail := &fakeTail{}
	var events []api.LogEvent
	printed, err := Stream(context.Background(), client, tail, Options{Lines: 5, Filters: Filters{Component: "devserver"}},
		func(evt api.LogEvent) { events = append(events, evt) }, nil)
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	if !printed || len(events) != 1 || events[0].Message != "request served" {
		t.Fatalf("unexpected events %+v", events)
	}
	if gotQuery != "component=devserver&limit=5&tail=1" {
		t.Fatalf("unexpected query %q", gotQuery)
	}
	if len(tail.requests) != 0 {
		t.Fatal("tail client should not be used when the API answers")
	}
}

func TestStreamFallsBackToTail(t *testing.T) {
	tail := &fakeTail{lines: []string{"one", "two"}}
	var lines []string
	printed, err := Stream(context.Background(), nil, tail, Options{Lines: 2}, nil,
		func(line string) { lines = append(lines, line) })
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	if !printed || len(lines) != 2 {
		t.Fatalf("unexpected lines %v", lines)
	}
	if len(tail.requests) != 1 || tail.requests[0].Offset != -1 || tail.requests[0].Limit != 2 {
		t.Fatalf("unexpected tail request %+v", tail.requests)
	}
}

func TestStreamAllLinesStartsAtOffsetZero(t *testing.T) {
	tail := &fakeTail{}
	printed, err := Stream(context.Background(), nil, tail, Options{Lines: 0}, nil, nil)
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	if printed {
		t.Fatal("expected nothing printed")
	}
	if tail.requests[0].Offset != 0 {
		t.Fatalf("expected offset 0, got %d", tail.requests[0].Offset)
	}
}

func TestStreamFiltersRequireAPI(t *testing.T) {
	_, err := Stream(context.Background(), nil, &fakeTail{}, Options{Filters: Filters{RequestID: "abc"}}, nil, nil)
	if !errors.Is(err, ErrFiltersRequireAPI) {
		t.Fatalf("expected ErrFiltersRequireAPI, got %v", err)
	}
	if _, err := Stream(context.Background(), nil, nil, Options{}, nil, nil); !errors.Is(err, logs.ErrAPIUnavailable) {
		t.Fatalf("expected ErrAPIUnavailable without a tail client, got %v", err)
	}
}

func TestStreamReportsAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "missing bearer token"})
	}))
	defer srv.Close()

	client, _ := logs.NewStreamClient(srv.URL, "")
	tail := &fakeTail{}
	if _, err := Stream(context.Background(), client, tail, Options{}, nil, nil); err == nil {
		t.Fatal("expected API error to surface")
	}
	if len(tail.requests) != 0 {
		t.Fatal("tail fallback should only run when the API is unreachable")
	}
}
