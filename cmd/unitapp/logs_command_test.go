package main

import (
	"testing"

	"unitgo/internal/api"
)

func TestFormatLogEvent(t *testing.T) {
	evt := api.LogEvent{
		Timestamp: "2026-03-01T11:30:00.250Z",
		Level:     "warn",
		Message:   "request answered by fallback",
		Component: "devserver",
		Context:   "unitgo-0",
		RequestID: "abc",
		Fields:    map[string]string{"status": "503", "rc": "error"},
	}
	want := "2026-03-01T11:30:00.250Z WARN [devserver] unitgo-0 #abc - request answered by fallback\n    - rc: error\n    - status: 503"
	if got := formatLogEvent(evt); got != want {
		t.Fatalf("formatLogEvent =\n%s\nwant\n%s", got, want)
	}

	bare := formatLogEvent(api.LogEvent{Timestamp: "t", Message: "hi"})
	if bare != "t INFO - hi" {
		t.Fatalf("bare event = %q", bare)
	}
}

func TestRequestRowsMarkFallback(t *testing.T) {
	rows := requestRows([]api.Request{{
		RequestID:  "0f8b7c1e-aaaa-bbbb-cccc-000000000000",
		Method:     "GET",
		Target:     "/very/long/target/that/keeps/going/and/going/past/the/column",
		Status:     503,
		Fallback:   true,
		DurationMS: 12,
	}})
	if len(rows) != 1 {
		t.Fatalf("rows = %d", len(rows))
	}
	row := rows[0]
	if row[0] != "0f8b7c1e" || row[3] != "503*" || row[5] != "12ms" {
		t.Fatalf("unexpected row %#v", row)
	}
	if len(row[2]) != targetColumnWidth {
		t.Fatalf("target not truncated: %q", row[2])
	}
}
