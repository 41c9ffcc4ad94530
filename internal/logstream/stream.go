// Package logstream prints dev daemon logs from the structured log endpoint
// and falls back to tailing the log file over the control socket.
package logstream

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"unitgo/internal/api"
	"unitgo/internal/ipc"
	"unitgo/internal/logs"
)

// batchSize is the number of events requested per follow round trip.
const batchSize = 200

var ErrFiltersRequireAPI = errors.New("log filters require the dev server")

// TailClient captures the IPC log tail contract used for fallback streaming.
type TailClient interface {
	LogTail(req ipc.LogTailRequest) (*ipc.LogTailResponse, error)
}

// Filters narrows structured events. The file tail cannot apply them.
type Filters struct {
	Component string
	Context   string
	RequestID string
}

func (f Filters) empty() bool {
	return strings.TrimSpace(f.Component) == "" && strings.TrimSpace(f.Context) == "" && strings.TrimSpace(f.RequestID) == ""
}

// Options controls stream behavior.
type Options struct {
	Lines   int
	Follow  bool
	Filters Filters
}

// Stream emits events from the dev server when it answers and falls back to
// IPC tailing otherwise. It reports whether anything was emitted. A canceled
// ctx ends a follow without error.
func Stream(
	ctx context.Context,
	apiClient *logs.StreamClient,
	tail TailClient,
	opts Options,
	onEvent func(api.LogEvent),
	onLine func(string),
) (bool, error) {
	printed, err := streamAPI(ctx, apiClient, opts, onEvent)
	if err == nil {
		return printed, nil
	}
	if ctx.Err() != nil {
		return printed, nil
	}
	if !logs.IsAPIUnavailable(err) {
		return printed, err
	}
	if !opts.Filters.empty() {
		return false, fmt.Errorf("%w: %w", ErrFiltersRequireAPI, logs.ErrAPIUnavailable)
	}
	if tail == nil {
		return false, logs.ErrAPIUnavailable
	}
	return streamTail(ctx, tail, opts, onLine)
}

func streamAPI(ctx context.Context, client *logs.StreamClient, opts Options, onEvent func(api.LogEvent)) (bool, error) {
	query := logs.StreamQuery{
		Limit:     opts.Lines,
		Tail:      true,
		Component: opts.Filters.Component,
		Context:   opts.Filters.Context,
		RequestID: opts.Filters.RequestID,
	}
	if query.Limit <= 0 {
		query.Limit = batchSize
	}

	printed := false
	for {
		resp, err := client.Fetch(ctx, query)
		if err != nil {
			return printed, err
		}
		for _, evt := range resp.Events {
			if onEvent != nil {
				onEvent(evt)
			}
			printed = true
		}
		if !opts.Follow {
			return printed, nil
		}
		query.Since = resp.Next
		query.Limit = batchSize
		query.Tail = false
		query.Follow = true
	}
}

func streamTail(ctx context.Context, client TailClient, opts Options, onLine func(string)) (bool, error) {
	limit := max(opts.Lines, 0)
	offset := int64(-1)
	if limit == 0 {
		offset = 0
	}

	printed := false
	for {
		resp, err := client.LogTail(ipc.LogTailRequest{
			Offset:     offset,
			Limit:      limit,
			Follow:     opts.Follow,
			WaitMillis: 1000,
		})
		if err != nil {
			return printed, fmt.Errorf("tail logs: %w", err)
		}
		if resp == nil {
			return printed, errors.New("log tail response missing")
		}
		for _, line := range resp.Lines {
			if onLine != nil {
				onLine(line)
			}
			printed = true
		}
		offset = resp.Offset
		limit = 0
		if !opts.Follow {
			return printed, nil
		}
		select {
		case <-ctx.Done():
			return printed, nil
		default:
		}
	}
}
