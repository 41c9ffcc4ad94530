package logs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"unitgo/internal/api"
)

// ErrAPIUnavailable is returned when no dev server address is known.
var ErrAPIUnavailable = errors.New("log API unavailable")

// StreamClient fetches structured log events from the dev server.
type StreamClient struct {
	base  *url.URL
	token string
	http  *http.Client
}

// StreamQuery selects events. Since is the cursor returned by the previous
// fetch.
type StreamQuery struct {
	Since     uint64
	Limit     int
	Follow    bool
	Tail      bool
	Component string
	Context   string
	RequestID string
}

// NewStreamClient returns a client for the dev server at bind, or nil when
// bind is empty. token is sent as a bearer token when set.
func NewStreamClient(bind, token string) (*StreamClient, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, nil
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, err
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	return &StreamClient{
		base:  base,
		token: strings.TrimSpace(token),
		// No timeout - follow mode blocks waiting for events until caller cancels.
		http: &http.Client{},
	}, nil
}

// Fetch performs one request against /_unitgo/logs.
func (c *StreamClient) Fetch(ctx context.Context, q StreamQuery) (api.LogStreamResponse, error) {
	if c == nil {
		return api.LogStreamResponse{}, ErrAPIUnavailable
	}

	values := url.Values{}
	if q.Since > 0 {
		values.Set("since", strconv.FormatUint(q.Since, 10))
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Follow {
		values.Set("follow", "1")
	}
	if q.Tail {
		values.Set("tail", "1")
	}
	if component := strings.TrimSpace(q.Component); component != "" {
		values.Set("component", component)
	}
	if name := strings.TrimSpace(q.Context); name != "" {
		values.Set("context", name)
	}
	if id := strings.TrimSpace(q.RequestID); id != "" {
		values.Set("request", id)
	}

	endpoint := c.base.ResolveReference(&url.URL{Path: "/_unitgo/logs", RawQuery: values.Encode()})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return api.LogStreamResponse{}, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return api.LogStreamResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr api.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return api.LogStreamResponse{}, fmt.Errorf("logs endpoint returned status %d: %s", resp.StatusCode, apiErr.Error)
		}
		return api.LogStreamResponse{}, fmt.Errorf("logs endpoint returned status %d", resp.StatusCode)
	}

	var payload api.LogStreamResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return api.LogStreamResponse{}, err
	}
	return payload, nil
}

// IsAPIUnavailable reports whether err means the dev server could not be
// reached at all, as opposed to answering with an error.
func IsAPIUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, ErrAPIUnavailable) || errors.As(err, &opErr)
}
