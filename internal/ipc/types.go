package ipc

import "unitgo/internal/api"

// ServiceName is the name the RPC service is registered under.
const ServiceName = "Unitgo"

// StopRequest stops the daemon.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse carries the daemon status.
type StatusResponse = api.DaemonStatus

// RequestListRequest limits the number of journal entries returned; zero
// means the server default.
type RequestListRequest struct {
	Limit int `json:"limit"`
}

// RequestListResponse contains journal entries, newest first.
type RequestListResponse = api.RequestListResponse

// RequestDescribeRequest fetches one journal entry by request id.
type RequestDescribeRequest struct {
	RequestID string `json:"request_id"`
}

// RequestDescribeResponse contains a single journal entry.
type RequestDescribeResponse = api.RequestResponse

// LogTailRequest fetches log lines based on offset and follow semantics.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}
