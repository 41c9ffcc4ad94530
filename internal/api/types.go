package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Request describes a journaled request in a transport-friendly format.
type Request struct {
	ID            int64  `json:"id"`
	RequestID     string `json:"requestId"`
	Method        string `json:"method"`
	Target        string `json:"target"`
	Remote        string `json:"remote,omitempty"`
	Status        int    `json:"status"`
	RC            string `json:"rc,omitempty"`
	Fallback      bool   `json:"fallback"`
	RequestBytes  int64  `json:"requestBytes"`
	ResponseBytes int64  `json:"responseBytes"`
	Chunks        int    `json:"chunks"`
	DurationMS    int64  `json:"durationMs"`
	Error         string `json:"error,omitempty"`
	CreatedAt     string `json:"createdAt,omitempty"`
}

// RegistryStatus mirrors the context registry snapshot.
type RegistryStatus struct {
	State       string `json:"state"`
	Secondaries int    `json:"secondaries"`
	Poisoned    bool   `json:"poisoned"`
}

// LoopbackStatus reports native call counters of the loopback daemon.
type LoopbackStatus struct {
	Inits        int `json:"inits"`
	CtxAllocs    int `json:"ctxAllocs"`
	RunOnces     int `json:"runOnces"`
	Runs         int `json:"runs"`
	Dones        int `json:"dones"`
	LiveContexts int `json:"liveContexts"`
	Dispatched   int `json:"dispatched"`
	Completed    int `json:"completed"`
	Abandoned    int `json:"abandoned"`
	ChunksInUse  int `json:"chunksInUse"`
}

// JournalStatus summarizes the request journal.
type JournalStatus struct {
	Path      string `json:"path,omitempty"`
	Total     int    `json:"total"`
	Failed    int    `json:"failed"`
	Fallbacks int    `json:"fallbacks"`
	Error     string `json:"error,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	Bind         string         `json:"bind,omitempty"`
	StartedAt    string         `json:"startedAt,omitempty"`
	Threads      int            `json:"threads"`
	FaultPolicy  string         `json:"faultPolicy"`
	LockFilePath string         `json:"lockFilePath"`
	LogPath      string         `json:"logPath,omitempty"`
	Registry     RegistryStatus `json:"registry"`
	Loopback     LoopbackStatus `json:"loopback"`
	Journal      JournalStatus  `json:"journal"`
}

// RequestListResponse wraps a collection of journal entries.
type RequestListResponse struct {
	Requests []Request `json:"requests"`
}

// RequestResponse wraps a single journal entry.
type RequestResponse struct {
	Request Request `json:"request"`
}

// LogEvent is a structured log line for streaming consumers.
type LogEvent struct {
	Sequence  uint64            `json:"seq"`
	Timestamp string            `json:"ts"`
	Level     string            `json:"level"`
	Message   string            `json:"msg"`
	Component string            `json:"component,omitempty"`
	Context   string            `json:"context,omitempty"`
	RequestID string            `json:"requestId,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// LogStreamResponse carries a batch of log events and the cursor to resume
// from.
type LogStreamResponse struct {
	Events []LogEvent `json:"events"`
	Next   uint64     `json:"next"`
}

// ErrorResponse is returned with every non-2xx API reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
