package daemon

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

const (
	maxDemoChunks    = 1024
	maxDemoChunkSize = 1 << 20
)

// DemoApp is the application the dev daemon serves when none is supplied.
//
//	GET  /              request summary as JSON
//	POST /echo          echoes the body and its content type
//	GET  /stream        streams ?chunks= chunks of ?size= bytes, flushing each
//	GET  /status/{code} replies with the given status
//	GET  /panic         panics inside the handler
func DemoApp() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", demoIndex)
	mux.HandleFunc("/echo", demoEcho)
	mux.HandleFunc("GET /stream", demoStream)
	mux.HandleFunc("GET /status/{code}", demoStatus)
	mux.HandleFunc("GET /panic", func(http.ResponseWriter, *http.Request) {
		panic("demo handler panic")
	})
	return mux
}

func demoIndex(w http.ResponseWriter, r *http.Request) {
	headers := make(map[string]string, len(r.Header))
	for name, values := range r.Header {
		headers[name] = strings.Join(values, ", ")
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"method":  r.Method,
		"host":    r.Host,
		"path":    r.URL.Path,
		"query":   r.URL.RawQuery,
		"proto":   r.Proto,
		"remote":  r.RemoteAddr,
		"tls":     r.TLS != nil,
		"headers": headers,
	})
}

func demoEcho(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	if _, err := io.Copy(w, r.Body); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func demoStream(w http.ResponseWriter, r *http.Request) {
	chunks, err := boundedQueryInt(r, "chunks", 4, maxDemoChunks)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	size, err := boundedQueryInt(r, "size", 1024, maxDemoChunkSize)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	line := make([]byte, size)
	for i := range chunks {
		for j := range line {
			line[j] = byte('a' + (i+j)%26)
		}
		if _, err := w.Write(line); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func demoStatus(w http.ResponseWriter, r *http.Request) {
	code, err := strconv.Atoi(r.PathValue("code"))
	if err != nil || code < 200 || code > 599 {
		http.Error(w, "status must be between 200 and 599", http.StatusBadRequest)
		return
	}
	w.WriteHeader(code)
	fmt.Fprintf(w, "%d %s\n", code, http.StatusText(code))
}

func boundedQueryInt(r *http.Request, key string, def, maxValue int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxValue {
		return 0, fmt.Errorf("%s must be between 1 and %d", key, maxValue)
	}
	return n, nil
}
