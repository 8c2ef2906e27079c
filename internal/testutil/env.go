package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// Logger returns a logger that discards output unless -v is set.
func Logger(t testing.TB) *slog.Logger {
	t.Helper()
	if testing.Verbose() {
		return slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testWriter struct{ t testing.TB }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

// FindFreePort finds an available TCP port and returns it as a string.
func FindFreePort() (string, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	defer listener.Close()
	return fmt.Sprintf("%d", listener.Addr().(*net.TCPAddr).Port), nil
}

// WaitForServer polls /health until it answers 200.
func WaitForServer(url string, timeout time.Duration) error {
	client := &http.Client{Timeout: 2 * time.Second}
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		resp, err := client.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(50 * time.Millisecond)
	}

	return fmt.Errorf("server not ready after %v", timeout)
}

// WaitForShutdown waits for a channel to receive a value or timeout.
func WaitForShutdown(done <-chan error, timeout time.Duration) error {
	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for shutdown")
	}
}

// Backend is a scriptable stand-in for the document-processing backend.
// Jobs created through it report every document COMPLETED unless a script
// was registered for the job ID; results are served as registered.
type Backend struct {
	URL string

	mu      sync.Mutex
	scripts map[string][]string
	calls   map[string]int
	results map[string]string
	created [][]string
	healthy bool
	nextID  int
}

// NewBackend starts a fake backend that is closed when the test ends.
func NewBackend(t testing.TB) *Backend {
	t.Helper()

	b := &Backend{
		scripts: make(map[string][]string),
		calls:   make(map[string]int),
		results: make(map[string]string),
		healthy: true,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", b.handleHealth)
	mux.HandleFunc("POST /api/jobs", b.handleCreate)
	mux.HandleFunc("GET /api/jobs/{id}", b.handleJob)
	mux.HandleFunc("GET /api/documents/{id}/result", b.handleResult)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	b.URL = srv.URL
	return b
}

// ScriptJob registers raw getJob payloads for a job. The Nth poll returns
// the Nth payload; the last one repeats.
func (b *Backend) ScriptJob(jobID string, payloads ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scripts[jobID] = append(b.scripts[jobID], payloads...)
}

// SetResult registers a raw processing result payload for a document.
func (b *Backend) SetResult(docID, payload string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.results[docID] = payload
}

// SetHealthy controls the /health answer.
func (b *Backend) SetHealthy(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.healthy = ok
}

// Created returns the document lists of every createJob call.
func (b *Backend) Created() [][]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([][]string, len(b.created))
	copy(out, b.created)
	return out
}

// Polls returns how often a job was fetched.
func (b *Backend) Polls(jobID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[jobID]
}

func (b *Backend) handleHealth(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	ok := b.healthy
	b.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error": "starting"}`))
		return
	}
	w.Write([]byte(`{"ok": true}`))
}

func (b *Backend) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DocumentIDs []string `json:"document_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.DocumentIDs) == 0 {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "document_ids required"}`))
		return
	}

	b.mu.Lock()
	b.nextID++
	id := fmt.Sprintf("job-%d", b.nextID)
	b.created = append(b.created, req.DocumentIDs)
	if _, ok := b.scripts[id]; !ok {
		b.scripts[id] = []string{completedPayload(req.DocumentIDs)}
	}
	b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"job_id": %q}`, id)
}

func (b *Backend) handleJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	b.mu.Lock()
	script := b.scripts[id]
	b.calls[id]++
	n := b.calls[id]
	b.mu.Unlock()

	if len(script) == 0 {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": "job not found"}`))
		return
	}
	if n > len(script) {
		n = len(script)
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(script[n-1]))
}

func (b *Backend) handleResult(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	payload, ok := b.results[r.PathValue("id")]
	b.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": "result not found"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(payload))
}

func completedPayload(docIDs []string) string {
	type doc struct {
		DocumentID string `json:"document_id"`
		Status     string `json:"status"`
	}
	docs := make([]doc, len(docIDs))
	for i, id := range docIDs {
		docs[i] = doc{DocumentID: id, Status: "COMPLETED"}
	}
	data, _ := json.Marshal(map[string]any{
		"status":      "COMPLETED",
		"documents":   docs,
		"recent_logs": []any{},
	})
	return string(data)
}
