package reconcile

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackzampolin/docwatch/internal/backend"
)

// fakeBackend serves scripted job responses. The Nth GetJob call for a job
// returns script[N-1]; once the script runs out the last response repeats.
type fakeBackend struct {
	mu sync.Mutex

	scripts     map[string][]*backend.Job
	jobErrs     map[string][]error
	jobCalls    map[string]int
	results     map[string]*backend.ProcessingResult
	resultErrs  map[string]error
	resultCalls map[string]int

	// beforeJob runs inside GetJob before the response is returned.
	beforeJob func(ctx context.Context, jobID string)
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		scripts:     make(map[string][]*backend.Job),
		jobErrs:     make(map[string][]error),
		jobCalls:    make(map[string]int),
		results:     make(map[string]*backend.ProcessingResult),
		resultErrs:  make(map[string]error),
		resultCalls: make(map[string]int),
	}
}

func (f *fakeBackend) script(jobID string, responses ...*backend.Job) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[jobID] = append(f.scripts[jobID], responses...)
}

func (f *fakeBackend) setResult(docID string, res *backend.ProcessingResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[docID] = res
}

func (f *fakeBackend) setResultErr(docID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resultErrs[docID] = err
}

func (f *fakeBackend) GetJob(ctx context.Context, jobID string) (*backend.Job, error) {
	f.mu.Lock()
	f.jobCalls[jobID]++
	n := f.jobCalls[jobID]
	script := f.scripts[jobID]
	errs := f.jobErrs[jobID]
	hook := f.beforeJob
	f.mu.Unlock()

	if hook != nil {
		hook(ctx, jobID)
	}
	if n <= len(errs) && errs[n-1] != nil {
		return nil, errs[n-1]
	}
	if len(script) == 0 {
		return nil, backend.ErrNotFound
	}
	i := n - 1
	if i >= len(script) {
		i = len(script) - 1
	}
	job := *script[i]
	job.ID = jobID
	return &job, nil
}

func (f *fakeBackend) GetProcessingResult(_ context.Context, documentID string) (*backend.ProcessingResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resultCalls[documentID]++
	if err := f.resultErrs[documentID]; err != nil {
		return nil, err
	}
	res, ok := f.results[documentID]
	if !ok {
		return nil, backend.ErrNotFound
	}
	r := *res
	return &r, nil
}

func (f *fakeBackend) calls(jobID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.jobCalls[jobID]
}

func (f *fakeBackend) resultCallCount(docID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resultCalls[docID]
}

var errBackendDown = errors.New("connection refused")

func doc(id string, status backend.DocumentStatus) backend.DocumentRecord {
	return backend.DocumentRecord{DocumentID: id, Status: status}
}

func logLines(n int) []backend.LogEntry {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	out := make([]backend.LogEntry, n)
	for i := range out {
		out[i] = backend.LogEntry{
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Level:     backend.LevelInfo,
			Message:   "line " + string(rune('a'+i%26)),
		}
	}
	return out
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock() *fixedClock {
	return &fixedClock{now: time.Date(2026, 1, 2, 3, 10, 0, 0, time.UTC)}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
