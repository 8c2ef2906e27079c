package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jackzampolin/docwatch/internal/backend"
	"github.com/jackzampolin/docwatch/internal/metrics"
)

// Backend is the slice of the processing backend the engine polls.
type Backend interface {
	GetJob(ctx context.Context, jobID string) (*backend.Job, error)
	GetProcessingResult(ctx context.Context, documentID string) (*backend.ProcessingResult, error)
}

// Finalizer performs the one authoritative result refresh after polling ends.
type Finalizer struct {
	backend Backend
	logger  *slog.Logger
}

// NewFinalizer creates a finalizer.
func NewFinalizer(b Backend, logger *slog.Logger) *Finalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Finalizer{backend: b, logger: logger}
}

// Finalize fetches every document's result and replaces the store's result
// collection. It returns false without fetching if the store was already
// finalized, and ErrStopped if the store was invalidated meanwhile.
func (f *Finalizer) Finalize(ctx context.Context, store *Store) (bool, error) {
	if store.Finalized() {
		return false, nil
	}
	gen := store.Generation()
	ids := store.DocumentIDs()

	outcomes := fetchResults(ctx, f.backend, ids)
	if err := ctx.Err(); err != nil {
		metrics.IncFinalization("cancelled")
		return false, err
	}

	fetched := make(map[string]backend.ProcessingResult, len(outcomes))
	missing := 0
	for _, id := range ids {
		o := outcomes[id]
		if o.err != nil {
			missing++
			f.logger.Warn("finalizer could not fetch result, keeping previous",
				"document_id", id, "error", o.err)
			continue
		}
		fetched[id] = *o.result
	}

	if !store.finalize(gen, fetched) {
		metrics.IncFinalization("stale")
		return false, ErrStopped
	}

	metrics.IncFinalization("ok")
	f.logger.Info("results finalized", "documents", len(ids), "fetched", len(fetched), "missing", missing)
	return true, nil
}

type resultOutcome struct {
	result *backend.ProcessingResult
	err    error
}

// fetchResults fetches results for ids concurrently. A slow or failing
// document never holds up the others beyond the shared context.
func fetchResults(ctx context.Context, b Backend, ids []string) map[string]resultOutcome {
	out := make(map[string]resultOutcome, len(ids))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()

			start := time.Now()
			res, err := b.GetProcessingResult(ctx, id)
			switch {
			case err == nil && res == nil:
				err = backend.ErrNotFound
				metrics.ObserveFetch("get_result", "not_found", time.Since(start))
			case err == nil:
				metrics.ObserveFetch("get_result", "ok", time.Since(start))
			case errors.Is(err, backend.ErrNotFound):
				metrics.ObserveFetch("get_result", "not_found", time.Since(start))
			default:
				metrics.ObserveFetch("get_result", "error", time.Since(start))
			}
			if err == nil && res.DocumentID == "" {
				r := *res
				r.DocumentID = id
				res = &r
			}

			mu.Lock()
			out[id] = resultOutcome{result: res, err: err}
			mu.Unlock()
		}(id)
	}
	wg.Wait()
	return out
}
