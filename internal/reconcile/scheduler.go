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

// DefaultInterval is the poll cadence when none is configured.
const DefaultInterval = 2500 * time.Millisecond

var (
	// ErrAlreadyRunning is returned by Start when the loop is already running.
	ErrAlreadyRunning = errors.New("scheduler already running")

	// ErrStopped is returned when a tick or finalization was discarded
	// because the scheduler was stopped or reset while it was in flight.
	ErrStopped = errors.New("scheduler stopped")
)

// Update is delivered to OnUpdate once per applied tick and once after
// finalization.
type Update struct {
	Snapshot    Snapshot
	NewLogs     []RenderedLog
	Transitions []DocumentState
}

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	Backend  Backend
	Store    *Store
	Interval time.Duration
	Logger   *slog.Logger
	// OnUpdate receives every update. It runs on the scheduler goroutine
	// and should return quickly.
	OnUpdate func(Update)
	// OnFinalized runs once after the finalizer has replaced the results.
	OnFinalized func(ctx context.Context, snap Snapshot)
}

// Scheduler polls a job group until every document is terminal, then runs
// the finalizer exactly once.
type Scheduler struct {
	backend     Backend
	store       *Store
	finalizer   *Finalizer
	logger      *slog.Logger
	onUpdate    func(Update)
	onFinalized func(ctx context.Context, snap Snapshot)

	mu       sync.Mutex
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
	err      error
}

// NewScheduler creates a scheduler over cfg.Store.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Store == nil {
		cfg.Store = NewStore(StoreConfig{})
	}
	return &Scheduler{
		backend:     cfg.Backend,
		store:       cfg.Store,
		finalizer:   NewFinalizer(cfg.Backend, cfg.Logger),
		logger:      cfg.Logger,
		onUpdate:    cfg.OnUpdate,
		onFinalized: cfg.OnFinalized,
		interval:    cfg.Interval,
	}
}

// Store returns the store the scheduler reconciles into.
func (s *Scheduler) Store() *Store {
	return s.store
}

// Snapshot returns the current state.
func (s *Scheduler) Snapshot() Snapshot {
	return s.store.Snapshot()
}

// Interval returns the current poll cadence.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// SetInterval changes the cadence; it takes effect after the current wait.
func (s *Scheduler) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	s.interval = d
	s.mu.Unlock()
}

// Start runs the poll loop in the background.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.err = nil

	go func() {
		defer close(done)
		err := s.Run(runCtx)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, ErrStopped) {
			s.logger.Error("poll loop exited", "error", err)
		}
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
	}()
	return nil
}

// Done returns a channel closed when the background loop exits, or nil if
// it was never started.
func (s *Scheduler) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Err returns the background loop's exit error, if any.
func (s *Scheduler) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Stop cancels the loop and waits for it to exit. Responses still in flight
// are discarded rather than applied.
func (s *Scheduler) Stop() {
	s.store.Invalidate()

	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Reset stops the loop and discards all reconciliation state.
func (s *Scheduler) Reset() {
	s.Stop()
	s.store.Clear()
	metrics.SetProgress(0)
}

// Run ticks immediately and then every interval until the group is
// complete, then finalizes. It blocks until done or ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		complete, err := s.Tick(ctx)
		if err != nil {
			return err
		}
		if complete {
			return s.Finalize(ctx)
		}
		timer.Reset(s.Interval())
	}
}

type jobOutcome struct {
	job *backend.Job
	err error
}

// Tick performs one reconciliation step: fetch every job concurrently,
// apply the responses, fetch results for newly successful documents and
// recompute progress. Fetch failures are logged and skipped. It reports
// whether every document is now terminal.
func (s *Scheduler) Tick(ctx context.Context) (bool, error) {
	gen := s.store.Generation()
	jobs := s.store.Jobs()

	outcomes := make([]jobOutcome, len(jobs))
	var wg sync.WaitGroup
	for i, j := range jobs {
		wg.Add(1)
		go func(i int, jobID string) {
			defer wg.Done()
			start := time.Now()
			job, err := s.backend.GetJob(ctx, jobID)
			if err == nil && job == nil {
				err = errors.New("empty job response")
			}
			if err != nil {
				metrics.ObserveFetch("get_job", "error", time.Since(start))
			} else {
				metrics.ObserveFetch("get_job", "ok", time.Since(start))
			}
			outcomes[i] = jobOutcome{job: job, err: err}
		}(i, j.ID)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return false, err
	}

	var update Update
	for i, o := range outcomes {
		if o.err != nil {
			s.logger.Warn("job fetch failed, retrying next tick", "job_id", jobs[i].ID, "error", o.err)
			continue
		}
		if o.job.ID == "" || o.job.ID != jobs[i].ID {
			j := *o.job
			j.ID = jobs[i].ID
			o.job = &j
		}
		delta, ok := s.store.applyJob(gen, o.job)
		if !ok {
			return false, ErrStopped
		}
		update.NewLogs = append(update.NewLogs, delta.logs...)
		update.Transitions = append(update.Transitions, delta.transitions...)
	}

	if pending := s.store.awaitingResults(); len(pending) > 0 {
		for id, o := range fetchResults(ctx, s.backend, pending) {
			switch {
			case o.err == nil:
				if !s.store.applyResult(gen, o.result) {
					return false, ErrStopped
				}
			case errors.Is(o.err, backend.ErrNotFound):
				s.logger.Debug("result not materialized yet", "document_id", id)
			default:
				s.logger.Warn("result fetch failed, retrying next tick", "document_id", id, "error", o.err)
			}
		}
	}

	complete, ok := s.store.finishTick(gen)
	if !ok {
		return false, ErrStopped
	}

	for _, t := range update.Transitions {
		if t.Status.Terminal() {
			metrics.IncTerminal(string(t.Status))
			s.logger.Info("document finished", "job_id", t.JobID, "document_id", t.DocumentID, "status", t.Status)
		}
	}
	metrics.IncTick()
	metrics.AddLogLines(len(update.NewLogs))

	update.Snapshot = s.store.Snapshot()
	metrics.SetProgress(update.Snapshot.Progress)
	s.logger.Debug("tick applied", "tick", update.Snapshot.Ticks, "progress", update.Snapshot.Progress, "complete", complete)

	if s.onUpdate != nil {
		s.onUpdate(update)
	}
	return complete, nil
}

// Finalize runs the result finalizer if it has not run yet.
func (s *Scheduler) Finalize(ctx context.Context) error {
	ran, err := s.finalizer.Finalize(ctx, s.store)
	if err != nil || !ran {
		return err
	}

	snap := s.store.Snapshot()
	metrics.SetProgress(snap.Progress)
	if s.onUpdate != nil {
		s.onUpdate(Update{Snapshot: snap})
	}
	if s.onFinalized != nil {
		s.onFinalized(ctx, snap)
	}
	return nil
}
