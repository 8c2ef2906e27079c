package reconcile

import (
	"sync"
	"time"

	"github.com/jackzampolin/docwatch/internal/backend"
)

// Job is one backend job in the group. DocumentIDs may be empty for a job
// resumed without its membership; it is then adopted from the first poll.
type Job struct {
	ID          string   `json:"job_id" yaml:"job_id"`
	DocumentIDs []string `json:"document_ids" yaml:"document_ids"`
}

// DocumentState is the engine's view of one document. It is rebuilt from
// the backend record on every tick and swapped in whole.
type DocumentState struct {
	JobID         string     `json:"job_id"`
	DocumentID    string     `json:"document_id"`
	Filename      string     `json:"filename,omitempty"`
	Status        DocStatus  `json:"status"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	ExtractorInfo string     `json:"extractor_info,omitempty"`
	// FinishedAt is the local time the document became terminal.
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// DocumentView is a DocumentState with display fields computed at snapshot time.
type DocumentView struct {
	DocumentState
	Elapsed   string `json:"elapsed"`
	HasResult bool   `json:"has_result"`
}

// Snapshot is the read-only state handed to consumers.
type Snapshot struct {
	Progress  int                        `json:"progress"`
	Documents []DocumentView             `json:"documents"`
	Log       []RenderedLog              `json:"log"`
	Results   []backend.ProcessingResult `json:"results"`
	Complete  bool                       `json:"is_complete"`
	Finalized bool                       `json:"finalized"`
	Ticks     int                        `json:"ticks"`
}

// StoreConfig configures a Store.
type StoreConfig struct {
	Jobs []Job
	// Filenames supplies display names known at submission time.
	Filenames  map[string]string
	Extractors []ExtractorPattern
	// Now is the clock used for elapsed displays (default: time.Now)
	Now func() time.Time
}

// Store owns all mutable reconciliation state for one job group: log
// offsets, per-document states, results, the merged log and progress.
// Mutations happen only through the scheduler's tick and the finalizer.
type Store struct {
	mu sync.RWMutex

	jobs      []Job
	order     []string
	docJob    map[string]string
	filenames map[string]string
	states    map[string]DocumentState
	results   map[string]backend.ProcessingResult
	docLogs   map[string][]backend.LogEntry
	log       []RenderedLog
	// jobDone records jobs last reported in a finished status.
	jobDone map[string]bool

	dedup      *LogDeduplicator
	extractors *ExtractorResolver
	now        func() time.Time

	progress  int
	finalized bool
	ticks     int
	gen       uint64
}

// NewStore creates a store with every known document in PENDING.
func NewStore(cfg StoreConfig) *Store {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &Store{
		extractors: NewExtractorResolver(cfg.Extractors),
		now:        cfg.Now,
		filenames:  make(map[string]string, len(cfg.Filenames)),
	}
	for id, name := range cfg.Filenames {
		s.filenames[id] = name
	}
	s.init(cfg.Jobs)
	return s
}

func (s *Store) init(jobs []Job) {
	s.jobs = make([]Job, 0, len(jobs))
	s.order = nil
	s.docJob = make(map[string]string)
	s.states = make(map[string]DocumentState)
	s.results = make(map[string]backend.ProcessingResult)
	s.docLogs = make(map[string][]backend.LogEntry)
	s.log = nil
	s.jobDone = make(map[string]bool)
	s.dedup = NewLogDeduplicator()
	s.progress = 0
	s.finalized = false
	s.ticks = 0

	for _, j := range jobs {
		job := Job{ID: j.ID}
		for _, id := range j.DocumentIDs {
			if s.track(j.ID, id) {
				job.DocumentIDs = append(job.DocumentIDs, id)
			}
		}
		s.jobs = append(s.jobs, job)
	}
}

// track adds a document to the group. Documents already tracked by another
// job are ignored.
func (s *Store) track(jobID, docID string) bool {
	if docID == "" {
		return false
	}
	if _, ok := s.docJob[docID]; ok {
		return false
	}
	s.docJob[docID] = jobID
	s.order = append(s.order, docID)
	s.states[docID] = DocumentState{
		JobID:      jobID,
		DocumentID: docID,
		Filename:   s.filenames[docID],
		Status:     StatusPending,
	}
	return true
}

// Jobs returns the group's jobs.
func (s *Store) Jobs() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Job, len(s.jobs))
	for i, j := range s.jobs {
		out[i] = Job{ID: j.ID, DocumentIDs: append([]string(nil), j.DocumentIDs...)}
	}
	return out
}

// DocumentIDs returns every tracked document in group order.
func (s *Store) DocumentIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// Generation identifies the store's current lifetime. Ticks capture it
// before fetching and pass it back when applying, so results that arrive
// after Invalidate are dropped.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// Invalidate drops any in-flight tick.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.gen++
	s.mu.Unlock()
}

// Clear discards all state, leaving an empty group.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.init(nil)
}

// tickDelta reports what one applied job fetch changed.
type tickDelta struct {
	logs        []RenderedLog
	transitions []DocumentState
}

// applyJob reconciles one getJob response. It returns false if gen is stale.
func (s *Store) applyJob(gen uint64, job *backend.Job) (tickDelta, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var delta tickDelta
	if gen != s.gen || s.finalized {
		return delta, false
	}

	idx := s.jobIndex(job.ID)
	if idx < 0 {
		return delta, true
	}
	s.jobDone[job.ID] = job.Status.Finished()
	if len(s.jobs[idx].DocumentIDs) == 0 {
		for _, rec := range job.Documents {
			if s.track(job.ID, rec.DocumentID) {
				s.jobs[idx].DocumentIDs = append(s.jobs[idx].DocumentIDs, rec.DocumentID)
			}
		}
	}

	for _, e := range s.dedup.Consume(job.ID, job.Logs) {
		rl := RenderedLog{JobID: job.ID, LogEntry: e}
		s.log = append(s.log, rl)
		delta.logs = append(delta.logs, rl)
		if e.DocumentID != "" && s.docJob[e.DocumentID] == job.ID {
			s.docLogs[e.DocumentID] = append(s.docLogs[e.DocumentID], e)
		}
	}

	seen := make(map[string]bool, len(job.Documents))
	for _, rec := range job.Documents {
		if s.docJob[rec.DocumentID] != job.ID || seen[rec.DocumentID] {
			continue
		}
		seen[rec.DocumentID] = true

		mapped, msg := Resolve(rec, job)
		if next, changed := s.replaceState(rec.DocumentID, mapped, msg, &rec); changed {
			delta.transitions = append(delta.transitions, next)
		}
	}

	if mapped, msg, ok := resolveMissing(job); ok {
		for _, id := range s.jobs[idx].DocumentIDs {
			if seen[id] {
				continue
			}
			if next, changed := s.replaceState(id, mapped, msg, nil); changed {
				delta.transitions = append(delta.transitions, next)
			}
		}
	}

	return delta, true
}

// replaceState builds a fresh DocumentState for id and swaps it in. rec may
// be nil when the backend did not report the document. It returns the new
// state and whether the status changed.
func (s *Store) replaceState(id string, mapped DocStatus, failMsg string, rec *backend.DocumentRecord) (DocumentState, bool) {
	prev := s.states[id]

	next := DocumentState{
		JobID:         prev.JobID,
		DocumentID:    id,
		Filename:      prev.Filename,
		Status:        Advance(prev.Status, mapped),
		StartedAt:     prev.StartedAt,
		ExtractorInfo: prev.ExtractorInfo,
		FinishedAt:    prev.FinishedAt,
	}
	if rec != nil {
		if rec.Filename != "" {
			next.Filename = rec.Filename
		}
		if rec.StartedAt != nil {
			t := *rec.StartedAt
			next.StartedAt = &t
		}
	}
	if badge := s.extractors.Resolve(s.docLogs[id]); badge != "" {
		next.ExtractorInfo = badge
	}

	changed := next.Status != prev.Status
	if changed && next.Status.Terminal() {
		now := s.now()
		next.FinishedAt = &now
	}

	if next.Status == StatusFailure {
		if _, ok := s.results[id]; !ok {
			if failMsg == "" {
				failMsg = DefaultFailureMessage
			}
			s.results[id] = backend.ProcessingResult{
				DocumentID: id,
				Filename:   next.Filename,
				Success:    false,
				Message:    failMsg,
				Synthetic:  true,
			}
		}
	}

	s.states[id] = next
	return next, changed
}

// awaitingResults lists SUCCESS documents that have no result yet.
func (s *Store) awaitingResults() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for _, id := range s.order {
		if s.states[id].Status != StatusSuccess {
			continue
		}
		if _, ok := s.results[id]; !ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// applyResult records an opportunistic result fetched during polling.
func (s *Store) applyResult(gen uint64, res *backend.ProcessingResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen || s.finalized {
		return false
	}
	st, ok := s.states[res.DocumentID]
	if !ok || st.Status != StatusSuccess {
		return true
	}
	r := *res
	if r.Filename == "" {
		r.Filename = st.Filename
	}
	s.results[res.DocumentID] = r
	return true
}

// finishTick recomputes progress and reports whether every document is terminal.
func (s *Store) finishTick(gen uint64) (complete bool, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		return false, false
	}
	s.ticks++
	s.recomputeProgress()
	return s.completeLocked(), true
}

func (s *Store) recomputeProgress() {
	total := len(s.order)
	if total == 0 {
		if s.completeLocked() {
			s.progress = 100
		}
		return
	}
	done := 0
	for _, id := range s.order {
		if s.states[id].Status.Terminal() {
			done++
		}
	}
	if pct := done * 100 / total; pct > s.progress {
		s.progress = pct
	}
}

// completeLocked requires every tracked document to be terminal. A job that
// never reported any documents counts only once the backend says it finished,
// so a group adopted from empty jobs ends instead of polling forever.
func (s *Store) completeLocked() bool {
	if len(s.jobs) == 0 {
		return false
	}
	for _, j := range s.jobs {
		if len(j.DocumentIDs) == 0 && !s.jobDone[j.ID] {
			return false
		}
	}
	for _, id := range s.order {
		if !s.states[id].Status.Terminal() {
			return false
		}
	}
	return true
}

// Complete reports whether every tracked document is terminal.
func (s *Store) Complete() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.completeLocked()
}

// Finalized reports whether the finalizer has replaced the result collection.
func (s *Store) Finalized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.finalized
}

// finalize merges the finalizer's fetches over the current results and
// swaps the collection in one step. Fetched results win; documents left
// without any result get a synthetic failure.
func (s *Store) finalize(gen uint64, fetched map[string]backend.ProcessingResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen || s.finalized {
		return false
	}

	results := make(map[string]backend.ProcessingResult, len(s.order))
	for _, id := range s.order {
		st := s.states[id]
		if r, ok := fetched[id]; ok {
			if r.Filename == "" {
				r.Filename = st.Filename
			}
			results[id] = r
			continue
		}
		if r, ok := s.results[id]; ok {
			results[id] = r
			continue
		}
		results[id] = backend.ProcessingResult{
			DocumentID: id,
			Filename:   st.Filename,
			Success:    false,
			Message:    ResultUnavailableMessage,
			Synthetic:  true,
		}
	}

	s.results = results
	s.finalized = true
	s.recomputeProgress()
	return true
}

// Snapshot returns a consistent copy of the store for display.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	snap := Snapshot{
		Progress:  s.progress,
		Documents: make([]DocumentView, 0, len(s.order)),
		Log:       append(make([]RenderedLog, 0, len(s.log)), s.log...),
		Results:   make([]backend.ProcessingResult, 0, len(s.results)),
		Complete:  s.completeLocked(),
		Finalized: s.finalized,
		Ticks:     s.ticks,
	}
	for _, id := range s.order {
		st := s.states[id]
		_, hasResult := s.results[id]
		snap.Documents = append(snap.Documents, DocumentView{
			DocumentState: st,
			Elapsed:       FormatElapsed(Elapsed(st.StartedAt, st.FinishedAt, now)),
			HasResult:     hasResult,
		})
		if r, ok := s.results[id]; ok {
			snap.Results = append(snap.Results, r)
		}
	}
	return snap
}

func (s *Store) jobIndex(jobID string) int {
	for i, j := range s.jobs {
		if j.ID == jobID {
			return i
		}
	}
	return -1
}
