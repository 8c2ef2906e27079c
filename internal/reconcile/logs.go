package reconcile

import (
	"github.com/jackzampolin/docwatch/internal/backend"
)

// RenderedLog is a log entry that has been emitted to consumers, tagged with
// the job it came from.
type RenderedLog struct {
	JobID string `json:"job_id"`
	backend.LogEntry
}

type logOrder int

const (
	orderUnknown logOrder = iota
	orderOldestFirst
	orderNewestFirst
)

type jobLog struct {
	order    logOrder
	consumed []backend.LogEntry // oldest first
}

// LogDeduplicator turns the backend's cumulative per-job log arrays into
// exactly-once deltas. It is not safe for concurrent use; Store owns it.
//
// Arrays are normally already oldest first. A job's order is otherwise
// learned once, from timestamps or from where the previously consumed lines
// reappear, and then kept for the job.
type LogDeduplicator struct {
	jobs map[string]*jobLog
}

// NewLogDeduplicator creates an empty deduplicator.
func NewLogDeduplicator() *LogDeduplicator {
	return &LogDeduplicator{jobs: make(map[string]*jobLog)}
}

// Consume takes the full log array for jobID and returns only the entries
// beyond what was already consumed, oldest first.
//
// If the array shrank (backend restart, log rotation) the offset is clamped
// to the new length and nothing is emitted.
func (d *LogDeduplicator) Consume(jobID string, entries []backend.LogEntry) []backend.LogEntry {
	jl, ok := d.jobs[jobID]
	if !ok {
		jl = &jobLog{}
		d.jobs[jobID] = jl
	}
	if jl.order == orderUnknown {
		jl.order = orderByTimestamp(entries)
	}
	if jl.order == orderUnknown {
		jl.order = orderByOverlap(jl.consumed, entries)
	}
	if jl.order == orderNewestFirst {
		entries = backend.Reversed(entries)
	}

	offset := len(jl.consumed)
	n := len(entries)
	jl.consumed = append(jl.consumed[:0], entries...)
	if n <= offset {
		return nil
	}

	delta := make([]backend.LogEntry, n-offset)
	copy(delta, entries[offset:])
	return delta
}

// Offset returns how many entries of jobID's log have been consumed.
func (d *LogDeduplicator) Offset(jobID string) int {
	if jl, ok := d.jobs[jobID]; ok {
		return len(jl.consumed)
	}
	return 0
}

// Reset forgets all offsets.
func (d *LogDeduplicator) Reset() {
	d.jobs = make(map[string]*jobLog)
}

// orderByTimestamp compares the first and last timestamped entries. Ties and
// missing timestamps decide nothing.
func orderByTimestamp(entries []backend.LogEntry) logOrder {
	first, last := -1, -1
	for i, e := range entries {
		if e.Timestamp.IsZero() {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i
	}
	if first < 0 || first == last {
		return orderUnknown
	}
	switch a, b := entries[first].Timestamp, entries[last].Timestamp; {
	case a.Before(b):
		return orderOldestFirst
	case a.After(b):
		return orderNewestFirst
	}
	return orderUnknown
}

// orderByOverlap looks for the already consumed lines at either end of a
// grown array. Oldest-first arrays repeat them as a prefix, newest-first ones
// as a reversed suffix.
func orderByOverlap(consumed, entries []backend.LogEntry) logOrder {
	k := len(consumed)
	if k == 0 || len(entries) <= k {
		return orderUnknown
	}
	prefix, suffix := true, true
	for i := 0; i < k; i++ {
		if !sameEntry(entries[i], consumed[i]) {
			prefix = false
		}
		if !sameEntry(entries[len(entries)-1-i], consumed[i]) {
			suffix = false
		}
	}
	switch {
	case prefix && !suffix:
		return orderOldestFirst
	case suffix && !prefix:
		return orderNewestFirst
	}
	return orderUnknown
}

func sameEntry(a, b backend.LogEntry) bool {
	return a.Timestamp.Equal(b.Timestamp) &&
		a.Level == b.Level &&
		a.Message == b.Message &&
		a.DocumentID == b.DocumentID &&
		a.Extractor == b.Extractor
}
