package reconcile

import (
	"strings"

	"github.com/jackzampolin/docwatch/internal/backend"
)

// DocStatus is the lifecycle state of one document within a job group.
type DocStatus string

const (
	StatusPending DocStatus = "PENDING"
	StatusStarted DocStatus = "STARTED"
	StatusSuccess DocStatus = "SUCCESS"
	StatusFailure DocStatus = "FAILURE"
	StatusUnknown DocStatus = "UNKNOWN"
)

const (
	// DefaultFailureMessage is used when the backend gives no reason for a failure.
	DefaultFailureMessage = "Processing failed"
	// ResultUnavailableMessage marks a document the finalizer could not resolve.
	ResultUnavailableMessage = "Result unavailable"
)

// Terminal reports whether no further transitions are expected.
func (s DocStatus) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFailure, StatusUnknown:
		return true
	default:
		return false
	}
}

func (s DocStatus) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusStarted:
		return 1
	default:
		return 2
	}
}

// MapStatus applies the per-document rule table.
func MapStatus(raw backend.DocumentStatus) DocStatus {
	switch raw {
	case backend.DocCompleted:
		return StatusSuccess
	case backend.DocFailed, backend.DocCancelled:
		return StatusFailure
	case backend.DocRunning:
		return StatusStarted
	case backend.DocPending, backend.DocQueued:
		return StatusPending
	default:
		return StatusUnknown
	}
}

// Resolve combines a document record with its job's status. It returns the
// mapped status and, for FAILURE, the message to show for the document.
//
// A failed or cancelled job fails every document it has not finished. A job
// that reports COMPLETED while a document is still pending or running has
// lost track of it, so the document is classified UNKNOWN.
func Resolve(doc backend.DocumentRecord, job *backend.Job) (DocStatus, string) {
	status := MapStatus(doc.Status)

	if status == StatusFailure {
		if msg := strings.TrimSpace(doc.ErrorMessage); msg != "" {
			return status, msg
		}
		return status, DefaultFailureMessage
	}

	if status.Terminal() || job == nil {
		return status, ""
	}

	switch job.Status {
	case backend.JobFailed, backend.JobCancelled:
		return StatusFailure, jobFailureMessage(job)
	case backend.JobCompleted:
		return StatusUnknown, ""
	}
	return status, ""
}

// resolveMissing classifies a tracked document its job did not report.
func resolveMissing(job *backend.Job) (DocStatus, string, bool) {
	switch job.Status {
	case backend.JobFailed, backend.JobCancelled:
		return StatusFailure, jobFailureMessage(job), true
	case backend.JobCompleted:
		return StatusUnknown, "", true
	}
	return "", "", false
}

func jobFailureMessage(job *backend.Job) string {
	if msg := strings.TrimSpace(job.ErrorMessage); msg != "" {
		return msg
	}
	return "job " + strings.ToLower(string(job.Status))
}

// Advance returns the status a document moves to when next is observed
// after prev. Terminal statuses are sticky and backward moves are ignored,
// so observed sequences are always a subsequence of
// PENDING, STARTED, {SUCCESS|FAILURE|UNKNOWN}.
func Advance(prev, next DocStatus) DocStatus {
	if prev == "" {
		return next
	}
	if prev.Terminal() || next == "" {
		return prev
	}
	if next.rank() < prev.rank() {
		return prev
	}
	return next
}
