// Package backend is the typed boundary to the document-processing backend.
//
// Everything the backend returns enters the program through this package:
// payloads are validated against embedded JSON Schemas and converted into
// the status enums and structs below before any other package sees them.
package backend

import (
	"errors"
	"time"
)

// Sentinel errors for the backend package.
var (
	// ErrNotFound is returned when the backend reports a missing resource.
	// For processing results this means "not yet materialized".
	ErrNotFound = errors.New("not found")

	// ErrInvalidPayload is returned when a response fails schema validation.
	ErrInvalidPayload = errors.New("invalid backend payload")

	// ErrUnhealthy is returned when the pre-flight health probe gives up.
	ErrUnhealthy = errors.New("backend health check failed")
)

// JobStatus is the job-level status string reported by the backend.
type JobStatus string

const (
	JobQueued    JobStatus = "QUEUED"
	JobPending   JobStatus = "PENDING"
	JobRunning   JobStatus = "RUNNING"
	JobCompleted JobStatus = "COMPLETED"
	JobFailed    JobStatus = "FAILED"
	JobCancelled JobStatus = "CANCELLED"
)

// Finished reports whether the backend considers the job over.
func (s JobStatus) Finished() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// DocumentStatus is the raw per-document status string reported by the backend.
// Values outside the known set are preserved as-is.
type DocumentStatus string

const (
	DocCompleted DocumentStatus = "COMPLETED"
	DocFailed    DocumentStatus = "FAILED"
	DocCancelled DocumentStatus = "CANCELLED"
	DocRunning   DocumentStatus = "RUNNING"
	DocPending   DocumentStatus = "PENDING"
	DocQueued    DocumentStatus = "QUEUED"
)

// LogLevel is the normalized severity of a backend log entry.
type LogLevel string

const (
	LevelInfo    LogLevel = "info"
	LevelSuccess LogLevel = "success"
	LevelWarning LogLevel = "warning"
	LevelError   LogLevel = "error"
)

// LogEntry is one line of a job's append-only log.
type LogEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	Level      LogLevel  `json:"level"`
	Message    string    `json:"message"`
	DocumentID string    `json:"document_id,omitempty"`
	// Extractor is set when the backend reports the extraction backend as a
	// structured field instead of embedding it in Message.
	Extractor string `json:"extractor,omitempty"`
}

// DocumentRecord is the backend's per-document entry inside a job.
type DocumentRecord struct {
	DocumentID   string         `json:"document_id"`
	Filename     string         `json:"filename,omitempty"`
	Status       DocumentStatus `json:"status"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

// Job is a typed getJob response. Logs are always in chronological order.
type Job struct {
	ID           string           `json:"job_id"`
	Status       JobStatus        `json:"status"`
	ErrorMessage string           `json:"error_message,omitempty"`
	Documents    []DocumentRecord `json:"documents"`
	Logs         []LogEntry       `json:"logs"`
}

// ProcessingResult is the authoritative terminal outcome for one document.
type ProcessingResult struct {
	DocumentID        string  `json:"document_id"`
	Filename          string  `json:"filename"`
	Success           bool    `json:"success"`
	ConversionScore   float64 `json:"conversion_score"`
	PassAllThresholds bool    `json:"pass_all_thresholds"`
	Message           string  `json:"message,omitempty"`
	VectorOptimized   bool    `json:"vector_optimized"`

	// Synthetic marks results built locally rather than fetched.
	Synthetic bool `json:"synthetic,omitempty"`
}

// JobOptions are free-form processing options passed through to createJob.
type JobOptions map[string]any

// CreateJobRequest is the createJob request body.
type CreateJobRequest struct {
	DocumentIDs []string   `json:"document_ids"`
	Options     JobOptions `json:"options,omitempty"`
}

// CreateJobResponse is the createJob response body.
type CreateJobResponse struct {
	JobID string `json:"job_id"`
}

// Health is the getHealth response body.
type Health struct {
	OK     bool   `json:"ok"`
	Status string `json:"status,omitempty"`
}

// Healthy reports whether the backend declared itself ready.
func (h *Health) Healthy() bool {
	return h != nil && (h.OK || h.Status == "ok")
}
