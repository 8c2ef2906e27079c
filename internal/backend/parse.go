package backend

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

type rawJob struct {
	JobID        *string       `json:"job_id"`
	Status       string        `json:"status"`
	ErrorMessage *string       `json:"error_message"`
	Documents    []rawDocument `json:"documents"`
	RecentLogs   []rawLog      `json:"recent_logs"`
	Logs         []rawLog      `json:"logs"`
}

type rawDocument struct {
	DocumentID   string          `json:"document_id"`
	Filename     *string         `json:"filename"`
	Status       string          `json:"status"`
	StartedAt    json.RawMessage `json:"started_at"`
	ErrorMessage *string         `json:"error_message"`
}

type rawLog struct {
	Timestamp  json.RawMessage `json:"timestamp"`
	Level      *string         `json:"level"`
	Message    string          `json:"message"`
	DocumentID *string         `json:"document_id"`
	Extractor  *string         `json:"extractor"`
}

type rawResult struct {
	DocumentID        string   `json:"document_id"`
	Filename          *string  `json:"filename"`
	Success           bool     `json:"success"`
	ConversionScore   *float64 `json:"conversion_score"`
	PassAllThresholds *bool    `json:"pass_all_thresholds"`
	Message           *string  `json:"message"`
	VectorOptimized   *bool    `json:"vector_optimized"`
}

// ParseJob validates and converts a getJob response body.
// jobID fills Job.ID when the payload omits it.
func ParseJob(jobID string, raw []byte) (*Job, error) {
	if err := compileSchemas(); err != nil {
		return nil, err
	}
	if err := validate(jobSch, raw); err != nil {
		return nil, err
	}

	var rj rawJob
	if err := json.Unmarshal(raw, &rj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	job := &Job{
		ID:           jobID,
		Status:       JobStatus(normalizeStatus(rj.Status)),
		ErrorMessage: deref(rj.ErrorMessage),
		Documents:    make([]DocumentRecord, 0, len(rj.Documents)),
	}
	if id := deref(rj.JobID); id != "" {
		job.ID = id
	}

	for _, d := range rj.Documents {
		rec := DocumentRecord{
			DocumentID:   d.DocumentID,
			Filename:     deref(d.Filename),
			Status:       DocumentStatus(normalizeStatus(d.Status)),
			ErrorMessage: deref(d.ErrorMessage),
		}
		if ts := parseTimestamp(d.StartedAt); !ts.IsZero() {
			rec.StartedAt = &ts
		}
		job.Documents = append(job.Documents, rec)
	}

	// "logs" is the full history, oldest first. "recent_logs" is what most
	// backends send and is newest first.
	if len(rj.Logs) > 0 {
		job.Logs = convertLogs(rj.Logs)
	} else {
		job.Logs = Reversed(convertLogs(rj.RecentLogs))
	}

	return job, nil
}

// ParseProcessingResult validates and converts a getProcessingResult response body.
func ParseProcessingResult(raw []byte) (*ProcessingResult, error) {
	if err := compileSchemas(); err != nil {
		return nil, err
	}
	if err := validate(resultSch, raw); err != nil {
		return nil, err
	}

	var rr rawResult
	if err := json.Unmarshal(raw, &rr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	res := &ProcessingResult{
		DocumentID: rr.DocumentID,
		Filename:   deref(rr.Filename),
		Success:    rr.Success,
		Message:    deref(rr.Message),
	}
	if rr.ConversionScore != nil && !math.IsNaN(*rr.ConversionScore) {
		res.ConversionScore = *rr.ConversionScore
	}
	if rr.PassAllThresholds != nil {
		res.PassAllThresholds = *rr.PassAllThresholds
	}
	if rr.VectorOptimized != nil {
		res.VectorOptimized = *rr.VectorOptimized
	}
	return res, nil
}

func convertLogs(logs []rawLog) []LogEntry {
	entries := make([]LogEntry, 0, len(logs))
	for _, l := range logs {
		entries = append(entries, LogEntry{
			Timestamp:  parseTimestamp(l.Timestamp),
			Level:      normalizeLevel(deref(l.Level)),
			Message:    l.Message,
			DocumentID: deref(l.DocumentID),
			Extractor:  strings.TrimSpace(deref(l.Extractor)),
		})
	}
	return entries
}

// Reversed returns a reversed copy of entries.
func Reversed(entries []LogEntry) []LogEntry {
	out := make([]LogEntry, len(entries))
	for i, e := range entries {
		out[len(entries)-1-i] = e
	}
	return out
}

func normalizeStatus(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func normalizeLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "success", "ok":
		return LevelSuccess
	case "warning", "warn":
		return LevelWarning
	case "error", "err", "critical", "fatal":
		return LevelError
	default:
		return LevelInfo
	}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// parseTimestamp accepts ISO-8601 strings and epoch seconds or milliseconds.
// Unparseable values yield the zero time.
func parseTimestamp(raw json.RawMessage) time.Time {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return time.Time{}
	}

	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return time.Time{}
		}
		str = strings.TrimSpace(str)
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, str); err == nil {
				return t.UTC()
			}
		}
		s = str
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return time.Time{}
	}
	if f >= 1e12 {
		return time.UnixMilli(int64(f)).UTC()
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
