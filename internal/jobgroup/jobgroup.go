// Package jobgroup persists the job group currently being watched so an
// interrupted watch can be resumed.
//
// Exactly one group is stored at a time. Saving a new group replaces the
// previous one.
package jobgroup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/docwatch/internal/reconcile"
)

// ErrNoGroup is returned by Load when nothing is stored.
var ErrNoGroup = errors.New("no job group stored")

// Backend names accepted by Open.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// Record is the persisted form of a job group.
type Record struct {
	GroupID string   `json:"group_id" yaml:"group_id"`
	JobIDs  []string `json:"job_ids" yaml:"job_ids"`
	// Documents maps job ID to its document IDs. Optional; jobs without an
	// entry adopt their documents from the first poll on resume.
	Documents map[string][]string `json:"documents,omitempty" yaml:"documents,omitempty"`
	Filenames map[string]string   `json:"filenames,omitempty" yaml:"filenames,omitempty"`
	// CreatedAt is epoch milliseconds.
	CreatedAt int64 `json:"created_at" yaml:"created_at"`
	Done      bool  `json:"done,omitempty" yaml:"done,omitempty"`
}

// NewRecord creates a record for freshly created jobs.
func NewRecord(jobs []reconcile.Job, filenames map[string]string) *Record {
	r := &Record{
		GroupID:   uuid.New().String(),
		Documents: make(map[string][]string, len(jobs)),
		CreatedAt: time.Now().UnixMilli(),
	}
	for _, j := range jobs {
		r.JobIDs = append(r.JobIDs, j.ID)
		if len(j.DocumentIDs) > 0 {
			r.Documents[j.ID] = append([]string(nil), j.DocumentIDs...)
		}
	}
	if len(filenames) > 0 {
		r.Filenames = make(map[string]string, len(filenames))
		for k, v := range filenames {
			r.Filenames[k] = v
		}
	}
	return r
}

// Jobs returns the record's jobs in the form the engine tracks.
func (r *Record) Jobs() []reconcile.Job {
	jobs := make([]reconcile.Job, 0, len(r.JobIDs))
	for _, id := range r.JobIDs {
		jobs = append(jobs, reconcile.Job{ID: id, DocumentIDs: append([]string(nil), r.Documents[id]...)})
	}
	return jobs
}

// Created returns CreatedAt as a time.
func (r *Record) Created() time.Time {
	return time.UnixMilli(r.CreatedAt)
}

// Validate checks the record is usable for resume.
func (r *Record) Validate() error {
	if r.GroupID == "" {
		return errors.New("job group has no id")
	}
	if len(r.JobIDs) == 0 {
		return fmt.Errorf("job group %s has no jobs", r.GroupID)
	}
	for _, id := range r.JobIDs {
		if id == "" {
			return fmt.Errorf("job group %s has an empty job id", r.GroupID)
		}
	}
	return nil
}

// Store persists a single job group record.
type Store interface {
	Save(ctx context.Context, r *Record) error
	Load(ctx context.Context) (*Record, error)
	MarkDone(ctx context.Context) error
	Clear(ctx context.Context) error
}

// markDone implements MarkDone on top of Load and Save.
func markDone(ctx context.Context, s Store) error {
	r, err := s.Load(ctx)
	if err != nil {
		return err
	}
	if r.Done {
		return nil
	}
	r.Done = true
	return s.Save(ctx, r)
}

// Config selects and configures a backend.
type Config struct {
	Backend string
	// Path is the file backend's location.
	Path  string
	Redis RedisConfig
}

// Open returns the configured store. An empty backend means file.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendFile:
		if cfg.Path == "" {
			return nil, errors.New("file job group store requires a path")
		}
		return NewFileStore(cfg.Path), nil
	case BackendRedis:
		return NewRedisStore(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown job group backend %q", cfg.Backend)
	}
}
