package jobgroup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// FileStore keeps the record as a YAML document on disk.
type FileStore struct {
	mu   sync.Mutex
	path string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a store at path. The file is created on first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the file location.
func (s *FileStore) Path() string {
	return s.path
}

// Save writes the record atomically via a temp file and rename.
func (s *FileStore) Save(_ context.Context, r *Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal job group: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create job group directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".jobgroup-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write job group: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write job group: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace job group file: %w", err)
	}
	return nil
}

// Load reads the record.
func (s *FileStore) Load(_ context.Context) (*Record, error) {
	s.mu.Lock()
	data, err := os.ReadFile(s.path)
	s.mu.Unlock()

	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoGroup
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read job group: %w", err)
	}

	var r Record
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	if r.GroupID == "" && len(r.JobIDs) == 0 {
		return nil, ErrNoGroup
	}
	return &r, nil
}

// MarkDone flags the stored record as finished.
func (s *FileStore) MarkDone(ctx context.Context) error {
	return markDone(ctx, s)
}

// Clear removes the file. Clearing an empty store is not an error.
func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove job group: %w", err)
	}
	return nil
}
