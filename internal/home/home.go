package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the docwatch home directory.
	DefaultDirName = ".docwatch"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"

	// JobGroupFileName holds the persisted job group for resume.
	JobGroupFileName = "jobgroup.yaml"

	// LogDirName is the subdirectory for saved watch transcripts.
	LogDirName = "logs"
)

// Dir represents the docwatch home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.docwatch).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// JobGroupPath returns the path of the file-backed job group store.
func (d *Dir) JobGroupPath() string {
	return filepath.Join(d.path, JobGroupFileName)
}

// LogDir returns the directory for saved watch transcripts.
func (d *Dir) LogDir() string {
	return filepath.Join(d.path, LogDirName)
}

// TranscriptPath returns where the rendered log of a group is saved.
func (d *Dir) TranscriptPath(groupID string) string {
	return filepath.Join(d.LogDir(), groupID+".log")
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	// Creating the log directory also creates the parent
	if err := os.MkdirAll(d.LogDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}
