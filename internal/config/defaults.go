package config

import (
	"strings"
	"time"
)

// Entry is a single configuration key with its default value.
type Entry struct {
	Key         string `json:"key" yaml:"key"`
	Value       any    `json:"value" yaml:"value"`
	Description string `json:"description" yaml:"description"`
}

// DefaultEntries returns the default configuration entries.
// They seed viper and the file written by WriteDefault.
func DefaultEntries() []Entry {
	return []Entry{
		// ===================
		// Processing backend
		// ===================
		{
			Key:         "server.url",
			Value:       "http://localhost:8000",
			Description: "Base URL of the document-processing backend (supports ${ENV_VAR} syntax)",
		},
		{
			Key:         "server.request_timeout",
			Value:       30 * time.Second,
			Description: "HTTP timeout for a single backend request",
		},

		// ===================
		// Polling
		// ===================
		{
			Key:         "poll.interval",
			Value:       2500 * time.Millisecond,
			Description: "Delay between poll ticks; changes apply to a running watch",
		},

		// ===================
		// Health probe
		// ===================
		{
			Key:         "health.attempts",
			Value:       3,
			Description: "Health probe attempts before giving up",
		},
		{
			Key:         "health.timeout",
			Value:       3 * time.Second,
			Description: "Timeout for each health probe attempt",
		},
		{
			Key:         "health.delay",
			Value:       500 * time.Millisecond,
			Description: "Initial backoff between health probe attempts",
		},

		// ===================
		// Job group store
		// ===================
		{
			Key:         "job_group.backend",
			Value:       "file",
			Description: "Where the watched job group is persisted: file or redis",
		},
		{
			Key:         "job_group.redis.addr",
			Value:       "localhost:6379",
			Description: "Redis address for the redis backend",
		},
		{
			Key:         "job_group.redis.password",
			Value:       "${REDIS_PASSWORD}",
			Description: "Redis password (uses environment variable)",
		},
		{
			Key:         "job_group.redis.db",
			Value:       0,
			Description: "Redis database number",
		},
		{
			Key:         "job_group.redis.key",
			Value:       "docwatch:jobgroup",
			Description: "Redis key holding the job group record",
		},

		// ===================
		// Display
		// ===================
		{
			Key: "extractors",
			Value: []map[string]any{
				{"match": "docling", "badge": "Docling"},
				{"match": "document intelligence", "badge": "Azure DI"},
			},
			Description: "Log substrings mapped to extractor badges, checked case-insensitively",
		},
		{
			Key:         "listen",
			Value:       "",
			Description: "Address for the local snapshot server during watch (empty disables it)",
		},
	}
}

// GetDefault returns the default entry for a key, or nil if none exists.
func GetDefault(key string) *Entry {
	for _, e := range DefaultEntries() {
		if e.Key == key {
			return &e
		}
	}
	return nil
}

// defaultTree nests the default entries by their dotted keys for writing
// as YAML. Durations are written in their string form.
func defaultTree() map[string]any {
	root := make(map[string]any)
	for _, e := range DefaultEntries() {
		parts := strings.Split(e.Key, ".")
		node := root
		for _, p := range parts[:len(parts)-1] {
			child, ok := node[p].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[p] = child
			}
			node = child
		}
		v := e.Value
		if d, ok := v.(time.Duration); ok {
			v = d.String()
		}
		node[parts[len(parts)-1]] = v
	}
	return root
}
