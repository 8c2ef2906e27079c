package reconcile

import (
	"strings"

	"github.com/jackzampolin/docwatch/internal/backend"
)

// ExtractorPattern maps a substring of a log message to a badge label.
type ExtractorPattern struct {
	Match string `mapstructure:"match" yaml:"match"`
	Badge string `mapstructure:"badge" yaml:"badge"`
}

// DefaultExtractors are the extraction backends the processing service is
// known to mention in its log text.
var DefaultExtractors = []ExtractorPattern{
	{Match: "docling", Badge: "Docling"},
	{Match: "document intelligence", Badge: "Azure DI"},
}

// ExtractorResolver surfaces which extraction backend handled a document.
// The result is informational; it never fails, it just yields no badge.
type ExtractorResolver struct {
	patterns []ExtractorPattern
}

// NewExtractorResolver creates a resolver. Empty patterns fall back to
// DefaultExtractors.
func NewExtractorResolver(patterns []ExtractorPattern) *ExtractorResolver {
	var clean []ExtractorPattern
	for _, p := range patterns {
		m := strings.ToLower(strings.TrimSpace(p.Match))
		if m == "" || p.Badge == "" {
			continue
		}
		clean = append(clean, ExtractorPattern{Match: m, Badge: p.Badge})
	}
	if len(clean) == 0 {
		clean = DefaultExtractors
	}
	return &ExtractorResolver{patterns: clean}
}

// Resolve scans a document's log entries newest first. A structured
// extractor field wins over text matching; within one message the match
// that appears last wins.
func (r *ExtractorResolver) Resolve(entries []backend.LogEntry) string {
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.Extractor != "" {
			return e.Extractor
		}

		msg := strings.ToLower(e.Message)
		best, bestAt := "", -1
		for _, p := range r.patterns {
			if at := strings.LastIndex(msg, p.Match); at > bestAt {
				best, bestAt = p.Badge, at
			}
		}
		if best != "" {
			return best
		}
	}
	return ""
}
