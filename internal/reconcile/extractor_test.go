package reconcile

import (
	"testing"

	"github.com/jackzampolin/docwatch/internal/backend"
)

func TestExtractorResolve(t *testing.T) {
	r := NewExtractorResolver(nil)

	tests := []struct {
		name    string
		entries []backend.LogEntry
		want    string
	}{
		{"no entries", nil, ""},
		{"no match", []backend.LogEntry{{Message: "uploading"}}, ""},
		{"docling", []backend.LogEntry{{Message: "Extracting with Docling"}}, "Docling"},
		{"azure", []backend.LogEntry{{Message: "calling Document Intelligence"}}, "Azure DI"},
		{
			"newest entry wins",
			[]backend.LogEntry{{Message: "trying docling"}, {Message: "falling back to document intelligence"}},
			"Azure DI",
		},
		{
			"last mention in a message wins",
			[]backend.LogEntry{{Message: "document intelligence timed out, retrying with docling"}},
			"Docling",
		},
		{
			"structured field wins",
			[]backend.LogEntry{{Message: "docling started", Extractor: "Tesseract"}},
			"Tesseract",
		},
		{
			"older match when newest has none",
			[]backend.LogEntry{{Message: "docling started"}, {Message: "page 3 done"}},
			"Docling",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Resolve(tt.entries); got != tt.want {
				t.Errorf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractorCustomPatterns(t *testing.T) {
	r := NewExtractorResolver([]ExtractorPattern{
		{Match: "  Textract ", Badge: "AWS"},
		{Match: "", Badge: "ignored"},
	})

	if got := r.Resolve([]backend.LogEntry{{Message: "running TEXTRACT"}}); got != "AWS" {
		t.Errorf("Resolve() = %q, want AWS", got)
	}
	if got := r.Resolve([]backend.LogEntry{{Message: "docling"}}); got != "" {
		t.Errorf("default pattern matched with custom set: %q", got)
	}
}
