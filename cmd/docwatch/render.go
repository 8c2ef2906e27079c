package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/jackzampolin/docwatch/internal/reconcile"
)

const barWidth = 30

// renderer prints watch progress to a terminal: new log lines and a
// progress line per tick, then the results table once finalized.
type renderer struct {
	mu sync.Mutex
	w  io.Writer
	// quiet suppresses per-tick output when the final snapshot is emitted
	// as structured output instead.
	quiet bool
}

func newRenderer(w io.Writer, quiet bool) *renderer {
	return &renderer{w: w, quiet: quiet}
}

// Update is a reconcile.SchedulerConfig.OnUpdate callback.
func (r *renderer) Update(u reconcile.Update) {
	if r.quiet {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, l := range u.NewLogs {
		fmt.Fprintln(r.w, formatLog(l))
	}
	if u.Snapshot.Finalized {
		fmt.Fprintln(r.w)
		writeResults(r.w, u.Snapshot)
		return
	}
	fmt.Fprintln(r.w, progressLine(u.Snapshot))
}

func formatLog(l reconcile.RenderedLog) string {
	var b strings.Builder
	if !l.Timestamp.IsZero() {
		b.WriteString(l.Timestamp.Local().Format("15:04:05"))
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "%-7s ", strings.ToUpper(string(l.Level)))
	if l.DocumentID != "" {
		fmt.Fprintf(&b, "[%s] ", l.DocumentID)
	}
	b.WriteString(l.Message)
	return b.String()
}

func progressLine(snap reconcile.Snapshot) string {
	done := 0
	for _, d := range snap.Documents {
		if d.Status.Terminal() {
			done++
		}
	}
	return fmt.Sprintf("%s %3d%%  %d/%d documents", progressBar(snap.Progress, barWidth), snap.Progress, done, len(snap.Documents))
}

func progressBar(pct, width int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := pct * width / 100
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

// writeResults prints one row per document with its final result.
func writeResults(w io.Writer, snap reconcile.Snapshot) {
	byDoc := make(map[string]int, len(snap.Results))
	for i, res := range snap.Results {
		byDoc[res.DocumentID] = i
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DOCUMENT\tSTATUS\tSCORE\tTHRESHOLDS\tELAPSED\tEXTRACTOR\tMESSAGE")
	for _, d := range snap.Documents {
		name := d.Filename
		if name == "" {
			name = d.DocumentID
		}
		score, thresholds, msg := "-", "-", ""
		if i, ok := byDoc[d.DocumentID]; ok {
			res := snap.Results[i]
			score = fmt.Sprintf("%.0f", res.ConversionScore)
			thresholds = passFail(res.PassAllThresholds)
			msg = res.Message
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", name, d.Status, score, thresholds, d.Elapsed, orDash(d.ExtractorInfo), msg)
	}
	tw.Flush()
}

// writeTranscript saves the merged log and the results table.
func writeTranscript(path string, snap reconcile.Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create transcript: %w", err)
	}
	for _, l := range snap.Log {
		fmt.Fprintf(f, "%s %s\n", l.JobID, formatLog(l))
	}
	fmt.Fprintln(f)
	writeResults(f, snap)
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}
	return nil
}

func passFail(ok bool) string {
	if ok {
		return "pass"
	}
	return "fail"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
