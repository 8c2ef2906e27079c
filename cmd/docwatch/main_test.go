package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jackzampolin/docwatch/internal/api"
	"github.com/jackzampolin/docwatch/internal/backend"
	"github.com/jackzampolin/docwatch/internal/config"
	"github.com/jackzampolin/docwatch/internal/home"
	"github.com/jackzampolin/docwatch/internal/jobgroup"
	"github.com/jackzampolin/docwatch/internal/reconcile"
	"github.com/jackzampolin/docwatch/internal/testutil"
)

func testEnv(t *testing.T, serverURL string) (*env, *bytes.Buffer, jobgroup.Store) {
	t.Helper()

	h, err := home.New(t.TempDir())
	if err != nil {
		t.Fatalf("home.New() error = %v", err)
	}
	if err := h.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists() error = %v", err)
	}

	cm, err := config.NewManager("", h.Path())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	for key, value := range map[string]any{
		"server.url":    serverURL,
		"poll.interval": 10 * time.Millisecond,
		"health.delay":  time.Millisecond,
	} {
		if err := cm.Set(key, value); err != nil {
			t.Fatalf("Set(%s) error = %v", key, err)
		}
	}

	out := &bytes.Buffer{}
	e := &env{home: h, config: cm, logger: testutil.Logger(t), out: out}
	return e, out, jobgroup.NewFileStore(h.JobGroupPath())
}

const runningPayload = `{
	"status": "RUNNING",
	"documents": [
		{"document_id": "a", "filename": "a.pdf", "status": "RUNNING", "started_at": "2026-01-02T03:04:00Z"},
		{"document_id": "b", "filename": "b.pdf", "status": "PENDING"}
	],
	"recent_logs": [
		{"timestamp": "2026-01-02T03:04:05Z", "level": "info", "message": "converting a.pdf with Docling", "document_id": "a"}
	]
}`

const finishedPayload = `{
	"status": "COMPLETED",
	"documents": [
		{"document_id": "a", "filename": "a.pdf", "status": "COMPLETED", "started_at": "2026-01-02T03:04:00Z"},
		{"document_id": "b", "filename": "b.pdf", "status": "FAILED", "error_message": "unreadable scan"}
	],
	"recent_logs": [
		{"timestamp": "2026-01-02T03:04:10Z", "level": "error", "message": "b.pdf failed", "document_id": "b"},
		{"timestamp": "2026-01-02T03:04:09Z", "level": "success", "message": "a.pdf done", "document_id": "a"},
		{"timestamp": "2026-01-02T03:04:05Z", "level": "info", "message": "converting a.pdf with Docling", "document_id": "a"}
	]
}`

func TestSubmitAndWatch(t *testing.T) {
	b := testutil.NewBackend(t)
	b.ScriptJob("job-1", runningPayload, runningPayload, finishedPayload)
	b.SetResult("a", `{"document_id": "a", "filename": "a.pdf", "success": true, "conversion_score": 88, "pass_all_thresholds": true}`)

	e, out, store := testEnv(t, b.URL)
	ctx := context.Background()

	rec, err := submit(ctx, e, store, []string{"a", "b"}, 0, backend.JobOptions{"ocr": true})
	if err != nil {
		t.Fatalf("submit() error = %v", err)
	}
	if got := b.Created(); !reflect.DeepEqual(got, [][]string{{"a", "b"}}) {
		t.Fatalf("created jobs = %v", got)
	}

	snap, err := watch(ctx, e, store, rec, "")
	if err != nil {
		t.Fatalf("watch() error = %v", err)
	}

	if !snap.Finalized || snap.Progress != 100 {
		t.Fatalf("snapshot finalized=%t progress=%d", snap.Finalized, snap.Progress)
	}
	if b.Polls("job-1") < 3 {
		t.Errorf("polls = %d, want at least 3", b.Polls("job-1"))
	}

	results := make(map[string]backend.ProcessingResult)
	for _, r := range snap.Results {
		results[r.DocumentID] = r
	}
	if r := results["a"]; !r.Success || r.ConversionScore != 88 {
		t.Errorf("result a = %+v", r)
	}
	if r := results["b"]; r.Success || r.Message != "unreadable scan" {
		t.Errorf("result b = %+v", r)
	}
	for _, d := range snap.Documents {
		if d.DocumentID == "a" && d.ExtractorInfo != "Docling" {
			t.Errorf("extractor for a = %q, want Docling", d.ExtractorInfo)
		}
	}

	text := out.String()
	if n := strings.Count(text, "converting a.pdf with Docling"); n != 1 {
		t.Errorf("log line printed %d times, want 1:\n%s", n, text)
	}
	for _, want := range []string{"b.pdf failed", "100%", "DOCUMENT", "a.pdf", "88"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}

	stored, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !stored.Done || stored.GroupID != rec.GroupID {
		t.Errorf("stored record = %+v", stored)
	}

	transcript, err := os.ReadFile(e.home.TranscriptPath(rec.GroupID))
	if err != nil {
		t.Fatalf("transcript not written: %v", err)
	}
	if !strings.Contains(string(transcript), "job-1") || !strings.Contains(string(transcript), "a.pdf done") {
		t.Errorf("transcript = %s", transcript)
	}
}

func TestSubmitBatches(t *testing.T) {
	b := testutil.NewBackend(t)
	e, _, store := testEnv(t, b.URL)

	rec, err := submit(context.Background(), e, store, []string{"a", "b", "c", "d", "e"}, 2, nil)
	if err != nil {
		t.Fatalf("submit() error = %v", err)
	}
	if want := []string{"job-1", "job-2", "job-3"}; !reflect.DeepEqual(rec.JobIDs, want) {
		t.Errorf("job ids = %v, want %v", rec.JobIDs, want)
	}
	if got := rec.Documents["job-3"]; !reflect.DeepEqual(got, []string{"e"}) {
		t.Errorf("job-3 documents = %v", got)
	}
	if got := len(b.Created()); got != 3 {
		t.Errorf("createJob calls = %d, want 3", got)
	}
}

func TestSubmitUnhealthyBackend(t *testing.T) {
	b := testutil.NewBackend(t)
	b.SetHealthy(false)
	e, _, store := testEnv(t, b.URL)

	_, err := submit(context.Background(), e, store, []string{"a"}, 0, nil)
	if !errors.Is(err, backend.ErrUnhealthy) {
		t.Fatalf("submit() error = %v, want ErrUnhealthy", err)
	}
	if got := len(b.Created()); got != 0 {
		t.Errorf("createJob calls = %d, want 0", got)
	}
	if _, err := store.Load(context.Background()); !errors.Is(err, jobgroup.ErrNoGroup) {
		t.Errorf("Load() error = %v, want ErrNoGroup", err)
	}
}

func TestWatchResumeAdoptsDocuments(t *testing.T) {
	b := testutil.NewBackend(t)
	b.ScriptJob("job-9", `{
		"status": "COMPLETED",
		"documents": [
			{"document_id": "x", "status": "COMPLETED"},
			{"document_id": "y", "status": "COMPLETED"}
		],
		"recent_logs": []
	}`)
	b.SetResult("x", `{"document_id": "x", "success": true, "conversion_score": 70}`)

	e, _, store := testEnv(t, b.URL)
	ctx := context.Background()

	rec := &jobgroup.Record{GroupID: "resumed", JobIDs: []string{"job-9"}, CreatedAt: time.Now().UnixMilli()}
	if err := store.Save(ctx, rec); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	snap, err := watch(ctx, e, store, rec, "")
	if err != nil {
		t.Fatalf("watch() error = %v", err)
	}
	if len(snap.Documents) != 2 || len(snap.Results) != 2 {
		t.Fatalf("documents = %d, results = %d, want 2 and 2", len(snap.Documents), len(snap.Results))
	}
	for _, r := range snap.Results {
		if r.DocumentID == "y" && (!r.Synthetic || r.Message != reconcile.ResultUnavailableMessage) {
			t.Errorf("result y = %+v, want synthetic unavailable", r)
		}
	}
}

func TestWatchInterruptedStaysResumable(t *testing.T) {
	b := testutil.NewBackend(t)
	b.ScriptJob("job-1", runningPayload)
	e, _, store := testEnv(t, b.URL)

	rec, err := submit(context.Background(), e, store, []string{"a", "b"}, 0, nil)
	if err != nil {
		t.Fatalf("submit() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := watch(ctx, e, store, rec, ""); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("watch() error = %v, want deadline exceeded", err)
	}

	stored, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if stored.Done {
		t.Error("interrupted group marked done")
	}
	if _, err := os.Stat(e.home.TranscriptPath(rec.GroupID)); !os.IsNotExist(err) {
		t.Errorf("transcript written for interrupted watch: %v", err)
	}
}

func TestWatchResetThroughLocalServer(t *testing.T) {
	b := testutil.NewBackend(t)
	b.ScriptJob("job-1", runningPayload)
	e, _, store := testEnv(t, b.URL)

	rec, err := submit(context.Background(), e, store, []string{"a", "b"}, 0, nil)
	if err != nil {
		t.Fatalf("submit() error = %v", err)
	}

	port, err := testutil.FindFreePort()
	if err != nil {
		t.Fatalf("FindFreePort() error = %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := watch(context.Background(), e, store, rec, "127.0.0.1:"+port)
		done <- err
	}()

	url := "http://127.0.0.1:" + port
	if err := testutil.WaitForServer(url, 5*time.Second); err != nil {
		t.Fatalf("local server did not start: %v", err)
	}
	if err := api.NewClient(url).Post(context.Background(), "/api/progress/reset", nil, nil); err != nil {
		t.Fatalf("reset error = %v", err)
	}

	if err := testutil.WaitForShutdown(done, 5*time.Second); !errors.Is(err, errWatchReset) {
		t.Fatalf("watch() error = %v, want errWatchReset", err)
	}
	if _, err := store.Load(context.Background()); !errors.Is(err, jobgroup.ErrNoGroup) {
		t.Errorf("Load() after reset error = %v, want ErrNoGroup", err)
	}
}

func TestResetGroup(t *testing.T) {
	_, _, store := testEnv(t, "http://127.0.0.1:1")
	ctx := context.Background()

	id, err := resetGroup(ctx, store)
	if err != nil || id != "" {
		t.Fatalf("resetGroup() on empty store = %q, %v", id, err)
	}

	rec := jobgroup.NewRecord([]reconcile.Job{{ID: "job-1", DocumentIDs: []string{"a"}}}, nil)
	if err := store.Save(ctx, rec); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	id, err = resetGroup(ctx, store)
	if err != nil || id != rec.GroupID {
		t.Fatalf("resetGroup() = %q, %v, want %q", id, err, rec.GroupID)
	}
	if _, err := store.Load(ctx); !errors.Is(err, jobgroup.ErrNoGroup) {
		t.Errorf("Load() after reset error = %v", err)
	}
}

func TestSplitBatches(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}
	tests := []struct {
		size int
		want [][]string
	}{
		{0, [][]string{ids}},
		{-1, [][]string{ids}},
		{5, [][]string{ids}},
		{9, [][]string{ids}},
		{2, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}},
		{1, [][]string{{"a"}, {"b"}, {"c"}, {"d"}, {"e"}}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("size %d", tt.size), func(t *testing.T) {
			if got := splitBatches(ids, tt.size); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitBatches() = %v, want %v", got, tt.want)
			}
		})
	}
	if got := splitBatches(nil, 3); got != nil {
		t.Errorf("splitBatches(nil) = %v", got)
	}
}

func TestParseOptions(t *testing.T) {
	opts, err := parseOptions([]string{"extractor=docling", "ocr=true", "dpi=300", "note=a=b"})
	if err != nil {
		t.Fatalf("parseOptions() error = %v", err)
	}
	want := backend.JobOptions{"extractor": "docling", "ocr": true, "dpi": float64(300), "note": "a=b"}
	if !reflect.DeepEqual(opts, want) {
		t.Errorf("parseOptions() = %v, want %v", opts, want)
	}

	for _, bad := range []string{"novalue", "=x"} {
		if _, err := parseOptions([]string{bad}); err == nil {
			t.Errorf("parseOptions(%q) expected error", bad)
		}
	}
}

func TestProgressBar(t *testing.T) {
	tests := []struct {
		pct  int
		want string
	}{
		{0, "[..........]"},
		{66, "[######....]"},
		{100, "[##########]"},
		{150, "[##########]"},
		{-5, "[..........]"},
	}
	for _, tt := range tests {
		if got := progressBar(tt.pct, 10); got != tt.want {
			t.Errorf("progressBar(%d) = %q, want %q", tt.pct, got, tt.want)
		}
	}
}

func TestRendererQuiet(t *testing.T) {
	var buf bytes.Buffer
	r := newRenderer(&buf, true)
	r.Update(reconcile.Update{NewLogs: []reconcile.RenderedLog{{JobID: "job-1", LogEntry: backend.LogEntry{Message: "hello"}}}})
	if buf.Len() != 0 {
		t.Errorf("quiet renderer wrote %q", buf.String())
	}

	r = newRenderer(&buf, false)
	r.Update(reconcile.Update{NewLogs: []reconcile.RenderedLog{{JobID: "job-1", LogEntry: backend.LogEntry{Level: backend.LevelWarning, Message: "hello", DocumentID: "a"}}}})
	if got := buf.String(); !strings.Contains(got, "WARNING [a] hello") {
		t.Errorf("renderer output = %q", got)
	}
}

func TestSubmitCommand(t *testing.T) {
	b := testutil.NewBackend(t)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--home", t.TempDir(), "--server", b.URL, "submit", "--no-watch", "doc-1", "doc-2"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		submitNoWatch = false
	})

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("submit command error = %v", err)
	}
	if !strings.Contains(out.String(), "Submitted 2 documents in 1 jobs") {
		t.Errorf("output = %q", out.String())
	}
}
