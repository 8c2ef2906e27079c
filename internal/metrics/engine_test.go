package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(ticksTotal)
	IncTick()
	IncTick()
	if got := testutil.ToFloat64(ticksTotal) - before; got != 2 {
		t.Errorf("ticks delta = %v, want 2", got)
	}

	beforeFetch := testutil.ToFloat64(fetchTotal.WithLabelValues("get_job", "error"))
	ObserveFetch(" GET_JOB ", "Error", 10*time.Millisecond)
	if got := testutil.ToFloat64(fetchTotal.WithLabelValues("get_job", "error")) - beforeFetch; got != 1 {
		t.Errorf("fetch delta = %v, want 1", got)
	}

	SetProgress(66)
	if got := testutil.ToFloat64(groupProgress); got != 66 {
		t.Errorf("progress = %v, want 66", got)
	}

	beforeLines := testutil.ToFloat64(logLinesTotal)
	AddLogLines(0)
	AddLogLines(4)
	if got := testutil.ToFloat64(logLinesTotal) - beforeLines; got != 4 {
		t.Errorf("log lines delta = %v, want 4", got)
	}
}

func TestHandler(t *testing.T) {
	IncFinalization("ok")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "docwatch_finalizations_total") {
		t.Error("scrape output missing docwatch_finalizations_total")
	}

	// Registering twice must not panic.
	MustRegister()
}
