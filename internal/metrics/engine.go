package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		ticksTotal,
		fetchTotal,
		fetchLatency,
		documentsTerminal,
		logLinesTotal,
		finalizationsTotal,
		groupProgress,
	)
}

var (
	ticksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docwatch_poll_ticks_total",
			Help: "Poll ticks applied to the reconciliation store.",
		},
	)

	fetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docwatch_backend_fetch_total",
			Help: "Backend fetches by operation and outcome.",
		},
		[]string{"op", "outcome"}, // outcome: 'ok', 'not_found', 'error'
	)

	fetchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docwatch_backend_fetch_seconds",
			Help:    "Backend fetch latency by operation.",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"op"},
	)

	documentsTerminal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docwatch_documents_terminal_total",
			Help: "Documents that reached a terminal state, by state.",
		},
		[]string{"status"},
	)

	logLinesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docwatch_log_lines_rendered_total",
			Help: "Backend log lines emitted after deduplication.",
		},
	)

	finalizationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docwatch_finalizations_total",
			Help: "Result finalizer runs by outcome.",
		},
		[]string{"outcome"},
	)

	groupProgress = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "docwatch_group_progress_percent",
			Help: "Progress of the active job group, 0-100.",
		},
	)
)

// IncTick records one applied poll tick.
func IncTick() {
	ticksTotal.Inc()
}

// ObserveFetch records a backend call. outcome is 'ok', 'not_found' or 'error'.
func ObserveFetch(op, outcome string, elapsed time.Duration) {
	fetchTotal.WithLabelValues(norm(op), norm(outcome)).Inc()
	fetchLatency.WithLabelValues(norm(op)).Observe(elapsed.Seconds())
}

// IncTerminal records a document entering a terminal state.
func IncTerminal(status string) {
	documentsTerminal.WithLabelValues(norm(status)).Inc()
}

// AddLogLines records rendered log lines.
func AddLogLines(n int) {
	if n > 0 {
		logLinesTotal.Add(float64(n))
	}
}

// IncFinalization records a finalizer run.
func IncFinalization(outcome string) {
	finalizationsTotal.WithLabelValues(norm(outcome)).Inc()
}

// SetProgress records the active group's progress percentage.
func SetProgress(pct int) {
	groupProgress.Set(float64(pct))
}
