package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hiatus"

// Restore task outcomes.
const (
	RestoreSucceeded     = "succeeded"
	RestoreRetried       = "retried"
	RestoreRequeued      = "requeued"
	RestoreEnqueueFailed = "enqueue_failed"
)

var (
	initOnce sync.Once

	transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Lifecycle state changes applied to single entities.",
		},
		[]string{"kind", "from", "to"},
	)

	sweepRowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_rows_total",
			Help:      "Rows changed by the cascade and purge sweeps.",
		},
		[]string{"job", "kind"},
	)

	sweepFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_failures_total",
			Help:      "Failed bulk statements of the cascade and purge sweeps.",
		},
		[]string{"job", "kind"},
	)

	sweepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of a sweep run.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	restoreTasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "restore_tasks_total",
			Help:      "Background content restore tasks by outcome.",
		},
		[]string{"outcome"},
	)

	restoreItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "restore_items_total",
			Help:      "Content items visited by restore tasks.",
		},
		[]string{"result"},
	)

	restoreQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "restore_queue_depth",
			Help:      "Restore tasks waiting in the in-memory queue.",
		},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latencies in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Hiatus build information.",
		},
		[]string{"version"},
	)
)

// Init registers the collectors in the default registry. Safe to call more
// than once.
func Init(version string) {
	initOnce.Do(func() {
		prometheus.MustRegister(
			transitionsTotal,
			sweepRowsTotal,
			sweepFailuresTotal,
			sweepDuration,
			restoreTasksTotal,
			restoreItemsTotal,
			restoreQueueDepth,
			httpRequestsTotal,
			httpRequestDuration,
			buildInfo,
		)
	})
	buildInfo.WithLabelValues(version).Set(1)
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func Transition(kind, from, to string) {
	transitionsTotal.WithLabelValues(kind, from, to).Inc()
}

func SweepRows(job, kind string, n int64) {
	sweepRowsTotal.WithLabelValues(job, kind).Add(float64(n))
}

func SweepFailure(job, kind string) {
	sweepFailuresTotal.WithLabelValues(job, kind).Inc()
}

func ObserveSweep(job string, d time.Duration) {
	sweepDuration.WithLabelValues(job).Observe(d.Seconds())
}

func RestoreTask(outcome string) {
	restoreTasksTotal.WithLabelValues(outcome).Inc()
}

func RestoreItems(restored, skipped int64) {
	restoreItemsTotal.WithLabelValues("restored").Add(float64(restored))
	restoreItemsTotal.WithLabelValues("skipped").Add(float64(skipped))
}

func RestoreQueueDepth(n int) {
	restoreQueueDepth.Set(float64(n))
}

// Instrument records request count and latency labelled by the chi route
// pattern, which keeps entity ids out of the label values.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}

		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush keeps the SSE endpoint streaming through the wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
