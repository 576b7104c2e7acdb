package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	Init("test")
	Init("test")

	before := testutil.ToFloat64(sweepRowsTotal.WithLabelValues("purge", "post"))
	SweepRows("purge", "post", 5)
	assert.Equal(t, before+5, testutil.ToFloat64(sweepRowsTotal.WithLabelValues("purge", "post")))

	before = testutil.ToFloat64(sweepFailuresTotal.WithLabelValues("cascade", "comment"))
	SweepFailure("cascade", "comment")
	assert.Equal(t, before+1, testutil.ToFloat64(sweepFailuresTotal.WithLabelValues("cascade", "comment")))

	before = testutil.ToFloat64(restoreTasksTotal.WithLabelValues(RestoreEnqueueFailed))
	RestoreTask(RestoreEnqueueFailed)
	assert.Equal(t, before+1, testutil.ToFloat64(restoreTasksTotal.WithLabelValues(RestoreEnqueueFailed)))

	RestoreQueueDepth(7)
	assert.Equal(t, float64(7), testutil.ToFloat64(restoreQueueDepth))
	RestoreQueueDepth(0)
	assert.Zero(t, testutil.ToFloat64(restoreQueueDepth))
}

func TestInstrument_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Instrument)
	r.Get("/api/posts/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/api/posts/{id}", "418"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/posts/123", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)

	assert.Equal(t, before+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/api/posts/{id}", "418")))
}
