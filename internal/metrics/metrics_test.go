// ABOUTME: Tests for the relay's Prometheus collectors
// ABOUTME: Verifies nil safety, counter updates, and the route-labelled middleware

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

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.SessionJoined()
		m.SessionLeft()
		m.SessionEvicted()
		m.MessageCommitted("local")
		m.IngressRejected("empty")
		m.ForwardFailed()
		m.ReconcileRun()
		m.ReconcileFailed("upstream")
		m.ReconcileAdded(3)
	})
	assert.Nil(t, m.Registry())

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	assert.NotNil(t, m.Middleware(next))
}

func TestCounters(t *testing.T) {
	m := New()

	m.SessionJoined()
	m.SessionJoined()
	m.SessionLeft()
	m.SessionEvicted()
	m.MessageCommitted("local")
	m.MessageCommitted("remote")
	m.MessageCommitted("remote")
	m.ReconcileRun()
	m.ReconcileAdded(2)
	m.ReconcileAdded(0)
	m.ReconcileFailed("upstream")
	m.IngressRejected("empty")
	m.ForwardFailed()

	assert.InDelta(t, 1, testutil.ToFloat64(m.sessionsConnected), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.sessionEvictions), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.messagesCommitted.WithLabelValues("local")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.messagesCommitted.WithLabelValues("remote")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.reconcileRuns), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.reconcileMessages), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.reconcileFailures.WithLabelValues("upstream")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ingressRejected.WithLabelValues("empty")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.forwardFailures), 0)
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, id := range []string{"1", "2", "3"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/"+id, nil))
		require.Equal(t, http.StatusTeapot, rec.Code)
	}

	assert.InDelta(t, 3, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/items/{id}", "418")), 0)
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.MessageCommitted("local")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `chatrelay_messages_committed_total{origin="local"} 1`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
