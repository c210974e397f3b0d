// ABOUTME: Prometheus collectors for the relay and its HTTP surface
// ABOUTME: Collectors live on a private registry so each server owns its own set

package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chatrelay"

// Metrics holds every collector the relay records into. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	sessionsConnected prometheus.Gauge
	sessionEvictions  prometheus.Counter

	messagesCommitted *prometheus.CounterVec
	ingressRejected   *prometheus.CounterVec
	forwardFailures   prometheus.Counter

	reconcileRuns     prometheus.Counter
	reconcileFailures *prometheus.CounterVec
	reconcileMessages prometheus.Counter
}

// New creates the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "route", "status"}),

		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"method", "route"}),

		sessionsConnected: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_connected",
			Help:      "Currently connected client sessions",
		}),

		sessionEvictions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_evictions_total",
			Help:      "Sessions dropped because their outbound queue was full",
		}),

		messagesCommitted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_committed_total",
			Help:      "Messages appended to history and broadcast",
		}, []string{"origin"}), // "local" or "remote"

		ingressRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingress_rejected_total",
			Help:      "Client submissions dropped before admission",
		}, []string{"reason"}),

		forwardFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forward_failures_total",
			Help:      "Local messages that could not be forwarded upstream",
		}),

		reconcileRuns: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_runs_total",
			Help:      "Reconciliation passes attempted",
		}),

		reconcileFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_failures_total",
			Help:      "Reconciliation passes that failed to poll",
		}, []string{"reason"}),

		reconcileMessages: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_messages_total",
			Help:      "Remote messages ingested",
		}),
	}
}

// Registry exposes the underlying registry (tests gather from it).
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request counts and latency labelled by chi route
// pattern, which keeps cardinality bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// chi's wrapper keeps Hijacker intact for websocket upgrades
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}

		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) SessionJoined() {
	if m != nil {
		m.sessionsConnected.Inc()
	}
}

func (m *Metrics) SessionLeft() {
	if m != nil {
		m.sessionsConnected.Dec()
	}
}

// SessionEvicted counts a slow session being dropped. The caller still
// reports SessionLeft for it.
func (m *Metrics) SessionEvicted() {
	if m != nil {
		m.sessionEvictions.Inc()
	}
}

func (m *Metrics) MessageCommitted(origin string) {
	if m != nil {
		m.messagesCommitted.WithLabelValues(origin).Inc()
	}
}

func (m *Metrics) IngressRejected(reason string) {
	if m != nil {
		m.ingressRejected.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) ForwardFailed() {
	if m != nil {
		m.forwardFailures.Inc()
	}
}

func (m *Metrics) ReconcileRun() {
	if m != nil {
		m.reconcileRuns.Inc()
	}
}

func (m *Metrics) ReconcileFailed(reason string) {
	if m != nil {
		m.reconcileFailures.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) ReconcileAdded(n int) {
	if m != nil && n > 0 {
		m.reconcileMessages.Add(float64(n))
	}
}
