package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the dashboard's Prometheus collectors.
type Metrics struct {
	registry         *prometheus.Registry
	upstreamDuration *prometheus.HistogramVec
	cacheOutcomes    *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	workspaces       prometheus.Gauge
	wsConnections    prometheus.Gauge
	eventsPublished  *prometheus.CounterVec
	pollerRuns       *prometheus.CounterVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		upstreamDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "subsentry_upstream_request_duration_seconds",
				Help:    "Duration of requests to the SubSentry backend",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		cacheOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "subsentry_query_cache_total",
				Help: "Query cache lookups by resource and outcome",
			},
			[]string{"resource", "outcome"},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "subsentry_http_requests_total",
				Help: "Requests served by the dashboard API",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "subsentry_http_request_duration_seconds",
				Help:    "Duration of requests served by the dashboard API",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		workspaces: factory.NewGauge(prometheus.GaugeOpts{
			Name: "subsentry_active_workspaces",
			Help: "Signed-in sessions with a live workspace",
		}),
		wsConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "subsentry_websocket_connections",
			Help: "Open view channel connections",
		}),
		eventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "subsentry_events_published_total",
				Help: "Change events published by topic",
			},
			[]string{"topic"},
		),
		pollerRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "subsentry_notification_polls_total",
				Help: "Notification poller runs by result",
			},
			[]string{"result"},
		),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one backend call.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.upstreamDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// CacheOutcome records a query cache lookup.
func (m *Metrics) CacheOutcome(resource, outcome string) {
	m.cacheOutcomes.WithLabelValues(resource, outcome).Inc()
}

func (m *Metrics) WorkspaceOpened() { m.workspaces.Inc() }
func (m *Metrics) WorkspaceClosed() { m.workspaces.Dec() }
func (m *Metrics) SocketOpened() { m.wsConnections.Inc() }
func (m *Metrics) SocketClosed() { m.wsConnections.Dec() }

func (m *Metrics) EventPublished(topic string) {
	m.eventsPublished.WithLabelValues(topic).Inc()
}

// PollCompleted records a notification poll.
func (m *Metrics) PollCompleted(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.pollerRuns.WithLabelValues(result).Inc()
}

// Middleware records request counts and latency per chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
