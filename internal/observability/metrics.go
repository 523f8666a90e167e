package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	postingsTotal   *prometheus.CounterVec
	postingRetries  prometheus.Counter
	outboxDrained   prometheus.Counter
	outboxPending   prometheus.Gauge
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "meridian_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	postings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_ledger_postings_total",
		Help: "Ledger postings by outcome.",
	}, []string{"outcome"})
	retries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meridian_ledger_posting_retries_total",
		Help: "Serialization retries during posting.",
	})
	drained := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meridian_outbox_dispatched_total",
		Help: "Outbox records dispatched to the event queue.",
	})
	pending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "meridian_outbox_pending",
		Help: "Outbox records awaiting dispatch.",
	})
	registry.MustRegister(requests, duration, postings, retries, drained, pending)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		postingsTotal:   postings,
		postingRetries:  retries,
		outboxDrained:   drained,
		outboxPending:   pending,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObservePosting counts a posting outcome ("posted", "rejected", "conflict").
func (m *Metrics) ObservePosting(outcome string) {
	if m != nil {
		m.postingsTotal.WithLabelValues(outcome).Inc()
	}
}

// ObservePostingRetry counts one serialization retry.
func (m *Metrics) ObservePostingRetry() {
	if m != nil {
		m.postingRetries.Inc()
	}
}

// ObserveOutboxDispatched counts drained outbox records.
func (m *Metrics) ObserveOutboxDispatched(n int) {
	if m != nil {
		m.outboxDrained.Add(float64(n))
	}
}

// SetOutboxPending records the current pending backlog.
func (m *Metrics) SetOutboxPending(n int) {
	if m != nil {
		m.outboxPending.Set(float64(n))
	}
}

// Registerer exposes the registry for registering custom metrics.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
