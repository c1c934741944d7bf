package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every Prometheus metric the API server exports, scoped
// to BOS's resources (components/sessions).
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	ComponentsTotal *prometheus.GaugeVec
	SessionsTotal   *prometheus.GaugeVec

	WSConnectionsActive prometheus.Gauge
	WSMessagesTotal     *prometheus.CounterVec
}

// NewMetrics constructs and registers every metric under namespace.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),
		ComponentsTotal: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "components_total",
				Help:      "Total components by status",
			},
			[]string{"status"},
		),
		SessionsTotal: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sessions_total",
				Help:      "Total sessions by phase",
			},
			[]string{"phase"},
		),
		WSConnectionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "websocket_connections_active",
				Help:      "Active session-monitor WebSocket connections",
			},
		),
		WSMessagesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "websocket_messages_total",
				Help:      "Total WebSocket messages",
			},
			[]string{"direction", "type"},
		),
	}
}

// MetricsMiddleware wraps next with request counting and latency
// histograms.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)
		status := strconv.Itoa(wrapped.statusCode)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizePath collapses path parameters to keep metric label
// cardinality bounded.
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v2/components/"):
		return "/v2/components/{id}"
	case strings.HasPrefix(path, "/v2/sessions/"):
		return "/v2/sessions/{name}"
	case strings.HasPrefix(path, "/v2/sessiontemplates/"):
		return "/v2/sessiontemplates/{name}"
	default:
		return path
	}
}

// MetricsHandler exposes the Prometheus scrape endpoint.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// SetComponentsCount records the current component-status histogram.
func (m *Metrics) SetComponentsCount(status string, count int) {
	m.ComponentsTotal.WithLabelValues(status).Set(float64(count))
}

// SetSessionsCount records the current session-phase histogram.
func (m *Metrics) SetSessionsCount(phase string, count int) {
	m.SessionsTotal.WithLabelValues(phase).Set(float64(count))
}

// WSConnectionOpened records a new monitor connection.
func (m *Metrics) WSConnectionOpened() { m.WSConnectionsActive.Inc() }

// WSConnectionClosed records a closed monitor connection.
func (m *Metrics) WSConnectionClosed() { m.WSConnectionsActive.Dec() }

// RecordWSMessage records one message sent or received over a monitor
// connection.
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessagesTotal.WithLabelValues(direction, msgType).Inc()
}
