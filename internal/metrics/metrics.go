// Package metrics provides Prometheus instrumentation for the supply engine.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TicksTotal counts simulator tick executions.
	TicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "supply_sim_ticks_total",
		Help: "Total simulator ticks executed",
	})

	// TicksSkipped counts ticks skipped because the previous one was
	// still running.
	TicksSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "supply_sim_ticks_skipped_total",
		Help: "Simulator ticks skipped due to overlap",
	})

	// TickDuration tracks how long a full tick takes across all shipments.
	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "supply_sim_tick_duration_seconds",
		Help:    "Simulator tick duration in seconds",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5},
	})

	// CheckpointsTotal counts checkpoint events emitted.
	CheckpointsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "supply_checkpoints_total",
		Help: "Total checkpoint events emitted",
	})

	// ActiveShipments tracks the number of registered shipments.
	ActiveShipments = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "supply_active_shipments",
		Help: "Number of registered shipments",
	})

	// WebSocketClients tracks connected live-stream subscribers.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "supply_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "supply_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "supply_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the raw path for the label; route cardinality is tiny here.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack exposes the underlying Hijacker; WebSocket upgrades need it.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	return h.Hijack()
}
