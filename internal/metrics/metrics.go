// Package metrics provides Prometheus instrumentation for the sales analytics service.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// AnalysesTotal counts analysis runs, partitioned by result
	// ("ok", "invalid_input", "unresolved_reference", "invalid_dataset").
	AnalysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_analyses_total",
		Help: "Total number of sales analyses run",
	}, []string{"result"})

	// AnalysisLatency tracks how long the analysis pass takes.
	AnalysisLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sales_analysis_latency_seconds",
		Help:    "Sales analysis latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// SellersPerReport tracks the number of sellers in each analysis.
	SellersPerReport = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sales_sellers_per_report",
		Help:    "Number of sellers per analysis",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	})

	// PurchaseRecordsProcessed counts purchase records aggregated.
	PurchaseRecordsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sales_purchase_records_processed_total",
		Help: "Total purchase records aggregated",
	})

	// ReportsStored counts reports persisted since start.
	ReportsStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sales_reports_stored_total",
		Help: "Number of reports persisted",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sales_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sales_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// ObserveAnalysis records the outcome of one analysis run.
func ObserveAnalysis(result string, started time.Time, sellers, records int) {
	AnalysesTotal.WithLabelValues(result).Inc()
	AnalysisLatency.Observe(time.Since(started).Seconds())
	if result == "ok" {
		SellersPerReport.Observe(float64(sellers))
		PurchaseRecordsProcessed.Add(float64(records))
	}
}

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

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
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

// Hijack passes through to the underlying writer so websocket upgrades
// work behind this middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	return h.Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
