package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Inbound HTTP metrics for the micro-site server.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Outbound metrics for the marketplace API client and its subsystems.
var (
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Outbound marketplace API requests.",
		},
		[]string{"method", "path", "status"},
	)

	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Outbound marketplace API latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	tokenRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_token_refresh_total",
			Help: "Token refresh attempts by outcome.",
		},
		[]string{"outcome"},
	)

	cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "query_cache_lookups_total",
			Help: "Server-state cache lookups by result.",
		},
		[]string{"result"},
	)

	analyticsFlushTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_flush_total",
			Help: "Analytics click flush attempts by outcome.",
		},
		[]string{"outcome"},
	)

	analyticsClicksRecovered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "analytics_clicks_recovered_total",
			Help: "Click counts re-queued after a failed flush.",
		},
	)
)

// Init registers all metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		apiRequestsTotal, apiRequestDuration,
		tokenRefreshTotal, cacheLookupsTotal,
		analyticsFlushTotal, analyticsClicksRecovered,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveAPIRequest records one outbound API call.
func ObserveAPIRequest(method, path string, status int, d time.Duration) {
	code := strconv.Itoa(status)
	apiRequestsTotal.WithLabelValues(method, path, code).Inc()
	apiRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// CountTokenRefresh records a refresh outcome ("ok" or "failed").
func CountTokenRefresh(outcome string) {
	tokenRefreshTotal.WithLabelValues(outcome).Inc()
}

// CountCacheLookup records a cache result ("hit", "miss" or "shared").
func CountCacheLookup(result string) {
	cacheLookupsTotal.WithLabelValues(result).Inc()
}

// CountFlush records a click-flush outcome ("ok", "failed" or "empty").
func CountFlush(outcome string) {
	analyticsFlushTotal.WithLabelValues(outcome).Inc()
}

// CountRecoveredClicks records clicks added back after a failed flush.
func CountRecoveredClicks(n int64) {
	if n > 0 {
		analyticsClicksRecovered.Add(float64(n))
	}
}

// Instrument wraps an inbound handler with RPS/latency/in-flight metrics.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// statusWriter captures the response code for instrumentation.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
