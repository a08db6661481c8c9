package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP-level metrics shared by every endpoint.
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

// Gateway-level metrics: every metered invocation lands here once,
// mirroring the usage-event settlement.
var (
	toolInvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tool_invocations_total",
			Help: "Metered tool invocations by outcome status.",
		},
		[]string{"tool", "status"},
	)

	creditsChargedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credits_charged_total",
			Help: "Credits debited by the gateway, per tool.",
		},
		[]string{"tool"},
	)

	settlementWriteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "settlement_write_failures_total",
			Help: "Usage-event writes that failed after a completed debit.",
		},
	)
)

// Init registers all metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		toolInvocationsTotal, creditsChargedTotal, settlementWriteFailures,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveInvocation records one settled tool invocation.
func ObserveInvocation(tool, status string, credits int64) {
	toolInvocationsTotal.WithLabelValues(tool, status).Inc()
	creditsChargedTotal.WithLabelValues(tool).Add(float64(credits))
}

// ObserveSettlementFailure counts a failed settlement write. These indicate
// a ledger/audit divergence and are worth alerting on.
func ObserveSettlementFailure() {
	settlementWriteFailures.Inc()
}

// Instrument wraps a handler with RPS/latency/in-flight measurement.
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

// CanonicalPath collapses per-resource identifiers so metric cardinality
// stays bounded.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	switch {
	case strings.HasPrefix(path, "/api/tools/live-tv/stream/"):
		return "/api/tools/live-tv/stream/:id"
	case strings.HasPrefix(path, "/api/tools/live-tv/channels/"):
		return "/api/tools/live-tv/channels/:category"
	case strings.HasPrefix(path, "/api/admin/users/") && strings.HasSuffix(path, "/suspend"):
		return "/api/admin/users/:id/suspend"
	}
	return path
}

// statusWriter captures the response code for labeling.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE endpoints working behind the instrumentation.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
