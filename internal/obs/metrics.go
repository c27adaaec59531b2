package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

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

	lgpdRequestsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lgpd_requests_created_total",
			Help: "Data-subject requests by canonical type and outcome.",
		},
		[]string{"type", "outcome"},
	)

	sealedPayloadBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "lgpd_sealed_payload_bytes",
		Help:    "Size of sealed request payloads in bytes.",
		Buckets: prometheus.ExponentialBuckets(128, 2, 10),
	})
)

// Init registers all metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight,
		httpRequestsTotal,
		httpRequestDuration,
		lgpdRequestsCreated,
		sealedPayloadBytes,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRequestCreated records a submission attempt. Outcome is one of
// "created", "failed", "rejected".
func ObserveRequestCreated(requestType, outcome string) {
	lgpdRequestsCreated.WithLabelValues(requestType, outcome).Inc()
}

// ObserveSealedPayload records the ciphertext size of a sealed submission.
func ObserveSealedPayload(size int) {
	sealedPayloadBytes.Observe(float64(size))
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

// knownPaths are the fixed routes the API serves. Anything else collapses to
// "other" to keep the label cardinality bounded.
var knownPaths = map[string]struct{}{
	"/":                         {},
	"/healthz":                  {},
	"/readyz":                   {},
	"/metrics":                  {},
	"/v1/info":                  {},
	"/v1/auth/register":         {},
	"/v1/auth/login":            {},
	"/v1/auth/verify":           {},
	"/v1/auth/change-password":  {},
	"/v1/lgpd-requests":         {},
	"/v1/company":               {},
	"/v1/company/lgpd-requests": {},
	"/v1/admin/users":           {},
	"/v1/pix/charges":           {},
}

// CanonicalPath maps a request path to a bounded metric label.
func CanonicalPath(path string) string {
	if path == "" {
		return "/"
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if _, ok := knownPaths[path]; ok {
		return path
	}
	if strings.HasPrefix(path, "/v1/pix/charges/") {
		return "/v1/pix/charges/:txid"
	}
	return "other"
}

// statusWriter captures the response code for metric labels.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
