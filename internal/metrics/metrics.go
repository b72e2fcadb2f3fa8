// Package metrics provides Prometheus metrics for the filedash server.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filedash_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filedash_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	listingsServedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filedash_listings_served_total",
			Help: "Folder and root listings served",
		},
		[]string{"kind"}, // root | folder
	)

	listingEntriesReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "filedash_listing_entries_returned",
			Help:    "Entries returned per listing",
			Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000},
		},
	)

	downloadRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filedash_download_requests_total",
			Help: "Download requests received",
		},
		[]string{"result"}, // accepted | rejected
	)

	authAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filedash_auth_attempts_total",
			Help: "Total authentication attempts",
		},
		[]string{"result"},
	)

	sseConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "filedash_sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	sseEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filedash_sse_events_total",
			Help: "SSE events published",
		},
		[]string{"type"},
	)

	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filedash_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	dbConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "filedash_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// RecordListing records a served listing and its size.
func RecordListing(kind string, entries int) {
	listingsServedTotal.WithLabelValues(kind).Inc()
	listingEntriesReturned.Observe(float64(entries))
}

// RecordDownloadRequest records a download request outcome.
func RecordDownloadRequest(result string) {
	downloadRequestsTotal.WithLabelValues(result).Inc()
}

// RecordAuthAttempt records an authentication attempt outcome.
func RecordAuthAttempt(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	authAttemptsTotal.WithLabelValues(result).Inc()
}

// SetSSEConnectionsActive sets the active SSE connection gauge.
func SetSSEConnectionsActive(n int64) {
	sseConnectionsActive.Set(float64(n))
}

// RecordSSEEvent records a published SSE event.
func RecordSSEEvent(eventType string) {
	sseEventsTotal.WithLabelValues(eventType).Inc()
}

// RecordDBQuery records a database query duration.
func RecordDBQuery(operation string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetDBConnectionsOpen sets the open database connection gauge.
func SetDBConnectionsOpen(n int) {
	dbConnectionsOpen.Set(float64(n))
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush lets SSE handlers stream through the wrapper.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// normalizeRoute collapses numeric path segments into a placeholder, so
// /api/v1/files/7 and /api/v1/files/8 share one route label.
func normalizeRoute(path string) string {
	segs := strings.Split(path, "/")
	changed := false
	for i, seg := range segs {
		if isNumeric(seg) {
			segs[i] = "{id}"
			changed = true
		}
	}
	if !changed {
		return path
	}
	return strings.Join(segs, "/")
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Middleware records request counts and durations.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		// Raw paths would give the label unbounded cardinality: every
		// user and folder id would mint a new time series.
		route := normalizeRoute(r.URL.Path)
		if rec.status == http.StatusNotFound {
			route = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
