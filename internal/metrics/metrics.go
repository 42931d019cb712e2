// Package metrics provides Prometheus metrics for the PearDrive server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peardrive_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "peardrive_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Upload session metrics
	uploadSessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peardrive_upload_sessions_total",
			Help: "Total resumable upload sessions started",
		},
		[]string{"provider", "status"},
	)

	uploadsFinalizedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peardrive_uploads_finalized_total",
			Help: "Total uploads finalized",
		},
		[]string{"provider", "status"},
	)

	uploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "peardrive_upload_bytes_total",
			Help: "Total bytes accounted at upload finalization",
		},
	)

	// Provider operation metrics
	providerOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "peardrive_provider_operation_duration_seconds",
			Help:    "Storage provider operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "operation"},
	)

	providerOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peardrive_provider_operations_total",
			Help: "Total storage provider operations",
		},
		[]string{"provider", "operation", "status"},
	)

	// Auth metrics
	authAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peardrive_auth_attempts_total",
			Help: "Total authentication attempts",
		},
		[]string{"result"},
	)

	// Database metrics
	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "peardrive_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query"},
	)

	dbConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "peardrive_db_connections_open",
			Help: "Number of open database connections",
		},
	)

	// SSE metrics
	sseConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "peardrive_sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	sseEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peardrive_sse_events_total",
			Help: "Total SSE events published",
		},
		[]string{"type"},
	)

	// Sharing metrics
	shareDownloadsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "peardrive_share_downloads_total",
			Help: "Total downloads via share links",
		},
	)

	// Trash metrics
	trashPurgesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peardrive_trash_purges_total",
			Help: "Total permanent deletions from trash",
		},
		[]string{"status"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordUploadSession records a resumable upload session start.
func RecordUploadSession(provider string, success bool) {
	uploadSessionsTotal.WithLabelValues(provider, statusLabel(success)).Inc()
}

// RecordUploadFinalized records an upload finalization.
func RecordUploadFinalized(provider string, bytes int64, success bool) {
	uploadsFinalizedTotal.WithLabelValues(provider, statusLabel(success)).Inc()
	if success {
		uploadBytesTotal.Add(float64(bytes))
	}
}

// RecordProviderOperation records a storage provider operation.
func RecordProviderOperation(provider, operation string, duration time.Duration, success bool) {
	providerOperationDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
	providerOperationsTotal.WithLabelValues(provider, operation, statusLabel(success)).Inc()
}

// RecordAuthAttempt records an authentication attempt.
func RecordAuthAttempt(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	authAttemptsTotal.WithLabelValues(result).Inc()
}

// RecordDBQuery records a database query duration.
func RecordDBQuery(query string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(query).Observe(duration.Seconds())
}

// SetDBConnectionsOpen sets the number of open database connections.
func SetDBConnectionsOpen(count int) {
	dbConnectionsOpen.Set(float64(count))
}

// SetSSEConnectionsActive sets the number of active SSE connections.
func SetSSEConnectionsActive(count int64) {
	sseConnectionsActive.Set(float64(count))
}

// RecordSSEEvent records an SSE event publication.
func RecordSSEEvent(eventType string) {
	sseEventsTotal.WithLabelValues(eventType).Inc()
}

// RecordShareDownload records a share link download.
func RecordShareDownload() {
	shareDownloadsTotal.Inc()
}

// RecordTrashPurge records a permanent deletion from trash.
func RecordTrashPurge(success bool) {
	trashPurgesTotal.WithLabelValues(statusLabel(success)).Inc()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware returns HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		RecordHTTPRequest(r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	})
}
