package metrics

import (
	"regexp"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RequestDuration tracks HTTP request duration in seconds by method, path, status.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// RequestTotal counts HTTP requests by method, path, status.
	RequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// ExecutionsRunning is the number of scan executions currently in flight.
	ExecutionsRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scan_executions_running",
			Help: "Number of scan executions currently running",
		},
	)

	// ExecutionsTotal counts finished scan executions by terminal status (completed, failed).
	ExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scan_executions_total",
			Help: "Total number of scan executions finished by status",
		},
		[]string{"status"},
	)

	// PollDuration tracks how long one scheduler poll cycle takes.
	PollDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scheduler_poll_duration_seconds",
			Help:    "Duration of one scheduler poll cycle in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// DueSchedules tracks how many schedules were due per poll.
	DueSchedules = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scheduler_due_schedules",
			Help:    "Number of due schedules found per poll",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
		},
	)

	// EngineRequestDuration tracks engine scan-call duration by provider and outcome.
	EngineRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "engine_request_duration_seconds",
			Help:    "Duration of compliance engine requests in seconds",
			Buckets: []float64{.1, .5, 1, 5, 15, 60, 120, 300},
		},
		[]string{"provider", "outcome"},
	)
)

var (
	uuidPathSegment = regexp.MustCompile(`/[0-9a-fA-F]{8}-[0-9a-fA-F-]{27,}(/|$)`)
	initOnce        sync.Once
)

func init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			RequestDuration, RequestTotal,
			ExecutionsRunning, ExecutionsTotal,
			PollDuration, DueSchedules,
			EngineRequestDuration,
		)
	})
}

// NormalizePath reduces cardinality by replacing UUID path segments with {id}.
// E.g. /api/v1/schedules/6f1e.../executions -> /api/v1/schedules/{id}/executions.
func NormalizePath(path string) string {
	return uuidPathSegment.ReplaceAllString(path, "/{id}$1")
}

// RecordRequest records duration and count for an HTTP request. Call from middleware with method, path, statusCode, duration.
func RecordRequest(method, path string, statusCode int, durationSeconds float64) {
	path = NormalizePath(path)
	status := strconv.Itoa(statusCode)
	RequestDuration.WithLabelValues(method, path, status).Observe(durationSeconds)
	RequestTotal.WithLabelValues(method, path, status).Inc()
}

// IncExecutionsRunning increments the running executions gauge (call when a scan starts).
func IncExecutionsRunning() {
	ExecutionsRunning.Inc()
}

// DecExecutionsRunning decrements the running executions gauge (call when a scan finishes).
func DecExecutionsRunning() {
	ExecutionsRunning.Dec()
}

// IncExecutionsTotal increments the executions counter for the given terminal status.
func IncExecutionsTotal(status string) {
	ExecutionsTotal.WithLabelValues(status).Inc()
}

// ObserveEngineRequest records one engine scan call.
func ObserveEngineRequest(provider, outcome string, durationSeconds float64) {
	EngineRequestDuration.WithLabelValues(provider, outcome).Observe(durationSeconds)
}
