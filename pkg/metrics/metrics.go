package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Sync run metrics
	SyncRunsTotal      *prometheus.CounterVec
	SyncRunDuration    *prometheus.HistogramVec
	SyncRunsInProgress prometheus.Gauge
	SyncRowsProcessed  *prometheus.CounterVec
	SyncUnitsFailed    *prometheus.CounterVec

	// Platform API metrics
	PlatformAPICalls    *prometheus.CounterVec
	PlatformAPIDuration *prometheus.HistogramVec
	RetryAttempts       *prometheus.CounterVec
	RetriesExhausted    *prometheus.CounterVec

	// Thumbnail metrics
	ThumbnailResolutions *prometheus.CounterVec

	// Storage metrics
	StorageWrites *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		SyncRunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sync_runs_total",
				Help: "Total number of sync runs",
			},
			[]string{"state"},
		),

		SyncRunDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sync_run_duration_seconds",
				Help:    "Sync run duration in seconds",
				Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200},
			},
			[]string{"state"},
		),

		SyncRunsInProgress: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "sync_runs_in_progress",
				Help: "Number of sync runs currently in progress",
			},
		),

		SyncRowsProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sync_rows_processed_total",
				Help: "Total number of insight rows processed by stage",
			},
			[]string{"stage"},
		),

		SyncUnitsFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sync_units_failed_total",
				Help: "Total number of skipped units of work",
			},
			[]string{"stage", "error_type"},
		),

		PlatformAPICalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platform_api_calls_total",
				Help: "Total number of ad-platform API calls",
			},
			[]string{"api", "status"},
		),

		PlatformAPIDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "platform_api_duration_seconds",
				Help:    "Ad-platform API call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"api"},
		),

		RetryAttempts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retry_attempts_total",
				Help: "Total number of rate-limit retries",
			},
			[]string{"operation"},
		),

		RetriesExhausted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retries_exhausted_total",
				Help: "Total number of operations that hit the retry ceiling",
			},
			[]string{"operation"},
		),

		ThumbnailResolutions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "thumbnail_resolutions_total",
				Help: "Total number of thumbnail resolutions by tier",
			},
			[]string{"tier"},
		),

		StorageWrites: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storage_writes_total",
				Help: "Total number of ad-record upserts",
			},
			[]string{"status"},
		),
	}
}

// HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// Sync run metrics
func (m *Metrics) RecordSyncRun(state string, duration time.Duration) {
	m.SyncRunsTotal.WithLabelValues(state).Inc()
	m.SyncRunDuration.WithLabelValues(state).Observe(duration.Seconds())
}

// Row counts per pipeline stage
func (m *Metrics) RecordRowsProcessed(stage string, count int) {
	m.SyncRowsProcessed.WithLabelValues(stage).Add(float64(count))
}

// Skipped unit of work
func (m *Metrics) RecordUnitFailure(stage, errorType string) {
	m.SyncUnitsFailed.WithLabelValues(stage, errorType).Inc()
}

// Platform API call metrics
func (m *Metrics) RecordPlatformAPICall(api, status string, duration time.Duration) {
	m.PlatformAPICalls.WithLabelValues(api, status).Inc()
	m.PlatformAPIDuration.WithLabelValues(api).Observe(duration.Seconds())
}

// Retry metrics
func (m *Metrics) RecordRetryAttempt(operation string) {
	m.RetryAttempts.WithLabelValues(operation).Inc()
}

func (m *Metrics) RecordRetryExhausted(operation string) {
	m.RetriesExhausted.WithLabelValues(operation).Inc()
}

// Thumbnail tier outcome
func (m *Metrics) RecordThumbnailResolution(tier string) {
	m.ThumbnailResolutions.WithLabelValues(tier).Inc()
}

// Storage write outcome
func (m *Metrics) RecordStorageWrite(status string, count int) {
	m.StorageWrites.WithLabelValues(status).Add(float64(count))
}

// Sync runs in progress counter
func (m *Metrics) IncSyncRunsInProgress() {
	m.SyncRunsInProgress.Inc()
}

// Sync runs in progress counter
func (m *Metrics) DecSyncRunsInProgress() {
	m.SyncRunsInProgress.Dec()
}

// HTTP requests in flight counter
func (m *Metrics) IncHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// HTTP requests in flight counter
func (m *Metrics) DecHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}
