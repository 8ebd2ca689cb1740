// Package metrics provides Prometheus metrics for uploads, geofence checks and the query cache.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricUploadAttemptsTotal = "media_upload_attempts_total"
	MetricUploadDuration      = "media_upload_duration_seconds"
	MetricGeofenceChecksTotal = "geofence_checks_total"
	MetricCacheRequestsTotal  = "query_cache_requests_total"
)

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultInside  = "inside"
	ResultOutside = "outside"
	ResultHit     = "hit"
	ResultMiss    = "miss"
	ResultError   = "error"
)

// Metrics contains the service's Prometheus collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	uploadAttempts *prometheus.CounterVec
	uploadDuration prometheus.Histogram
	geofenceChecks *prometheus.CounterVec
	cacheRequests  *prometheus.CounterVec
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		uploadAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricUploadAttemptsTotal,
				Help: "Total number of media upload attempts by result",
			},
			[]string{"result"},
		),
		uploadDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    MetricUploadDuration,
				Help:    "Histogram of complete media upload duration in seconds, retries included",
				Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 20.0},
			},
		),
		geofenceChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricGeofenceChecksTotal,
				Help: "Total number of point-in-area checks by result",
			},
			[]string{"result"},
		),
		cacheRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricCacheRequestsTotal,
				Help: "Total number of query cache lookups by result",
			},
			[]string{"result"},
		),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns all Prometheus collectors.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.uploadAttempts,
		m.uploadDuration,
		m.geofenceChecks,
		m.cacheRequests,
	}
}

// IncUploadAttempt counts one upload attempt with ResultSuccess or ResultFailure.
func (m *Metrics) IncUploadAttempt(result string) {
	if m == nil {
		return
	}
	m.uploadAttempts.WithLabelValues(result).Inc()
}

// ObserveUploadDuration records how long a whole upload took.
func (m *Metrics) ObserveUploadDuration(seconds float64) {
	if m == nil {
		return
	}
	m.uploadDuration.Observe(seconds)
}

// IncGeofenceCheck counts a containment check.
func (m *Metrics) IncGeofenceCheck(inside bool) {
	if m == nil {
		return
	}
	result := ResultOutside
	if inside {
		result = ResultInside
	}
	m.geofenceChecks.WithLabelValues(result).Inc()
}

// IncCacheRequest counts a cache lookup with ResultHit, ResultMiss or ResultError.
func (m *Metrics) IncCacheRequest(result string) {
	if m == nil {
		return
	}
	m.cacheRequests.WithLabelValues(result).Inc()
}
