package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	metric, err := vec.GetMetricWithLabelValues(labels...)
	require.NoError(t, err)

	var m dto.Metric
	require.NoError(t, metric.Write(&m))
	return m.GetCounter().GetValue()
}

func TestMetrics_Register(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))

	m.IncUploadAttempt(ResultSuccess)
	m.ObserveUploadDuration(0.4)
	m.IncGeofenceCheck(true)
	m.IncCacheRequest(ResultHit)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, family := range families {
		names[family.GetName()] = true
	}
	for _, want := range []string{MetricUploadAttemptsTotal, MetricUploadDuration, MetricGeofenceChecksTotal, MetricCacheRequestsTotal} {
		assert.True(t, names[want], "metric %s not gathered", want)
	}

	assert.Error(t, NewMetrics().Register(reg), "duplicate registration should fail")
}

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	m.IncUploadAttempt(ResultFailure)
	m.IncUploadAttempt(ResultFailure)
	m.IncUploadAttempt(ResultSuccess)
	m.IncGeofenceCheck(false)
	m.IncGeofenceCheck(true)
	m.IncGeofenceCheck(false)
	m.IncCacheRequest(ResultMiss)

	assert.Equal(t, 2.0, counterValue(t, m.uploadAttempts, ResultFailure))
	assert.Equal(t, 1.0, counterValue(t, m.uploadAttempts, ResultSuccess))
	assert.Equal(t, 2.0, counterValue(t, m.geofenceChecks, ResultOutside))
	assert.Equal(t, 1.0, counterValue(t, m.geofenceChecks, ResultInside))
	assert.Equal(t, 1.0, counterValue(t, m.cacheRequests, ResultMiss))
	assert.Equal(t, 0.0, counterValue(t, m.cacheRequests, ResultHit))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncUploadAttempt(ResultSuccess)
		m.ObserveUploadDuration(1)
		m.IncGeofenceCheck(true)
		m.IncCacheRequest(ResultHit)
	})
}
