package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	return NewMetricsWithRegistry("test", prometheus.NewRegistry())
}

func TestNewMetrics(t *testing.T) {
	// promauto registers with the default registry, so use a unique namespace.
	m := NewMetrics("test_pubretrieve_new")

	assert.NotNil(t, m.RegistryLookups)
	assert.NotNil(t, m.RegistryDuration)
	assert.NotNil(t, m.FetchAttempts)
	assert.NotNil(t, m.FetchDuration)
	assert.NotNil(t, m.DocumentBytes)
	assert.NotNil(t, m.RecordsProcessed)
	assert.NotNil(t, m.BatchesCompleted)
	assert.NotNil(t, m.BatchDuration)
}

func TestRecordRegistryLookup(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordRegistryLookup("found", 200*time.Millisecond)
	m.RecordRegistryLookup("not_found", time.Second)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.RegistryLookups.WithLabelValues("found")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RegistryLookups.WithLabelValues("not_found")))

	count, err := getHistogramSampleCount(m.RegistryDuration)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
}

func TestRecordFetchAttempt(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordFetchAttempt("doi", AttemptTransportError, time.Second)
	m.RecordFetchAttempt("doi", AttemptSucceeded, 2*time.Second)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.FetchAttempts.WithLabelValues("doi", AttemptTransportError)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.FetchAttempts.WithLabelValues("doi", AttemptSucceeded)))
}

func TestRecordDocumentBytes(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordDocumentBytes(1024)
	m.RecordDocumentBytes(1024)
	assert.Equal(t, float64(2048), testutil.ToFloat64(m.DocumentBytes))
}

func TestRecordBatchCompleted(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordRecordProcessed("succeeded")
	m.RecordBatchCompleted(time.Minute)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.RecordsProcessed.WithLabelValues("succeeded")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.BatchesCompleted))

	count, err := getHistogramSampleCount(m.BatchDuration)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

// getHistogramSampleCount extracts the sample count from a histogram.
func getHistogramSampleCount(h prometheus.Histogram) (uint64, error) {
	var metric dto.Metric
	if err := h.Write(&metric); err != nil {
		return 0, err
	}
	return metric.GetHistogram().GetSampleCount(), nil
}
