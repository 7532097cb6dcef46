package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the Prometheus metrics of the retrieval service, grouped by
// registry lookups, document fetch attempts, per-record outcomes and batches.
type Metrics struct {
	// RegistryLookups counts registry lookups by result ("found", "not_found",
	// "map_failed", "cache_hit").
	RegistryLookups *prometheus.CounterVec

	// RegistryDuration observes registry round-trip time in seconds.
	RegistryDuration prometheus.Histogram

	// FetchAttempts counts document fetch attempts by identifier kind and result
	// ("succeeded", "transport_error", "invalid_document").
	FetchAttempts *prometheus.CounterVec

	// FetchDuration observes document fetch duration in seconds by identifier kind.
	FetchDuration *prometheus.HistogramVec

	// DocumentBytes counts bytes of validated documents written to disk.
	DocumentBytes prometheus.Counter

	// RecordsProcessed counts records by terminal state.
	RecordsProcessed *prometheus.CounterVec

	// BatchesCompleted counts finished batch runs.
	BatchesCompleted prometheus.Counter

	// BatchDuration observes batch run duration in seconds.
	BatchDuration prometheus.Histogram
}

// NewMetrics creates Metrics registered with the default Prometheus registry.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegistry(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates Metrics registered with reg.
func NewMetricsWithRegistry(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RegistryLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_lookups_total",
			Help:      "Total number of registry lookups by result",
		}, []string{"result"}),
		RegistryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "registry_lookup_duration_seconds",
			Help:      "Duration of registry lookups in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		FetchAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_attempts_total",
			Help:      "Total number of document fetch attempts by identifier kind and result",
		}, []string{"kind", "result"}),
		FetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of document fetch attempts in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"kind"}),
		DocumentBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_bytes_total",
			Help:      "Total bytes of validated documents written",
		}),
		RecordsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_processed_total",
			Help:      "Total number of records processed by terminal state",
		}, []string{"state"}),
		BatchesCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_completed_total",
			Help:      "Total number of batch runs completed",
		}),
		BatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Duration of batch runs in seconds",
			Buckets:   []float64{1, 10, 30, 60, 300, 600, 1800, 3600, 7200},
		}),
	}
}

// RecordRegistryLookup records one registry lookup.
func (m *Metrics) RecordRegistryLookup(result string, d time.Duration) {
	m.RegistryLookups.WithLabelValues(result).Inc()
	m.RegistryDuration.Observe(d.Seconds())
}

// RecordFetchAttempt records one document fetch attempt.
func (m *Metrics) RecordFetchAttempt(kind, result string, d time.Duration) {
	m.FetchAttempts.WithLabelValues(kind, result).Inc()
	m.FetchDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// RecordDocumentBytes adds n bytes of validated document content.
func (m *Metrics) RecordDocumentBytes(n int64) {
	m.DocumentBytes.Add(float64(n))
}

// RecordRecordProcessed records a record reaching a terminal state.
func (m *Metrics) RecordRecordProcessed(state string) {
	m.RecordsProcessed.WithLabelValues(state).Inc()
}

// RecordBatchCompleted records a finished batch.
func (m *Metrics) RecordBatchCompleted(d time.Duration) {
	m.BatchesCompleted.Inc()
	m.BatchDuration.Observe(d.Seconds())
}
