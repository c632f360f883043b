// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "clinical_scribe"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Session metrics
	SessionsTotal   prometheus.Counter
	SessionsActive  prometheus.Gauge
	SessionDuration prometheus.Histogram

	// Transcript metrics
	SegmentsPartial   prometheus.Counter
	SegmentsCommitted prometheus.Counter
	StreamErrors      *prometheus.CounterVec

	// Translation metrics
	TranslationLatency   prometheus.Histogram
	TranslationFallbacks prometheus.Counter
	TranslationsStale    prometheus.Counter

	// Extraction chunk metrics
	ChunksDispatched  prometheus.Counter
	ChunksSuppressed  prometheus.Counter
	ChunksFailed      prometheus.Counter
	ExtractionLatency prometheus.Histogram

	// Auto-fill metrics
	FieldUpdatesApplied  prometheus.Counter
	FieldUpdatesFiltered prometheus.Counter
	ManualOverrides      prometheus.Counter

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		SessionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of recording sessions started",
		}),
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently active recording sessions",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Duration of recording sessions in seconds",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200, 1800},
		}),

		SegmentsPartial: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_partial_total",
			Help:      "Total number of partial transcript segments received",
		}),
		SegmentsCommitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_committed_total",
			Help:      "Total number of committed transcript segments",
		}),
		StreamErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_errors_total",
			Help:      "Total number of speech stream errors",
		}, []string{"kind"}),

		TranslationLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "translation_latency_seconds",
			Help:      "Translation call latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),
		TranslationFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "translation_fallbacks_total",
			Help:      "Total number of segments that fell back to untranslated text",
		}),
		TranslationsStale: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "translations_stale_total",
			Help:      "Total number of translation responses discarded as stale",
		}),

		ChunksDispatched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_dispatched_total",
			Help:      "Total number of transcript chunks dispatched for extraction",
		}),
		ChunksSuppressed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_suppressed_total",
			Help:      "Total number of duplicate chunk dispatches suppressed",
		}),
		ChunksFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_failed_total",
			Help:      "Total number of extraction chunk calls that failed",
		}),
		ExtractionLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_latency_seconds",
			Help:      "Extraction call latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),

		FieldUpdatesApplied: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "field_updates_applied_total",
			Help:      "Total number of auto-filled field updates applied",
		}),
		FieldUpdatesFiltered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "field_updates_filtered_total",
			Help:      "Total number of field updates dropped by the manual-override filter",
		}),
		ManualOverrides: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "manual_overrides_total",
			Help:      "Total number of fields marked as manually overridden",
		}),

		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
	}
}

// RecordSessionStart records a new session starting.
func (m *Metrics) RecordSessionStart() {
	m.SessionsTotal.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a session ending.
func (m *Metrics) RecordSessionEnd(durationSeconds float64) {
	m.SessionsActive.Dec()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordPartialSegment records a partial transcript segment received.
func (m *Metrics) RecordPartialSegment() {
	m.SegmentsPartial.Inc()
}

// RecordCommittedSegment records a committed transcript segment.
func (m *Metrics) RecordCommittedSegment() {
	m.SegmentsCommitted.Inc()
}

// RecordStreamError records a speech stream error by kind.
func (m *Metrics) RecordStreamError(kind string) {
	m.StreamErrors.WithLabelValues(kind).Inc()
}

// RecordTranslation records a translation call outcome.
func (m *Metrics) RecordTranslation(fellBack bool, latencySeconds float64) {
	m.TranslationLatency.Observe(latencySeconds)
	if fellBack {
		m.TranslationFallbacks.Inc()
	}
}

// RecordStaleTranslation records a translation response discarded as stale.
func (m *Metrics) RecordStaleTranslation() {
	m.TranslationsStale.Inc()
}

// RecordChunkDispatched records a chunk handed to the extraction service.
func (m *Metrics) RecordChunkDispatched() {
	m.ChunksDispatched.Inc()
}

// RecordChunkSuppressed records a duplicate chunk dispatch being suppressed.
func (m *Metrics) RecordChunkSuppressed() {
	m.ChunksSuppressed.Inc()
}

// RecordChunkResult records an extraction call completing.
func (m *Metrics) RecordChunkResult(err error, latencySeconds float64) {
	m.ExtractionLatency.Observe(latencySeconds)
	if err != nil {
		m.ChunksFailed.Inc()
	}
}

// RecordFieldUpdates records applied and override-filtered field counts for a chunk.
func (m *Metrics) RecordFieldUpdates(applied, filtered int) {
	m.FieldUpdatesApplied.Add(float64(applied))
	m.FieldUpdatesFiltered.Add(float64(filtered))
}

// RecordManualOverride records a field graduating to manual override.
func (m *Metrics) RecordManualOverride() {
	m.ManualOverrides.Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}
