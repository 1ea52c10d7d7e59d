// Package metrics exposes Prometheus instrumentation for the ingestion pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "nexus"

// Metrics holds the pipeline collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	ingestionsTotal   *prometheus.CounterVec
	ingestedBytes     prometheus.Counter
	chunksTotal       prometheus.Counter
	stageDuration     *prometheus.HistogramVec
	embeddingRequests *prometheus.CounterVec
	embeddingDuration prometheus.Histogram
	quotaReleases     *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ingestionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestions_total",
			Help:      "Total ingestion requests by outcome",
		}, []string{"outcome"}),

		ingestedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingested_bytes_total",
			Help:      "Total bytes of successfully ingested files",
		}),

		chunksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_stored_total",
			Help:      "Total chunk records stored",
		}),

		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each ingestion stage",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),

		embeddingRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_requests_total",
			Help:      "Total embedding model calls",
		}, []string{"status"}),

		embeddingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding model call duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		quotaReleases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_releases_total",
			Help:      "Reservations returned after a failed store",
		}, []string{"status"}),
	}

	reg.MustRegister(
		m.ingestionsTotal, m.ingestedBytes, m.chunksTotal,
		m.stageDuration, m.embeddingRequests, m.embeddingDuration,
		m.quotaReleases,
	)
	return m
}

// ObserveIngestion records the outcome of one ingestion. outcome is "success"
// or the failure kind.
func (m *Metrics) ObserveIngestion(outcome string, sizeBytes int64, chunks int) {
	if m == nil {
		return
	}
	m.ingestionsTotal.WithLabelValues(outcome).Inc()
	if outcome == "success" {
		m.ingestedBytes.Add(float64(sizeBytes))
		m.chunksTotal.Add(float64(chunks))
	}
}

// ObserveStage records how long a pipeline stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveEmbedding records one embedding call.
func (m *Metrics) ObserveEmbedding(err error, d time.Duration) {
	if m == nil {
		return
	}
	m.embeddingRequests.WithLabelValues(status(err)).Inc()
	m.embeddingDuration.Observe(d.Seconds())
}

// ObserveRelease records a compensating quota release.
func (m *Metrics) ObserveRelease(err error) {
	if m == nil {
		return
	}
	m.quotaReleases.WithLabelValues(status(err)).Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
