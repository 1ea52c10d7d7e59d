package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_ObserveIngestion(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveIngestion("success", 1000, 3)
	m.ObserveIngestion("success", 500, 1)
	m.ObserveIngestion("quota_exceeded", 9999, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ingestionsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ingestionsTotal.WithLabelValues("quota_exceeded")))
	assert.Equal(t, 1500.0, testutil.ToFloat64(m.ingestedBytes))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.chunksTotal))
}

func TestMetrics_ObserveEmbeddingAndRelease(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveEmbedding(nil, 10*time.Millisecond)
	m.ObserveEmbedding(errors.New("offline"), time.Millisecond)
	m.ObserveRelease(nil)
	m.ObserveStage("parsing", time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.embeddingRequests.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.embeddingRequests.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.quotaReleases.WithLabelValues("ok")))

	count, err := testutil.GatherAndCount(reg, "nexus_stage_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveIngestion("success", 1, 1)
		m.ObserveStage("parsing", time.Second)
		m.ObserveEmbedding(nil, time.Second)
		m.ObserveRelease(nil)
	})
}

func TestNew_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
