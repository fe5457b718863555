package grmetrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAddsAllCollectorsExactlyOnce(t *testing.T) {
	m := New()
	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))

	err := m.Register(reg)
	assert.Error(t, err, "re-registering the same collectors against the same registry must fail")
}

func TestActionsExecutedCounterIncrements(t *testing.T) {
	m := New()
	m.ActionsExecuted.WithLabelValues("PurchaseOrder", "escalate", "success").Inc()
	m.ActionsExecuted.WithLabelValues("PurchaseOrder", "escalate", "success").Inc()

	metric := &dto.Metric{}
	require.NoError(t, m.ActionsExecuted.WithLabelValues("PurchaseOrder", "escalate", "success").Write(metric))
	assert.Equal(t, 2.0, metric.GetCounter().GetValue())
}

func TestCascadeDepthHistogramObserves(t *testing.T) {
	m := New()
	m.CascadeDepthReached.Observe(3)

	metric := &dto.Metric{}
	require.NoError(t, m.CascadeDepthReached.(prometheus.Histogram).Write(metric))
	assert.Equal(t, uint64(1), metric.GetHistogram().GetSampleCount())
}

func TestBatchTaskDurationLabeledByOutcome(t *testing.T) {
	m := New()
	m.BatchTaskDuration.WithLabelValues("failed").Observe(0.5)

	metric := &dto.Metric{}
	require.NoError(t, m.BatchTaskDuration.WithLabelValues("failed").Write(metric))
	assert.Equal(t, uint64(1), metric.GetHistogram().GetSampleCount())
}
