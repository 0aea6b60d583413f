package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := MustNewMetrics(reg)

	m.ObserveGeneration("text", "ok", 120*time.Millisecond)
	m.ObserveGeneration("text", "ok", 80*time.Millisecond)
	m.ObserveGeneration("image", "error", time.Second)
	m.ReportGenerated("ok")
	m.StageEntered("diet")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.generationCalls.WithLabelValues("text", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.generationCalls.WithLabelValues("image", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reportsGenerated.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stageTransitions.WithLabelValues("diet")))
}

func TestMustNewMetricsReusesRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := MustNewMetrics(reg)
	second := MustNewMetrics(reg)
	require.NotNil(t, second)

	first.StageEntered("plan")
	assert.Equal(t, 1.0, testutil.ToFloat64(second.stageTransitions.WithLabelValues("plan")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveGeneration("text", "ok", time.Second)
		m.ReportGenerated("ok")
		m.StageEntered("intro")
	})
}
