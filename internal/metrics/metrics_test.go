package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgoulah/assetwatch/pkg/models"
)

func TestObserveEvaluation(t *testing.T) {
	m := newMetrics(prometheus.NewRegistry())

	m.ObserveEvaluation([]models.AssetStatusRow{
		{Status: models.StatusNeededService},
		{Status: models.StatusNeededService},
		{Status: models.StatusGoodCondition},
		{},
	}, 20*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.evaluations))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.rows.WithLabelValues("Needed service")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rows.WithLabelValues("Good condition")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rows.WithLabelValues("unknown")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.rows.WithLabelValues("Incoming Service")))

	m.ObserveEvaluation([]models.AssetStatusRow{{Status: models.StatusGoodCondition}}, time.Millisecond)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.evaluations))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.rows.WithLabelValues("Needed service")))
	assert.Equal(t, len(models.StatusOrder), testutil.CollectAndCount(m.rows))
}

func TestAddPublished(t *testing.T) {
	m := newMetrics(prometheus.NewRegistry())
	m.AddPublished("mqtt", 3)
	m.AddPublished("mqtt", 0)
	m.AddPublished("home_assistant", 1)

	expected := `
# HELP assetwatch_published_rows_total Status rows published per sink.
# TYPE assetwatch_published_rows_total counter
assetwatch_published_rows_total{sink="home_assistant"} 1
assetwatch_published_rows_total{sink="mqtt"} 3
`
	require.NoError(t, testutil.CollectAndCompare(m.published, strings.NewReader(expected)))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveEvaluation(nil, time.Second)
		m.AddPublished("mqtt", 1)
	})
}

func TestNew_RegistersRuntimeCollectors(t *testing.T) {
	m := New()
	families, err := m.Registry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["go_goroutines"])
	assert.True(t, names["assetwatch_evaluations_total"])
}
