package metrics_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/wsd/core/factory"
	metrics "github.com/kilianp07/wsd/core/metrics"
	_ "github.com/kilianp07/wsd/infra/metrics"
)

func TestMetricsFactoryBuiltins(t *testing.T) {
	assert.Subset(t, metrics.SinkTypes(), []string{"nop", "prometheus", "influx", "kpi"})

	s, err := metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}})
	require.NoError(t, err)
	assert.IsType(t, metrics.NopSink{}, s)

	_, err = metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}, {Type: "missing"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metrics sink 1")
}

func TestNewMetricsSinkMulti(t *testing.T) {
	s, err := metrics.NewMetricsSink(nil)
	require.NoError(t, err)
	assert.IsType(t, metrics.NopSink{}, s)

	db := filepath.Join(t.TempDir(), "kpi.db")
	s, err = metrics.NewMetricsSink([]factory.ModuleConfig{
		{Type: "nop"},
		{Type: "kpi", Conf: map[string]any{"path": db}},
	})
	require.NoError(t, err)
	m, ok := s.(*metrics.MultiSink)
	require.True(t, ok, "got %T", s)
	assert.Len(t, m.Sinks, 2)
	m.Close()
}
