package metrics_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	metrics "github.com/kilianp07/wsd/core/metrics"
)

func TestMetricsConfigDecodeYAML(t *testing.T) {
	data := `listen_addr: ":9090"
sinks:
  - type: nop
  - type: kpi
`
	var cfg metrics.Config
	require.NoError(t, yaml.Unmarshal([]byte(data), &cfg))
	assert.Equal(t, ":9090", cfg.ListenAddr)
	require.Len(t, cfg.Sinks, 2)
	assert.Equal(t, "kpi", cfg.Sinks[1].Type)
}

func TestMetricsConfigDecodeJSONInvalid(t *testing.T) {
	var cfg metrics.Config
	require.NoError(t, json.Unmarshal([]byte(`{"sinks":[{"type":"missing"}]}`), &cfg))
	_, err := metrics.NewMetricsSink(cfg.Sinks)
	assert.Error(t, err)
}
