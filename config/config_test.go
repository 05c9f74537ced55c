package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, dir, name, data string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := write(t, t.TempDir(), "config.yaml", `simulation:
  seed: 7
  time_scale: 10
buildings:
  - name: B1
    production: 30
    estates: [E1]
  - name: B2
    production: 20
    estates: [E1, E2]
    predictor:
      type: jitter
      conf:
        spread: 0.1
batteries:
  - name: BAT1
    building: B1
    total_capacity: 100
consumers:
  - name: C1
    building: B1
    provider: P1
    demand: 5
transport:
  kind: mqtt
  encoding: text
  topic_prefix: market
  mqtt:
    broker: "tcp://localhost:1883"
metrics:
  listen_addr: ":9100"
  sinks:
    - type: "nop"
ledger:
  backend: sqlite
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, int64(7), cfg.Simulation.Seed)
	assert.Equal(t, 900*time.Millisecond, cfg.Simulation.Duration(cfg.Simulation.PredictMS))
	require.Len(t, cfg.Buildings, 2)
	assert.Equal(t, []string{"E1", "E2"}, cfg.Buildings[1].Estates)
	assert.Equal(t, "jitter", cfg.Buildings[1].Predictor.Type)
	assert.Equal(t, 0.1, cfg.Buildings[1].Predictor.Conf["spread"])
	assert.Equal(t, 0.7, cfg.Batteries[0].InitialCapacity)
	assert.Equal(t, 0.05, cfg.Batteries[0].Drift)
	assert.Equal(t, "P1", cfg.Consumers[0].Provider)
	assert.Equal(t, "market", cfg.Transport.MQTT.TopicPrefix)
	assert.Equal(t, "text", cfg.Transport.Encoding)
	require.Len(t, cfg.Metrics.Sinks, 1)
	assert.Equal(t, "nop", cfg.Metrics.Sinks[0].Type)
	assert.Equal(t, "ledger.db", cfg.Ledger.Path)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadEnvOverride(t *testing.T) {
	path := write(t, t.TempDir(), "config.json", `{"log":{"level":"info"}}`)
	t.Setenv("WSD_LOG__LEVEL", "debug")
	t.Setenv("WSD_LEDGER__BACKEND", "jsonl")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "jsonl", cfg.Ledger.Backend)
	assert.Equal(t, "ledger.jsonl", cfg.Ledger.Path)
	assert.Equal(t, "local", cfg.Transport.Kind)
}

func TestLoadRejectsUnsupportedFormat(t *testing.T) {
	_, err := Load(write(t, t.TempDir(), "config.toml", ""))
	assert.Error(t, err)
}

func TestValidateActors(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want string
	}{
		{"duplicate", Config{Buildings: []BuildingConfig{{Name: "B1"}, {Name: "B1"}}}, "duplicate actor name"},
		{"battery building", Config{
			Buildings: []BuildingConfig{{Name: "B1"}},
			Batteries: []BatteryConfig{{Name: "BAT", Building: "B9", TotalCapacity: 10}},
		}, `unknown building "B9"`},
		{"consumer building", Config{
			Consumers: []ConsumerConfig{{Name: "C1", Building: "B1", Provider: "P"}},
		}, `unknown building "B1"`},
		{"estate names a building", Config{
			Buildings: []BuildingConfig{{Name: "B1", Estates: []string{"B2"}}, {Name: "B2"}},
		}, `estate "B2" is the name of another building`},
		{"node actor", Config{Node: NodeConfig{Actors: []string{"X"}}}, `unknown actor "X"`},
		{"capacity", Config{
			Buildings: []BuildingConfig{{Name: "B1"}},
			Batteries: []BatteryConfig{{Name: "BAT", Building: "B1"}},
		}, "total_capacity must be positive"},
		{"transport", Config{Transport: TransportConfig{Kind: "carrier-pigeon"}}, "unknown kind"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.cfg.SetDefaults()
			err := tc.cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestSharedEstateIsValid(t *testing.T) {
	cfg := Config{Buildings: []BuildingConfig{
		{Name: "B1", Estates: []string{"E1", "B1"}},
		{Name: "B2", Estates: []string{"E1"}},
	}}
	cfg.SetDefaults()
	assert.NoError(t, cfg.Validate())
}

func TestNodeHosts(t *testing.T) {
	assert.True(t, NodeConfig{}.Hosts("B1"))
	n := NodeConfig{Actors: []string{"B1"}}
	assert.True(t, n.Hosts("B1"))
	assert.False(t, n.Hosts("C1"))
}
