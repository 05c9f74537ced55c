package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/wsd/core/metrics"
)

// EnvPrefix marks environment variables overriding file values.
// WSD_TRANSPORT__MQTT__BROKER sets transport.mqtt.broker.
const EnvPrefix = "WSD_"

type Config struct {
	Simulation SimulationConfig `json:"simulation"`
	Node       NodeConfig       `json:"node"`
	Buildings  []BuildingConfig `json:"buildings"`
	Batteries  []BatteryConfig  `json:"batteries"`
	Consumers  []ConsumerConfig `json:"consumers"`
	Records    RecordsConfig    `json:"records"`
	Transport  TransportConfig  `json:"transport"`
	Metrics    metrics.Config   `json:"metrics"`
	Ledger     LedgerConfig     `json:"ledger"`
	API        APIConfig        `json:"api"`
	Sentry     SentryConfig     `json:"sentry"`
	Log        LogConfig        `json:"log"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	if cfg.Records.Dir != "" {
		recs, err := LoadRecords(cfg.Records.Dir)
		if err != nil {
			return nil, err
		}
		cfg.Buildings = append(cfg.Buildings, recs.Buildings...)
		cfg.Batteries = append(cfg.Batteries, recs.Batteries...)
		cfg.Consumers = append(cfg.Consumers, recs.Consumers...)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.Simulation.SetDefaults()
	for i := range c.Buildings {
		c.Buildings[i].SetDefaults()
	}
	for i := range c.Batteries {
		c.Batteries[i].SetDefaults()
	}
	c.Transport.SetDefaults()
	c.Ledger.SetDefaults()
	c.Log.SetDefaults()
}

// Validate checks every section and the references between actors.
func (c Config) Validate() error {
	var errs []error
	errs = append(errs, c.Simulation.Validate(), c.Transport.Validate(), c.Ledger.Validate(), c.Log.Validate(), c.Sentry.Validate())
	errs = append(errs, c.validateActors())
	return errors.Join(errs...)
}

func (c Config) validateActors() error {
	var errs []error
	names := map[string]bool{}
	unique := func(name string) {
		if names[name] {
			errs = append(errs, fmt.Errorf("duplicate actor name %q", name))
		}
		names[name] = true
	}
	buildings := map[string]bool{}
	for _, b := range c.Buildings {
		if err := b.Validate(); err != nil {
			errs = append(errs, err)
		}
		unique(b.Name)
		buildings[b.Name] = true
	}
	// Building names and estate ids share one registry key space.
	for _, b := range c.Buildings {
		for _, e := range b.Estates {
			if buildings[e] && e != b.Name {
				errs = append(errs, fmt.Errorf("building %s: estate %q is the name of another building", b.Name, e))
			}
		}
	}
	for _, b := range c.Batteries {
		if err := b.Validate(); err != nil {
			errs = append(errs, err)
		}
		unique(b.Name)
		if !buildings[b.Building] {
			errs = append(errs, fmt.Errorf("battery %s: unknown building %q", b.Name, b.Building))
		}
	}
	for _, cs := range c.Consumers {
		if err := cs.Validate(); err != nil {
			errs = append(errs, err)
		}
		unique(cs.Name)
		if !buildings[cs.Building] {
			errs = append(errs, fmt.Errorf("consumer %s: unknown building %q", cs.Name, cs.Building))
		}
	}
	for _, n := range c.Node.Actors {
		if !names[n] {
			errs = append(errs, fmt.Errorf("node: unknown actor %q", n))
		}
	}
	return errors.Join(errs...)
}
