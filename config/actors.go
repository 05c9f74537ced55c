package config

import (
	"fmt"

	"github.com/kilianp07/wsd/core/factory"
)

// BuildingConfig describes a building and the estates it trades in.
type BuildingConfig struct {
	Name       string   `json:"name"`
	Production float64  `json:"production"`
	Estates    []string `json:"estates"`
	// Predictor selects the production policy; empty means fixed.
	Predictor factory.ModuleConfig `json:"predictor"`
}

func (c *BuildingConfig) SetDefaults() {}

func (c BuildingConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("building: name is required")
	}
	if c.Production < 0 {
		return fmt.Errorf("building %s: negative production", c.Name)
	}
	return nil
}

// BatteryConfig describes a battery attached to a building.
type BatteryConfig struct {
	Name            string  `json:"name"`
	Building        string  `json:"building"`
	TotalCapacity   int     `json:"total_capacity"`
	InitialCapacity float64 `json:"initial_capacity"`
	Drift           float64 `json:"drift"`
}

func (c *BatteryConfig) SetDefaults() {
	if c.InitialCapacity == 0 {
		c.InitialCapacity = 0.7
	}
	if c.Drift == 0 {
		c.Drift = 0.05
	}
}

func (c BatteryConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("battery: name is required")
	}
	if c.TotalCapacity <= 0 {
		return fmt.Errorf("battery %s: total_capacity must be positive", c.Name)
	}
	if c.InitialCapacity < 0 || c.InitialCapacity > 1 {
		return fmt.Errorf("battery %s: initial_capacity outside [0,1]", c.Name)
	}
	if c.Drift < 0 {
		return fmt.Errorf("battery %s: negative drift", c.Name)
	}
	return nil
}

// ConsumerConfig describes a consumer living in a building.
type ConsumerConfig struct {
	Name     string  `json:"name"`
	Building string  `json:"building"`
	Provider string  `json:"provider"`
	Demand   float64 `json:"demand"`
	// ProviderPrice is sampled when zero.
	ProviderPrice float64              `json:"provider_price"`
	Predictor     factory.ModuleConfig `json:"predictor"`
}

func (c ConsumerConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("consumer: name is required")
	}
	if c.Provider == "" {
		return fmt.Errorf("consumer %s: provider is required", c.Name)
	}
	if c.Demand < 0 || c.ProviderPrice < 0 {
		return fmt.Errorf("consumer %s: negative demand or price", c.Name)
	}
	return nil
}
