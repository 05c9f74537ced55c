package config

import (
	"fmt"
	"time"
)

// SimulationConfig sets the actor cadence. Durations are in milliseconds
// before TimeScale is applied.
type SimulationConfig struct {
	// Seed drives every actor's random source.
	Seed                int64   `json:"seed"`
	PredictMS           int     `json:"predict_ms"`
	DeadlineMS          int     `json:"deadline_ms"`
	SettleMS            int     `json:"settle_ms"`
	OfferMS             int     `json:"offer_ms"`
	BatteryDiscoveryMS  int     `json:"battery_discovery_ms"`
	ConsumerDiscoveryMS int     `json:"consumer_discovery_ms"`
	TimeScale           float64 `json:"time_scale"`
}

// SetDefaults applies the reference cadence.
func (c *SimulationConfig) SetDefaults() {
	if c.PredictMS == 0 {
		c.PredictMS = 9000
	}
	if c.DeadlineMS == 0 {
		c.DeadlineMS = 11000
	}
	if c.SettleMS == 0 {
		c.SettleMS = 13000
	}
	if c.OfferMS == 0 {
		c.OfferMS = 10000
	}
	if c.BatteryDiscoveryMS == 0 {
		c.BatteryDiscoveryMS = 1000
	}
	if c.ConsumerDiscoveryMS == 0 {
		c.ConsumerDiscoveryMS = 2000
	}
	if c.TimeScale == 0 {
		c.TimeScale = 1
	}
}

func (c SimulationConfig) Validate() error {
	if c.TimeScale <= 0 {
		return fmt.Errorf("simulation: time_scale must be positive")
	}
	for name, v := range map[string]int{
		"predict_ms": c.PredictMS, "deadline_ms": c.DeadlineMS, "settle_ms": c.SettleMS, "offer_ms": c.OfferMS,
	} {
		if v <= 0 {
			return fmt.Errorf("simulation: %s must be positive", name)
		}
	}
	return nil
}

// Duration converts a millisecond setting into a scaled duration.
func (c SimulationConfig) Duration(ms int) time.Duration {
	return time.Duration(float64(ms) / c.TimeScale * float64(time.Millisecond))
}

// NodeConfig restricts the actors hosted by this process. Empty means all.
type NodeConfig struct {
	Actors []string `json:"actors"`
}

// Hosts reports whether the named actor runs in this process.
func (n NodeConfig) Hosts(name string) bool {
	if len(n.Actors) == 0 {
		return true
	}
	for _, a := range n.Actors {
		if a == name {
			return true
		}
	}
	return false
}
