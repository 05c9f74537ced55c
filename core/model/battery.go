package model

import (
	"fmt"
	"math/rand"
)

// BatteryState is the charge band of a battery.
type BatteryState int

const (
	RequestMedium BatteryState = iota
	StoreMedium
	SendMedium
	ExcessMedium
)

var batteryStateNames = [...]string{"REQUEST_MEDIUM", "STORE_MEDIUM", "SEND_MEDIUM", "EXCESS_MEDIUM"}

func (s BatteryState) String() string {
	if s < RequestMedium || s > ExcessMedium {
		return "unknown"
	}
	return batteryStateNames[s]
}

// ParseBatteryState returns the state named s.
func ParseBatteryState(s string) (BatteryState, error) {
	for i, n := range batteryStateNames {
		if n == s {
			return BatteryState(i), nil
		}
	}
	return 0, fmt.Errorf("unknown battery state %q", s)
}

// Valid reports whether s is one of the four bands.
func (s BatteryState) Valid() bool { return s >= RequestMedium && s <= ExcessMedium }

// StateFor maps a capacity fraction to its band. Lower bounds are inclusive.
func StateFor(capacity float64) BatteryState {
	switch {
	case capacity < 0.1:
		return RequestMedium
	case capacity < 0.5:
		return StoreMedium
	case capacity < 0.9:
		return SendMedium
	default:
		return ExcessMedium
	}
}

// PriceBand is a closed price interval.
type PriceBand struct {
	Low  float64
	High float64
}

// Sample draws a price uniformly from the band.
func (b PriceBand) Sample(rng *rand.Rand) float64 {
	if b.High <= b.Low {
		return b.Low
	}
	return b.Low + rng.Float64()*(b.High-b.Low)
}

// Band returns the price interval quoted in state s.
func (s BatteryState) Band() PriceBand {
	switch s {
	case RequestMedium:
		return PriceBand{Low: 10000, High: 10000}
	case StoreMedium:
		return PriceBand{Low: 0.4, High: 1.0}
	case SendMedium:
		return PriceBand{Low: 0.1, High: 0.5}
	default:
		return PriceBand{Low: 0.01, High: 0.1}
	}
}

// ExcessPercent is the share of total capacity offered when reserving.
func (s BatteryState) ExcessPercent() float64 {
	switch s {
	case RequestMedium:
		return 0.01
	case StoreMedium:
		return 0.02
	case SendMedium:
		return 0.05
	default:
		return 0.10
	}
}

// Excess returns the amount a battery in the band of capacity may lend out:
// total*pct when capacity exceeds pct, 0 otherwise.
func Excess(capacity, total float64) float64 {
	pct := StateFor(capacity).ExcessPercent()
	if capacity > pct {
		return total * pct
	}
	return 0
}

func (s BatteryState) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("unknown battery state %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *BatteryState) UnmarshalText(b []byte) error {
	v, err := ParseBatteryState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
