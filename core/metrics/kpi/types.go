package kpi

import "time"

// Record aggregates the market outcome of a building for one day.
type Record struct {
	Building string
	Date     time.Time
	Demand   float64
	Supplied float64
	// Imported is medium bought from neighbours and the battery.
	Imported float64
	Excess   float64
}

// SelfSufficiency is the share of demand met inside the building's market.
func (r Record) SelfSufficiency() float64 {
	if r.Demand == 0 {
		if r.Supplied == 0 {
			return 0
		}
		return 1
	}
	return r.Supplied / r.Demand
}

// ImportRatio is the share of supplied medium that came from peers.
func (r Record) ImportRatio() float64 {
	if r.Supplied == 0 {
		return 0
	}
	return r.Imported / r.Supplied
}
