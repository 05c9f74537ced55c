package ledger

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary aggregates the settlements of one building.
type Summary struct {
	Building string  `json:"building"`
	Periods  int     `json:"periods"`
	Demand   float64 `json:"demand"`
	Supplied float64 `json:"supplied"`
	Unmet    float64 `json:"unmet"`
	Imported float64 `json:"imported"`
	Excess   float64 `json:"excess"`
	// MeanPrice is the volume-weighted price of imported medium.
	MeanPrice float64 `json:"mean_price"`
	// Coverage is the mean and spread of the per-period supplied/demand ratio.
	CoverageMean   float64 `json:"coverage_mean"`
	CoverageStdDev float64 `json:"coverage_stddev"`
}

// Summarize groups records by building, ordered by building name.
func Summarize(records []LogRecord) []Summary {
	byBuilding := map[string][]LogRecord{}
	for _, r := range records {
		byBuilding[r.Building] = append(byBuilding[r.Building], r)
	}
	names := make([]string, 0, len(byBuilding))
	for n := range byBuilding {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]Summary, 0, len(names))
	for _, n := range names {
		out = append(out, summarize(n, byBuilding[n]))
	}
	return out
}

func summarize(building string, records []LogRecord) Summary {
	s := Summary{Building: building, Periods: len(records)}
	var demand, supplied, unmet, excess, coverage []float64
	var amounts, prices []float64
	for _, r := range records {
		sup := r.SuppliedTotal()
		demand = append(demand, r.TotalDemand)
		supplied = append(supplied, sup)
		excess = append(excess, r.Excess)
		var u float64
		for _, v := range r.Unmet {
			u += v
		}
		unmet = append(unmet, u)
		if r.TotalDemand > 0 {
			coverage = append(coverage, sup/r.TotalDemand)
		}
		for _, t := range r.Accepted {
			amounts = append(amounts, t.Amount)
			prices = append(prices, t.Price)
		}
	}
	s.Demand = floats.Sum(demand)
	s.Supplied = floats.Sum(supplied)
	s.Unmet = floats.Sum(unmet)
	s.Excess = floats.Sum(excess)
	s.Imported = floats.Sum(amounts)
	if s.Imported > 0 {
		s.MeanPrice = stat.Mean(prices, amounts)
	}
	switch {
	case len(coverage) > 1:
		s.CoverageMean, s.CoverageStdDev = stat.MeanStdDev(coverage, nil)
	case len(coverage) == 1:
		s.CoverageMean = coverage[0]
	}
	return s
}
