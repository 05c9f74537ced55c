// Package kpibackfill rebuilds daily building KPIs from settlement records.
package kpibackfill

import (
	"fmt"

	"github.com/kilianp07/wsd/core/ledger"
	"github.com/kilianp07/wsd/core/metrics/kpi"
)

// Backfill processes historical settlement records and populates the store.
func Backfill(store kpi.Store, history []ledger.LogRecord) error {
	for _, h := range history {
		rec := kpi.Record{
			Building: h.Building,
			Date:     kpi.Day(h.Timestamp),
			Demand:   h.TotalDemand,
			Supplied: h.SuppliedTotal(),
			Excess:   h.Excess,
		}
		for _, t := range h.Accepted {
			rec.Imported += t.Amount
		}
		if err := store.Add(rec); err != nil {
			return fmt.Errorf("%s period %d: %w", h.Building, h.Period, err)
		}
	}
	return nil
}
