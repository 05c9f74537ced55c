// Package export writes settlement records in interchange formats.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/kilianp07/wsd/core/ledger"
)

// WriteJSON writes one JSON document per record.
func WriteJSON(w io.Writer, records []ledger.LogRecord) error {
	enc := json.NewEncoder(w)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteCSV writes one row per record and consumer, so the supplied and
// unmet columns stay flat.
func WriteCSV(w io.Writer, records []ledger.LogRecord) error {
	cw := csv.NewWriter(w)
	header := []string{"timestamp", "building", "period", "production", "total_demand", "consumer", "supplied", "unmet", "lent", "excess"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range records {
		for _, c := range consumers(r) {
			row := []string{
				r.Timestamp.Format(time.RFC3339),
				r.Building,
				strconv.Itoa(r.Period),
				formatFloat(r.Production),
				formatFloat(r.TotalDemand),
				c,
				formatFloat(r.Supplied[c]),
				formatFloat(r.Unmet[c]),
				formatFloat(r.Lent),
				formatFloat(r.Excess),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// consumers lists every consumer named in r in name order. A record without
// consumers still yields one row.
func consumers(r ledger.LogRecord) []string {
	seen := map[string]struct{}{}
	for c := range r.Supplied {
		seen[c] = struct{}{}
	}
	for c := range r.Unmet {
		seen[c] = struct{}{}
	}
	if len(seen) == 0 {
		return []string{""}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
