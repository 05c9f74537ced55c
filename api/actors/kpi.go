package actors

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/kilianp07/wsd/core/metrics/kpi"
)

// NewKPIHandler exposes daily building KPIs via GET /api/buildings/{name}/kpis.
func NewKPIHandler(store kpi.Store) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/buildings/{name}/kpis", func(w http.ResponseWriter, r *http.Request) {
		start, err := parseDay(r.URL.Query().Get("start"))
		if err != nil {
			http.Error(w, "start: "+err.Error(), http.StatusBadRequest)
			return
		}
		end, err := parseDay(r.URL.Query().Get("end"))
		if err != nil {
			http.Error(w, "end: "+err.Error(), http.StatusBadRequest)
			return
		}
		if end.IsZero() {
			end = time.Now()
		}
		recs, err := store.Query(r.PathValue("name"), start, end)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		type out struct {
			Date            string  `json:"date"`
			Demand          float64 `json:"demand"`
			Supplied        float64 `json:"supplied"`
			Imported        float64 `json:"imported"`
			Excess          float64 `json:"excess"`
			SelfSufficiency float64 `json:"self_sufficiency"`
			ImportRatio     float64 `json:"import_ratio"`
		}
		res := make([]out, len(recs))
		for i, rec := range recs {
			res[i] = out{
				Date:            rec.Date.Format("2006-01-02"),
				Demand:          rec.Demand,
				Supplied:        rec.Supplied,
				Imported:        rec.Imported,
				Excess:          rec.Excess,
				SelfSufficiency: rec.SelfSufficiency(),
				ImportRatio:     rec.ImportRatio(),
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(res)
	})
	return mux
}

// parseDay accepts a calendar date or an RFC3339 instant. Empty is zero.
func parseDay(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, v)
}
