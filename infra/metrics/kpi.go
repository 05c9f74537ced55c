package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/wsd/core/events"
	coremetrics "github.com/kilianp07/wsd/core/metrics"
	"github.com/kilianp07/wsd/core/metrics/kpi"
)

// KPISink aggregates settlements into daily per-building KPIs.
type KPISink struct {
	store       kpi.Store
	sufficiency *prometheus.GaugeVec
	imports     *prometheus.GaugeVec
}

// NewKPISink creates a sink with Prometheus gauges registered on reg.
func NewKPISink(store kpi.Store, reg prometheus.Registerer) (*KPISink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	suff := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "building_self_sufficiency_ratio",
		Help: "Daily share of demand met inside the building market",
	}, []string{"building", "day"})
	imp := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "building_import_ratio",
		Help: "Daily share of supplied medium bought from peers",
	}, []string{"building", "day"})
	var err error
	if suff, err = register(reg, suff); err != nil {
		return nil, err
	}
	if imp, err = register(reg, imp); err != nil {
		return nil, err
	}
	return &KPISink{store: store, sufficiency: suff, imports: imp}, nil
}

// RecordSettlement adds the period to its day and refreshes the gauges.
func (s *KPISink) RecordSettlement(ev events.SettlementEvent) error {
	rec := kpi.Record{Building: ev.Building, Date: ev.Time, Demand: ev.TotalDemand, Excess: ev.Excess}
	for _, v := range ev.Supplied {
		rec.Supplied += v
	}
	for _, t := range ev.Accepted {
		rec.Imported += t.Amount
	}
	if err := s.store.Add(rec); err != nil {
		return err
	}
	day := kpi.Day(ev.Time)
	records, err := s.store.Query(ev.Building, day, day)
	if err != nil {
		return err
	}
	if len(records) > 0 {
		r := records[0]
		dayStr := day.Format("2006-01-02")
		s.sufficiency.WithLabelValues(ev.Building, dayStr).Set(r.SelfSufficiency())
		s.imports.WithLabelValues(ev.Building, dayStr).Set(r.ImportRatio())
	}
	return nil
}

// Close closes the backing store when it holds a file.
func (s *KPISink) Close() {
	if c, ok := s.store.(io.Closer); ok {
		_ = c.Close()
	}
}

// Store returns the backing KPI store.
func (s *KPISink) Store() kpi.Store { return s.store }

// FindKPIStore returns the store of the first KPI sink in sink, looking
// inside multi sinks.
func FindKPIStore(sink coremetrics.MetricsSink) (kpi.Store, bool) {
	switch s := sink.(type) {
	case *KPISink:
		return s.store, true
	case *coremetrics.MultiSink:
		for _, inner := range s.Sinks {
			if st, ok := FindKPIStore(inner); ok {
				return st, true
			}
		}
	}
	return nil, false
}
