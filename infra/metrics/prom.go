package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/wsd/core/events"
	coremetrics "github.com/kilianp07/wsd/core/metrics"
)

// PromSink records market outcomes in Prometheus metrics.
type PromSink struct {
	settlements *prometheus.CounterVec
	medium      *prometheus.CounterVec
	price       *prometheus.HistogramVec
	capacity    *prometheus.GaugeVec
	stored      *prometheus.GaugeVec
	rounds      *prometheus.CounterVec
	shortage    *prometheus.CounterVec
}

// NewPromSink registers market metrics on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered by an earlier sink are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "market_settlements_total",
			Help: "Periods settled per building",
		}, []string{"building"}),
		medium: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "market_medium_total",
			Help: "Medium accounted at settlement by kind (demand, supplied, unmet, excess, lent, imported)",
		}, []string{"building", "kind"}),
		price: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "market_transfer_price",
			Help:    "Price of medium accepted from peers",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		}, []string{"building"}),
		capacity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "battery_capacity_ratio",
			Help: "Stored fraction of each battery",
		}, []string{"battery", "building"}),
		stored: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "battery_stored",
			Help: "Absolute medium held by each battery",
		}, []string{"battery", "building"}),
		rounds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "negotiation_rounds_total",
			Help: "Shortage negotiation rounds by stage",
		}, []string{"building", "stage"}),
		shortage: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "consumer_shortage_total",
			Help: "Medium consumers covered outside their building",
		}, []string{"building", "source"}),
	}
	var err error
	if s.settlements, err = register(reg, s.settlements); err != nil {
		return nil, err
	}
	if s.medium, err = register(reg, s.medium); err != nil {
		return nil, err
	}
	if s.price, err = register(reg, s.price); err != nil {
		return nil, err
	}
	if s.capacity, err = register(reg, s.capacity); err != nil {
		return nil, err
	}
	if s.stored, err = register(reg, s.stored); err != nil {
		return nil, err
	}
	if s.rounds, err = register(reg, s.rounds); err != nil {
		return nil, err
	}
	if s.shortage, err = register(reg, s.shortage); err != nil {
		return nil, err
	}
	return s, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

var _ coremetrics.MetricsSink = (*PromSink)(nil)

// RecordSettlement adds the period's medium flows to the counters.
func (s *PromSink) RecordSettlement(ev events.SettlementEvent) error {
	s.settlements.WithLabelValues(ev.Building).Inc()
	var supplied, unmet, imported float64
	for _, v := range ev.Supplied {
		supplied += v
	}
	for _, v := range ev.Unmet {
		unmet += v
	}
	for _, t := range ev.Accepted {
		imported += t.Amount
		s.price.WithLabelValues(ev.Building).Observe(t.Price)
	}
	s.medium.WithLabelValues(ev.Building, "demand").Add(ev.TotalDemand)
	s.medium.WithLabelValues(ev.Building, "supplied").Add(supplied)
	s.medium.WithLabelValues(ev.Building, "unmet").Add(unmet)
	s.medium.WithLabelValues(ev.Building, "excess").Add(ev.Excess)
	s.medium.WithLabelValues(ev.Building, "lent").Add(ev.Lent)
	s.medium.WithLabelValues(ev.Building, "imported").Add(imported)
	return nil
}

// RecordBatteryState sets the battery gauges.
func (s *PromSink) RecordBatteryState(ev events.BatteryStateEvent) error {
	s.capacity.WithLabelValues(ev.Battery, ev.Building).Set(ev.Capacity)
	s.stored.WithLabelValues(ev.Battery, ev.Building).Set(ev.Stored)
	return nil
}

// RecordNegotiation counts negotiation rounds.
func (s *PromSink) RecordNegotiation(ev events.NegotiationEvent) error {
	s.rounds.WithLabelValues(ev.Building, ev.Stage).Inc()
	return nil
}

// RecordShortage adds the amount a consumer covered elsewhere.
func (s *PromSink) RecordShortage(ev events.ShortageEvent) error {
	s.shortage.WithLabelValues(ev.Building, ev.Source).Add(ev.Amount)
	return nil
}
