package status

import (
	"context"

	"github.com/kilianp07/wsd/core/events"
	"github.com/kilianp07/wsd/internal/eventbus"
)

// StartTracker keeps store current from the events published on bus until
// ctx is canceled or the bus is closed.
func StartTracker(ctx context.Context, bus eventbus.EventBus, store Store) (done <-chan struct{}) {
	finished := make(chan struct{})
	if bus == nil || store == nil {
		close(finished)
		return finished
	}
	sub := bus.Subscribe()
	go func() {
		defer close(finished)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				Apply(store, ev)
			}
		}
	}()
	return finished
}

// Apply folds one event into store.
func Apply(store Store, ev eventbus.Event) {
	switch e := ev.(type) {
	case events.BatteryStateEvent:
		store.Update(e.Battery, func(s *Status) {
			s.Kind = "BATTERY"
			s.Building = e.Building
			s.Capacity = e.Capacity
			s.Stored = e.Stored
			s.BatteryState = e.State.String()
			s.Updated = e.Time
		})
	case events.SettlementEvent:
		applySettlement(store, e)
	case events.ShortageEvent:
		store.Update(e.Consumer, func(s *Status) {
			s.Kind = "CONSUMER"
			s.Building = e.Building
			s.LastShortage = e.Source
			s.Updated = e.Time
		})
	}
}

func applySettlement(store Store, e events.SettlementEvent) {
	var supplied, unmet, imported float64
	for _, v := range e.Supplied {
		supplied += v
	}
	for _, v := range e.Unmet {
		unmet += v
	}
	for _, t := range e.Accepted {
		imported += t.Amount
	}
	store.Update(e.Building, func(s *Status) {
		s.Kind = "BUILDING"
		s.LastSettlement = &Settlement{
			Period:   e.Period,
			Demand:   e.TotalDemand,
			Supplied: supplied,
			Unmet:    unmet,
			Excess:   e.Excess,
			Imported: imported,
			Time:     e.Time,
		}
		s.Updated = e.Time
	})
	for consumer, amount := range e.Supplied {
		left := e.Unmet[consumer]
		store.Update(consumer, func(s *Status) {
			s.Kind = "CONSUMER"
			s.Building = e.Building
			s.LastSettlement = &Settlement{
				Period:   e.Period,
				Demand:   amount + left,
				Supplied: amount,
				Unmet:    left,
				Time:     e.Time,
			}
			s.Updated = e.Time
		})
	}
}
