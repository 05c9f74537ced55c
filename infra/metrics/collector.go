package metrics

import (
	"context"

	"github.com/kilianp07/wsd/core/events"
	coremetrics "github.com/kilianp07/wsd/core/metrics"
	"github.com/kilianp07/wsd/infra/logger"
	"github.com/kilianp07/wsd/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and hands market events to
// the sink's recorders. It stops when the context is canceled or the bus is
// closed; done is closed once the last event has been recorded.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) (done <-chan struct{}) {
	finished := make(chan struct{})
	if bus == nil || sink == nil {
		close(finished)
		return finished
	}
	log := logger.New("metrics-collector")
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
				if err := record(sink, ev); err != nil {
					log.Warnf("record %T: %v", ev, err)
				}
			}
		}
	}()
	return finished
}

func record(sink coremetrics.MetricsSink, ev eventbus.Event) error {
	switch e := ev.(type) {
	case events.SettlementEvent:
		return sink.RecordSettlement(e)
	case events.BatteryStateEvent:
		if r, ok := sink.(coremetrics.BatteryStateRecorder); ok {
			return r.RecordBatteryState(e)
		}
	case events.NegotiationEvent:
		if r, ok := sink.(coremetrics.NegotiationRecorder); ok {
			return r.RecordNegotiation(e)
		}
	case events.ShortageEvent:
		if r, ok := sink.(coremetrics.ShortageRecorder); ok {
			return r.RecordShortage(e)
		}
	case events.DropEvent:
		if r, ok := sink.(coremetrics.DropRecorder); ok {
			return r.RecordDrop(e)
		}
	}
	return nil
}
