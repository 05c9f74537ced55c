package ledger

import (
	"context"

	"github.com/kilianp07/wsd/core/events"
	"github.com/kilianp07/wsd/core/logger"
	"github.com/kilianp07/wsd/internal/eventbus"
)

// StartRecorder appends a record for every SettlementEvent published on bus
// until ctx is canceled or the bus is closed. done is closed once the last
// record has been written.
func StartRecorder(ctx context.Context, bus eventbus.EventBus, store LogStore, log logger.Logger) (done <-chan struct{}) {
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
				s, isSettlement := ev.(events.SettlementEvent)
				if !isSettlement {
					continue
				}
				if err := store.Append(ctx, FromSettlement(s)); err != nil {
					log.Errorf("ledger append %s/%d: %v", s.Building, s.Period, err)
				}
			}
		}
	}()
	return finished
}
