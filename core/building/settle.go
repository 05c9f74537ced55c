package building

import (
	"context"
	"math"

	"github.com/kilianp07/wsd/core/events"
	"github.com/kilianp07/wsd/core/message"
)

// Settle closes the period: consumers are supplied, the surplus goes to the
// battery, providers learn what is left to cover and the state is reset.
func (b *Building) Settle(ctx context.Context) {
	if b.negotiating && !b.selected {
		b.Logger.Warnf("period %d: %d peers never answered, settling with what arrived", b.period, b.outstanding)
		b.selectOffers(ctx)
	}
	lent := b.reserved.Total()
	supplied, excess := b.sendMedium(ctx)
	if !b.battery.ref.IsZero() {
		b.send(ctx, message.New(b.self, message.TopicCharge, message.Charge{Amount: excess}, b.battery.ref))
	}
	unmet, providers := b.informProviders()

	b.Events.Publish(events.SettlementEvent{
		Building:       b.cfg.Name,
		Period:         b.period,
		Production:     b.predicted,
		Lent:           lent,
		TotalDemand:    b.totalDemand,
		Supplied:       supplied,
		Unmet:          unmet,
		Accepted:       b.accepted,
		Excess:         excess,
		ProviderDemand: providers,
		Time:           b.Now(),
	})
	b.cleanUp()
}

// sendMedium splits the available production evenly between consumers and
// returns what each received and what nobody needed.
func (b *Building) sendMedium(ctx context.Context) (map[string]float64, float64) {
	available := math.Max(0, b.actual-b.reserved.Total())
	supplied := make(map[string]float64, len(b.requests))
	if len(b.consumers) == 0 {
		return supplied, available
	}
	share := available / float64(len(b.consumers))
	var total float64
	for i := range b.requests {
		r := &b.requests[i]
		give := share
		if share >= r.Amount {
			give = r.Amount
		}
		r.Amount -= give
		total += give
		supplied[r.Counterparty.Name] += give
		b.send(ctx, message.New(b.self, message.TopicSupply, message.Supply{Amount: give}, r.Counterparty))
	}
	return supplied, math.Max(0, available-total)
}

// informProviders aggregates the demand left unmet per provider.
func (b *Building) informProviders() (map[string]float64, map[string]float64) {
	unmet := make(map[string]float64)
	providers := make(map[string]float64)
	for _, r := range b.requests {
		if r.Amount <= 0 {
			continue
		}
		unmet[r.Counterparty.Name] += r.Amount
		providers[r.Provider] += r.Amount
	}
	for p, amount := range providers {
		b.Logger.Infof("period %d: provider %s must cover %.3f", b.period, p, amount)
	}
	return unmet, providers
}

func (b *Building) cleanUp() {
	b.period++
	b.predicted, b.actual, b.totalDemand = 0, 0, 0
	b.offersCount = 0
	b.requests = nil
	b.reported = nil
	b.proposals = nil
	b.accepted = nil
	b.returned = 0
	b.reserved = nil
	b.outstanding = 0
	b.negotiating, b.planFinalized, b.selected, b.priorityCharged = false, false, false, false
	b.battery.reported = false
}
