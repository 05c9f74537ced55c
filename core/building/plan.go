package building

import (
	"context"
	"math"

	"github.com/kilianp07/wsd/core/events"
	"github.com/kilianp07/wsd/core/message"
	"github.com/kilianp07/wsd/core/model"
)

// createSupplyPlan is safe to call any number of times per period: the
// battery is charged once, negotiation is broadcast once and offers are
// selected once.
func (b *Building) createSupplyPlan(ctx context.Context) {
	if !b.planFinalized {
		b.Logger.Debugf("period %d: creating supply plan, production %.3f demand %.3f", b.period, b.actual, b.totalDemand)
	}
	b.planFinalized = true

	if b.negotiating {
		if b.outstanding == 0 && !b.selected {
			b.selectOffers(ctx)
		}
		return
	}
	b.chargeBatteryFirst(ctx)
	if b.actual < b.totalDemand {
		b.startNegotiation(ctx)
	}
}

// chargeBatteryFirst gives a low battery priority over consumers.
func (b *Building) chargeBatteryFirst(ctx context.Context) {
	if b.priorityCharged || b.battery.ref.IsZero() || !b.battery.reported || b.actual <= 0 {
		return
	}
	var amount float64
	switch b.battery.state {
	case model.RequestMedium:
		amount = math.Min(0.1*b.battery.total, b.actual)
	case model.StoreMedium:
		amount = 0.05 * b.actual
	default:
		return
	}
	b.priorityCharged = true
	b.actual -= amount
	b.Logger.Infof("battery %s in %s, charging %.3f first", b.battery.ref, b.battery.state, amount)
	b.send(ctx, message.New(b.self, message.TopicCharge, message.Charge{Amount: amount}, b.battery.ref))
}

// neighbours returns every building sharing an estate, without duplicates
// and without this building.
func (b *Building) neighbours() []model.ActorRef {
	seen := map[model.ActorRef]bool{b.self: true}
	var out []model.ActorRef
	for _, estate := range b.cfg.Estates {
		refs, err := b.Registry.Lookup(model.ServiceBuilding, estate)
		if err != nil {
			b.Logger.Debugf("estate %s: %v", estate, err)
			continue
		}
		for _, r := range refs {
			if !seen[r] {
				seen[r] = true
				out = append(out, r)
			}
		}
	}
	return out
}

func (b *Building) startNegotiation(ctx context.Context) {
	peers := b.neighbours()
	if !b.battery.ref.IsZero() {
		peers = append(peers, b.battery.ref)
	}
	if len(peers) == 0 {
		b.Logger.Warnf("period %d: shortage of %.3f and nobody to ask", b.period, b.totalDemand-b.actual)
		return
	}
	b.negotiating = true
	b.outstanding = len(peers)
	b.Logger.Infof("period %d: shortage of %.3f, asking %d peers", b.period, b.totalDemand-b.actual, len(peers))
	b.send(ctx, message.New(b.self, message.TopicMediumNeeded, message.ReserveRequest{}, peers...))
	b.Events.Publish(events.NegotiationEvent{
		Building: b.cfg.Name,
		Stage:    events.StageRequested,
		Peers:    len(peers),
		Time:     b.Now(),
	})
}

// selectOffers fills the shortfall greedily from the cheapest offers and
// tells every offerer how much of its offer comes back.
func (b *Building) selectOffers(ctx context.Context) {
	b.selected = true
	var accepted, returned float64
	for _, o := range b.proposals.ByPrice() {
		take := o.Amount
		if b.actual+o.Amount > b.totalDemand {
			take = math.Max(0, b.totalDemand-b.actual)
		}
		back := o.Amount - take
		b.actual += take
		accepted += take
		returned += back
		if take > 0 {
			b.accepted = append(b.accepted, events.Transfer{From: o.Counterparty.Name, Amount: take, Price: o.Price})
		}
		b.send(ctx, message.New(b.self, message.TopicMediumNeeded, message.MediumOffer{Amount: back, IsReturn: true}, o.Counterparty))
	}
	b.returned += returned
	b.Logger.Infof("period %d: accepted %.3f from %d offers, returned %.3f", b.period, accepted, len(b.proposals), returned)
	b.Events.Publish(events.NegotiationEvent{
		Building: b.cfg.Name,
		Stage:    events.StageSelected,
		Offers:   len(b.proposals),
		Accepted: accepted,
		Returned: returned,
		Time:     b.Now(),
	})
}

// Excess is the medium this building can spare: what each consumer's share
// exceeds its demand by, or all production when nobody consumes, minus what
// was already promised to others.
func (b *Building) Excess() float64 {
	var excess float64
	if len(b.consumers) == 0 {
		excess = b.actual
	} else {
		share := b.actual / float64(len(b.consumers))
		for _, r := range b.requests {
			if share >= r.Amount {
				excess += share - r.Amount
			}
		}
	}
	return math.Max(0, excess-b.reserved.Total())
}

func (b *Building) onReserveRequest(ctx context.Context, msg message.Message) {
	excess := b.Excess()
	price := 0.01 + b.Rand.Float64()*0.99
	if excess > 0 {
		b.reserved = b.reserved.Add(model.Offer{Counterparty: msg.Sender, Amount: excess, Price: price})
	}
	b.Logger.Debugf("reserving %.3f for %s at %.3f", excess, msg.Sender, price)
	b.send(ctx, msg.Reply(b.self, message.MediumOffer{Amount: excess, Price: price}))
}
