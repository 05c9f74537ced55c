package building

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/wsd/core/actor"
	"github.com/kilianp07/wsd/core/bus/bustest"
	"github.com/kilianp07/wsd/core/events"
	"github.com/kilianp07/wsd/core/message"
	"github.com/kilianp07/wsd/core/model"
	"github.com/kilianp07/wsd/core/registry"
	"github.com/kilianp07/wsd/infra/logger"
	"github.com/kilianp07/wsd/internal/eventbus"
)

type eventLog struct{ events []eventbus.Event }

func (l *eventLog) Publish(e eventbus.Event) { l.events = append(l.events, e) }

func (l *eventLog) settlements() []events.SettlementEvent {
	var out []events.SettlementEvent
	for _, e := range l.events {
		if s, ok := e.(events.SettlementEvent); ok {
			out = append(out, s)
		}
	}
	return out
}

var (
	ctx  = context.Background()
	bat  = model.NewRef("BAT1")
	c1   = model.NewRef("C1")
	c2   = model.NewRef("C2")
	peer = model.NewRef("N1")
)

type fixture struct {
	b   *Building
	rec *bustest.Recorder
	reg *registry.MemoryRegistry
	ev  *eventLog
}

func newFixture(t *testing.T, production float64, estates ...string) fixture {
	t.Helper()
	reg := registry.NewMemoryRegistry()
	rec := bustest.New()
	ev := &eventLog{}
	b := New(Config{Name: "B1", Production: production, Estates: estates},
		Deps{Bus: rec, Registry: reg, Events: ev, Logger: logger.NopLogger{}, Rand: rand.New(rand.NewSource(7))})
	require.NoError(t, b.Register())
	return fixture{b: b, rec: rec, reg: reg, ev: ev}
}

func (f fixture) deliver(t *testing.T, from model.ActorRef, topic message.Topic, p message.Payload) {
	t.Helper()
	require.NoError(t, f.b.Handle(ctx, message.New(from, topic, p, f.b.Ref())))
}

func (f fixture) withBattery(t *testing.T, capacity float64) {
	t.Helper()
	f.deliver(t, bat, message.TopicDeclareBattery, message.DeclareBattery{TotalCapacity: 100})
	q := message.New(f.b.Ref(), message.TopicBatteryCapacity, message.CapacityQuery{}, bat)
	rep := q.Reply(bat, message.CapacityReport{Capacity: capacity, State: model.StateFor(capacity)})
	require.NoError(t, f.b.Handle(ctx, rep))
}

func (f fixture) register(t *testing.T, consumers ...model.ActorRef) {
	t.Helper()
	for _, c := range consumers {
		f.deliver(t, c, message.TopicGetBattery, message.BatteryQuery{})
	}
}

func supplies(rec *bustest.Recorder) map[model.ActorRef]float64 {
	out := map[model.ActorRef]float64{}
	for _, m := range rec.ByTopic(message.TopicSupply) {
		out[m.Receivers[0]] += m.Payload.(message.Supply).Amount
	}
	return out
}

func TestSingleConsumerCoveredWithoutNegotiation(t *testing.T) {
	f := newFixture(t, 5)
	f.withBattery(t, 0.7)
	f.register(t, c1)
	f.b.PredictPhase(ctx)
	f.deliver(t, c1, message.TopicOffer, message.Offer{Provider: "P1", Demand: 5})

	assert.True(t, f.b.Snapshot().PlanFinalized)
	assert.Empty(t, f.rec.ByTopic(message.TopicMediumNeeded))

	f.b.PlanDeadline(ctx)
	f.b.Settle(ctx)
	assert.Equal(t, map[model.ActorRef]float64{c1: 5}, supplies(f.rec))
	charges := f.rec.ByTopic(message.TopicCharge)
	require.Len(t, charges, 1)
	assert.Equal(t, message.Charge{Amount: 0}, charges[0].Payload)

	s := f.ev.settlements()
	require.Len(t, s, 1)
	assert.Equal(t, 0, s[0].Period)
	assert.Equal(t, 5.0, s[0].Supplied["C1"])
	assert.Empty(t, s[0].Unmet)
	assert.Equal(t, 1, f.b.Snapshot().Period)
}

func TestGetBatteryRepliesName(t *testing.T) {
	f := newFixture(t, 5)
	f.register(t, c1)
	f.withBattery(t, 0.7)
	f.register(t, c2, c2)

	replies := f.rec.ByTopic(message.TopicGetBattery)
	require.Len(t, replies, 3)
	assert.Equal(t, message.BatteryInfo{}, replies[0].Payload)
	assert.Equal(t, message.BatteryInfo{Name: "BAT1"}, replies[1].Payload)
	assert.Equal(t, 2, f.b.Snapshot().Consumers)

	f.deliver(t, c2, message.TopicCancelConsumer, message.CancelConsumer{})
	assert.Equal(t, 1, f.b.Snapshot().Consumers)
}

func TestShortageNegotiationSelectsCheapestFirst(t *testing.T) {
	f := newFixture(t, 0, "E1")
	require.NoError(t, f.reg.Register(peer, model.ServiceBuilding, "N1", "E1"))
	f.deliver(t, bat, message.TopicDeclareBattery, message.DeclareBattery{TotalCapacity: 100})
	f.register(t, c1)
	f.b.PredictPhase(ctx)
	f.deliver(t, c1, message.TopicOffer, message.Offer{Provider: "P1", Demand: 15})

	requests := f.rec.ByTopic(message.TopicMediumNeeded)
	require.Len(t, requests, 1)
	assert.ElementsMatch(t, []model.ActorRef{peer, bat}, requests[0].Receivers)
	assert.Equal(t, 2, f.b.Snapshot().Outstanding)

	// a second trigger before the plan completes must not broadcast again
	f.b.PlanDeadline(ctx)
	assert.Len(t, f.rec.ByTopic(message.TopicMediumNeeded), 1)

	f.deliver(t, peer, message.TopicMediumNeeded, message.MediumOffer{Amount: 10, Price: 0.5})
	f.deliver(t, bat, message.TopicMediumNeeded, message.MediumOffer{Amount: 10, Price: 0.2})
	assert.Equal(t, 15.0, f.b.Snapshot().Actual)

	replies := f.rec.ByTopic(message.TopicMediumNeeded)[1:]
	require.Len(t, replies, 2)
	assert.Equal(t, []model.ActorRef{bat}, replies[0].Receivers)
	assert.Equal(t, message.MediumOffer{Amount: 0, IsReturn: true}, replies[0].Payload)
	assert.Equal(t, []model.ActorRef{peer}, replies[1].Receivers)
	assert.Equal(t, message.MediumOffer{Amount: 5, IsReturn: true}, replies[1].Payload)

	f.b.Settle(ctx)
	assert.Equal(t, map[model.ActorRef]float64{c1: 15}, supplies(f.rec))
	s := f.ev.settlements()
	require.Len(t, s, 1)
	assert.Equal(t, []events.Transfer{{From: "BAT1", Amount: 10, Price: 0.2}, {From: "N1", Amount: 5, Price: 0.5}}, s[0].Accepted)
}

func TestSettleSelectsWhenPeersAreSilent(t *testing.T) {
	f := newFixture(t, 2, "E1")
	require.NoError(t, f.reg.Register(peer, model.ServiceBuilding, "E1"))
	f.deliver(t, bat, message.TopicDeclareBattery, message.DeclareBattery{TotalCapacity: 100})
	f.register(t, c1)
	f.b.PredictPhase(ctx)
	f.deliver(t, c1, message.TopicOffer, message.Offer{Provider: "P1", Demand: 6})
	f.deliver(t, bat, message.TopicMediumNeeded, message.MediumOffer{Amount: 3})
	assert.Equal(t, 1, f.b.Snapshot().Outstanding)

	f.b.Settle(ctx)
	assert.Equal(t, map[model.ActorRef]float64{c1: 5}, supplies(f.rec))
	s := f.ev.settlements()
	require.Len(t, s, 1)
	assert.Equal(t, map[string]float64{"C1": 1}, s[0].Unmet)
	assert.Equal(t, map[string]float64{"P1": 1}, s[0].ProviderDemand)

	// an offer arriving after settlement is sent back whole
	f.deliver(t, peer, message.TopicMediumNeeded, message.MediumOffer{Amount: 4, Price: 0.1})
	last := f.rec.ByTopic(message.TopicMediumNeeded)
	assert.Equal(t, message.MediumOffer{Amount: 4, IsReturn: true}, last[len(last)-1].Payload)
}

func TestNoPeersNoNegotiation(t *testing.T) {
	f := newFixture(t, 1)
	f.register(t, c1)
	f.b.PredictPhase(ctx)
	f.deliver(t, c1, message.TopicOffer, message.Offer{Provider: "P1", Demand: 4})
	assert.False(t, f.b.Snapshot().Negotiating)
	assert.Empty(t, f.rec.ByTopic(message.TopicMediumNeeded))
}

func TestBatteryPriorityCharging(t *testing.T) {
	f := newFixture(t, 50)
	f.withBattery(t, 0.05)
	f.register(t, c1)
	f.b.PredictPhase(ctx)
	f.deliver(t, c1, message.TopicOffer, message.Offer{Provider: "P1", Demand: 10})
	f.b.PlanDeadline(ctx)

	charges := f.rec.ByTopic(message.TopicCharge)
	require.Len(t, charges, 1)
	assert.Equal(t, message.Charge{Amount: 10}, charges[0].Payload)
	assert.Equal(t, 40.0, f.b.Snapshot().Actual)

	g := newFixture(t, 40)
	g.withBattery(t, 0.3)
	g.register(t, c1)
	g.b.PredictPhase(ctx)
	g.deliver(t, c1, message.TopicOffer, message.Offer{Provider: "P1", Demand: 10})
	charges = g.rec.ByTopic(message.TopicCharge)
	require.Len(t, charges, 1)
	assert.Equal(t, message.Charge{Amount: 2}, charges[0].Payload)

	h := newFixture(t, 40)
	h.withBattery(t, 0.95)
	h.register(t, c1)
	h.b.PredictPhase(ctx)
	h.deliver(t, c1, message.TopicOffer, message.Offer{Provider: "P1", Demand: 10})
	assert.Empty(t, h.rec.ByTopic(message.TopicCharge))
}

func TestEvenShareAndExcessToBattery(t *testing.T) {
	f := newFixture(t, 10)
	f.withBattery(t, 0.7)
	f.register(t, c1, c2)
	f.b.PredictPhase(ctx)
	f.deliver(t, c1, message.TopicOffer, message.Offer{Provider: "P1", Demand: 3})
	f.deliver(t, c2, message.TopicOffer, message.Offer{Provider: "P2", Demand: 1})
	f.b.Settle(ctx)

	assert.Equal(t, map[model.ActorRef]float64{c1: 3, c2: 1}, supplies(f.rec))
	charges := f.rec.ByTopic(message.TopicCharge)
	require.Len(t, charges, 1)
	assert.Equal(t, message.Charge{Amount: 6}, charges[0].Payload)
}

func TestRepeatedOfferReplacesDemand(t *testing.T) {
	f := newFixture(t, 10)
	f.register(t, c1, c2)
	f.deliver(t, c1, message.TopicOffer, message.Offer{Provider: "P1", Demand: 3})
	f.deliver(t, c1, message.TopicOffer, message.Offer{Provider: "P1", Demand: 4})
	s := f.b.Snapshot()
	assert.Equal(t, 4.0, s.TotalDemand)
	assert.Equal(t, 1, s.Offers)
	assert.False(t, s.PlanFinalized)
}

func TestReserveRequestOffersExcess(t *testing.T) {
	f := newFixture(t, 10)
	f.register(t, c1, c2)
	f.b.PredictPhase(ctx)
	f.deliver(t, c1, message.TopicOffer, message.Offer{Provider: "P1", Demand: 2})
	f.deliver(t, c2, message.TopicOffer, message.Offer{Provider: "P1", Demand: 3})
	// share is 5: 3 + 2 to spare
	assert.Equal(t, 5.0, f.b.Excess())

	req := message.New(peer, message.TopicMediumNeeded, message.ReserveRequest{}, f.b.Ref())
	require.NoError(t, f.b.Handle(ctx, req))
	offers := f.rec.ByTopic(message.TopicMediumNeeded)
	require.Len(t, offers, 1)
	o := offers[0].Payload.(message.MediumOffer)
	assert.Equal(t, 5.0, o.Amount)
	assert.False(t, o.IsReturn)
	assert.GreaterOrEqual(t, o.Price, 0.01)
	assert.Less(t, o.Price, 1.0)
	assert.Equal(t, req.ID, offers[0].ReplyTo)
	assert.Equal(t, 0.0, f.b.Excess())

	// the peer keeps 3 and returns 2
	f.deliver(t, peer, message.TopicMediumNeeded, message.MediumOffer{Amount: 2, IsReturn: true})
	assert.Equal(t, 3.0, f.b.Snapshot().Reserved)

	f.b.Settle(ctx)
	assert.Equal(t, map[model.ActorRef]float64{c1: 2, c2: 3}, supplies(f.rec))
	assert.Equal(t, 3.0, f.ev.settlements()[0].Lent)
}

func TestUnknownPayloadNotUnderstood(t *testing.T) {
	f := newFixture(t, 1)
	err := f.b.Handle(ctx, message.New(c1, message.TopicSupply, message.Supply{Amount: 1}, f.b.Ref()))
	assert.True(t, errors.Is(err, actor.ErrNotUnderstood))
	err = f.b.Handle(ctx, message.New(peer, message.TopicBatteryCapacity, message.CapacityReport{State: model.SendMedium}, f.b.Ref()))
	assert.True(t, errors.Is(err, actor.ErrNotUnderstood))
}

func TestUpdateProviderRetagsOffer(t *testing.T) {
	f := newFixture(t, 0)
	f.register(t, c1, c2)
	f.deliver(t, c1, message.TopicOffer, message.Offer{Provider: "P1", Demand: 3})
	f.deliver(t, c1, message.TopicUpdateProvider, message.UpdateProvider{Provider: "P9"})
	f.b.Settle(ctx)
	assert.Equal(t, map[string]float64{"P9": 3}, f.ev.settlements()[0].ProviderDemand)
}

func TestParseEstates(t *testing.T) {
	assert.Equal(t, []string{"E1", "E2"}, ParseEstates("E1-E2"))
	assert.Empty(t, ParseEstates(""))
}
