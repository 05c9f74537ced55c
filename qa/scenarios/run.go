package scenarios

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/wsd/core/actor"
	"github.com/kilianp07/wsd/core/battery"
	"github.com/kilianp07/wsd/core/building"
	"github.com/kilianp07/wsd/core/bus/bustest"
	"github.com/kilianp07/wsd/core/consumer"
	"github.com/kilianp07/wsd/core/events"
	"github.com/kilianp07/wsd/core/ledger"
	"github.com/kilianp07/wsd/core/message"
	"github.com/kilianp07/wsd/core/model"
	"github.com/kilianp07/wsd/core/registry"
	"github.com/kilianp07/wsd/core/status"
	"github.com/kilianp07/wsd/infra/logger"
	"github.com/kilianp07/wsd/internal/eventbus"
)

const tolerance = 1e-9

// recorder keeps settlements and shortages and folds every event into a
// status store, synchronously.
type recorder struct {
	settlements []ledger.LogRecord
	shortages   map[string]ShortageCount
	status      *status.MemoryStore
}

func (r *recorder) Publish(ev eventbus.Event) {
	status.Apply(r.status, ev)
	switch e := ev.(type) {
	case events.SettlementEvent:
		r.settlements = append(r.settlements, ledger.FromSettlement(e))
	case events.ShortageEvent:
		c := r.shortages[e.Consumer]
		if e.Source == events.SourceBattery {
			c.Battery++
		} else {
			c.Provider++
		}
		r.shortages[e.Consumer] = c
	}
}

// Harness drives actors phase by phase without timers. Every phase is
// followed by delivering messages until the market is quiet.
type Harness struct {
	t         *testing.T
	bus       *bustest.Recorder
	loops     map[model.ActorRef]*actor.Loop
	buildings []*building.Building
	batteries map[string]*battery.Battery
	bats      []*battery.Battery
	consumers map[string]*consumer.Consumer
	order     []string
	rec       *recorder
}

func NewHarness(t *testing.T, sc *Scenario) *Harness {
	t.Helper()
	h := &Harness{
		t:         t,
		bus:       bustest.New(),
		loops:     map[model.ActorRef]*actor.Loop{},
		batteries: map[string]*battery.Battery{},
		consumers: map[string]*consumer.Consumer{},
		rec:       &recorder{shortages: map[string]ShortageCount{}, status: status.NewMemoryStore()},
	}
	reg := registry.NewMemoryRegistry()
	clock := time.Unix(0, 0).UTC()
	now := func() time.Time { return clock }
	rng := func(name string) *rand.Rand {
		var s int64
		for _, c := range name {
			s = s*31 + int64(c)
		}
		return rand.New(rand.NewSource(sc.Seed ^ s))
	}
	log := logger.NopLogger{}
	for _, d := range sc.Buildings {
		b := building.New(building.Config{Name: d.Name, Production: d.Production, Estates: d.Estates},
			building.Deps{Bus: h.bus, Registry: reg, Events: h.rec, Logger: log, Rand: rng(d.Name), Now: now})
		require.NoError(t, b.Register())
		h.buildings = append(h.buildings, b)
		h.loops[b.Ref()] = b.Loop()
	}
	for _, d := range sc.Batteries {
		initial := d.Initial
		if initial == 0 {
			initial = 0.7
		}
		b := battery.New(battery.Config{Name: d.Name, Building: d.Building, TotalCapacity: d.Total, InitialCapacity: initial, Drift: d.Drift},
			battery.Deps{Bus: h.bus, Registry: reg, Events: h.rec, Logger: log, Rand: rng(d.Name), Now: now})
		require.NoError(t, b.Register())
		h.batteries[d.Name] = b
		h.bats = append(h.bats, b)
		h.loops[b.Ref()] = b.Loop()
	}
	for _, d := range sc.Consumers {
		c := consumer.New(consumer.Config{Name: d.Name, Building: d.Building, Provider: d.Provider, Demand: d.Demand, ProviderPrice: d.ProviderPrice},
			consumer.Deps{Bus: h.bus, Registry: reg, Events: h.rec, Logger: log, Rand: rng(d.Name), Now: now})
		require.NoError(t, c.Register())
		h.consumers[d.Name] = c
		h.order = append(h.order, d.Name)
		h.loops[c.Ref()] = c.Loop()
	}
	return h
}

// pump delivers queued messages breadth first until none are left.
func (h *Harness) pump(ctx context.Context) {
	for rounds := 0; ; rounds++ {
		require.Less(h.t, rounds, 1000, "market never quiesced")
		msgs := h.bus.Drain()
		if len(msgs) == 0 {
			return
		}
		for _, m := range msgs {
			for _, r := range m.Receivers {
				if loop, ok := h.loops[r]; ok {
					loop.Deliver(ctx, m)
				}
			}
		}
	}
}

// Start runs the discovery phase: batteries first, then consumers.
func (h *Harness) Start(ctx context.Context) {
	for _, b := range h.bats {
		b.Discover(ctx)
	}
	h.pump(ctx)
	for _, name := range h.order {
		h.consumers[name].Discover(ctx)
	}
	h.pump(ctx)
}

// Period runs one market period in timer order: predict, offer, deadline,
// settle.
func (h *Harness) Period(ctx context.Context, n int, charging []ChargingDef) {
	for _, b := range h.buildings {
		b.PredictPhase(ctx)
	}
	h.pump(ctx)
	for _, c := range charging {
		if c.Period != n {
			continue
		}
		cons, ok := h.consumers[c.Consumer]
		require.True(h.t, ok, "unknown consumer %s", c.Consumer)
		require.NoError(h.t, h.bus.Send(ctx, message.New(model.NewRef("scenario"), message.TopicConsumerCharging,
			message.ConsumerCharging{Extra: c.Extra}, cons.Ref())))
	}
	h.pump(ctx)
	for _, name := range h.order {
		h.consumers[name].OfferDemand(ctx)
	}
	h.pump(ctx)
	for _, b := range h.buildings {
		b.PlanDeadline(ctx)
	}
	h.pump(ctx)
	for _, b := range h.buildings {
		b.Settle(ctx)
	}
	h.pump(ctx)
}

func RunScenario(t *testing.T, sc *Scenario) *Harness {
	ctx := context.Background()
	h := NewHarness(t, sc)
	h.Start(ctx)
	for p := 1; p <= sc.Periods; p++ {
		h.Period(ctx, p, sc.Charging)
	}

	summaries := map[string]ledger.Summary{}
	for _, s := range ledger.Summarize(h.rec.settlements) {
		summaries[s.Building] = s
	}
	for name, want := range sc.Expected.Buildings {
		got, ok := summaries[name]
		if !assert.True(t, ok, "no settlement for %s", name) {
			continue
		}
		assert.Equal(t, sc.Periods, got.Periods, "%s periods", name)
		assert.InDelta(t, want.Demand, got.Demand, tolerance, "%s demand", name)
		assert.InDelta(t, want.Supplied, got.Supplied, tolerance, "%s supplied", name)
		assert.InDelta(t, want.Unmet, got.Unmet, tolerance, "%s unmet", name)
		assert.InDelta(t, want.Imported, got.Imported, tolerance, "%s imported", name)
		assert.InDelta(t, want.Excess, got.Excess, tolerance, "%s excess", name)
	}
	for name, want := range sc.Expected.Batteries {
		b, ok := h.batteries[name]
		if !assert.True(t, ok, "unknown battery %s", name) {
			continue
		}
		assert.InDelta(t, want.Stored, b.Stored(), tolerance, "%s stored", name)
		if want.State != "" {
			st, _ := h.rec.status.Get(name)
			assert.Equal(t, want.State, st.BatteryState, "%s state", name)
		}
	}
	for name, want := range sc.Expected.Shortages {
		assert.Equal(t, want, h.rec.shortages[name], "%s shortages", name)
	}
	return h
}
