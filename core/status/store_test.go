package status

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/wsd/core/events"
	"github.com/kilianp07/wsd/core/model"
	"github.com/kilianp07/wsd/internal/eventbus"
)

func TestMemoryStore_Filter(t *testing.T) {
	s := NewMemoryStore()
	s.Set(Status{Name: "B1", Kind: "BUILDING"})
	s.Set(Status{Name: "C1", Kind: "CONSUMER", Building: "B1"})
	s.Set(Status{Name: "C2", Kind: "CONSUMER", Building: "B2"})

	out := s.List(Filter{Kind: "CONSUMER"})
	require.Len(t, out, 2)
	assert.Equal(t, "C1", out[0].Name)

	out = s.List(Filter{Building: "B2"})
	require.Len(t, out, 1)
	assert.Equal(t, "C2", out[0].Name)
}

func TestMemoryStore_UpdateCreates(t *testing.T) {
	s := NewMemoryStore()
	s.Update("BAT1", func(st *Status) { st.Capacity = 0.5 })
	st, ok := s.Get("BAT1")
	require.True(t, ok)
	assert.Equal(t, "BAT1", st.Name)
	assert.Equal(t, 0.5, st.Capacity)
}

func TestApplyEvents(t *testing.T) {
	s := NewMemoryStore()
	s.Set(Status{Name: "C1", Kind: "CONSUMER", Building: "B1", Local: true})
	now := time.Now()

	Apply(s, events.BatteryStateEvent{Battery: "BAT1", Building: "B1", Capacity: 0.3, Stored: 30, State: model.StoreMedium, Time: now})
	Apply(s, events.SettlementEvent{
		Building: "B1", Period: 2, TotalDemand: 8,
		Supplied: map[string]float64{"C1": 6},
		Unmet:    map[string]float64{"C1": 2},
		Accepted: []events.Transfer{{From: "N1", Amount: 1}},
		Time:     now,
	})
	Apply(s, events.ShortageEvent{Consumer: "C1", Building: "B1", Source: events.SourceProvider, Time: now})

	bat, _ := s.Get("BAT1")
	assert.Equal(t, model.StoreMedium.String(), bat.BatteryState)
	assert.Equal(t, 30.0, bat.Stored)

	b, _ := s.Get("B1")
	require.NotNil(t, b.LastSettlement)
	assert.Equal(t, 2, b.LastSettlement.Period)
	assert.Equal(t, 6.0, b.LastSettlement.Supplied)
	assert.Equal(t, 1.0, b.LastSettlement.Imported)

	c, _ := s.Get("C1")
	assert.True(t, c.Local)
	require.NotNil(t, c.LastSettlement)
	assert.Equal(t, 8.0, c.LastSettlement.Demand)
	assert.Equal(t, 2.0, c.LastSettlement.Unmet)
	assert.Equal(t, events.SourceProvider, c.LastShortage)
}

func TestTrackerFollowsBus(t *testing.T) {
	bus := eventbus.New()
	s := NewMemoryStore()
	done := StartTracker(context.Background(), bus, s)
	bus.Publish(events.BatteryStateEvent{Battery: "BAT1", Capacity: 0.9, State: model.ExcessMedium})
	bus.Close()
	<-done
	st, ok := s.Get("BAT1")
	require.True(t, ok)
	assert.Equal(t, "BATTERY", st.Kind)
}
