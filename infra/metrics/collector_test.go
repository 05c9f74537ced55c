package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/wsd/core/events"
	coremetrics "github.com/kilianp07/wsd/core/metrics"
	"github.com/kilianp07/wsd/core/metrics/kpi"
	"github.com/kilianp07/wsd/internal/eventbus"
)

type collectSink struct {
	mu          sync.Mutex
	settlements int
	shortages   int
	drops       int
}

func (s *collectSink) RecordSettlement(events.SettlementEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settlements++
	return nil
}

func (s *collectSink) RecordShortage(events.ShortageEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shortages++
	return nil
}

func (s *collectSink) RecordDrop(events.DropEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drops++
	return nil
}

func TestEventCollectorRoutesEvents(t *testing.T) {
	bus := eventbus.New()
	sink := &collectSink{}
	done := StartEventCollector(context.Background(), bus, sink)

	bus.Publish(events.SettlementEvent{Building: "B1"})
	bus.Publish(events.ShortageEvent{Consumer: "C1"})
	bus.Publish(events.DropEvent{Actor: "B1"})
	// no NegotiationRecorder: ignored
	bus.Publish(events.NegotiationEvent{Building: "B1"})
	bus.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop")
	}
	assert.Equal(t, 1, sink.settlements)
	assert.Equal(t, 1, sink.shortages)
	assert.Equal(t, 1, sink.drops)
}

func TestKPISinkAggregatesDay(t *testing.T) {
	store := kpi.NewMemoryStore()
	sink, err := NewKPISink(store, prometheus.NewRegistry())
	require.NoError(t, err)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, sink.RecordSettlement(events.SettlementEvent{
		Building: "B1", TotalDemand: 10, Supplied: map[string]float64{"C1": 5}, Time: now,
	}))
	require.NoError(t, sink.RecordSettlement(events.SettlementEvent{
		Building: "B1", TotalDemand: 10, Supplied: map[string]float64{"C1": 10},
		Accepted: []events.Transfer{{From: "N1", Amount: 3}}, Time: now.Add(time.Hour),
	}))
	recs, err := store.Query("B1", now, now)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 0.75, recs[0].SelfSufficiency())
	assert.Equal(t, 0.2, recs[0].ImportRatio())
}

func TestFindKPIStore(t *testing.T) {
	store := kpi.NewMemoryStore()
	sink, err := NewKPISink(store, prometheus.NewRegistry())
	require.NoError(t, err)

	got, ok := FindKPIStore(coremetrics.NewMultiSink(coremetrics.NopSink{}, sink))
	require.True(t, ok)
	assert.Same(t, store, got)

	_, ok = FindKPIStore(coremetrics.NopSink{})
	assert.False(t, ok)
}
