package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/wsd/core/events"
)

func TestPromSink_RecordSettlement(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	ev := events.SettlementEvent{
		Building:    "B1",
		TotalDemand: 15,
		Supplied:    map[string]float64{"C1": 10, "C2": 3},
		Unmet:       map[string]float64{"C2": 2},
		Accepted:    []events.Transfer{{From: "BAT1", Amount: 10, Price: 0.2}, {From: "N1", Amount: 5, Price: 0.5}},
		Excess:      1,
	}
	require.NoError(t, sink.RecordSettlement(ev))
	require.NoError(t, sink.RecordSettlement(ev))

	expected := `
# HELP market_settlements_total Periods settled per building
# TYPE market_settlements_total counter
market_settlements_total{building="B1"} 2
`
	assert.NoError(t, testutil.CollectAndCompare(sink.settlements, strings.NewReader(expected)))
	assert.Equal(t, 26.0, testutil.ToFloat64(sink.medium.WithLabelValues("B1", "supplied")))
	assert.Equal(t, 4.0, testutil.ToFloat64(sink.medium.WithLabelValues("B1", "unmet")))
	assert.Equal(t, 30.0, testutil.ToFloat64(sink.medium.WithLabelValues("B1", "imported")))
	assert.Equal(t, 1, testutil.CollectAndCount(sink.price))
}

func TestPromSink_BatteryAndNegotiation(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, sink.RecordBatteryState(events.BatteryStateEvent{Battery: "BAT1", Building: "B1", Capacity: 0.4, Stored: 40}))
	require.NoError(t, sink.RecordNegotiation(events.NegotiationEvent{Building: "B1", Stage: events.StageRequested}))
	require.NoError(t, sink.RecordShortage(events.ShortageEvent{Building: "B1", Source: events.SourceBattery, Amount: 2}))

	assert.Equal(t, 0.4, testutil.ToFloat64(sink.capacity.WithLabelValues("BAT1", "B1")))
	assert.Equal(t, 40.0, testutil.ToFloat64(sink.stored.WithLabelValues("BAT1", "B1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.rounds.WithLabelValues("B1", events.StageRequested)))
	assert.Equal(t, 2.0, testutil.ToFloat64(sink.shortage.WithLabelValues("B1", events.SourceBattery)))
}

func TestPromSink_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	s1, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	s2, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, s1.RecordNegotiation(events.NegotiationEvent{Building: "B1", Stage: events.StageSelected}))
	require.NoError(t, s2.RecordNegotiation(events.NegotiationEvent{Building: "B1", Stage: events.StageSelected}))
	assert.Equal(t, 2.0, testutil.ToFloat64(s1.rounds.WithLabelValues("B1", events.StageSelected)))
}
