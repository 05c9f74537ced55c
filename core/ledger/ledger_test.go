package ledger

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/wsd/core/events"
	"github.com/kilianp07/wsd/infra/logger"
	"github.com/kilianp07/wsd/internal/eventbus"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func sample() []LogRecord {
	return []LogRecord{
		{Timestamp: t0, Building: "B1", Period: 0, TotalDemand: 10, Supplied: map[string]float64{"C1": 10}},
		{Timestamp: t0.Add(time.Minute), Building: "B2", Period: 0, TotalDemand: 4, Supplied: map[string]float64{"C2": 2}, Unmet: map[string]float64{"C2": 2}},
		{Timestamp: t0.Add(2 * time.Minute), Building: "B1", Period: 1, TotalDemand: 20, Supplied: map[string]float64{"C1": 15}, Unmet: map[string]float64{"C1": 5},
			Accepted: []Transfer{{From: "BAT1", Amount: 10, Price: 0.2}, {From: "N1", Amount: 5, Price: 0.5}}},
	}
}

func TestLogRecord_JSON(t *testing.T) {
	data, err := json.Marshal(sample()[2])
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	for _, k := range []string{"timestamp", "building", "period", "total_demand", "supplied", "unmet", "accepted"} {
		assert.Contains(t, m, k)
	}
}

func TestLogQueryMatch(t *testing.T) {
	recs := sample()
	assert.True(t, LogQuery{}.Match(recs[0]))
	assert.False(t, LogQuery{Building: "B2"}.Match(recs[0]))
	assert.True(t, LogQuery{Consumer: "C2"}.Match(recs[1]))
	assert.False(t, LogQuery{Consumer: "C2"}.Match(recs[0]))
	assert.False(t, LogQuery{Start: t0.Add(time.Second)}.Match(recs[0]))
	assert.False(t, LogQuery{End: t0.Add(time.Second)}.Match(recs[2]))
}

func storeContract(t *testing.T, store LogStore) {
	t.Helper()
	ctx := context.Background()
	for _, r := range sample() {
		require.NoError(t, store.Append(ctx, r))
	}
	out, err := store.Query(ctx, LogQuery{})
	require.NoError(t, err)
	assert.Len(t, out, 3)

	out, err = store.Query(ctx, LogQuery{Building: "B1"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 0, out[0].Period)
	assert.Equal(t, 1, out[1].Period)
	assert.Equal(t, sample()[2].Accepted, out[1].Accepted)

	out, err = store.Query(ctx, LogQuery{Start: t0.Add(30 * time.Second), Consumer: "C1"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 5.0, out[0].Unmet["C1"])
}

func TestJSONLStore(t *testing.T) {
	store, err := NewJSONLStore(filepath.Join(t.TempDir(), "ledger.jsonl"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	storeContract(t, store)
}

func TestSQLiteStore(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	storeContract(t, store)
}

func TestRotatingJSONLStore(t *testing.T) {
	store, err := NewRotatingJSONLStore(filepath.Join(t.TempDir(), "ledger.jsonl"), 1, 2, 1)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	storeContract(t, store)
}

func TestRotatingJSONLStore_Rotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.jsonl")
	store, err := NewRotatingJSONLStore(path, 1, 3, 1)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	big := map[string]float64{}
	for i := 0; i < 2000; i++ {
		big[time.Duration(i).String()] = float64(i)
	}
	rec := LogRecord{Timestamp: t0, Building: "B1", Supplied: big}
	for i := 0; i < 40; i++ {
		require.NoError(t, store.Append(context.Background(), rec))
	}
	files, err := store.files()
	require.NoError(t, err)
	assert.Greater(t, len(files), 1)
	out, err := store.Query(context.Background(), LogQuery{Building: "B1"})
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open("none", "", Rotation{})
	require.NoError(t, err)
	assert.IsType(t, NopStore{}, s)

	s, err = Open("jsonl", filepath.Join(dir, "a.jsonl"), Rotation{})
	require.NoError(t, err)
	assert.IsType(t, &JSONLStore{}, s)

	s, err = Open("jsonl", filepath.Join(dir, "b.jsonl"), Rotation{MaxSizeMB: 1})
	require.NoError(t, err)
	assert.IsType(t, &RotatingJSONLStore{}, s)
	_ = s.Close()

	_, err = Open("csv", "x", Rotation{})
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	out := Summarize(sample())
	require.Len(t, out, 2)
	b1 := out[0]
	assert.Equal(t, "B1", b1.Building)
	assert.Equal(t, 2, b1.Periods)
	assert.Equal(t, 30.0, b1.Demand)
	assert.Equal(t, 25.0, b1.Supplied)
	assert.Equal(t, 5.0, b1.Unmet)
	assert.Equal(t, 15.0, b1.Imported)
	assert.InDelta(t, 0.3, b1.MeanPrice, 1e-9)
	assert.InDelta(t, 0.875, b1.CoverageMean, 1e-9)
	assert.Greater(t, b1.CoverageStdDev, 0.0)

	b2 := out[1]
	assert.Equal(t, 0.5, b2.CoverageMean)
	assert.Equal(t, 0.0, b2.CoverageStdDev)
	assert.Equal(t, 0.0, b2.MeanPrice)
}

func TestRecorderAppendsSettlements(t *testing.T) {
	bus := eventbus.New()
	store, err := NewJSONLStore(filepath.Join(t.TempDir(), "ledger.jsonl"))
	require.NoError(t, err)
	done := StartRecorder(context.Background(), bus, store, logger.NopLogger{})

	bus.Publish(events.ShortageEvent{Consumer: "C1"})
	bus.Publish(events.SettlementEvent{
		Building: "B1", Period: 4, Time: t0,
		Supplied: map[string]float64{"C1": 5},
		Accepted: []events.Transfer{{From: "N1", Amount: 1, Price: 0.4}},
	})
	bus.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("recorder did not stop")
	}

	out, err := store.Query(context.Background(), LogQuery{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 4, out[0].Period)
	assert.Equal(t, []Transfer{{From: "N1", Amount: 1, Price: 0.4}}, out[0].Accepted)
}
