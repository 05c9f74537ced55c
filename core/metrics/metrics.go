package metrics

import "github.com/kilianp07/wsd/core/events"

// MetricsSink records the settlement of each building period.
type MetricsSink interface {
	RecordSettlement(ev events.SettlementEvent) error
}

// BatteryStateRecorder records battery snapshots.
type BatteryStateRecorder interface {
	RecordBatteryState(ev events.BatteryStateEvent) error
}

// NegotiationRecorder records shortage negotiation rounds.
type NegotiationRecorder interface {
	RecordNegotiation(ev events.NegotiationEvent) error
}

// ShortageRecorder records demand a consumer covered outside its building.
type ShortageRecorder interface {
	RecordShortage(ev events.ShortageEvent) error
}

// DropRecorder records messages discarded by actors.
type DropRecorder interface {
	RecordDrop(ev events.DropEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordSettlement(events.SettlementEvent) error     { return nil }
func (NopSink) RecordBatteryState(events.BatteryStateEvent) error { return nil }
func (NopSink) RecordNegotiation(events.NegotiationEvent) error   { return nil }
func (NopSink) RecordShortage(events.ShortageEvent) error         { return nil }
func (NopSink) RecordDrop(events.DropEvent) error                 { return nil }
