package metrics

import (
	"errors"

	"github.com/kilianp07/wsd/core/events"
)

// MultiSink fans events out to multiple sinks. Every sink sees every event;
// the errors are joined.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordSettlement forwards the settlement to all sinks.
func (m *MultiSink) RecordSettlement(ev events.SettlementEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordSettlement(ev))
	}
	return errors.Join(errs...)
}

// RecordBatteryState forwards battery snapshots.
func (m *MultiSink) RecordBatteryState(ev events.BatteryStateEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(BatteryStateRecorder); ok {
			errs = append(errs, rec.RecordBatteryState(ev))
		}
	}
	return errors.Join(errs...)
}

// RecordNegotiation forwards negotiation rounds.
func (m *MultiSink) RecordNegotiation(ev events.NegotiationEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(NegotiationRecorder); ok {
			errs = append(errs, rec.RecordNegotiation(ev))
		}
	}
	return errors.Join(errs...)
}

// RecordShortage forwards consumer shortages.
func (m *MultiSink) RecordShortage(ev events.ShortageEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(ShortageRecorder); ok {
			errs = append(errs, rec.RecordShortage(ev))
		}
	}
	return errors.Join(errs...)
}

// RecordDrop forwards dropped messages.
func (m *MultiSink) RecordDrop(ev events.DropEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(DropRecorder); ok {
			errs = append(errs, rec.RecordDrop(ev))
		}
	}
	return errors.Join(errs...)
}

// Close releases every sink that holds resources.
func (m *MultiSink) Close() {
	closeAll(m.Sinks)
}

func closeAll(sinks []MetricsSink) {
	for _, s := range sinks {
		if c, ok := s.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
