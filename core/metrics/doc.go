package metrics

// Package metrics defines the sinks that record market outcomes. Every sink
// records settlements; sinks may also implement the optional recorder
// interfaces for battery state, negotiation rounds, consumer shortages and
// dropped messages. The factory helpers return a MultiSink automatically when
// multiple sinks are configured. infra/metrics provides the Prometheus,
// InfluxDB and KPI sinks and the collector feeding them from the event bus.
