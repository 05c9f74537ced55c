// Package events defines the market events emitted on the event bus.
//
// Available event types:
//   - BatteryStateEvent: battery capacity and band after a change
//   - NegotiationEvent: a building asked its peers for medium or chose offers
//   - SettlementEvent: the outcome of a building's period
//   - ShortageEvent: a consumer covered missing medium from a battery or provider
//   - DropEvent: an actor discarded a message it could not handle
package events
