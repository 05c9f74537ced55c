package events

import (
	"time"

	"github.com/kilianp07/wsd/core/model"
	"github.com/kilianp07/wsd/internal/eventbus"
)

// Publisher is the write side of the event bus.
type Publisher interface {
	Publish(eventbus.Event)
}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) Publish(eventbus.Event) {}

// BatteryStateEvent is published whenever a battery's stored medium changes
// or its capacity is queried.
type BatteryStateEvent struct {
	Battery  string
	Building string
	Capacity float64
	Stored   float64
	State    model.BatteryState
	Time     time.Time
}

// Negotiation stages.
const (
	StageRequested = "requested"
	StageSelected  = "selected"
)

// NegotiationEvent describes one step of a shortage negotiation.
type NegotiationEvent struct {
	Building string
	Stage    string
	Peers    int
	Offers   int
	Accepted float64
	Returned float64
	Time     time.Time
}

// Transfer is medium accepted from a peer.
type Transfer struct {
	From   string  `json:"from"`
	Amount float64 `json:"amount"`
	Price  float64 `json:"price"`
}

// SettlementEvent summarizes a building's period.
type SettlementEvent struct {
	Building       string
	Period         int
	Production     float64
	Lent           float64
	TotalDemand    float64
	Supplied       map[string]float64
	Unmet          map[string]float64
	Accepted       []Transfer
	Excess         float64
	ProviderDemand map[string]float64
	Time           time.Time
}

// Shortage sources.
const (
	SourceBattery  = "battery"
	SourceProvider = "provider"
)

// ShortageEvent is published when a consumer covers residual demand outside
// its building.
type ShortageEvent struct {
	Consumer string
	Building string
	Source   string
	Amount   float64
	Price    float64
	Time     time.Time
}

// DropEvent is published when an actor discards a message.
type DropEvent struct {
	Actor  string
	Topic  string
	Reason string
	Time   time.Time
}
