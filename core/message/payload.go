package message

import (
	"fmt"
	"math"

	"github.com/kilianp07/wsd/core/model"
)

func checkAmount(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fmt.Errorf("%w: %s=%v", ErrMalformed, field, v)
	}
	return nil
}

// Offer is a consumer's demand for the period, tagged with its fallback provider.
type Offer struct {
	Provider string  `json:"provider"`
	Demand   float64 `json:"demand"`
}

func (p Offer) Validate() error { return checkAmount("demand", p.Demand) }

// CancelConsumer withdraws a consumer from its building.
type CancelConsumer struct{}

func (CancelConsumer) Validate() error { return nil }

// DeclareBattery binds a battery to its building.
type DeclareBattery struct {
	TotalCapacity int `json:"total_capacity"`
}

func (p DeclareBattery) Validate() error {
	if p.TotalCapacity < 0 {
		return fmt.Errorf("%w: total_capacity=%d", ErrMalformed, p.TotalCapacity)
	}
	return nil
}

// CapacityQuery asks a battery for its capacity and state.
type CapacityQuery struct{}

func (CapacityQuery) Validate() error { return nil }

// CapacityReport answers a CapacityQuery.
type CapacityReport struct {
	Capacity float64            `json:"capacity"`
	State    model.BatteryState `json:"state"`
}

func (p CapacityReport) Validate() error {
	if err := checkAmount("capacity", p.Capacity); err != nil {
		return err
	}
	if !p.State.Valid() {
		return fmt.Errorf("%w: state=%d", ErrMalformed, int(p.State))
	}
	return nil
}

// BatteryQuery asks a building for its battery. It also registers the
// consumer with the building.
type BatteryQuery struct{}

func (BatteryQuery) Validate() error { return nil }

// BatteryInfo answers a BatteryQuery. Name is empty when the building has no battery.
type BatteryInfo struct {
	Name string `json:"name"`
}

func (BatteryInfo) Validate() error { return nil }

// Charge adds medium to a battery.
type Charge struct {
	Amount float64 `json:"amount"`
}

func (p Charge) Validate() error { return checkAmount("amount", p.Amount) }

// ReserveRequest asks a peer to reserve its excess for the sender.
type ReserveRequest struct {
	ForNeighbour bool `json:"for_neighbour,omitempty"`
}

func (ReserveRequest) Validate() error { return nil }

// MediumOffer proposes or returns reserved medium.
type MediumOffer struct {
	Amount   float64 `json:"amount"`
	IsReturn bool    `json:"is_return"`
	Price    float64 `json:"price"`
}

func (p MediumOffer) Validate() error {
	if err := checkAmount("amount", p.Amount); err != nil {
		return err
	}
	return checkAmount("price", p.Price)
}

// PriceQuery asks a battery for a price quote.
type PriceQuery struct{}

func (PriceQuery) Validate() error { return nil }

// PriceQuote answers a PriceQuery.
type PriceQuote struct {
	Price float64 `json:"price"`
}

func (p PriceQuote) Validate() error { return checkAmount("price", p.Price) }

// Withdraw asks a battery for medium at a previously quoted price.
type Withdraw struct {
	Demand      float64 `json:"demand"`
	AgreedPrice float64 `json:"agreed_price"`
}

func (p Withdraw) Validate() error {
	if err := checkAmount("demand", p.Demand); err != nil {
		return err
	}
	return checkAmount("agreed_price", p.AgreedPrice)
}

// Withdrawn answers a Withdraw with the amount actually released.
type Withdrawn struct {
	Amount float64 `json:"amount"`
}

func (p Withdrawn) Validate() error { return checkAmount("amount", p.Amount) }

// Supply delivers medium to a consumer.
type Supply struct {
	Amount float64 `json:"amount"`
}

func (p Supply) Validate() error { return checkAmount("amount", p.Amount) }

// UpdateProvider changes the fallback provider of a consumer.
type UpdateProvider struct {
	Provider string `json:"provider"`
}

func (p UpdateProvider) Validate() error {
	if p.Provider == "" {
		return fmt.Errorf("%w: empty provider", ErrMalformed)
	}
	return nil
}

// ConsumerCharging reports medium a consumer received beyond its demand.
type ConsumerCharging struct {
	Extra float64 `json:"extra"`
}

func (p ConsumerCharging) Validate() error { return checkAmount("extra", p.Extra) }

// NotUnderstood reports a message the receiver could not handle.
type NotUnderstood struct {
	Topic  string `json:"topic"`
	Reason string `json:"reason"`
}

func (NotUnderstood) Validate() error { return nil }

// newPayload returns an empty payload of the type carried by topic. reply
// selects the answer type of request/reply topics. MEDIUM_NEEDED is resolved
// by the codecs from the content.
func newPayload(topic Topic, reply bool) (Payload, error) {
	switch topic {
	case TopicOffer:
		return &Offer{}, nil
	case TopicCancelConsumer:
		return &CancelConsumer{}, nil
	case TopicDeclareBattery:
		return &DeclareBattery{}, nil
	case TopicBatteryCapacity:
		if reply {
			return &CapacityReport{}, nil
		}
		return &CapacityQuery{}, nil
	case TopicGetBattery:
		if reply {
			return &BatteryInfo{}, nil
		}
		return &BatteryQuery{}, nil
	case TopicCharge:
		return &Charge{}, nil
	case TopicGetPrice:
		if reply {
			return &PriceQuote{}, nil
		}
		return &PriceQuery{}, nil
	case TopicRequestMedium:
		if reply {
			return &Withdrawn{}, nil
		}
		return &Withdraw{}, nil
	case TopicSupply:
		return &Supply{}, nil
	case TopicUpdateProvider:
		return &UpdateProvider{}, nil
	case TopicConsumerCharging:
		return &ConsumerCharging{}, nil
	case TopicNotUnderstood:
		return &NotUnderstood{}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownTopic, int(topic))
	}
}
