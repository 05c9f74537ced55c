// Package battery implements the storage actor attached to a building. It
// rations its stored medium by price band and lends part of it during
// shortage negotiations.
package battery

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/kilianp07/wsd/core/actor"
	"github.com/kilianp07/wsd/core/bus"
	"github.com/kilianp07/wsd/core/events"
	"github.com/kilianp07/wsd/core/logger"
	"github.com/kilianp07/wsd/core/message"
	"github.com/kilianp07/wsd/core/model"
	"github.com/kilianp07/wsd/core/registry"
)

// Config describes one battery.
type Config struct {
	Name     string
	Building string
	// TotalCapacity is the amount of medium held when full.
	TotalCapacity int
	// InitialCapacity is the starting charge fraction.
	InitialCapacity float64
	// Drift bounds the random capacity change applied on each query.
	Drift float64
	// DiscoveryDelay is the wait before looking up the building.
	DiscoveryDelay time.Duration
}

// Deps are the collaborators of a battery.
type Deps struct {
	Bus      bus.Bus
	Registry registry.Registry
	Events   events.Publisher
	Logger   logger.Logger
	Rand     *rand.Rand
	Now      func() time.Time
}

// Battery is the actor state. It must only be used from its loop.
type Battery struct {
	cfg  Config
	self model.ActorRef
	Deps

	building model.ActorRef
	total    float64
	// stored includes medium promised in reserved until the reservation is
	// settled, so a full return leaves it untouched.
	stored   float64
	reserved model.OfferBook
}

// New creates a battery. Missing dependencies get no-op defaults except Bus
// and Registry.
func New(cfg Config, deps Deps) *Battery {
	if deps.Events == nil {
		deps.Events = events.NopPublisher{}
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewSource(1))
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	total := float64(cfg.TotalCapacity)
	b := &Battery{cfg: cfg, self: model.NewRef(cfg.Name), Deps: deps, total: total}
	b.stored = clamp(cfg.InitialCapacity*total, 0, total)
	return b
}

// Ref returns the battery's address.
func (b *Battery) Ref() model.ActorRef { return b.self }

// Register publishes the battery under BATTERY/name.
func (b *Battery) Register() error {
	return b.Registry.Register(b.self, model.ServiceBattery, b.cfg.Name)
}

// Deregister removes the battery from the registry.
func (b *Battery) Deregister() { b.Registry.Deregister(b.self) }

// Loop builds the actor loop with the discovery timer.
func (b *Battery) Loop() *actor.Loop {
	return actor.NewLoop(b.self, "battery", b, b.Bus, b.Events, b.Logger).
		After("discover", b.cfg.DiscoveryDelay, b.Discover)
}

// Capacity is the available fraction of the total.
func (b *Battery) Capacity() float64 {
	if b.total <= 0 {
		return 0
	}
	return b.available() / b.total
}

// available is the stored medium not promised to a requester.
func (b *Battery) available() float64 {
	if len(b.reserved) == 0 {
		return b.stored
	}
	return math.Max(0, b.stored-b.reserved.Total())
}

// State is the current band.
func (b *Battery) State() model.BatteryState { return model.StateFor(b.Capacity()) }

// Stored is the absolute amount available.
func (b *Battery) Stored() float64 { return b.available() }

// Reserved lists medium set aside for requesters this period.
func (b *Battery) Reserved() model.OfferBook { return b.reserved }

// Discover resolves the owning building and declares the battery to it.
func (b *Battery) Discover(ctx context.Context) {
	ref, err := registry.First(b.Registry, model.ServiceBuilding, b.cfg.Building)
	if err != nil {
		b.Logger.Warnf("building %s unavailable: %v", b.cfg.Building, err)
		return
	}
	b.building = ref
	b.send(ctx, message.New(b.self, message.TopicDeclareBattery, message.DeclareBattery{TotalCapacity: b.cfg.TotalCapacity}, ref))
}

// Handle dispatches one inbox message.
func (b *Battery) Handle(ctx context.Context, msg message.Message) error {
	switch p := msg.Payload.(type) {
	case message.CapacityQuery:
		b.onCapacityQuery(ctx, msg)
	case message.PriceQuery:
		price := b.State().Band().Sample(b.Rand)
		b.send(ctx, msg.Reply(b.self, message.PriceQuote{Price: price}))
	case message.Withdraw:
		b.onWithdraw(ctx, msg, p)
	case message.Charge:
		b.charge(p.Amount)
	case message.ReserveRequest:
		b.onReserve(ctx, msg, p)
	case message.MediumOffer:
		b.onReturn(msg, p)
	case message.NotUnderstood:
		b.Logger.Warnf("%s did not understand %s: %s", msg.Sender, p.Topic, p.Reason)
	default:
		return fmt.Errorf("%w: %s %T", actor.ErrNotUnderstood, msg.Topic, msg.Payload)
	}
	return nil
}

func (b *Battery) onCapacityQuery(ctx context.Context, msg message.Message) {
	b.settleReservations(0)
	if b.cfg.Drift > 0 {
		delta := (b.Rand.Float64()*2 - 1) * b.cfg.Drift * b.total
		b.stored = clamp(b.stored+delta, 0, b.total)
	}
	b.send(ctx, msg.Reply(b.self, message.CapacityReport{Capacity: b.Capacity(), State: b.State()}))
	b.publishState()
}

func (b *Battery) onWithdraw(ctx context.Context, msg message.Message, p message.Withdraw) {
	granted := math.Min(p.Demand, b.available())
	if granted < p.Demand {
		b.Logger.Warnf("%s asked %.3f, only %.3f available", msg.Sender, p.Demand, granted)
	}
	b.stored -= granted
	b.Logger.Debugf("released %.3f to %s at %.3f", granted, msg.Sender, p.AgreedPrice)
	b.send(ctx, msg.Reply(b.self, message.Withdrawn{Amount: granted}))
	b.publishState()
}

func (b *Battery) charge(amount float64) {
	b.stored += amount
	if b.stored > b.total {
		b.Logger.Debugf("charge overflow %.3f discarded", b.stored-b.total)
		b.stored = b.total
	}
	b.publishState()
}

func (b *Battery) onReserve(ctx context.Context, msg message.Message, p message.ReserveRequest) {
	if msg.Sender != b.building {
		b.Logger.Warnf("reservation from %s ignored, owner is %s", msg.Sender, b.building)
		return
	}
	excess := math.Min(model.Excess(b.Capacity(), b.total), b.available())
	price := 0.0
	if p.ForNeighbour {
		price = b.State().Band().Sample(b.Rand)
	}
	if excess > 0 {
		b.reserved = b.reserved.Add(model.Offer{Counterparty: msg.Sender, Amount: excess, Price: price})
	}
	b.send(ctx, msg.Reply(b.self, message.MediumOffer{Amount: excess, Price: price}))
	b.publishState()
}

// onReturn settles the owner's reservations. The returned part, capped at
// what was reserved, stays stored; the rest was consumed.
func (b *Battery) onReturn(msg message.Message, p message.MediumOffer) {
	if msg.Sender != b.building {
		b.Logger.Warnf("offer of %.3f from %s ignored, owner is %s", p.Amount, msg.Sender, b.building)
		return
	}
	if len(b.reserved) == 0 {
		b.Logger.Debugf("%s settled %.3f with nothing reserved", msg.Sender, p.Amount)
		return
	}
	returned := 0.0
	if p.IsReturn {
		returned = p.Amount
	}
	b.settleReservations(returned)
	b.publishState()
}

// settleReservations consumes every reservation except returned.
func (b *Battery) settleReservations(returned float64) {
	reserved := b.reserved.Total()
	if consumed := reserved - math.Min(returned, reserved); consumed > 0 {
		b.stored = clamp(b.stored-consumed, 0, b.total)
	}
	b.reserved = nil
}

func (b *Battery) publishState() {
	b.Events.Publish(events.BatteryStateEvent{
		Battery:  b.cfg.Name,
		Building: b.cfg.Building,
		Capacity: b.Capacity(),
		Stored:   b.available(),
		State:    b.State(),
		Time:     b.Now(),
	})
}

func (b *Battery) send(ctx context.Context, msg message.Message) {
	if err := b.Bus.Send(ctx, msg); err != nil {
		b.Logger.Warnf("send %s: %v", msg.Topic, err)
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
