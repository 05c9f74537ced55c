// Package consumer implements the demand side of the market. A consumer
// reports its demand to its building every period and covers whatever the
// building could not supply from the battery or from its provider,
// whichever is cheaper.
package consumer

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
	"github.com/kilianp07/wsd/core/prediction"
	"github.com/kilianp07/wsd/core/registry"
)

// Config describes one consumer.
type Config struct {
	Name     string
	Building string
	// Provider is the fallback supplier id.
	Provider string
	// Demand is the baseline demand per period.
	Demand float64
	// ProviderPrice is the provider's fixed price. Zero draws one in [0.01, 1).
	ProviderPrice  float64
	OfferEvery     time.Duration
	DiscoveryDelay time.Duration
}

// Deps are the collaborators of a consumer.
type Deps struct {
	Bus       bus.Bus
	Registry  registry.Registry
	Events    events.Publisher
	Logger    logger.Logger
	Predictor prediction.Predictor
	Rand      *rand.Rand
	Now       func() time.Time
}

// Consumer is the actor state. It must only be used from its loop.
type Consumer struct {
	cfg  Config
	self model.ActorRef
	Deps

	building      model.ActorRef
	battery       model.ActorRef
	provider      string
	providerPrice float64
	predicted     float64
	actual        float64
	// last battery price accepted
	quoted float64
}

// New creates a consumer.
func New(cfg Config, deps Deps) *Consumer {
	if deps.Events == nil {
		deps.Events = events.NopPublisher{}
	}
	if deps.Predictor == nil {
		deps.Predictor = prediction.Fixed{}
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewSource(1))
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	c := &Consumer{cfg: cfg, self: model.NewRef(cfg.Name), Deps: deps, provider: cfg.Provider}
	c.providerPrice = cfg.ProviderPrice
	if c.providerPrice <= 0 {
		c.providerPrice = 0.01 + c.Rand.Float64()*0.99
	}
	return c
}

// Ref returns the consumer's address.
func (c *Consumer) Ref() model.ActorRef { return c.self }

// Register publishes the consumer under CONSUMER/name.
func (c *Consumer) Register() error {
	return c.Registry.Register(c.self, model.ServiceConsumer, c.cfg.Name)
}

// Loop builds the actor loop: discovery once, then an offer every period.
func (c *Consumer) Loop() *actor.Loop {
	return actor.NewLoop(c.self, "consumer", c, c.Bus, c.Events, c.Logger).
		After("discover", c.cfg.DiscoveryDelay, c.Discover).
		Every("offer", c.cfg.OfferEvery, c.OfferDemand)
}

// Demand is the residual demand not yet covered.
func (c *Consumer) Demand() float64 { return c.actual }

// Provider is the current fallback provider.
func (c *Consumer) Provider() string { return c.provider }

// ProviderPrice is the provider's fixed price.
func (c *Consumer) ProviderPrice() float64 { return c.providerPrice }

// Battery is the battery of the building, zero when it has none.
func (c *Consumer) Battery() model.ActorRef { return c.battery }

// Discover resolves the building and registers with it. The reply names the
// building's battery.
func (c *Consumer) Discover(ctx context.Context) {
	ref, err := registry.First(c.Registry, model.ServiceBuilding, c.cfg.Building)
	if err != nil {
		c.Logger.Warnf("building %s unavailable: %v", c.cfg.Building, err)
		return
	}
	c.building = ref
	c.send(ctx, message.New(c.self, message.TopicGetBattery, message.BatteryQuery{}, ref))
}

// OfferDemand adds this period's predicted demand and reports the running
// total to the building.
func (c *Consumer) OfferDemand(ctx context.Context) {
	if c.building.IsZero() {
		c.Discover(ctx)
		if c.building.IsZero() {
			return
		}
	}
	c.predicted = math.Max(0, c.Predictor.Predict(c.cfg.Demand))
	c.actual += c.predicted
	c.Logger.Debugf("offering %.3f (predicted %.3f)", c.actual, c.predicted)
	c.send(ctx, message.New(c.self, message.TopicOffer, message.Offer{Provider: c.provider, Demand: c.actual}, c.building))
}

// Handle dispatches one inbox message.
func (c *Consumer) Handle(ctx context.Context, msg message.Message) error {
	switch p := msg.Payload.(type) {
	case message.Supply:
		c.onSupply(ctx, p.Amount)
	case message.PriceQuote:
		c.onPrice(ctx, msg.Sender, p.Price)
	case message.Withdrawn:
		c.onWithdrawn(ctx, msg.Sender, p.Amount)
	case message.BatteryInfo:
		c.onBatteryInfo(p.Name)
	case message.UpdateProvider:
		c.Logger.Infof("provider %s -> %s", c.provider, p.Provider)
		c.provider = p.Provider
		if !c.building.IsZero() {
			c.send(ctx, message.New(c.self, message.TopicUpdateProvider, p, c.building))
		}
	case message.ConsumerCharging:
		c.actual += p.Extra
		c.Logger.Debugf("charging event adds %.3f, demand now %.3f", p.Extra, c.actual)
	case message.NotUnderstood:
		c.Logger.Warnf("%s did not understand %s: %s", msg.Sender, p.Topic, p.Reason)
	default:
		return fmt.Errorf("%w: %s %T", actor.ErrNotUnderstood, msg.Topic, msg.Payload)
	}
	return nil
}

func (c *Consumer) onSupply(ctx context.Context, amount float64) {
	c.consume(amount)
	if c.actual <= 0 || c.battery.IsZero() {
		c.fallback()
		return
	}
	c.send(ctx, message.New(c.self, message.TopicGetPrice, message.PriceQuery{}, c.battery))
}

func (c *Consumer) onPrice(ctx context.Context, from model.ActorRef, price float64) {
	if c.actual <= 0 {
		return
	}
	if price > c.providerPrice {
		c.Logger.Debugf("battery price %.3f above provider price %.3f", price, c.providerPrice)
		c.fallback()
		return
	}
	c.quoted = price
	c.send(ctx, message.New(c.self, message.TopicRequestMedium, message.Withdraw{Demand: c.actual, AgreedPrice: price}, from))
}

func (c *Consumer) onWithdrawn(_ context.Context, from model.ActorRef, amount float64) {
	c.consume(amount)
	if amount > 0 {
		c.Events.Publish(events.ShortageEvent{
			Consumer: c.cfg.Name,
			Building: c.cfg.Building,
			Source:   events.SourceBattery,
			Amount:   amount,
			Price:    c.quoted,
			Time:     c.Now(),
		})
		c.Logger.Infof("withdrew %.3f from %s", amount, from)
	}
	if c.actual > 0 {
		c.fallback()
	}
}

func (c *Consumer) onBatteryInfo(name string) {
	if name == "" {
		c.battery = model.ActorRef{}
		c.Logger.Infof("building %s has no battery", c.cfg.Building)
		return
	}
	ref, err := registry.First(c.Registry, model.ServiceBattery, name)
	if err != nil {
		c.Logger.Warnf("battery %s unavailable: %v", name, err)
		c.battery = model.ActorRef{}
		return
	}
	c.battery = ref
}

// fallback buys the residual demand from the provider. The purchase itself
// happens outside the market, so the residual is settled here.
func (c *Consumer) fallback() {
	if c.actual <= 0 {
		c.Logger.Debugf("nothing left for provider %s", c.provider)
		return
	}
	c.Logger.Infof("buying %.3f from provider %s at %.3f", c.actual, c.provider, c.providerPrice)
	c.Events.Publish(events.ShortageEvent{
		Consumer: c.cfg.Name,
		Building: c.cfg.Building,
		Source:   events.SourceProvider,
		Amount:   c.actual,
		Price:    c.providerPrice,
		Time:     c.Now(),
	})
	c.actual = 0
}

func (c *Consumer) consume(amount float64) {
	c.actual -= amount
	if c.actual < 0 {
		c.Logger.Debugf("over-supplied by %.3f", -c.actual)
		c.actual = 0
	}
}

// Close tells the building the consumer is leaving and deregisters it.
func (c *Consumer) Close(ctx context.Context) {
	if !c.building.IsZero() {
		c.send(ctx, message.New(c.self, message.TopicCancelConsumer, message.CancelConsumer{}, c.building))
	}
	c.Registry.Deregister(c.self)
}

func (c *Consumer) send(ctx context.Context, msg message.Message) {
	if err := c.Bus.Send(ctx, msg); err != nil {
		c.Logger.Warnf("send %s: %v", msg.Topic, err)
	}
}
