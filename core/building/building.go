// Package building implements the orchestration actor of the market. A
// building aggregates its consumers' demand, keeps its battery topped up,
// negotiates shortfalls with its neighbours and settles every period.
package building

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
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

// Config describes one building.
type Config struct {
	Name string
	// Production is the baseline production per period.
	Production float64
	// Estates are the neighbourhood ids the building belongs to.
	Estates []string
	// Phase periods.
	PredictEvery  time.Duration
	DeadlineEvery time.Duration
	SettleEvery   time.Duration
}

// Deps are the collaborators of a building.
type Deps struct {
	Bus       bus.Bus
	Registry  registry.Registry
	Events    events.Publisher
	Logger    logger.Logger
	Predictor prediction.Predictor
	Rand      *rand.Rand
	Now       func() time.Time
}

type batteryInfo struct {
	ref      model.ActorRef
	total    float64
	capacity float64
	state    model.BatteryState
	reported bool
}

// Building is the actor state. It must only be used from its loop.
type Building struct {
	cfg  Config
	self model.ActorRef
	Deps

	battery   batteryInfo
	consumers []model.ActorRef

	period      int
	predicted   float64
	actual      float64
	totalDemand float64
	offersCount int

	// consumer demand of the period; Amount is the unmet part
	requests model.OfferBook
	reported map[model.ActorRef]bool
	// offers received from peers during negotiation
	proposals model.OfferBook
	accepted  []events.Transfer
	returned  float64
	// medium set aside for peers that asked us
	reserved model.OfferBook

	outstanding     int
	negotiating     bool
	planFinalized   bool
	selected        bool
	priorityCharged bool
}

// New creates a building.
func New(cfg Config, deps Deps) *Building {
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
	return &Building{cfg: cfg, self: model.NewRef(cfg.Name), Deps: deps}
}

// ParseEstates splits a '-'-separated estate list.
func ParseEstates(s string) []string {
	var out []string
	for _, e := range strings.Split(s, "-") {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, e)
		}
	}
	return out
}

// Ref returns the building's address.
func (b *Building) Ref() model.ActorRef { return b.self }

// Register publishes the building under its own name and every estate.
func (b *Building) Register() error {
	names := append([]string{b.cfg.Name}, b.cfg.Estates...)
	return b.Registry.Register(b.self, model.ServiceBuilding, names...)
}

// Deregister removes the building from the registry.
func (b *Building) Deregister() { b.Registry.Deregister(b.self) }

// Loop builds the actor loop with the three phase timers.
func (b *Building) Loop() *actor.Loop {
	return actor.NewLoop(b.self, "building", b, b.Bus, b.Events, b.Logger).
		Every("predict", b.cfg.PredictEvery, b.PredictPhase).
		Every("deadline", b.cfg.DeadlineEvery, b.PlanDeadline).
		Every("settle", b.cfg.SettleEvery, b.Settle)
}

// Snapshot is a read-only view of the period state.
type Snapshot struct {
	Period          int
	Predicted       float64
	Actual          float64
	TotalDemand     float64
	Consumers       int
	Offers          int
	Outstanding     int
	Negotiating     bool
	PlanFinalized   bool
	Battery         string
	BatteryCapacity float64
	BatteryState    model.BatteryState
	Reserved        float64
}

// Snapshot returns the current period state.
func (b *Building) Snapshot() Snapshot {
	return Snapshot{
		Period:          b.period,
		Predicted:       b.predicted,
		Actual:          b.actual,
		TotalDemand:     b.totalDemand,
		Consumers:       len(b.consumers),
		Offers:          b.offersCount,
		Outstanding:     b.outstanding,
		Negotiating:     b.negotiating,
		PlanFinalized:   b.planFinalized,
		Battery:         b.battery.ref.Name,
		BatteryCapacity: b.battery.capacity,
		BatteryState:    b.battery.state,
		Reserved:        b.reserved.Total(),
	}
}

// PredictPhase forecasts production and asks the battery for its state.
func (b *Building) PredictPhase(ctx context.Context) {
	b.predicted = b.Predictor.Predict(b.cfg.Production)
	b.actual = b.predicted
	b.Logger.Debugf("period %d: predicted production %.3f", b.period, b.predicted)
	if !b.battery.ref.IsZero() {
		b.send(ctx, message.New(b.self, message.TopicBatteryCapacity, message.CapacityQuery{}, b.battery.ref))
	}
}

// PlanDeadline forces plan creation even if some consumers never reported.
func (b *Building) PlanDeadline(ctx context.Context) {
	b.createSupplyPlan(ctx)
}

// Handle dispatches one inbox message.
func (b *Building) Handle(ctx context.Context, msg message.Message) error {
	switch p := msg.Payload.(type) {
	case message.Offer:
		b.onOffer(ctx, msg.Sender, p)
	case message.CancelConsumer:
		b.removeConsumer(msg.Sender)
	case message.DeclareBattery:
		b.battery = batteryInfo{ref: msg.Sender, total: float64(p.TotalCapacity)}
		b.Logger.Infof("battery %s declared with capacity %d", msg.Sender, p.TotalCapacity)
	case message.CapacityReport:
		if msg.Sender != b.battery.ref {
			return fmt.Errorf("%w: capacity report from %s", actor.ErrNotUnderstood, msg.Sender)
		}
		b.battery.capacity, b.battery.state, b.battery.reported = p.Capacity, p.State, true
	case message.BatteryQuery:
		b.addConsumer(msg.Sender)
		b.send(ctx, msg.Reply(b.self, message.BatteryInfo{Name: b.battery.ref.Name}))
	case message.ReserveRequest:
		b.onReserveRequest(ctx, msg)
	case message.MediumOffer:
		b.onMediumOffer(ctx, msg.Sender, p)
	case message.UpdateProvider:
		for i := range b.requests {
			if b.requests[i].Counterparty == msg.Sender {
				b.requests[i].Provider = p.Provider
			}
		}
	case message.NotUnderstood:
		b.Logger.Warnf("%s did not understand %s: %s", msg.Sender, p.Topic, p.Reason)
	default:
		return fmt.Errorf("%w: %s %T", actor.ErrNotUnderstood, msg.Topic, msg.Payload)
	}
	return nil
}

// onOffer records a consumer's demand. A second offer in the same period
// replaces the first since consumers report their cumulative demand.
func (b *Building) onOffer(ctx context.Context, from model.ActorRef, p message.Offer) {
	b.addConsumer(from)
	if b.reported == nil {
		b.reported = make(map[model.ActorRef]bool)
	}
	if b.reported[from] {
		for _, r := range b.requests {
			if r.Counterparty == from {
				b.totalDemand -= r.Amount
			}
		}
		b.requests.Remove(from)
	} else {
		b.reported[from] = true
		b.offersCount++
	}
	b.totalDemand += p.Demand
	if p.Demand > 0 {
		b.requests = b.requests.Add(model.Offer{Counterparty: from, Amount: p.Demand, Provider: p.Provider})
	}
	if b.offersCount == len(b.consumers) {
		b.createSupplyPlan(ctx)
	}
}

func (b *Building) addConsumer(ref model.ActorRef) {
	for _, c := range b.consumers {
		if c == ref {
			return
		}
	}
	b.consumers = append(b.consumers, ref)
}

func (b *Building) removeConsumer(ref model.ActorRef) {
	for i, c := range b.consumers {
		if c == ref {
			b.consumers = append(b.consumers[:i], b.consumers[i+1:]...)
			break
		}
	}
	if b.reported[ref] {
		delete(b.reported, ref)
		b.offersCount--
		for _, r := range b.requests {
			if r.Counterparty == ref {
				b.totalDemand -= r.Amount
			}
		}
		b.requests.Remove(ref)
	}
	b.Logger.Infof("consumer %s left, %d remaining", ref, len(b.consumers))
}

func (b *Building) onMediumOffer(ctx context.Context, from model.ActorRef, p message.MediumOffer) {
	if p.IsReturn {
		if !b.reserved.Reduce(from, p.Amount) {
			b.Logger.Debugf("return of %.3f from %s matches no reservation", p.Amount, from)
		}
		return
	}
	if !b.negotiating || b.selected {
		b.Logger.Warnf("late offer of %.3f from %s sent back", p.Amount, from)
		if p.Amount > 0 {
			b.send(ctx, message.New(b.self, message.TopicMediumNeeded, message.MediumOffer{Amount: p.Amount, IsReturn: true}, from))
		}
		return
	}
	if p.Amount > 0 {
		b.proposals = b.proposals.Add(model.Offer{Counterparty: from, Amount: p.Amount, Price: p.Price})
	}
	if b.outstanding > 0 {
		b.outstanding--
	}
	b.createSupplyPlan(ctx)
}

func (b *Building) send(ctx context.Context, msg message.Message) {
	if err := b.Bus.Send(ctx, msg); err != nil {
		b.Logger.Warnf("send %s: %v", msg.Topic, err)
	}
}
