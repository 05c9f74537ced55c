package app

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"net/http"
	"sync"
	"time"

	actorsapi "github.com/kilianp07/wsd/api/actors"
	ledgerapi "github.com/kilianp07/wsd/api/ledger"
	"github.com/kilianp07/wsd/config"
	"github.com/kilianp07/wsd/core/actor"
	"github.com/kilianp07/wsd/core/battery"
	"github.com/kilianp07/wsd/core/building"
	"github.com/kilianp07/wsd/core/bus"
	"github.com/kilianp07/wsd/core/consumer"
	"github.com/kilianp07/wsd/core/events"
	"github.com/kilianp07/wsd/core/ledger"
	coremetrics "github.com/kilianp07/wsd/core/metrics"
	"github.com/kilianp07/wsd/core/message"
	"github.com/kilianp07/wsd/core/model"
	"github.com/kilianp07/wsd/core/monitoring"
	"github.com/kilianp07/wsd/core/prediction"
	"github.com/kilianp07/wsd/core/registry"
	"github.com/kilianp07/wsd/core/status"
	"github.com/kilianp07/wsd/infra/localbus"
	"github.com/kilianp07/wsd/infra/logger"
	"github.com/kilianp07/wsd/infra/metrics"
	"github.com/kilianp07/wsd/infra/mqtt"
	"github.com/kilianp07/wsd/internal/eventbus"
)

// actorRunner is one hosted actor: its address, loop and lifecycle hooks.
type actorRunner struct {
	ref        model.ActorRef
	loop       *actor.Loop
	register   func() error
	deregister func()
}

// Service hosts the configured actors and their supporting infrastructure.
type Service struct {
	cfg      *config.Config
	log      logger.Logger
	events   *eventbus.Bus
	bus      bus.Bus
	closeBus func()
	Registry *registry.MemoryRegistry
	Status   *status.MemoryStore
	sink     coremetrics.MetricsSink
	ledger   ledger.LogStore

	actors    []actorRunner
	consumers []*consumer.Consumer
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	store, err := cfg.Ledger.Open()
	if err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}
	evs := eventbus.New()
	b, closeBus, err := newBus(cfg.Transport, evs)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("transport: %w", err)
	}
	s := &Service{
		cfg:      cfg,
		log:      logger.New("service"),
		events:   evs,
		bus:      b,
		closeBus: closeBus,
		Registry: registry.NewMemoryRegistry(),
		Status:   status.NewMemoryStore(),
		sink:     sink,
		ledger:   store,
	}
	if err := s.buildActors(); err != nil {
		s.shutdown()
		return nil, err
	}
	return s, nil
}

// NewWithBus creates a Service on an existing bus. Transport settings are
// ignored.
func NewWithBus(cfg *config.Config, b bus.Bus) (*Service, error) {
	s := &Service{
		cfg:      cfg,
		log:      logger.New("service"),
		events:   eventbus.New(),
		bus:      b,
		closeBus: func() {},
		Registry: registry.NewMemoryRegistry(),
		Status:   status.NewMemoryStore(),
		sink:     coremetrics.NopSink{},
		ledger:   ledger.NopStore{},
	}
	if err := s.buildActors(); err != nil {
		return nil, err
	}
	return s, nil
}

func newBus(cfg config.TransportConfig, pub events.Publisher) (bus.Bus, func(), error) {
	switch cfg.Kind {
	case "", "local":
		lb := localbus.New()
		return lb, lb.Close, nil
	case "mqtt":
		codec, err := message.CodecFor(cfg.Encoding)
		if err != nil {
			return nil, nil, err
		}
		t, err := mqtt.NewTransport(cfg.MQTT, codec)
		if err != nil {
			return nil, nil, err
		}
		t.SetPublisher(pub)
		return t, t.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown transport %s", cfg.Kind)
	}
}

// seedFor derives a per-actor seed so runs are reproducible whatever the
// start order.
func seedFor(seed int64, name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return seed ^ int64(h.Sum64())
}

func (s *Service) buildActors() error {
	sim := s.cfg.Simulation
	for _, bc := range s.cfg.Buildings {
		names := append([]string{bc.Name}, bc.Estates...)
		s.Status.Set(status.Status{Name: bc.Name, Kind: model.ServiceBuilding.String(), Local: s.cfg.Node.Hosts(bc.Name)})
		if !s.cfg.Node.Hosts(bc.Name) {
			if err := s.Registry.Register(model.NewRef(bc.Name), model.ServiceBuilding, names...); err != nil {
				return err
			}
			continue
		}
		rng := rand.New(rand.NewSource(seedFor(sim.Seed, bc.Name)))
		pred, err := prediction.New(bc.Predictor, rng)
		if err != nil {
			return fmt.Errorf("building %s predictor: %w", bc.Name, err)
		}
		b := building.New(building.Config{
			Name:          bc.Name,
			Production:    bc.Production,
			Estates:       bc.Estates,
			PredictEvery:  sim.Duration(sim.PredictMS),
			DeadlineEvery: sim.Duration(sim.DeadlineMS),
			SettleEvery:   sim.Duration(sim.SettleMS),
		}, building.Deps{
			Bus:       s.bus,
			Registry:  s.Registry,
			Events:    s.events,
			Logger:    logger.New("building").With("actor", bc.Name),
			Predictor: pred,
			Rand:      rng,
		})
		s.actors = append(s.actors, actorRunner{ref: b.Ref(), loop: b.Loop(), register: b.Register, deregister: b.Deregister})
	}
	for _, bc := range s.cfg.Batteries {
		s.Status.Set(status.Status{Name: bc.Name, Kind: model.ServiceBattery.String(), Building: bc.Building, Local: s.cfg.Node.Hosts(bc.Name)})
		if !s.cfg.Node.Hosts(bc.Name) {
			if err := s.Registry.Register(model.NewRef(bc.Name), model.ServiceBattery, bc.Name); err != nil {
				return err
			}
			continue
		}
		b := battery.New(battery.Config{
			Name:            bc.Name,
			Building:        bc.Building,
			TotalCapacity:   bc.TotalCapacity,
			InitialCapacity: bc.InitialCapacity,
			Drift:           bc.Drift,
			DiscoveryDelay:  sim.Duration(sim.BatteryDiscoveryMS),
		}, battery.Deps{
			Bus:      s.bus,
			Registry: s.Registry,
			Events:   s.events,
			Logger:   logger.New("battery").With("actor", bc.Name),
			Rand:     rand.New(rand.NewSource(seedFor(sim.Seed, bc.Name))),
		})
		s.actors = append(s.actors, actorRunner{ref: b.Ref(), loop: b.Loop(), register: b.Register, deregister: b.Deregister})
	}
	for _, cc := range s.cfg.Consumers {
		s.Status.Set(status.Status{Name: cc.Name, Kind: model.ServiceConsumer.String(), Building: cc.Building, Local: s.cfg.Node.Hosts(cc.Name)})
		if !s.cfg.Node.Hosts(cc.Name) {
			if err := s.Registry.Register(model.NewRef(cc.Name), model.ServiceConsumer, cc.Name); err != nil {
				return err
			}
			continue
		}
		rng := rand.New(rand.NewSource(seedFor(sim.Seed, cc.Name)))
		pred, err := prediction.New(cc.Predictor, rng)
		if err != nil {
			return fmt.Errorf("consumer %s predictor: %w", cc.Name, err)
		}
		c := consumer.New(consumer.Config{
			Name:           cc.Name,
			Building:       cc.Building,
			Provider:       cc.Provider,
			Demand:         cc.Demand,
			ProviderPrice:  cc.ProviderPrice,
			OfferEvery:     sim.Duration(sim.OfferMS),
			DiscoveryDelay: sim.Duration(sim.ConsumerDiscoveryMS),
		}, consumer.Deps{
			Bus:       s.bus,
			Registry:  s.Registry,
			Events:    s.events,
			Logger:    logger.New("consumer").With("actor", cc.Name),
			Predictor: pred,
			Rand:      rng,
		})
		s.consumers = append(s.consumers, c)
		s.actors = append(s.actors, actorRunner{ref: c.Ref(), loop: c.Loop(), register: c.Register, deregister: func() { s.Registry.Deregister(c.Ref()) }})
	}
	return nil
}

// Handlers returns the HTTP API served next to /metrics.
func (s *Service) Handlers() map[string]http.Handler {
	h := map[string]http.Handler{
		"/api/actors/status":  actorsapi.NewStatusHandler(s.Status),
		"/api/consumers/":     actorsapi.NewControlHandler(s.bus, s.Registry, s.cfg.API.Token),
		"/api/ledger":         ledgerapi.NewLogHandler(s.ledger, s.cfg.API.Token),
		"/api/ledger/summary": ledgerapi.NewSummaryHandler(s.ledger, s.cfg.API.Token),
	}
	if store, ok := metrics.FindKPIStore(s.sink); ok {
		h["/api/buildings/"] = actorsapi.NewKPIHandler(store)
	}
	return h
}

// Run registers and attaches every hosted actor, then runs their loops until
// ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	collectorDone := metrics.StartEventCollector(ctx, s.events, s.sink)
	recorderDone := ledger.StartRecorder(ctx, s.events, s.ledger, s.log)
	trackerDone := status.StartTracker(ctx, s.events, s.Status)

	stop := func() {
		s.events.Close()
		<-collectorDone
		<-recorderDone
		<-trackerDone
	}

	// Every mailbox exists before any timer can send.
	inboxes := make([]<-chan message.Message, len(s.actors))
	for i, a := range s.actors {
		if err := a.register(); err != nil {
			s.unwind(i, false)
			stop()
			return fmt.Errorf("register %s: %w", a.ref, err)
		}
		inbox, err := s.bus.Attach(a.ref)
		if err != nil {
			s.unwind(i, true)
			stop()
			return fmt.Errorf("attach %s: %w", a.ref, err)
		}
		inboxes[i] = inbox
	}

	if addr := s.cfg.Metrics.ListenAddr; addr != "" {
		go func() {
			if err := metrics.StartServer(ctx, addr, s.Handlers()); err != nil {
				s.log.Errorf("http server: %v", err)
				monitoring.CaptureException(err, map[string]string{"component": "http"})
			}
		}()
	}

	var wg sync.WaitGroup
	for i, a := range s.actors {
		wg.Add(1)
		go func(a actorRunner, inbox <-chan message.Message) {
			defer wg.Done()
			if err := a.loop.Run(ctx, inbox); err != nil && ctx.Err() == nil {
				s.log.Errorf("actor %s stopped: %v", a.ref, err)
			}
		}(a, inboxes[i])
	}
	s.log.Infof("running %d actors", len(s.actors))
	wg.Wait()

	s.leave()
	stop()
	return nil
}

// unwind deregisters and detaches the first n actors after a failed start.
// registered reports whether actor n itself got registered.
func (s *Service) unwind(n int, registered bool) {
	if registered {
		s.actors[n].deregister()
	}
	for _, a := range s.actors[:n] {
		a.deregister()
		s.bus.Detach(a.ref)
	}
}

// leave announces departures once the loops have stopped.
func (s *Service) leave() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for _, c := range s.consumers {
		c.Close(ctx)
	}
	for _, a := range s.actors {
		a.deregister()
		s.bus.Detach(a.ref)
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.shutdown()
	monitoring.Flush(2 * time.Second)
	return nil
}

func (s *Service) shutdown() {
	if s.closeBus != nil {
		s.closeBus()
	}
	if s.ledger != nil {
		if err := s.ledger.Close(); err != nil {
			s.log.Warnf("close ledger: %v", err)
		}
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
}
