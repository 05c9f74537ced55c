// Package actor runs an actor's mailbox and timers on a single goroutine.
package actor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/wsd/core/bus"
	"github.com/kilianp07/wsd/core/events"
	"github.com/kilianp07/wsd/core/logger"
	"github.com/kilianp07/wsd/core/message"
	"github.com/kilianp07/wsd/core/model"
	"github.com/kilianp07/wsd/core/monitoring"
)

// ErrNotUnderstood marks a message the actor has no behaviour for. The loop
// answers it with NOT_UNDERSTOOD.
var ErrNotUnderstood = errors.New("not understood")

// Handler processes one inbox message.
type Handler interface {
	Handle(ctx context.Context, msg message.Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg message.Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg message.Message) error { return f(ctx, msg) }

type timer struct {
	name   string
	every  bool
	period time.Duration
	fn     func(context.Context)
}

// Loop is the event loop of one actor. Messages and timer callbacks never run
// concurrently with each other.
type Loop struct {
	self    model.ActorRef
	kind    string
	handler Handler
	bus     bus.Bus
	events  events.Publisher
	log     logger.Logger
	timers  []timer
}

// NewLoop creates the loop of actor self. kind labels metrics and logs.
func NewLoop(self model.ActorRef, kind string, h Handler, b bus.Bus, ev events.Publisher, log logger.Logger) *Loop {
	if ev == nil {
		ev = events.NopPublisher{}
	}
	return &Loop{self: self, kind: kind, handler: h, bus: b, events: ev, log: log}
}

// Every schedules fn every period, first after one period.
func (l *Loop) Every(name string, period time.Duration, fn func(context.Context)) *Loop {
	l.timers = append(l.timers, timer{name: name, every: true, period: period, fn: fn})
	return l
}

// After schedules fn once after delay.
func (l *Loop) After(name string, delay time.Duration, fn func(context.Context)) *Loop {
	l.timers = append(l.timers, timer{name: name, period: delay, fn: fn})
	return l
}

// Run processes inbox and timers until ctx is done or inbox is closed.
func (l *Loop) Run(ctx context.Context, inbox <-chan message.Message) error {
	fired := make(chan int)
	for i, t := range l.timers {
		go l.schedule(ctx, i, t, fired)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-inbox:
			if !ok {
				return nil
			}
			l.Deliver(ctx, msg)
		case i := <-fired:
			l.Fire(ctx, l.timers[i].name)
		}
	}
}

func (l *Loop) schedule(ctx context.Context, i int, t timer, fired chan<- int) {
	if t.period <= 0 {
		t.period = time.Millisecond
	}
	if !t.every {
		select {
		case <-ctx.Done():
		case <-time.After(t.period):
			select {
			case fired <- i:
			case <-ctx.Done():
			}
		}
		return
	}
	tick := time.NewTicker(t.period)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			select {
			case fired <- i:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Fire runs the timer callback registered under name.
func (l *Loop) Fire(ctx context.Context, name string) {
	for _, t := range l.timers {
		if t.name != name {
			continue
		}
		defer l.recover("timer " + name)
		timerRuns.WithLabelValues(l.kind, name).Inc()
		t.fn(ctx)
		return
	}
	l.log.Warnf("no timer named %s", name)
}

// Deliver validates msg and hands it to the handler.
func (l *Loop) Deliver(ctx context.Context, msg message.Message) {
	defer l.recover(msg.Topic.String())
	if msg.Payload == nil {
		l.drop(msg, "malformed", fmt.Errorf("%w: missing payload", message.ErrMalformed))
		return
	}
	if err := msg.Payload.Validate(); err != nil {
		l.drop(msg, "malformed", err)
		return
	}
	err := l.handler.Handle(ctx, msg)
	switch {
	case err == nil:
		messagesHandled.WithLabelValues(l.kind, msg.Topic.String()).Inc()
	case errors.Is(err, ErrNotUnderstood):
		l.drop(msg, "not_understood", err)
		if msg.Topic == message.TopicNotUnderstood {
			return
		}
		if serr := l.bus.Send(ctx, msg.NotUnderstoodReply(l.self, err.Error())); serr != nil {
			l.log.Warnf("NOT_UNDERSTOOD to %s: %v", msg.Sender, serr)
		}
	case errors.Is(err, message.ErrMalformed):
		l.drop(msg, "malformed", err)
	default:
		l.log.Errorf("handling %s from %s: %v", msg.Topic, msg.Sender, err)
		monitoring.CaptureException(err, map[string]string{"actor": l.self.Name, "topic": msg.Topic.String()})
	}
}

func (l *Loop) drop(msg message.Message, reason string, err error) {
	l.log.Warnf("dropping %s from %s: %v", msg.Topic, msg.Sender, err)
	RecordDrop(l.events, l.self.Name, l.kind, msg.Topic.String(), reason)
}

// RecordDrop counts a discarded message and announces it on pub. Transports
// use it for messages that never reach an actor loop.
func RecordDrop(pub events.Publisher, name, kind, topic, reason string) {
	messagesDropped.WithLabelValues(kind, reason).Inc()
	pub.Publish(events.DropEvent{Actor: name, Topic: topic, Reason: reason, Time: time.Now()})
}

func (l *Loop) recover(where string) {
	if r := recover(); r != nil {
		handlerPanics.WithLabelValues(l.kind).Inc()
		l.log.Errorf("panic in %s: %v", where, r)
		monitoring.CapturePanic(r, map[string]string{"actor": l.self.Name, "where": where})
	}
}
