package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/wsd/core/actor"
	"github.com/kilianp07/wsd/core/bus"
	"github.com/kilianp07/wsd/core/events"
	"github.com/kilianp07/wsd/core/message"
	"github.com/kilianp07/wsd/core/model"
	coremon "github.com/kilianp07/wsd/core/monitoring"
	"github.com/kilianp07/wsd/infra/logger"
	"github.com/kilianp07/wsd/internal/eventbus"
)

// Transport implements bus.Bus over an MQTT broker. Every attached actor
// subscribes to its own inbox topic; Send publishes one copy per receiver.
type Transport struct {
	cli        pahoClient
	codec      message.Codec
	prefix     string
	qos        byte
	maxRetries int
	backoff    time.Duration
	logger     logger.Logger
	events     events.Publisher

	mu    sync.RWMutex
	boxes map[model.ActorRef]*eventbus.Mailbox[message.Message]
}

var _ bus.Bus = (*Transport)(nil)

// NewTransport connects to the broker described by cfg.
func NewTransport(cfg Config, codec message.Codec) (*Transport, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	log := logger.New("mqtt_transport")
	t := &Transport{
		codec:      codec,
		prefix:     cfg.TopicPrefix,
		qos:        cfg.QoS["inbox"],
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
		logger:     log,
		events:     events.NopPublisher{},
		boxes:      make(map[model.ActorRef]*eventbus.Mailbox[message.Message]),
	}
	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		t.resubscribe()
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	t.cli = c
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return t, nil
}

// SetPublisher sets where drop events for undecodable messages go. It must
// be called before the first Attach.
func (t *Transport) SetPublisher(pub events.Publisher) {
	if pub != nil {
		t.events = pub
	}
}

// InboxTopic returns the topic an actor receives on.
func (t *Transport) InboxTopic(name string) string {
	return fmt.Sprintf("%s/%s/inbox", t.prefix, name)
}

func (t *Transport) Attach(ref model.ActorRef) (<-chan message.Message, error) {
	t.mu.Lock()
	if _, ok := t.boxes[ref]; ok {
		t.mu.Unlock()
		return nil, fmt.Errorf("attach %s: already attached", ref)
	}
	box := eventbus.NewMailbox[message.Message]()
	t.boxes[ref] = box
	t.mu.Unlock()

	if err := t.subscribe(ref, box); err != nil {
		t.mu.Lock()
		delete(t.boxes, ref)
		t.mu.Unlock()
		box.Close()
		return nil, err
	}
	return box.C(), nil
}

func (t *Transport) subscribe(ref model.ActorRef, box *eventbus.Mailbox[message.Message]) error {
	if t.cli == nil || !t.cli.IsConnected() {
		// OnConnect subscribes once the session is up.
		return nil
	}
	topic := t.InboxTopic(ref.Name)
	token := t.cli.Subscribe(topic, t.qos, t.handler(ref, box))
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", topic, token.Error())
	}
	return nil
}

func (t *Transport) resubscribe() {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for ref, box := range t.boxes {
		if err := t.subscribe(ref, box); err != nil {
			t.logger.Errorf("%v", err)
		}
	}
}

func (t *Transport) handler(ref model.ActorRef, box *eventbus.Mailbox[message.Message]) paho.MessageHandler {
	return func(_ paho.Client, pm paho.Message) {
		msg, err := t.codec.Decode(pm.Payload())
		if err != nil {
			t.reject(ref, pm.Payload(), err)
			return
		}
		box.Put(msg)
	}
}

// reject records an inbox message that could not be decoded. A message whose
// only fault is an unknown topic is answered with NOT_UNDERSTOOD, like an
// actor answers a topic it has no behaviour for.
func (t *Transport) reject(ref model.ActorRef, data []byte, err error) {
	h, herr := message.PeekHeader(data)
	t.logger.Warnf("dropping %q from %s for %s: %v", h.Topic, h.Sender, ref, err)
	if herr != nil || !errors.Is(err, message.ErrUnknownTopic) {
		actor.RecordDrop(t.events, ref.Name, "transport", h.Topic, "malformed")
		return
	}
	actor.RecordDrop(t.events, ref.Name, "transport", h.Topic, "not_understood")
	if h.Sender.IsZero() || h.Topic == message.TopicNotUnderstood.String() {
		return
	}
	reply := message.New(ref, message.TopicNotUnderstood, message.NotUnderstood{Topic: h.Topic, Reason: err.Error()}, h.Sender)
	reply.ReplyTo = h.ID
	// paho runs handlers on its router goroutine; waiting on a publish
	// token there can stall the client.
	go func() {
		if err := t.Send(context.Background(), reply); err != nil {
			t.logger.Warnf("not understood reply to %s: %v", h.Sender, err)
		}
	}()
}

func (t *Transport) Detach(ref model.ActorRef) {
	t.mu.Lock()
	box, ok := t.boxes[ref]
	delete(t.boxes, ref)
	t.mu.Unlock()
	if !ok {
		return
	}
	if t.cli != nil && t.cli.IsConnected() {
		if token := t.cli.Unsubscribe(t.InboxTopic(ref.Name)); token.Wait() && token.Error() != nil {
			t.logger.Warnf("unsubscribe %s: %v", ref, token.Error())
		}
	}
	box.Close()
}

// Send publishes msg to the inbox of every receiver, retrying with
// exponential backoff.
func (t *Transport) Send(ctx context.Context, msg message.Message) error {
	payload, err := t.codec.Encode(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Topic, err)
	}
	var errs []error
	for _, r := range msg.Receivers {
		if err := t.publish(ctx, t.InboxTopic(r.Name), payload); err != nil {
			coremon.CaptureException(err, map[string]string{"topic": msg.Topic.String(), "receiver": r.Name})
			errs = append(errs, fmt.Errorf("%s to %s: %w", msg.Topic, r, err))
		}
	}
	return errors.Join(errs...)
}

func (t *Transport) publish(ctx context.Context, topic string, payload []byte) error {
	var publishErr error
	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		token := t.cli.Publish(topic, t.qos, false, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			return nil
		}
		t.logger.Errorf("publish attempt %d to %s failed: %v", attempt+1, topic, publishErr)
		if attempt == t.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.backoff * time.Duration(1<<attempt)):
		}
	}
	return publishErr
}

// Close detaches every actor and disconnects from the broker.
func (t *Transport) Close() {
	t.mu.RLock()
	refs := make([]model.ActorRef, 0, len(t.boxes))
	for ref := range t.boxes {
		refs = append(refs, ref)
	}
	t.mu.RUnlock()
	for _, ref := range refs {
		t.Detach(ref)
	}
	if t.cli != nil && t.cli.IsConnected() {
		t.cli.Disconnect(250)
	}
}
