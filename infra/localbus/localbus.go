// Package localbus delivers messages between actors of the same process.
package localbus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kilianp07/wsd/core/bus"
	"github.com/kilianp07/wsd/core/message"
	"github.com/kilianp07/wsd/core/model"
	"github.com/kilianp07/wsd/internal/eventbus"
)

// Bus is an in-memory bus.Bus with one unbounded mailbox per actor.
type Bus struct {
	mu    sync.RWMutex
	boxes map[model.ActorRef]*eventbus.Mailbox[message.Message]
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{boxes: make(map[model.ActorRef]*eventbus.Mailbox[message.Message])}
}

var _ bus.Bus = (*Bus)(nil)

func (b *Bus) Attach(ref model.ActorRef) (<-chan message.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.boxes[ref]; ok {
		return nil, fmt.Errorf("attach %s: already attached", ref)
	}
	box := eventbus.NewMailbox[message.Message]()
	b.boxes[ref] = box
	return box.C(), nil
}

func (b *Bus) Detach(ref model.ActorRef) {
	b.mu.Lock()
	box, ok := b.boxes[ref]
	delete(b.boxes, ref)
	b.mu.Unlock()
	if ok {
		box.Close()
	}
}

func (b *Bus) Send(ctx context.Context, msg message.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	var errs []error
	for _, r := range msg.Receivers {
		box, ok := b.boxes[r]
		if !ok || !box.Put(msg) {
			errs = append(errs, fmt.Errorf("%s to %s: %w", msg.Topic, r, bus.ErrUnknownReceiver))
		}
	}
	return errors.Join(errs...)
}

// Close detaches every actor.
func (b *Bus) Close() {
	b.mu.Lock()
	boxes := b.boxes
	b.boxes = make(map[model.ActorRef]*eventbus.Mailbox[message.Message])
	b.mu.Unlock()
	for _, box := range boxes {
		box.Close()
	}
}
