// Package bustest provides a bus.Bus that records sends for tests.
package bustest

import (
	"context"
	"errors"
	"sync"

	"github.com/kilianp07/wsd/core/bus"
	"github.com/kilianp07/wsd/core/message"
	"github.com/kilianp07/wsd/core/model"
)

// Recorder keeps every sent message in order. Attach returns a channel that
// is never written to; callers drive delivery themselves.
type Recorder struct {
	mu       sync.Mutex
	sent     []message.Message
	attached map[model.ActorRef]chan message.Message
	// Fail makes every Send return an error after recording.
	Fail bool
}

var _ bus.Bus = (*Recorder)(nil)

// New returns an empty recorder.
func New() *Recorder {
	return &Recorder{attached: make(map[model.ActorRef]chan message.Message)}
}

func (r *Recorder) Attach(ref model.ActorRef) (<-chan message.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := make(chan message.Message)
	r.attached[ref] = ch
	return ch, nil
}

func (r *Recorder) Detach(ref model.ActorRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.attached, ref)
}

func (r *Recorder) Send(_ context.Context, msg message.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	if r.Fail {
		return errors.New("send failed")
	}
	return nil
}

// Sent returns a copy of the recorded messages.
func (r *Recorder) Sent() []message.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]message.Message, len(r.sent))
	copy(out, r.sent)
	return out
}

// Drain returns the recorded messages and forgets them.
func (r *Recorder) Drain() []message.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.sent
	r.sent = nil
	return out
}

// ByTopic returns the recorded messages with the given topic.
func (r *Recorder) ByTopic(topic message.Topic) []message.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []message.Message
	for _, m := range r.sent {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}
