// Package message defines the envelope exchanged between actors and the typed
// payload carried for every topic.
package message

import (
	"errors"

	"github.com/google/uuid"

	"github.com/kilianp07/wsd/core/model"
)

var (
	// ErrUnknownTopic is returned for a topic name that is not part of the protocol.
	ErrUnknownTopic = errors.New("unknown topic")
	// ErrMalformed wraps every payload decoding or validation failure.
	ErrMalformed = errors.New("malformed payload")
)

// Payload is the typed content of a message.
type Payload interface {
	Validate() error
}

// Message is the envelope routed by the bus. Replies carry the id of the
// request in ReplyTo.
type Message struct {
	ID        string
	ReplyTo   string
	Sender    model.ActorRef
	Receivers []model.ActorRef
	Topic     Topic
	Payload   Payload
}

// New builds a message with a fresh id.
func New(sender model.ActorRef, topic Topic, payload Payload, receivers ...model.ActorRef) Message {
	return Message{
		ID:        uuid.NewString(),
		Sender:    sender,
		Receivers: receivers,
		Topic:     topic,
		Payload:   payload,
	}
}

// Reply builds the answer to m, addressed to its sender, on the same topic.
func (m Message) Reply(from model.ActorRef, payload Payload) Message {
	r := New(from, m.Topic, payload, m.Sender)
	r.ReplyTo = m.ID
	return r
}

// IsReply reports whether m answers an earlier request.
func (m Message) IsReply() bool { return m.ReplyTo != "" }

// NotUnderstoodReply builds the diagnostic answer to an unexpected message.
func (m Message) NotUnderstoodReply(from model.ActorRef, reason string) Message {
	r := New(from, TopicNotUnderstood, NotUnderstood{Topic: m.Topic.String(), Reason: reason}, m.Sender)
	r.ReplyTo = m.ID
	return r
}
