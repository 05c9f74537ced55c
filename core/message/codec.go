package message

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/kilianp07/wsd/core/model"
)

// Codec turns messages into bytes for a network transport.
type Codec interface {
	Encode(Message) ([]byte, error)
	Decode([]byte) (Message, error)
}

// CodecFor returns the codec registered under name ("json" or "text").
func CodecFor(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSONCodec{}, nil
	case "text":
		return TextCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown encoding %q", name)
	}
}

type header struct {
	ID        string           `json:"id"`
	ReplyTo   string           `json:"reply_to,omitempty"`
	Sender    model.ActorRef   `json:"sender"`
	Receivers []model.ActorRef `json:"receivers"`
	Topic     Topic            `json:"topic"`
}

func headerOf(m Message) header {
	return header{ID: m.ID, ReplyTo: m.ReplyTo, Sender: m.Sender, Receivers: m.Receivers, Topic: m.Topic}
}

func (h header) message(p Payload) Message {
	return Message{ID: h.ID, ReplyTo: h.ReplyTo, Sender: h.Sender, Receivers: h.Receivers, Topic: h.Topic, Payload: p}
}

// Header is the routing part of an encoded message.
type Header struct {
	ID     string
	Sender model.ActorRef
	Topic  string
}

// PeekHeader reads the routing fields of an encoded message without
// interpreting its topic, so a message with an unknown topic can still be
// answered.
func PeekHeader(data []byte) (Header, error) {
	var raw struct {
		ID     string         `json:"id"`
		Sender model.ActorRef `json:"sender"`
		Topic  string         `json:"topic"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Header{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return Header{ID: raw.ID, Sender: raw.Sender, Topic: raw.Topic}, nil
}

// JSONCodec carries payloads as JSON objects.
type JSONCodec struct{}

type jsonEnvelope struct {
	header
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (JSONCodec) Encode(m Message) ([]byte, error) {
	env := jsonEnvelope{header: headerOf(m)}
	if m.Payload != nil {
		raw, err := json.Marshal(m.Payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", m.Topic, err)
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

func (JSONCodec) Decode(data []byte) (Message, error) {
	var env jsonEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	var (
		p   Payload
		err error
	)
	if env.Topic == TopicMediumNeeded {
		var probe struct {
			Amount *float64 `json:"amount"`
		}
		if len(env.Payload) > 0 {
			if err := json.Unmarshal(env.Payload, &probe); err != nil {
				return Message{}, fmt.Errorf("%w: %w", ErrMalformed, err)
			}
		}
		if probe.Amount != nil {
			p = &MediumOffer{}
		} else {
			p = &ReserveRequest{}
		}
	} else if p, err = newPayload(env.Topic, env.ReplyTo != ""); err != nil {
		return Message{}, err
	}
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, p); err != nil {
			return Message{}, fmt.Errorf("%w: %s: %v", ErrMalformed, env.Topic, err)
		}
	}
	v := deref(p)
	if err := v.Validate(); err != nil {
		return Message{}, err
	}
	return env.message(v), nil
}

func deref(p Payload) Payload {
	rv := reflect.ValueOf(p)
	if rv.Kind() == reflect.Pointer {
		return rv.Elem().Interface().(Payload)
	}
	return p
}
