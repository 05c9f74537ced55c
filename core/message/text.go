package message

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/kilianp07/wsd/core/model"
)

// TextCodec carries payloads as ';'-delimited strings with an optional
// auxiliary tag, the legacy agent content format.
type TextCodec struct{}

type textEnvelope struct {
	header
	Content string `json:"content"`
	Aux     string `json:"aux,omitempty"`
}

func (TextCodec) Encode(m Message) ([]byte, error) {
	content, aux, err := MarshalPayloadText(m.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(textEnvelope{header: headerOf(m), Content: content, Aux: aux})
}

func (TextCodec) Decode(data []byte) (Message, error) {
	var env textEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	p, err := ParsePayloadText(env.Topic, env.ReplyTo != "", env.Content, env.Aux)
	if err != nil {
		return Message{}, err
	}
	return env.message(p), nil
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// MarshalPayloadText renders p as content and auxiliary tag.
func MarshalPayloadText(p Payload) (content, aux string, err error) {
	switch v := p.(type) {
	case nil, CancelConsumer, CapacityQuery, BatteryQuery, PriceQuery:
		return "", "", nil
	case Offer:
		return v.Provider + ";" + ftoa(v.Demand), "", nil
	case DeclareBattery:
		return strconv.Itoa(v.TotalCapacity), "", nil
	case CapacityReport:
		return ftoa(v.Capacity), v.State.String(), nil
	case BatteryInfo:
		return v.Name, "", nil
	case Charge:
		return ftoa(v.Amount), "", nil
	case ReserveRequest:
		if v.ForNeighbour {
			return ";", "", nil
		}
		return "", "", nil
	case MediumOffer:
		return ftoa(v.Amount) + ";" + strconv.FormatBool(v.IsReturn) + ";" + ftoa(v.Price), "", nil
	case PriceQuote:
		return ftoa(v.Price), "", nil
	case Withdraw:
		return ftoa(v.Demand) + ";" + ftoa(v.AgreedPrice), "", nil
	case Withdrawn:
		return ftoa(v.Amount), "", nil
	case Supply:
		return ftoa(v.Amount), "", nil
	case UpdateProvider:
		return v.Provider, "", nil
	case ConsumerCharging:
		return ftoa(v.Extra), "", nil
	case NotUnderstood:
		return v.Reason, v.Topic, nil
	default:
		return "", "", fmt.Errorf("no text form for %T", p)
	}
}

// ParsePayloadText parses content written by MarshalPayloadText. A field that
// does not parse yields an error wrapping ErrMalformed.
func ParsePayloadText(topic Topic, reply bool, content, aux string) (Payload, error) {
	fields := strings.Split(content, ";")
	num := func(i int, name string) (float64, error) {
		if i >= len(fields) {
			return 0, fmt.Errorf("%w: %s: missing %s", ErrMalformed, topic, name)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(fields[i]), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %s %q", ErrMalformed, topic, name, fields[i])
		}
		return v, nil
	}

	var p Payload
	switch topic {
	case TopicOffer:
		if len(fields) != 2 {
			return nil, fmt.Errorf("%w: OFFER expects provider;demand, got %q", ErrMalformed, content)
		}
		d, err := num(1, "demand")
		if err != nil {
			return nil, err
		}
		p = Offer{Provider: fields[0], Demand: d}
	case TopicCancelConsumer:
		p = CancelConsumer{}
	case TopicDeclareBattery:
		n, err := strconv.Atoi(strings.TrimSpace(content))
		if err != nil {
			return nil, fmt.Errorf("%w: DECLARE_BATTERY %q", ErrMalformed, content)
		}
		p = DeclareBattery{TotalCapacity: n}
	case TopicBatteryCapacity:
		if !reply {
			p = CapacityQuery{}
			break
		}
		c, err := num(0, "capacity")
		if err != nil {
			return nil, err
		}
		st, err := model.ParseBatteryState(aux)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		p = CapacityReport{Capacity: c, State: st}
	case TopicGetBattery:
		if reply {
			p = BatteryInfo{Name: content}
		} else {
			p = BatteryQuery{}
		}
	case TopicCharge:
		v, err := num(0, "amount")
		if err != nil {
			return nil, err
		}
		p = Charge{Amount: v}
	case TopicMediumNeeded:
		switch {
		case content == "":
			p = ReserveRequest{}
		case content == ";":
			p = ReserveRequest{ForNeighbour: true}
		default:
			if len(fields) != 3 {
				return nil, fmt.Errorf("%w: MEDIUM_NEEDED expects amount;isReturn;price, got %q", ErrMalformed, content)
			}
			amount, err := num(0, "amount")
			if err != nil {
				return nil, err
			}
			ret, err := strconv.ParseBool(strings.TrimSpace(fields[1]))
			if err != nil {
				return nil, fmt.Errorf("%w: MEDIUM_NEEDED isReturn %q", ErrMalformed, fields[1])
			}
			price, err := num(2, "price")
			if err != nil {
				return nil, err
			}
			p = MediumOffer{Amount: amount, IsReturn: ret, Price: price}
		}
	case TopicGetPrice:
		if !reply {
			p = PriceQuery{}
			break
		}
		v, err := num(0, "price")
		if err != nil {
			return nil, err
		}
		p = PriceQuote{Price: v}
	case TopicRequestMedium:
		if reply {
			v, err := num(0, "amount")
			if err != nil {
				return nil, err
			}
			p = Withdrawn{Amount: v}
			break
		}
		d, err := num(0, "demand")
		if err != nil {
			return nil, err
		}
		price, err := num(1, "price")
		if err != nil {
			return nil, err
		}
		p = Withdraw{Demand: d, AgreedPrice: price}
	case TopicSupply:
		v, err := num(0, "amount")
		if err != nil {
			return nil, err
		}
		p = Supply{Amount: v}
	case TopicUpdateProvider:
		p = UpdateProvider{Provider: content}
	case TopicConsumerCharging:
		v, err := num(0, "extra")
		if err != nil {
			return nil, err
		}
		p = ConsumerCharging{Extra: v}
	case TopicNotUnderstood:
		p = NotUnderstood{Topic: aux, Reason: content}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownTopic, int(topic))
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
