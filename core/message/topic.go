package message

import "fmt"

// Topic tags the meaning of a message.
type Topic int

const (
	TopicOffer Topic = iota + 1
	TopicCancelConsumer
	TopicDeclareBattery
	TopicBatteryCapacity
	TopicGetBattery
	TopicCharge
	TopicMediumNeeded
	TopicGetPrice
	TopicRequestMedium
	TopicSupply
	TopicUpdateProvider
	TopicConsumerCharging
	TopicNotUnderstood
)

var topicNames = map[Topic]string{
	TopicOffer:            "OFFER",
	TopicCancelConsumer:   "CANCEL_CONSUMER",
	TopicDeclareBattery:   "DECLARE_BATTERY",
	TopicBatteryCapacity:  "BATTERY_CAPACITY",
	TopicGetBattery:       "GET_BATTERY",
	TopicCharge:           "CHARGE",
	TopicMediumNeeded:     "MEDIUM_NEEDED",
	TopicGetPrice:         "GET_PRICE",
	TopicRequestMedium:    "REQUEST_MEDIUM",
	TopicSupply:           "SUPPLY",
	TopicUpdateProvider:   "UPDATE_PROVIDER",
	TopicConsumerCharging: "CONSUMER_CHARGING",
	TopicNotUnderstood:    "NOT_UNDERSTOOD",
}

func (t Topic) String() string {
	if n, ok := topicNames[t]; ok {
		return n
	}
	return fmt.Sprintf("Topic(%d)", int(t))
}

// ParseTopic returns the topic with the given wire name.
func ParseTopic(s string) (Topic, error) {
	for t, n := range topicNames {
		if n == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownTopic, s)
}

func (t Topic) MarshalText() ([]byte, error) {
	if _, ok := topicNames[t]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTopic, int(t))
	}
	return []byte(t.String()), nil
}

func (t *Topic) UnmarshalText(b []byte) error {
	v, err := ParseTopic(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
