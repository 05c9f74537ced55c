package message

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/wsd/core/model"
)

var (
	b1 = model.NewRef("B1")
	c1 = model.NewRef("C1")
)

func TestReplyCorrelation(t *testing.T) {
	req := New(c1, TopicGetPrice, PriceQuery{}, b1)
	rep := req.Reply(b1, PriceQuote{Price: 0.3})
	assert.Equal(t, req.ID, rep.ReplyTo)
	assert.Equal(t, []model.ActorRef{c1}, rep.Receivers)
	assert.Equal(t, TopicGetPrice, rep.Topic)
	assert.True(t, rep.IsReply())
	assert.False(t, req.IsReply())

	nu := req.NotUnderstoodReply(b1, "unexpected")
	assert.Equal(t, TopicNotUnderstood, nu.Topic)
	assert.Equal(t, NotUnderstood{Topic: "GET_PRICE", Reason: "unexpected"}, nu.Payload)
}

func TestCodecsCarryEveryPayload(t *testing.T) {
	query := New(c1, TopicGetPrice, PriceQuery{}, b1)
	msgs := []Message{
		New(c1, TopicOffer, Offer{Provider: "P1", Demand: 5}, b1),
		New(c1, TopicCancelConsumer, CancelConsumer{}, b1),
		New(c1, TopicDeclareBattery, DeclareBattery{TotalCapacity: 1000}, b1),
		New(b1, TopicBatteryCapacity, CapacityQuery{}, c1),
		query.Reply(b1, PriceQuote{Price: 0.25}),
		New(b1, TopicCharge, Charge{Amount: 2.5}, c1),
		New(b1, TopicMediumNeeded, ReserveRequest{}, c1),
		New(b1, TopicMediumNeeded, ReserveRequest{ForNeighbour: true}, c1),
		New(b1, TopicMediumNeeded, MediumOffer{Amount: 3, IsReturn: true, Price: 0.5}, c1),
		New(c1, TopicRequestMedium, Withdraw{Demand: 4, AgreedPrice: 0.2}, b1),
		New(b1, TopicSupply, Supply{Amount: 7}, c1),
		New(c1, TopicUpdateProvider, UpdateProvider{Provider: "P2"}, b1),
		New(c1, TopicConsumerCharging, ConsumerCharging{Extra: 1}, b1),
		New(b1, TopicNotUnderstood, NotUnderstood{Topic: "OFFER", Reason: "no"}, c1),
	}
	report := New(b1, TopicBatteryCapacity, CapacityQuery{}, c1).Reply(c1, CapacityReport{Capacity: 0.7, State: model.SendMedium})
	info := New(c1, TopicGetBattery, BatteryQuery{}, b1).Reply(b1, BatteryInfo{Name: "BAT1"})
	drawn := New(c1, TopicRequestMedium, Withdraw{Demand: 1}, b1).Reply(b1, Withdrawn{Amount: 1})
	msgs = append(msgs, report, info, drawn)

	for _, codec := range []Codec{JSONCodec{}, TextCodec{}} {
		for _, m := range msgs {
			data, err := codec.Encode(m)
			require.NoError(t, err, "%T %s", codec, m.Topic)
			got, err := codec.Decode(data)
			require.NoError(t, err, "%T %s", codec, m.Topic)
			assert.Equal(t, m, got, "%T %s", codec, m.Topic)
		}
	}
}

func TestCodecForNames(t *testing.T) {
	c, err := CodecFor("")
	require.NoError(t, err)
	assert.IsType(t, JSONCodec{}, c)
	c, err = CodecFor("text")
	require.NoError(t, err)
	assert.IsType(t, TextCodec{}, c)
	_, err = CodecFor("xml")
	assert.Error(t, err)
}

func TestDecodeRejectsMalformed(t *testing.T) {
	_, err := JSONCodec{}.Decode([]byte(`{"topic":"OFFER","payload":{"provider":"P","demand":-1}}`))
	assert.True(t, errors.Is(err, ErrMalformed), "got %v", err)

	_, err = JSONCodec{}.Decode([]byte(`{"topic":"CHARGE","payload":{"amount":"ten"}}`))
	assert.True(t, errors.Is(err, ErrMalformed), "got %v", err)

	_, err = JSONCodec{}.Decode([]byte(`{"topic":"BOGUS"}`))
	assert.True(t, errors.Is(err, ErrUnknownTopic), "got %v", err)

	_, err = JSONCodec{}.Decode([]byte(`not json`))
	assert.True(t, errors.Is(err, ErrMalformed), "got %v", err)
}

func TestParsePayloadTextMalformed(t *testing.T) {
	cases := []struct {
		topic   Topic
		reply   bool
		content string
		aux     string
	}{
		{TopicOffer, false, "P1;abc", ""},
		{TopicOffer, false, "P1", ""},
		{TopicMediumNeeded, false, "1;maybe;0.5", ""},
		{TopicMediumNeeded, false, "1;true", ""},
		{TopicBatteryCapacity, true, "0.5", "FULL"},
		{TopicSupply, false, "", ""},
		{TopicCharge, false, "NaN", ""},
		{TopicDeclareBattery, false, "big", ""},
	}
	for _, c := range cases {
		_, err := ParsePayloadText(c.topic, c.reply, c.content, c.aux)
		assert.True(t, errors.Is(err, ErrMalformed), "%s %q: %v", c.topic, c.content, err)
	}
}

func TestParsePayloadTextLegacyForms(t *testing.T) {
	p, err := ParsePayloadText(TopicMediumNeeded, false, "10;false;0", "")
	require.NoError(t, err)
	assert.Equal(t, MediumOffer{Amount: 10}, p)

	p, err = ParsePayloadText(TopicGetBattery, true, "", "")
	require.NoError(t, err)
	assert.Equal(t, BatteryInfo{}, p)

	p, err = ParsePayloadText(TopicBatteryCapacity, true, "0.05", "REQUEST_MEDIUM")
	require.NoError(t, err)
	assert.Equal(t, CapacityReport{Capacity: 0.05, State: model.RequestMedium}, p)
}

func TestTopicNames(t *testing.T) {
	for topic := TopicOffer; topic <= TopicNotUnderstood; topic++ {
		got, err := ParseTopic(topic.String())
		require.NoError(t, err)
		assert.Equal(t, topic, got)
	}
	_, err := Topic(99).MarshalText()
	assert.Error(t, err)
}
