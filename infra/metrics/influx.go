package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/kilianp07/wsd/core/events"
	coremetrics "github.com/kilianp07/wsd/core/metrics"
	"github.com/kilianp07/wsd/infra/logger"
)

// InfluxSink writes market events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the client.
func (s *InfluxSink) Close() { s.client.Close() }

// RecordSettlement writes one settlement point plus one point per consumer.
func (s *InfluxSink) RecordSettlement(ev events.SettlementEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var supplied, unmet, imported float64
	for _, v := range ev.Supplied {
		supplied += v
	}
	for _, v := range ev.Unmet {
		unmet += v
	}
	for _, t := range ev.Accepted {
		imported += t.Amount
	}
	p := write.NewPointWithMeasurement("settlement").
		AddTag("building", ev.Building).
		AddField("period", ev.Period).
		AddField("production", round3(ev.Production)).
		AddField("demand", round3(ev.TotalDemand)).
		AddField("supplied", round3(supplied)).
		AddField("unmet", round3(unmet)).
		AddField("imported", round3(imported)).
		AddField("lent", round3(ev.Lent)).
		AddField("excess", round3(ev.Excess)).
		SetTime(ev.Time)
	if err := s.writeAPI.WritePoint(ctx, p); err != nil {
		return err
	}
	for consumer, amount := range ev.Supplied {
		cp := write.NewPointWithMeasurement("consumer_supply").
			AddTag("building", ev.Building).
			AddTag("consumer", consumer).
			AddField("supplied", round3(amount)).
			AddField("unmet", round3(ev.Unmet[consumer])).
			SetTime(ev.Time)
		if err := s.writeAPI.WritePoint(ctx, cp); err != nil {
			return err
		}
	}
	return nil
}

// RecordBatteryState writes a battery snapshot.
func (s *InfluxSink) RecordBatteryState(ev events.BatteryStateEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("battery_state").
		AddTag("battery", ev.Battery).
		AddTag("building", ev.Building).
		AddTag("state", ev.State.String()).
		AddField("capacity", round3(ev.Capacity)).
		AddField("stored", round3(ev.Stored)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordNegotiation writes a negotiation round.
func (s *InfluxSink) RecordNegotiation(ev events.NegotiationEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("negotiation").
		AddTag("building", ev.Building).
		AddTag("stage", ev.Stage).
		AddField("peers", ev.Peers).
		AddField("offers", ev.Offers).
		AddField("accepted", round3(ev.Accepted)).
		AddField("returned", round3(ev.Returned)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordShortage writes medium a consumer covered outside its building.
func (s *InfluxSink) RecordShortage(ev events.ShortageEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("consumer_shortage").
		AddTag("consumer", ev.Consumer).
		AddTag("building", ev.Building).
		AddTag("source", ev.Source).
		AddField("amount", round3(ev.Amount)).
		AddField("price", round3(ev.Price)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordDrop writes a discarded message.
func (s *InfluxSink) RecordDrop(ev events.DropEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("message_dropped").
		AddTag("actor", ev.Actor).
		AddTag("topic", ev.Topic).
		AddField("reason", ev.Reason).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
