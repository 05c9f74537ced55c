package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	actorsapi "github.com/kilianp07/wsd/api/actors"
	"github.com/kilianp07/wsd/config"
	"github.com/kilianp07/wsd/core/message"
	"github.com/kilianp07/wsd/core/model"
	"github.com/kilianp07/wsd/infra/mqtt"
)

var chargeCmd = &cobra.Command{
	Use:   "charge <consumer> <extra>",
	Short: "Inject a charging event into a consumer over MQTT",
	Args:  cobra.ExactArgs(2),
	RunE:  runCharge,
}

func init() {
	rootCmd.AddCommand(chargeCmd)
}

func runCharge(cmd *cobra.Command, args []string) error {
	extra, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("extra: %w", err)
	}
	payload := message.ConsumerCharging{Extra: extra}
	if err := payload.Validate(); err != nil {
		return err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Transport.Kind != "mqtt" {
		return fmt.Errorf("charge needs transport kind mqtt, got %s", cfg.Transport.Kind)
	}
	codec, err := message.CodecFor(cfg.Transport.Encoding)
	if err != nil {
		return err
	}
	mc := cfg.Transport.MQTT
	mc.ClientID = fmt.Sprintf("%s-charge-%d", mc.ClientID, time.Now().UnixNano())
	t, err := mqtt.NewTransport(mc, codec)
	if err != nil {
		return fmt.Errorf("mqtt transport: %w", err)
	}
	defer t.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	msg := message.New(actorsapi.Sender, message.TopicConsumerCharging, payload, model.NewRef(args[0]))
	if err := t.Send(ctx, msg); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "sent %s to %s\n", msg.ID, args[0])
	return nil
}
