package config

import (
	"fmt"

	"github.com/kilianp07/wsd/infra/mqtt"
)

// TransportConfig selects how actors reach each other.
type TransportConfig struct {
	// Kind is "local" (in-process) or "mqtt".
	Kind string `json:"kind"`
	// Encoding is "json" or "text".
	Encoding    string      `json:"encoding"`
	TopicPrefix string      `json:"topic_prefix"`
	MQTT        mqtt.Config `json:"mqtt"`
}

func (c *TransportConfig) SetDefaults() {
	if c.Kind == "" {
		c.Kind = "local"
	}
	if c.Encoding == "" {
		c.Encoding = "json"
	}
	if c.TopicPrefix != "" {
		c.MQTT.TopicPrefix = c.TopicPrefix
	}
	if c.Kind == "mqtt" {
		c.MQTT.SetDefaults()
	}
}

func (c TransportConfig) Validate() error {
	switch c.Kind {
	case "local":
	case "mqtt":
		if err := c.MQTT.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("transport: unknown kind %s", c.Kind)
	}
	if c.Encoding != "json" && c.Encoding != "text" {
		return fmt.Errorf("transport: unknown encoding %s", c.Encoding)
	}
	return nil
}
