package config

import (
	"fmt"

	"github.com/rs/zerolog"
)

// LogConfig sets the process log level and line format.
type LogConfig struct {
	Level string `json:"level"`
	// Format is "json" or "console". Empty keeps APP_ENV=dev console output.
	Format string `json:"format"`
}

func (c *LogConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
}

func (c LogConfig) Validate() error {
	if _, err := zerolog.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	switch c.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("log: unknown format %q", c.Format)
	}
	return nil
}

// APIConfig protects the control and ledger endpoints.
type APIConfig struct {
	// Token is the bearer token required by mutating and ledger endpoints.
	Token string `json:"token"`
}
