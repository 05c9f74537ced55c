package config

import "fmt"

// SentryConfig enables panic and error reporting to Sentry. An empty DSN
// disables it.
type SentryConfig struct {
	DSN              string  `json:"dsn"`
	Environment      string  `json:"environment"`
	TracesSampleRate float64 `json:"traces_sample_rate"`
	Release          string  `json:"release"`
	// ServerName identifies the node; it defaults to the host name.
	ServerName string `json:"server_name"`
}

func (c SentryConfig) Validate() error {
	if c.TracesSampleRate < 0 || c.TracesSampleRate > 1 {
		return fmt.Errorf("sentry: traces_sample_rate %v outside [0,1]", c.TracesSampleRate)
	}
	return nil
}
