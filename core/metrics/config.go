package metrics

import "github.com/kilianp07/wsd/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks" yaml:"sinks"`
	// ListenAddr serves /metrics and the status API. Empty disables the server.
	ListenAddr string `json:"listen_addr" yaml:"listen_addr"`
}
