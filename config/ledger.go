package config

import (
	"fmt"

	"github.com/kilianp07/wsd/core/ledger"
)

// LedgerConfig defines settings for settlement record storage and rotation.
type LedgerConfig struct {
	// Backend selects the store type: "none", "jsonl" or "sqlite".
	Backend string `json:"backend"`
	// Path is the file location of the store.
	Path string `json:"path"`
	// MaxSizeMB triggers rotation when the file exceeds this size in megabytes.
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *LedgerConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "none"
	}
	if c.Path == "" {
		switch c.Backend {
		case "jsonl":
			c.Path = "ledger.jsonl"
		case "sqlite":
			c.Path = "ledger.db"
		}
	}
}

// Validate checks mandatory fields.
func (c LedgerConfig) Validate() error {
	switch c.Backend {
	case "none":
		return nil
	case "jsonl", "sqlite":
	default:
		return fmt.Errorf("ledger: unknown backend %s", c.Backend)
	}
	if c.Path == "" {
		return fmt.Errorf("ledger: path is required")
	}
	return nil
}

// Open returns the configured store.
func (c LedgerConfig) Open() (ledger.LogStore, error) {
	return ledger.Open(c.Backend, c.Path, ledger.Rotation{
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
	})
}
