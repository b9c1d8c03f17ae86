package config

import (
	"errors"
	"time"
)

// AuditorConfig drives the background solvency auditor, which periodically
// verifies that the custody balance still covers the total staked amount.
type AuditorConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	PollingInterval time.Duration `mapstructure:"polling-interval"`
}

func (cfg *AuditorConfig) Validate() error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.PollingInterval <= 0 {
		return errors.New("polling-interval must be positive")
	}

	return nil
}
