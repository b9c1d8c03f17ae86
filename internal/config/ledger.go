package config

import (
	"errors"
	"math"
	"time"

	"github.com/stakevault-io/staking-vault/internal/rewards"
)

// LedgerConfig bounds the values the ledger accepts for stake amounts,
// lock durations and the configurable APY rate.
type LedgerConfig struct {
	MinStake    uint64        `mapstructure:"min-stake"`
	MaxStake    uint64        `mapstructure:"max-stake"`
	MinDuration time.Duration `mapstructure:"min-duration"`
	MaxDuration time.Duration `mapstructure:"max-duration"`
	MinApyBps   uint64        `mapstructure:"min-apy-bps"`
	MaxApyBps   uint64        `mapstructure:"max-apy-bps"`
}

func (cfg *LedgerConfig) Validate() error {
	if cfg.MinStake == 0 {
		return errors.New("min-stake must be positive")
	}
	if cfg.MaxStake < cfg.MinStake {
		return errors.New("max-stake must be >= min-stake")
	}
	// vault balance deltas travel as signed int64s
	if cfg.MaxStake > math.MaxInt64 {
		return errors.New("max-stake must fit in a signed 64-bit integer")
	}
	if cfg.MinDuration <= 0 {
		return errors.New("min-duration must be positive")
	}
	if cfg.MaxDuration < cfg.MinDuration {
		return errors.New("max-duration must be >= min-duration")
	}
	if cfg.MinApyBps == 0 {
		return errors.New("min-apy-bps must be positive")
	}
	if cfg.MaxApyBps < cfg.MinApyBps {
		return errors.New("max-apy-bps must be >= min-apy-bps")
	}
	// a rate above 100% APY for the max stake still fits the accrual
	// formula, but is almost certainly a misconfigured deployment
	if cfg.MaxApyBps > 10*rewards.BasisPointsDivisor {
		return errors.New("max-apy-bps must not exceed 1000% APY")
	}

	return nil
}
