package services

import (
	"context"
	"net/http"

	"github.com/stakevault-io/staking-vault/internal/db"
	"github.com/stakevault-io/staking-vault/internal/rewards"
	"github.com/stakevault-io/staking-vault/internal/types"
	"github.com/stakevault-io/staking-vault/pkg"
)

// VaultStats is the public snapshot of the vault.
type VaultStats struct {
	TotalStaked    uint64 `json:"total_staked"`
	CustodyBalance uint64 `json:"custody_balance"`
	ApyRateBps     uint64 `json:"apy_rate_bps"`
	Paused         bool   `json:"paused"`
}

// StakeSnapshot is the public view of one account's position. PendingReward
// includes both the settled reward and the accrual since the checkpoint,
// computed at read time.
type StakeSnapshot struct {
	Account       string           `json:"account"`
	Principal     uint64           `json:"principal"`
	StakedAt      int64            `json:"staked_at"`
	LockDuration  uint64           `json:"lock_duration"`
	UnlockTime    int64            `json:"unlock_time"`
	PendingReward uint64           `json:"pending_reward"`
	State         types.StakeState `json:"state"`
}

// UnstakeEligibility answers "can this account unstake right now".
type UnstakeEligibility struct {
	CanUnstake       bool   `json:"can_unstake"`
	RemainingSeconds uint64 `json:"remaining_seconds"`
}

// GetVaultStats returns the current vault counters. Read-only and
// idempotent: repeated calls without intervening mutation return identical
// results.
func (s *Service) GetVaultStats(ctx context.Context) (*VaultStats, *types.Error) {
	vault, err := s.db.GetVault(ctx)
	if err != nil {
		if db.IsNotFoundError(err) {
			return nil, types.NewError(http.StatusNotFound, types.VaultNotInitialized, err)
		}
		return nil, types.NewInternalServiceError(err)
	}

	return &VaultStats{
		TotalStaked:    vault.TotalStaked,
		CustodyBalance: vault.CustodyBalance,
		ApyRateBps:     vault.ApyRateBps,
		Paused:         vault.Paused,
	}, nil
}

// GetStakeSnapshot returns the account's position with its reward computed
// up to now.
func (s *Service) GetStakeSnapshot(ctx context.Context, account string) (*StakeSnapshot, *types.Error) {
	if err := pkg.ValidateAccountID(account); err != nil {
		return nil, types.NewValidationError(err.Error())
	}

	vault, err := s.db.GetVault(ctx)
	if err != nil {
		if db.IsNotFoundError(err) {
			return nil, types.NewError(http.StatusNotFound, types.VaultNotInitialized, err)
		}
		return nil, types.NewInternalServiceError(err)
	}

	stakeDoc, err := s.db.GetStake(ctx, account)
	if err != nil {
		if db.IsNotFoundError(err) {
			return nil, types.NewError(http.StatusNotFound, types.NoActiveStake, err)
		}
		return nil, types.NewInternalServiceError(err)
	}

	now := s.now().Unix()
	pending := stakeDoc.AccruedReward
	if stakeDoc.RewardCheckpoint <= now {
		elapsed := uint64(now - stakeDoc.RewardCheckpoint)
		pending += rewards.Accrue(stakeDoc.Principal, vault.ApyRateBps, elapsed)
	}

	state := types.StateActive
	if stakeDoc.UnlockedAt(now) {
		state = types.StateUnlocked
	}

	return &StakeSnapshot{
		Account:       stakeDoc.Account,
		Principal:     stakeDoc.Principal,
		StakedAt:      stakeDoc.StakedAt,
		LockDuration:  stakeDoc.LockDuration,
		UnlockTime:    stakeDoc.UnlockTime(),
		PendingReward: pending,
		State:         state,
	}, nil
}

// GetUnstakeEligibility reports whether the account may unstake now and, if
// not, how long it has to wait.
func (s *Service) GetUnstakeEligibility(ctx context.Context, account string) (*UnstakeEligibility, *types.Error) {
	if err := pkg.ValidateAccountID(account); err != nil {
		return nil, types.NewValidationError(err.Error())
	}

	stakeDoc, err := s.db.GetStake(ctx, account)
	if err != nil {
		if db.IsNotFoundError(err) {
			return nil, types.NewError(http.StatusNotFound, types.NoActiveStake, err)
		}
		return nil, types.NewInternalServiceError(err)
	}

	now := s.now().Unix()
	if stakeDoc.UnlockedAt(now) {
		return &UnstakeEligibility{CanUnstake: true}, nil
	}

	return &UnstakeEligibility{
		CanUnstake:       false,
		RemainingSeconds: uint64(stakeDoc.UnlockTime() - now),
	}, nil
}
