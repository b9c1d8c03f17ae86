package services

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/stakevault-io/staking-vault/internal/db"
	"github.com/stakevault-io/staking-vault/internal/rewards"
	"github.com/stakevault-io/staking-vault/internal/types"
	"github.com/stakevault-io/staking-vault/pkg"
)

const opUnstake = "unstake"

// UnstakeResult reports the full payout of a closed position.
type UnstakeResult struct {
	Account   string `json:"account"`
	Principal uint64 `json:"principal"`
	Reward    uint64 `json:"reward"`
	Payout    uint64 `json:"payout"`
}

// Unstake closes the caller's position once the lock window has elapsed,
// paying out principal plus all settled and final accrued reward. The
// record is removed entirely; a later stake starts from scratch.
// Unstake stays available while the vault is paused: pausing freezes
// inflows, never exits.
func (s *Service) Unstake(ctx context.Context, account string) (*UnstakeResult, *types.Error) {
	start := time.Now()
	result, err := s.unstake(ctx, account)
	observe(opUnstake, start, err)
	return result, err
}

func (s *Service) unstake(ctx context.Context, account string) (*UnstakeResult, *types.Error) {
	if err := pkg.ValidateAccountID(account); err != nil {
		return nil, types.NewValidationError(err.Error())
	}

	release := s.locks.acquire(account)
	defer release()

	vault, err := s.db.GetVault(ctx)
	if err != nil {
		if db.IsNotFoundError(err) {
			return nil, types.NewError(http.StatusConflict, types.VaultNotInitialized, err)
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
	if !stakeDoc.UnlockedAt(now) {
		remaining := time.Duration(stakeDoc.UnlockTime()-now) * time.Second
		return nil, types.NewStillLockedError(remaining)
	}

	if stakeDoc.RewardCheckpoint > now {
		return nil, types.NewValidationError("reward checkpoint is in the future")
	}
	elapsed := uint64(now - stakeDoc.RewardCheckpoint)
	finalAccrual := rewards.Accrue(stakeDoc.Principal, vault.ApyRateBps, elapsed)

	reward := stakeDoc.AccruedReward + finalAccrual
	payout := stakeDoc.Principal + reward

	// the conditional debit is also the solvency check: it only matches
	// while custody covers the payout
	if err := s.db.DebitVaultForPayout(ctx, payout, stakeDoc.Principal); err != nil {
		if db.IsInsufficientCustodyError(err) {
			return nil, s.custodyShortfall(ctx, opUnstake, err)
		}
		return nil, types.NewInternalServiceError(err)
	}

	if err := s.db.DeleteActiveStake(ctx, account, stakeDoc.Principal); err != nil {
		// restore the vault counters so accounting stays consistent with
		// the record that could not be removed
		if cerr := s.db.CreditVault(ctx, int64(stakeDoc.Principal), int64(payout)); cerr != nil {
			log.Ctx(ctx).Error().Err(cerr).
				Str("account", account).
				Msg("CRITICAL: failed to restore vault counters after unstake rollback")
		}
		return nil, types.NewInternalServiceError(err)
	}

	s.publishEvent(ctx, &types.StakingEvent{
		Type:    types.EventUnstake,
		Account: account,
		Amount:  stakeDoc.Principal,
		Reward:  reward,
	})

	return &UnstakeResult{
		Account:   account,
		Principal: stakeDoc.Principal,
		Reward:    reward,
		Payout:    payout,
	}, nil
}
