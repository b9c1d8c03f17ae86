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

const opClaim = "claim_rewards"

// ClaimResult reports the reward paid out by a claim.
type ClaimResult struct {
	Account string `json:"account"`
	Reward  uint64 `json:"reward"`
}

// ClaimRewards pays out the settled and freshly accrued reward, leaving the
// principal and lock window untouched. Claiming stays available while the
// vault is paused.
func (s *Service) ClaimRewards(ctx context.Context, account string) (*ClaimResult, *types.Error) {
	start := time.Now()
	result, err := s.claimRewards(ctx, account)
	observe(opClaim, start, err)
	return result, err
}

func (s *Service) claimRewards(ctx context.Context, account string) (*ClaimResult, *types.Error) {
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
	if stakeDoc.RewardCheckpoint > now {
		return nil, types.NewValidationError("reward checkpoint is in the future")
	}
	elapsed := uint64(now - stakeDoc.RewardCheckpoint)
	accrual := rewards.Accrue(stakeDoc.Principal, vault.ApyRateBps, elapsed)

	payable := stakeDoc.AccruedReward + accrual
	if payable == 0 {
		return nil, types.NewErrorWithMsg(
			http.StatusConflict, types.NothingToClaim, "nothing to claim",
		)
	}

	if err := s.db.DebitVaultForPayout(ctx, payable, 0); err != nil {
		if db.IsInsufficientCustodyError(err) {
			return nil, s.custodyShortfall(ctx, opClaim, err)
		}
		return nil, types.NewInternalServiceError(err)
	}

	settledDoc := *stakeDoc
	settledDoc.AccruedReward = 0
	settledDoc.RewardCheckpoint = now

	if err := s.db.UpdateActiveStake(
		ctx, account, types.QualifiedStatesForClaim(), stakeDoc.Principal, &settledDoc,
	); err != nil {
		if cerr := s.db.CreditVault(ctx, 0, int64(payable)); cerr != nil {
			log.Ctx(ctx).Error().Err(cerr).
				Str("account", account).
				Msg("CRITICAL: failed to restore custody balance after claim rollback")
		}
		return nil, types.NewInternalServiceError(err)
	}

	s.publishEvent(ctx, &types.StakingEvent{
		Type:    types.EventClaimRewards,
		Account: account,
		Reward:  payable,
	})

	return &ClaimResult{
		Account: account,
		Reward:  payable,
	}, nil
}
