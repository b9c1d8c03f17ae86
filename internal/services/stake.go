package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"

	"github.com/stakevault-io/staking-vault/internal/db"
	"github.com/stakevault-io/staking-vault/internal/db/model"
	"github.com/stakevault-io/staking-vault/internal/rewards"
	"github.com/stakevault-io/staking-vault/internal/types"
	"github.com/stakevault-io/staking-vault/pkg"
)

const (
	opStake   = "stake"
	opRestake = "restake"

	// casAttempts bounds the optimistic retry loop on concurrent record
	// mutation; with per-account locking a conflict can only come from
	// another service instance
	casAttempts = 3
)

// StakeResult describes the position after a stake or restake commits.
type StakeResult struct {
	Account       string `json:"account"`
	Principal     uint64 `json:"principal"`
	LockDuration  uint64 `json:"lock_duration"`
	UnlockTime    int64  `json:"unlock_time"`
	SettledReward uint64 `json:"settled_reward"`
}

// Stake locks amount for duration. On an existing position this is a plain
// top-up: the pending reward is settled at the old principal first and the
// lock window stays unchanged; the duration argument only applies when the
// record is created.
func (s *Service) Stake(ctx context.Context, account string, amount uint64, duration time.Duration) (*StakeResult, *types.Error) {
	start := time.Now()
	result, err := s.stake(ctx, opStake, account, amount, duration)
	observe(opStake, start, err)
	return result, err
}

// Restake tops up an existing position and extends its lock by duration.
// On an empty record it behaves exactly like Stake.
func (s *Service) Restake(ctx context.Context, account string, amount uint64, duration time.Duration) (*StakeResult, *types.Error) {
	start := time.Now()
	result, err := s.stake(ctx, opRestake, account, amount, duration)
	observe(opRestake, start, err)
	return result, err
}

func (s *Service) stake(ctx context.Context, op string, account string, amount uint64, duration time.Duration) (*StakeResult, *types.Error) {
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
	if vault.Paused {
		return nil, types.NewErrorWithMsg(
			http.StatusConflict, types.VaultPaused,
			"vault is paused, new stakes are not accepted",
		)
	}

	ledger := &s.cfg.Ledger
	if amount < ledger.MinStake || amount > ledger.MaxStake {
		return nil, types.NewValidationError(fmt.Sprintf(
			"stake amount must be within [%d, %d]", ledger.MinStake, ledger.MaxStake,
		))
	}

	now := s.now().Unix()
	durationSecs := uint64(duration / time.Second)

	existing, gerr := s.db.GetStake(ctx, account)
	if gerr != nil {
		if !db.IsNotFoundError(gerr) {
			return nil, types.NewInternalServiceError(gerr)
		}
		return s.createStake(ctx, op, account, amount, duration, now)
	}

	return s.topUpStake(ctx, op, vault.ApyRateBps, existing, amount, durationSecs, now)
}

func (s *Service) createStake(
	ctx context.Context, op string, account string,
	amount uint64, duration time.Duration, now int64,
) (*StakeResult, *types.Error) {
	ledger := &s.cfg.Ledger
	if duration < ledger.MinDuration || duration > ledger.MaxDuration {
		return nil, types.NewValidationError(fmt.Sprintf(
			"lock duration must be within [%s, %s]", ledger.MinDuration, ledger.MaxDuration,
		))
	}

	durationSecs := uint64(duration / time.Second)
	stakeDoc := model.NewStakeDocument(account, amount, durationSecs, now)

	if err := s.db.SaveNewStake(ctx, stakeDoc); err != nil {
		return nil, types.NewInternalServiceError(err)
	}
	if err := s.db.CreditVault(ctx, int64(amount), int64(amount)); err != nil {
		// roll the record back so the ledger does not under-count custody
		if derr := s.db.DeleteActiveStake(ctx, account, amount); derr != nil {
			log.Ctx(ctx).Error().Err(derr).
				Str("account", account).
				Msg("CRITICAL: failed to roll back stake record after vault credit failure")
		}
		return nil, types.NewInternalServiceError(err)
	}

	s.publishEvent(ctx, &types.StakingEvent{
		Type:     stakeEventType(op),
		Account:  account,
		Amount:   amount,
		Duration: durationSecs,
	})

	return &StakeResult{
		Account:      account,
		Principal:    amount,
		LockDuration: durationSecs,
		UnlockTime:   stakeDoc.UnlockTime(),
	}, nil
}

func (s *Service) topUpStake(
	ctx context.Context, op string, apyRateBps uint64,
	current *model.StakeDocument, amount, durationSecs uint64, now int64,
) (*StakeResult, *types.Error) {
	ledger := &s.cfg.Ledger

	var settled uint64
	recompute := func(cur *model.StakeDocument) (*model.StakeDocument, *types.Error) {
		if cur.RewardCheckpoint > now {
			return nil, types.NewValidationError("reward checkpoint is in the future")
		}
		elapsed := uint64(now - cur.RewardCheckpoint)
		settled = rewards.Accrue(cur.Principal, apyRateBps, elapsed)

		newPrincipal := cur.Principal + amount
		if newPrincipal > ledger.MaxStake {
			return nil, types.NewValidationError(fmt.Sprintf(
				"total stake would exceed the maximum of %d", ledger.MaxStake,
			))
		}

		next := *cur
		next.Principal = newPrincipal
		next.AccruedReward = cur.AccruedReward + settled
		next.RewardCheckpoint = now

		if op == opRestake {
			if durationSecs == 0 {
				return nil, types.NewValidationError("restake extension must be positive")
			}
			newLock := cur.LockDuration + durationSecs
			if time.Duration(newLock)*time.Second > ledger.MaxDuration {
				return nil, types.NewValidationError(fmt.Sprintf(
					"extended lock would exceed the maximum of %s", ledger.MaxDuration,
				))
			}
			next.LockDuration = newLock
		}

		return &next, nil
	}

	next, verr := recompute(current)
	if verr != nil {
		return nil, verr
	}

	uerr := retry.Do(
		func() error {
			err := s.db.UpdateActiveStake(
				ctx, current.Account, types.QualifiedStatesForTopUp(), current.Principal, next,
			)
			if err == nil {
				return nil
			}
			if !db.IsNotFoundError(err) {
				return retry.Unrecoverable(err)
			}
			// the record was mutated by another instance: re-read and
			// recompute before the next attempt
			fresh, gerr := s.db.GetStake(ctx, current.Account)
			if gerr != nil {
				return retry.Unrecoverable(gerr)
			}
			current = fresh
			var rerr *types.Error
			if next, rerr = recompute(fresh); rerr != nil {
				return retry.Unrecoverable(rerr)
			}
			return err
		},
		retry.Attempts(casAttempts),
		retry.LastErrorOnly(true),
	)
	if uerr != nil {
		var typedErr *types.Error
		if errors.As(uerr, &typedErr) {
			return nil, typedErr
		}
		return nil, types.NewInternalServiceError(uerr)
	}

	if err := s.db.CreditVault(ctx, int64(amount), int64(amount)); err != nil {
		if rerr := s.db.UpdateActiveStake(
			ctx, current.Account, types.QualifiedStatesForTopUp(), next.Principal, current,
		); rerr != nil {
			log.Ctx(ctx).Error().Err(rerr).
				Str("account", current.Account).
				Msg("CRITICAL: failed to roll back stake top-up after vault credit failure")
		}
		return nil, types.NewInternalServiceError(err)
	}

	// a plain top-up does not touch the lock, so only restake reports a
	// duration on its event
	var eventDuration uint64
	if op == opRestake {
		eventDuration = durationSecs
	}
	s.publishEvent(ctx, &types.StakingEvent{
		Type:     stakeEventType(op),
		Account:  current.Account,
		Amount:   amount,
		Duration: eventDuration,
		Reward:   settled,
	})

	return &StakeResult{
		Account:       current.Account,
		Principal:     next.Principal,
		LockDuration:  next.LockDuration,
		UnlockTime:    next.UnlockTime(),
		SettledReward: settled,
	}, nil
}

func stakeEventType(op string) types.EventTypes {
	if op == opRestake {
		return types.EventRestake
	}
	return types.EventStake
}
