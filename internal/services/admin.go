package services

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/stakevault-io/staking-vault/internal/db"
	"github.com/stakevault-io/staking-vault/internal/db/model"
	"github.com/stakevault-io/staking-vault/internal/types"
	"github.com/stakevault-io/staking-vault/pkg"
)

const (
	opInitVault     = "init_vault"
	opAdminDeposit  = "admin_deposit"
	opAdminWithdraw = "admin_withdraw"
	opConfigure     = "configure"
	opPause         = "pause"
	opUnpause       = "unpause"
)

// WithdrawResult reports an authority surplus withdrawal.
type WithdrawResult struct {
	Amount           uint64 `json:"amount"`
	RemainingSurplus uint64 `json:"remaining_surplus"`
}

// InitVault creates the singleton vault with its authority and initial APY
// rate. The authority is set once; there is no operation to change it.
func (s *Service) InitVault(ctx context.Context, authority string, apyRateBps uint64) *types.Error {
	start := time.Now()
	err := s.initVault(ctx, authority, apyRateBps)
	observe(opInitVault, start, err)
	return err
}

func (s *Service) initVault(ctx context.Context, authority string, apyRateBps uint64) *types.Error {
	if err := pkg.ValidateAccountID(authority); err != nil {
		return types.NewValidationError(err.Error())
	}
	if verr := s.validateApyRate(apyRateBps); verr != nil {
		return verr
	}

	vaultDoc := model.NewVaultDocument(authority, apyRateBps, s.now().Unix())
	if err := s.db.InitVault(ctx, vaultDoc); err != nil {
		if db.IsDuplicateKeyError(err) {
			return types.NewError(http.StatusConflict, types.VaultAlreadyInitialized, err)
		}
		return types.NewInternalServiceError(err)
	}

	s.publishEvent(ctx, &types.StakingEvent{
		Type:       types.EventVaultInitialized,
		ApyRateBps: apyRateBps,
	})
	return nil
}

// AdminDeposit adds funds to custody to back future reward payouts. It
// deliberately leaves the staked total untouched.
func (s *Service) AdminDeposit(ctx context.Context, caller string, amount uint64) *types.Error {
	start := time.Now()
	err := s.adminDeposit(ctx, caller, amount)
	observe(opAdminDeposit, start, err)
	return err
}

func (s *Service) adminDeposit(ctx context.Context, caller string, amount uint64) *types.Error {
	if _, err := s.requireAuthority(ctx, caller); err != nil {
		return err
	}
	if amount == 0 {
		return types.NewValidationError("deposit amount must be greater than zero")
	}
	// the custody delta travels as a signed int64
	if amount > math.MaxInt64 {
		return types.NewValidationError("deposit amount is out of range")
	}

	if err := s.db.CreditVault(ctx, 0, int64(amount)); err != nil {
		return types.NewInternalServiceError(err)
	}

	s.publishEvent(ctx, &types.StakingEvent{
		Type:    types.EventAdminDeposit,
		Account: caller,
		Amount:  amount,
	})
	return nil
}

// AdminWithdraw removes surplus custody, never the funds backing active
// principal. A zero amount withdraws the entire surplus.
func (s *Service) AdminWithdraw(ctx context.Context, caller string, amount uint64) (*WithdrawResult, *types.Error) {
	start := time.Now()
	result, err := s.adminWithdraw(ctx, caller, amount)
	observe(opAdminWithdraw, start, err)
	return result, err
}

func (s *Service) adminWithdraw(ctx context.Context, caller string, amount uint64) (*WithdrawResult, *types.Error) {
	vault, aerr := s.requireAuthority(ctx, caller)
	if aerr != nil {
		return nil, aerr
	}

	withdrawable := vault.Surplus()
	if withdrawable == 0 {
		return nil, types.NewErrorWithMsg(
			http.StatusConflict, types.NothingToWithdraw, "nothing available to withdraw",
		)
	}
	if amount == 0 {
		amount = withdrawable
	}
	if amount > withdrawable {
		return nil, types.NewValidationError(fmt.Sprintf(
			"requested %d exceeds withdrawable surplus of %d", amount, withdrawable,
		))
	}

	// conditional debit re-checks the surplus atomically in case stakes
	// landed since the read above
	if err := s.db.WithdrawVaultSurplus(ctx, amount); err != nil {
		if db.IsInsufficientCustodyError(err) {
			return nil, types.NewErrorWithMsg(
				http.StatusConflict, types.NothingToWithdraw,
				"surplus shrank below the requested amount",
			)
		}
		return nil, types.NewInternalServiceError(err)
	}

	s.publishEvent(ctx, &types.StakingEvent{
		Type:    types.EventAdminWithdraw,
		Account: caller,
		Amount:  amount,
	})

	return &WithdrawResult{
		Amount:           amount,
		RemainingSurplus: withdrawable - amount,
	}, nil
}

// Configure sets a new APY rate. The change only applies to accrual
// windows opened after this call; rewards already settled into records
// keep their checkpointed value.
func (s *Service) Configure(ctx context.Context, caller string, apyRateBps uint64) *types.Error {
	start := time.Now()
	err := s.configure(ctx, caller, apyRateBps)
	observe(opConfigure, start, err)
	return err
}

func (s *Service) configure(ctx context.Context, caller string, apyRateBps uint64) *types.Error {
	if _, err := s.requireAuthority(ctx, caller); err != nil {
		return err
	}
	if verr := s.validateApyRate(apyRateBps); verr != nil {
		return verr
	}

	if err := s.db.SetVaultApyRate(ctx, apyRateBps); err != nil {
		return types.NewInternalServiceError(err)
	}

	s.publishEvent(ctx, &types.StakingEvent{
		Type:       types.EventConfigure,
		Account:    caller,
		ApyRateBps: apyRateBps,
	})
	return nil
}

// Pause freezes new stake inflows. Unstake and claim remain available so
// stakers can always exit.
func (s *Service) Pause(ctx context.Context, caller string) *types.Error {
	return s.setPaused(ctx, opPause, caller, true)
}

// Unpause re-opens the vault for new stakes.
func (s *Service) Unpause(ctx context.Context, caller string) *types.Error {
	return s.setPaused(ctx, opUnpause, caller, false)
}

func (s *Service) setPaused(ctx context.Context, op string, caller string, paused bool) *types.Error {
	start := time.Now()
	err := s.doSetPaused(ctx, caller, paused)
	observe(op, start, err)
	return err
}

func (s *Service) doSetPaused(ctx context.Context, caller string, paused bool) *types.Error {
	if _, err := s.requireAuthority(ctx, caller); err != nil {
		return err
	}

	if err := s.db.SetVaultPaused(ctx, paused); err != nil {
		return types.NewInternalServiceError(err)
	}

	evType := types.EventUnpause
	if paused {
		evType = types.EventPause
	}
	s.publishEvent(ctx, &types.StakingEvent{
		Type:    evType,
		Account: caller,
	})
	return nil
}

func (s *Service) requireAuthority(ctx context.Context, caller string) (*model.VaultDocument, *types.Error) {
	vault, err := s.db.GetVault(ctx)
	if err != nil {
		if db.IsNotFoundError(err) {
			return nil, types.NewError(http.StatusConflict, types.VaultNotInitialized, err)
		}
		return nil, types.NewInternalServiceError(err)
	}
	if caller != vault.Authority {
		return nil, types.NewErrorWithMsg(
			http.StatusForbidden, types.Unauthorized,
			"caller is not the vault authority",
		)
	}
	return vault, nil
}

func (s *Service) validateApyRate(apyRateBps uint64) *types.Error {
	ledger := &s.cfg.Ledger
	if apyRateBps < ledger.MinApyBps || apyRateBps > ledger.MaxApyBps {
		return types.NewValidationError(fmt.Sprintf(
			"apy rate must be within [%d, %d] bps", ledger.MinApyBps, ledger.MaxApyBps,
		))
	}
	return nil
}
