package db

import (
	"context"
	"time"

	"github.com/stakevault-io/staking-vault/internal/db/model"
	"github.com/stakevault-io/staking-vault/internal/observability/metrics"
	"github.com/stakevault-io/staking-vault/internal/types"
)

type DbWithMetrics struct {
	db DbInterface
}

func NewDbWithMetrics(db DbInterface) *DbWithMetrics {
	return &DbWithMetrics{db: db}
}

func (d *DbWithMetrics) Ping(ctx context.Context) error {
	return d.db.Ping(ctx)
}

func (d *DbWithMetrics) InitVault(ctx context.Context, vaultDoc *model.VaultDocument) error {
	return d.run("InitVault", func() error {
		return d.db.InitVault(ctx, vaultDoc)
	})
}

func (d *DbWithMetrics) GetVault(ctx context.Context) (result *model.VaultDocument, err error) {
	//nolint:errcheck
	d.run("GetVault", func() error {
		result, err = d.db.GetVault(ctx)
		return err
	})
	return
}

func (d *DbWithMetrics) CreditVault(ctx context.Context, stakedDelta, custodyDelta int64) error {
	return d.run("CreditVault", func() error {
		return d.db.CreditVault(ctx, stakedDelta, custodyDelta)
	})
}

func (d *DbWithMetrics) DebitVaultForPayout(ctx context.Context, payout, principal uint64) error {
	return d.run("DebitVaultForPayout", func() error {
		return d.db.DebitVaultForPayout(ctx, payout, principal)
	})
}

func (d *DbWithMetrics) WithdrawVaultSurplus(ctx context.Context, amount uint64) error {
	return d.run("WithdrawVaultSurplus", func() error {
		return d.db.WithdrawVaultSurplus(ctx, amount)
	})
}

func (d *DbWithMetrics) SetVaultApyRate(ctx context.Context, apyRateBps uint64) error {
	return d.run("SetVaultApyRate", func() error {
		return d.db.SetVaultApyRate(ctx, apyRateBps)
	})
}

func (d *DbWithMetrics) SetVaultPaused(ctx context.Context, paused bool) error {
	return d.run("SetVaultPaused", func() error {
		return d.db.SetVaultPaused(ctx, paused)
	})
}

func (d *DbWithMetrics) SaveNewStake(ctx context.Context, stakeDoc *model.StakeDocument) error {
	return d.run("SaveNewStake", func() error {
		return d.db.SaveNewStake(ctx, stakeDoc)
	})
}

func (d *DbWithMetrics) GetStake(ctx context.Context, account string) (result *model.StakeDocument, err error) {
	//nolint:errcheck
	d.run("GetStake", func() error {
		result, err = d.db.GetStake(ctx, account)
		return err
	})
	return
}

func (d *DbWithMetrics) UpdateActiveStake(
	ctx context.Context,
	account string,
	qualifiedPreviousStates []types.StakeState,
	expectedPrincipal uint64,
	stakeDoc *model.StakeDocument,
) error {
	return d.run("UpdateActiveStake", func() error {
		return d.db.UpdateActiveStake(ctx, account, qualifiedPreviousStates, expectedPrincipal, stakeDoc)
	})
}

func (d *DbWithMetrics) DeleteActiveStake(ctx context.Context, account string, expectedPrincipal uint64) error {
	return d.run("DeleteActiveStake", func() error {
		return d.db.DeleteActiveStake(ctx, account, expectedPrincipal)
	})
}

func (d *DbWithMetrics) SumActivePrincipals(ctx context.Context) (result uint64, err error) {
	//nolint:errcheck
	d.run("SumActivePrincipals", func() error {
		result, err = d.db.SumActivePrincipals(ctx)
		return err
	})
	return
}

func (d *DbWithMetrics) run(method string, f func() error) error {
	start := time.Now()
	err := f()
	metrics.ObserveDbLatency(method, time.Since(start), err)
	return err
}
