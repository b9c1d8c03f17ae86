package db

import (
	"context"

	"github.com/stakevault-io/staking-vault/internal/db/model"
	"github.com/stakevault-io/staking-vault/internal/types"
)

type DbInterface interface {
	Ping(ctx context.Context) error

	InitVault(ctx context.Context, vaultDoc *model.VaultDocument) error
	GetVault(ctx context.Context) (*model.VaultDocument, error)
	CreditVault(ctx context.Context, stakedDelta, custodyDelta int64) error
	DebitVaultForPayout(ctx context.Context, payout, principal uint64) error
	WithdrawVaultSurplus(ctx context.Context, amount uint64) error
	SetVaultApyRate(ctx context.Context, apyRateBps uint64) error
	SetVaultPaused(ctx context.Context, paused bool) error

	SaveNewStake(ctx context.Context, stakeDoc *model.StakeDocument) error
	GetStake(ctx context.Context, account string) (*model.StakeDocument, error)
	UpdateActiveStake(
		ctx context.Context,
		account string,
		qualifiedPreviousStates []types.StakeState,
		expectedPrincipal uint64,
		stakeDoc *model.StakeDocument,
	) error
	DeleteActiveStake(ctx context.Context, account string, expectedPrincipal uint64) error
	SumActivePrincipals(ctx context.Context) (uint64, error)
}
