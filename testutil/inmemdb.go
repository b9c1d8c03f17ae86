package testutil

import (
	"context"
	"slices"
	"sync"

	"github.com/stakevault-io/staking-vault/internal/db"
	"github.com/stakevault-io/staking-vault/internal/db/model"
	"github.com/stakevault-io/staking-vault/internal/types"
)

// InMemoryDb is a db.DbInterface fake backed by maps. It mirrors the
// conditional-update semantics of the mongo layer, including the error
// types, so service tests exercise the same failure paths.
type InMemoryDb struct {
	mu     sync.Mutex
	vault  *model.VaultDocument
	stakes map[string]*model.StakeDocument
}

var _ db.DbInterface = (*InMemoryDb)(nil)

func NewInMemoryDb() *InMemoryDb {
	return &InMemoryDb{
		stakes: make(map[string]*model.StakeDocument),
	}
}

func (d *InMemoryDb) Ping(_ context.Context) error {
	return nil
}

func (d *InMemoryDb) InitVault(_ context.Context, vaultDoc *model.VaultDocument) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.vault != nil {
		return &db.DuplicateKeyError{
			Key:     vaultDoc.ID,
			Message: "vault already initialized",
		}
	}
	cp := *vaultDoc
	d.vault = &cp
	return nil
}

func (d *InMemoryDb) GetVault(_ context.Context) (*model.VaultDocument, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.vaultLocked()
}

func (d *InMemoryDb) vaultLocked() (*model.VaultDocument, error) {
	if d.vault == nil {
		return nil, &db.NotFoundError{
			Key:     model.VaultDocumentID,
			Message: "vault not initialized",
		}
	}
	cp := *d.vault
	return &cp, nil
}

func (d *InMemoryDb) CreditVault(_ context.Context, stakedDelta, custodyDelta int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.vault == nil {
		return &db.NotFoundError{
			Key:     model.VaultDocumentID,
			Message: "vault not initialized",
		}
	}
	d.vault.TotalStaked = uint64(int64(d.vault.TotalStaked) + stakedDelta)
	d.vault.CustodyBalance = uint64(int64(d.vault.CustodyBalance) + custodyDelta)
	return nil
}

func (d *InMemoryDb) DebitVaultForPayout(_ context.Context, payout, principal uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.vault == nil {
		return &db.NotFoundError{
			Key:     model.VaultDocumentID,
			Message: "vault not initialized",
		}
	}
	if d.vault.CustodyBalance < payout {
		return &db.InsufficientCustodyError{
			Required: payout,
			Message:  "custody balance cannot cover payout",
		}
	}
	d.vault.CustodyBalance -= payout
	d.vault.TotalStaked -= principal
	return nil
}

func (d *InMemoryDb) WithdrawVaultSurplus(_ context.Context, amount uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.vault == nil {
		return &db.NotFoundError{
			Key:     model.VaultDocumentID,
			Message: "vault not initialized",
		}
	}
	if d.vault.CustodyBalance < amount || d.vault.CustodyBalance-amount < d.vault.TotalStaked {
		return &db.InsufficientCustodyError{
			Required: amount,
			Message:  "withdrawal exceeds vault surplus",
		}
	}
	d.vault.CustodyBalance -= amount
	return nil
}

func (d *InMemoryDb) SetVaultApyRate(_ context.Context, apyRateBps uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.vault == nil {
		return &db.NotFoundError{
			Key:     model.VaultDocumentID,
			Message: "vault not initialized",
		}
	}
	d.vault.ApyRateBps = apyRateBps
	return nil
}

func (d *InMemoryDb) SetVaultPaused(_ context.Context, paused bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.vault == nil {
		return &db.NotFoundError{
			Key:     model.VaultDocumentID,
			Message: "vault not initialized",
		}
	}
	d.vault.Paused = paused
	return nil
}

func (d *InMemoryDb) SaveNewStake(_ context.Context, stakeDoc *model.StakeDocument) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.stakes[stakeDoc.Account]; ok {
		return &db.DuplicateKeyError{
			Key:     stakeDoc.Account,
			Message: "stake record already exists",
		}
	}
	cp := *stakeDoc
	d.stakes[stakeDoc.Account] = &cp
	return nil
}

func (d *InMemoryDb) GetStake(_ context.Context, account string) (*model.StakeDocument, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	doc, ok := d.stakes[account]
	if !ok {
		return nil, &db.NotFoundError{
			Key:     account,
			Message: "no active stake for account",
		}
	}
	cp := *doc
	return &cp, nil
}

func (d *InMemoryDb) UpdateActiveStake(
	_ context.Context,
	account string,
	qualifiedPreviousStates []types.StakeState,
	expectedPrincipal uint64,
	stakeDoc *model.StakeDocument,
) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	doc, ok := d.stakes[account]
	if !ok || doc.Principal != expectedPrincipal ||
		!slices.Contains(qualifiedPreviousStates, doc.State) {
		return &db.NotFoundError{
			Key:     account,
			Message: "stake record not found or not in a qualified state",
		}
	}
	cp := *stakeDoc
	cp.Account = account
	d.stakes[account] = &cp
	return nil
}

func (d *InMemoryDb) DeleteActiveStake(_ context.Context, account string, expectedPrincipal uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	doc, ok := d.stakes[account]
	if !ok || doc.Principal != expectedPrincipal || doc.State != types.StateActive {
		return &db.NotFoundError{
			Key:     account,
			Message: "stake record not found or not in a qualified state",
		}
	}
	delete(d.stakes, account)
	return nil
}

func (d *InMemoryDb) SumActivePrincipals(_ context.Context) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var total uint64
	for _, doc := range d.stakes {
		if doc.State == types.StateActive {
			total += doc.Principal
		}
	}
	return total, nil
}
