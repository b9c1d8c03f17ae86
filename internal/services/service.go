package services

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/stakevault-io/staking-vault/consumer"
	"github.com/stakevault-io/staking-vault/internal/config"
	"github.com/stakevault-io/staking-vault/internal/db"
	"github.com/stakevault-io/staking-vault/internal/observability/metrics"
	"github.com/stakevault-io/staking-vault/internal/types"
)

// Service is the staking ledger: it owns the vault and all stake records
// and is the only component that mutates them.
type Service struct {
	cfg     *config.Config
	db      db.DbInterface
	emitter consumer.EventEmitter
	locks   *accountLocks

	// now is the ledger clock; overridden in tests
	now func() time.Time
}

func NewService(cfg *config.Config, db db.DbInterface, emitter consumer.EventEmitter) *Service {
	return &Service{
		cfg:     cfg,
		db:      db,
		emitter: emitter,
		locks:   newAccountLocks(),
		now:     time.Now,
	}
}

// observe records the operation metric; meant to be deferred at the top of
// every ledger operation.
func observe(operation string, start time.Time, err *types.Error) {
	var e error
	if err != nil {
		e = err
	}
	metrics.ObserveLedgerOperation(operation, time.Since(start), e)
}

// publishEvent logs the structured operation record and pushes it to the
// event queue. It runs after the state transition committed, so failures
// here are reported but never unwind the operation.
func (s *Service) publishEvent(ctx context.Context, ev *types.StakingEvent) {
	vault, err := s.db.GetVault(ctx)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("Failed to read vault for event emission")
	} else {
		ev.TotalStaked = vault.TotalStaked
		ev.CustodyBalance = vault.CustodyBalance
		metrics.RecordVaultBalances(vault.TotalStaked, vault.CustodyBalance)
	}
	ev.Timestamp = s.now().Unix()

	log.Ctx(ctx).Info().
		Str("type", ev.Type.String()).
		Str("account", ev.Account).
		Uint64("amount", ev.Amount).
		Uint64("reward", ev.Reward).
		Uint64("total_staked", ev.TotalStaked).
		Uint64("custody_balance", ev.CustodyBalance).
		Msg("Ledger operation committed")

	if s.emitter == nil {
		return
	}
	if err := s.emitter.PushStakingEvent(ctx, ev); err != nil {
		log.Ctx(ctx).Error().Err(err).
			Str("type", ev.Type.String()).
			Msg("Failed to push staking event")
	}
}

// custodyShortfall flags the fault class that must never occur while the
// ledger invariants hold.
func (s *Service) custodyShortfall(ctx context.Context, op string, err error) *types.Error {
	metrics.RecordSolvencyFault()
	log.Ctx(ctx).Error().Err(err).
		Str("operation", op).
		Msg("CRITICAL: custody balance cannot honor an owed payout")
	return &types.Error{
		Err:        err,
		StatusCode: http.StatusInternalServerError,
		ErrorCode:  types.CustodyShortfall,
	}
}
