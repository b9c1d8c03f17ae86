package services

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/stakevault-io/staking-vault/internal/observability/metrics"
	"github.com/stakevault-io/staking-vault/internal/types"
	"github.com/stakevault-io/staking-vault/internal/utils/poller"
)

// StartSolvencyAuditor periodically cross-checks the vault counters
// against the stake records: the staked total must equal the sum of active
// principals, and custody must cover it. Violations are alerting
// conditions, not user errors; the auditor never mutates state.
func (s *Service) StartSolvencyAuditor(ctx context.Context) {
	if !s.cfg.Auditor.Enabled {
		log.Ctx(ctx).Info().Msg("Solvency auditor disabled")
		return
	}

	auditPoller := poller.NewPoller(s.cfg.Auditor.PollingInterval, s.auditSolvency)
	go auditPoller.Start(ctx)
}

func (s *Service) auditSolvency(ctx context.Context) *types.Error {
	vault, err := s.db.GetVault(ctx)
	if err != nil {
		return types.NewInternalServiceError(err)
	}

	activeSum, err := s.db.SumActivePrincipals(ctx)
	if err != nil {
		return types.NewInternalServiceError(err)
	}

	metrics.RecordVaultBalances(vault.TotalStaked, vault.CustodyBalance)

	if vault.TotalStaked != activeSum {
		metrics.RecordSolvencyFault()
		log.Ctx(ctx).Error().
			Uint64("total_staked", vault.TotalStaked).
			Uint64("active_principal_sum", activeSum).
			Msg("CRITICAL: vault staked total diverged from stake records")
	}

	if vault.CustodyBalance < vault.TotalStaked {
		metrics.RecordSolvencyFault()
		log.Ctx(ctx).Error().
			Uint64("custody_balance", vault.CustodyBalance).
			Uint64("total_staked", vault.TotalStaked).
			Msg("CRITICAL: custody balance no longer covers staked principal")
	}

	return nil
}
