package consumer

import (
	"context"

	"github.com/stakevault-io/staking-vault/internal/types"
)

// EventEmitter is the one-way notification sink for successful ledger
// operations. Publish failures are reported to the caller for accounting
// but never undo a committed operation.
type EventEmitter interface {
	Start(ctx context.Context) error
	PushStakingEvent(ctx context.Context, ev *types.StakingEvent) error
	Stop() error
}
