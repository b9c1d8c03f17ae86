package model

import (
	"github.com/stakevault-io/staking-vault/internal/types"
)

const StakeCollection = "stakes"

// StakeDocument is the per-account stake record, keyed by the
// authenticated account identifier.
type StakeDocument struct {
	Account          string           `bson:"_id"`
	Principal        uint64           `bson:"principal"`
	StakedAt         int64            `bson:"staked_at"`
	LockDuration     uint64           `bson:"lock_duration"`
	RewardCheckpoint int64            `bson:"reward_checkpoint"`
	AccruedReward    uint64           `bson:"accrued_reward"`
	State            types.StakeState `bson:"state"`
}

func NewStakeDocument(account string, principal, lockDuration uint64, now int64) *StakeDocument {
	return &StakeDocument{
		Account:          account,
		Principal:        principal,
		StakedAt:         now,
		LockDuration:     lockDuration,
		RewardCheckpoint: now,
		State:            types.StateActive,
	}
}

func (s *StakeDocument) UnlockTime() int64 {
	return s.StakedAt + int64(s.LockDuration)
}

func (s *StakeDocument) UnlockedAt(now int64) bool {
	return now >= s.UnlockTime()
}
