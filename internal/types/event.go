package types

type EventTypes string

func (e EventTypes) String() string {
	return string(e)
}

const (
	EventVaultInitialized EventTypes = "stakevault.v1.EventVaultInitialized"
	EventStake            EventTypes = "stakevault.v1.EventStake"
	EventRestake          EventTypes = "stakevault.v1.EventRestake"
	EventUnstake          EventTypes = "stakevault.v1.EventUnstake"
	EventClaimRewards     EventTypes = "stakevault.v1.EventClaimRewards"
	EventAdminDeposit     EventTypes = "stakevault.v1.EventAdminDeposit"
	EventAdminWithdraw    EventTypes = "stakevault.v1.EventAdminWithdraw"
	EventConfigure        EventTypes = "stakevault.v1.EventConfigure"
	EventPause            EventTypes = "stakevault.v1.EventPause"
	EventUnpause          EventTypes = "stakevault.v1.EventUnpause"
)

// StakingEvent is the one-way notification emitted after every successful
// ledger operation, for external monitoring and indexing.
type StakingEvent struct {
	EventID        string     `json:"event_id"`
	Type           EventTypes `json:"type"`
	Account        string     `json:"account,omitempty"`
	Amount         uint64     `json:"amount,omitempty"`
	Duration       uint64     `json:"duration,omitempty"`
	Reward         uint64     `json:"reward,omitempty"`
	ApyRateBps     uint64     `json:"apy_rate_bps,omitempty"`
	TotalStaked    uint64     `json:"total_staked"`
	CustodyBalance uint64     `json:"custody_balance"`
	Timestamp      int64      `json:"timestamp"`
}
