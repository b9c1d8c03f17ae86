package types

// Enum values for Stake State
type StakeState string

const (
	// StateActive is the only stored state: the record holds principal
	// under a lock window. A record that does not exist is "empty", and
	// "unlocked" is derived from timestamps, never stored.
	StateActive StakeState = "ACTIVE"
	// StateUnlocked is a derived, read-only state reported to callers
	// once the lock window has elapsed
	StateUnlocked StakeState = "UNLOCKED"
)

func (s StakeState) String() string {
	return string(s)
}

// QualifiedStatesForTopUp returns the states a record may be in for a
// stake top-up to settle against it.
func QualifiedStatesForTopUp() []StakeState {
	return []StakeState{StateActive}
}

// QualifiedStatesForUnstake returns the states a record may be in when the
// full position is withdrawn.
func QualifiedStatesForUnstake() []StakeState {
	return []StakeState{StateActive}
}

// QualifiedStatesForClaim returns the states a record may be in when
// rewards are claimed.
func QualifiedStatesForClaim() []StakeState {
	return []StakeState{StateActive}
}
