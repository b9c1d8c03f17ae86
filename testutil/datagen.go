package testutil

import (
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
)

// RandomAccountID generates an account identifier drawn from the charset
// the ledger accepts.
func RandomAccountID() string {
	return fmt.Sprintf("acct-%s", gofakeit.LetterN(24))
}

// RandomAmount generates a stake amount within [min, max].
func RandomAmount(min, max uint64) uint64 {
	return uint64(gofakeit.UintRange(uint(min), uint(max)))
}

// RandomLockDuration generates a lock window within [min, max], rounded to
// whole seconds.
func RandomLockDuration(min, max time.Duration) time.Duration {
	secs := gofakeit.UintRange(uint(min/time.Second), uint(max/time.Second))
	return time.Duration(secs) * time.Second
}

// RandomApyRateBps generates an APY rate within [min, max] basis points.
func RandomApyRateBps(min, max uint64) uint64 {
	return uint64(gofakeit.UintRange(uint(min), uint(max)))
}
