package rewards

import (
	sdkmath "cosmossdk.io/math"
)

const (
	// SecondsPerYear is the accrual year used by the reward formula
	SecondsPerYear = 31_536_000
	// BasisPointsDivisor converts basis points to a plain ratio
	BasisPointsDivisor = 10_000
)

// Accrue computes the reward owed on principal for elapsedSeconds at the
// given annual rate in basis points:
//
//	floor(principal * apyRateBps * elapsedSeconds / (SecondsPerYear * 10000))
//
// The intermediate product is carried in arbitrary-precision integers so it
// cannot overflow for any uint64 inputs. Rounding is floor toward zero so
// the vault never over-pays.
func Accrue(principal, apyRateBps, elapsedSeconds uint64) uint64 {
	if principal == 0 || apyRateBps == 0 || elapsedSeconds == 0 {
		return 0
	}

	reward := sdkmath.NewIntFromUint64(principal).
		Mul(sdkmath.NewIntFromUint64(apyRateBps)).
		Mul(sdkmath.NewIntFromUint64(elapsedSeconds)).
		Quo(sdkmath.NewInt(SecondsPerYear).Mul(sdkmath.NewInt(BasisPointsDivisor)))

	return reward.Uint64()
}
