package services

import (
	"context"
	"math"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stakevault-io/staking-vault/internal/config"
	"github.com/stakevault-io/staking-vault/internal/types"
	"github.com/stakevault-io/staking-vault/testutil"
)

const (
	testAuthority = "authority-account"

	testPrincipal  = 100_00000000
	testApyBps     = 5000
	testLockSecs   = 7 * 24 * 3600
	testWeekReward = 95_890_410
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type captureEmitter struct {
	mu     sync.Mutex
	events []*types.StakingEvent
}

func (e *captureEmitter) Start(_ context.Context) error {
	return nil
}

func (e *captureEmitter) PushStakingEvent(_ context.Context, ev *types.StakingEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return nil
}

func (e *captureEmitter) Stop() error {
	return nil
}

func (e *captureEmitter) Types() []types.EventTypes {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]types.EventTypes, len(e.events))
	for i, ev := range e.events {
		out[i] = ev.Type
	}
	return out
}

func testConfig() *config.Config {
	return &config.Config{
		Ledger: config.LedgerConfig{
			MinStake:    1_00000000,
			MaxStake:    1_000_000_00000000,
			MinDuration: 24 * time.Hour,
			MaxDuration: 365 * 24 * time.Hour,
			MinApyBps:   100,
			MaxApyBps:   20_000,
		},
	}
}

func newTestService(t *testing.T) (*Service, *testutil.InMemoryDb, *captureEmitter, *fakeClock) {
	t.Helper()

	database := testutil.NewInMemoryDb()
	emitter := &captureEmitter{}
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}

	svc := NewService(testConfig(), database, emitter)
	svc.now = clock.Now

	return svc, database, emitter, clock
}

func newInitializedService(t *testing.T) (*Service, *testutil.InMemoryDb, *captureEmitter, *fakeClock) {
	t.Helper()

	svc, database, emitter, clock := newTestService(t)
	require.Nil(t, svc.InitVault(context.Background(), testAuthority, testApyBps))
	return svc, database, emitter, clock
}

func TestInitVaultIsSingleton(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	require.Nil(t, svc.InitVault(ctx, testAuthority, testApyBps))

	err := svc.InitVault(ctx, testAuthority, testApyBps)
	require.NotNil(t, err)
	assert.Equal(t, types.VaultAlreadyInitialized, err.ErrorCode)
	assert.Equal(t, http.StatusConflict, err.StatusCode)
}

func TestInitVaultValidatesInput(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	err := svc.InitVault(ctx, "", testApyBps)
	require.NotNil(t, err)
	assert.Equal(t, types.ValidationError, err.ErrorCode)

	err = svc.InitVault(ctx, testAuthority, 20_001)
	require.NotNil(t, err)
	assert.Equal(t, types.ValidationError, err.ErrorCode)
}

func TestStakeRequiresInitializedVault(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.Stake(context.Background(), "staker-1", testPrincipal, testLockSecs*time.Second)
	require.NotNil(t, err)
	assert.Equal(t, types.VaultNotInitialized, err.ErrorCode)
	assert.Equal(t, http.StatusConflict, err.StatusCode)
}

func TestStakeCreatesRecordAndFundsVault(t *testing.T) {
	svc, _, _, clock := newInitializedService(t)
	ctx := context.Background()

	result, err := svc.Stake(ctx, "staker-1", testPrincipal, testLockSecs*time.Second)
	require.Nil(t, err)
	assert.Equal(t, "staker-1", result.Account)
	assert.Equal(t, uint64(testPrincipal), result.Principal)
	assert.Equal(t, uint64(testLockSecs), result.LockDuration)
	assert.Equal(t, clock.Now().Unix()+testLockSecs, result.UnlockTime)
	assert.Zero(t, result.SettledReward)

	stats, serr := svc.GetVaultStats(ctx)
	require.Nil(t, serr)
	assert.Equal(t, uint64(testPrincipal), stats.TotalStaked)
	assert.Equal(t, uint64(testPrincipal), stats.CustodyBalance)
}

func TestStakeAmountBounds(t *testing.T) {
	svc, _, _, _ := newInitializedService(t)
	ctx := context.Background()

	tcs := []struct {
		name   string
		amount uint64
	}{
		{"below minimum", 1_00000000 - 1},
		{"above maximum", 1_000_000_00000000 + 1},
		{"zero", 0},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Stake(ctx, "staker-1", tc.amount, testLockSecs*time.Second)
			require.NotNil(t, err)
			assert.Equal(t, types.ValidationError, err.ErrorCode)
		})
	}

	// the bounds themselves are inclusive
	_, err := svc.Stake(ctx, "staker-min", 1_00000000, testLockSecs*time.Second)
	require.Nil(t, err)
	_, err = svc.Stake(ctx, "staker-max", 1_000_000_00000000, testLockSecs*time.Second)
	require.Nil(t, err)
}

func TestStakeDurationBounds(t *testing.T) {
	svc, _, _, _ := newInitializedService(t)
	ctx := context.Background()

	_, err := svc.Stake(ctx, "staker-1", testPrincipal, 24*time.Hour-time.Second)
	require.NotNil(t, err)
	assert.Equal(t, types.ValidationError, err.ErrorCode)

	_, err = svc.Stake(ctx, "staker-1", testPrincipal, 365*24*time.Hour+time.Second)
	require.NotNil(t, err)
	assert.Equal(t, types.ValidationError, err.ErrorCode)
}

func TestStakeRejectsBadAccountID(t *testing.T) {
	svc, _, _, _ := newInitializedService(t)

	_, err := svc.Stake(context.Background(), "bad account!", testPrincipal, testLockSecs*time.Second)
	require.NotNil(t, err)
	assert.Equal(t, types.ValidationError, err.ErrorCode)
}

func TestStakeRejectedWhilePaused(t *testing.T) {
	svc, _, _, _ := newInitializedService(t)
	ctx := context.Background()

	require.Nil(t, svc.Pause(ctx, testAuthority))

	_, err := svc.Stake(ctx, "staker-1", testPrincipal, testLockSecs*time.Second)
	require.NotNil(t, err)
	assert.Equal(t, types.VaultPaused, err.ErrorCode)

	require.Nil(t, svc.Unpause(ctx, testAuthority))
	_, err = svc.Stake(ctx, "staker-1", testPrincipal, testLockSecs*time.Second)
	require.Nil(t, err)
}

func TestStakeTopUpSettlesRewardAndKeepsLock(t *testing.T) {
	svc, _, _, clock := newInitializedService(t)
	ctx := context.Background()

	first, err := svc.Stake(ctx, "staker-1", testPrincipal, testLockSecs*time.Second)
	require.Nil(t, err)

	clock.Advance(7 * 24 * time.Hour)

	second, err := svc.Stake(ctx, "staker-1", testPrincipal, 0)
	require.Nil(t, err)
	assert.Equal(t, uint64(2*testPrincipal), second.Principal)
	assert.Equal(t, uint64(testWeekReward), second.SettledReward)
	// a plain top-up never moves the unlock time
	assert.Equal(t, first.LockDuration, second.LockDuration)
	assert.Equal(t, first.UnlockTime, second.UnlockTime)

	stats, serr := svc.GetVaultStats(ctx)
	require.Nil(t, serr)
	assert.Equal(t, uint64(2*testPrincipal), stats.TotalStaked)
}

func TestRestakeExtendsLock(t *testing.T) {
	svc, _, _, clock := newInitializedService(t)
	ctx := context.Background()

	first, err := svc.Stake(ctx, "staker-1", testPrincipal, testLockSecs*time.Second)
	require.Nil(t, err)

	clock.Advance(24 * time.Hour)

	extension := 3 * 24 * time.Hour
	second, err := svc.Restake(ctx, "staker-1", testPrincipal, extension)
	require.Nil(t, err)
	assert.Equal(t, first.LockDuration+uint64(extension/time.Second), second.LockDuration)
	assert.Equal(t, first.UnlockTime+int64(extension/time.Second), second.UnlockTime)
}

func TestRestakeExtensionValidation(t *testing.T) {
	svc, _, _, _ := newInitializedService(t)
	ctx := context.Background()

	_, err := svc.Stake(ctx, "staker-1", testPrincipal, testLockSecs*time.Second)
	require.Nil(t, err)

	_, rerr := svc.Restake(ctx, "staker-1", testPrincipal, 0)
	require.NotNil(t, rerr)
	assert.Equal(t, types.ValidationError, rerr.ErrorCode)

	_, rerr = svc.Restake(ctx, "staker-1", testPrincipal, 366*24*time.Hour)
	require.NotNil(t, rerr)
	assert.Equal(t, types.ValidationError, rerr.ErrorCode)
}

func TestRestakeOnEmptyRecordCreatesStake(t *testing.T) {
	svc, _, _, _ := newInitializedService(t)

	result, err := svc.Restake(context.Background(), "staker-1", testPrincipal, testLockSecs*time.Second)
	require.Nil(t, err)
	assert.Equal(t, uint64(testPrincipal), result.Principal)
	assert.Equal(t, uint64(testLockSecs), result.LockDuration)
}

func TestUnstakeBeforeUnlockReportsRemaining(t *testing.T) {
	svc, _, _, clock := newInitializedService(t)
	ctx := context.Background()

	_, err := svc.Stake(ctx, "staker-1", testPrincipal, testLockSecs*time.Second)
	require.Nil(t, err)

	clock.Advance(testLockSecs*time.Second - time.Second)

	_, uerr := svc.Unstake(ctx, "staker-1")
	require.NotNil(t, uerr)
	assert.Equal(t, types.StakeStillLocked, uerr.ErrorCode)
	assert.Equal(t, http.StatusForbidden, uerr.StatusCode)
	assert.Equal(t, uint64(1), uerr.RemainingSeconds)
}

func TestUnstakePaysPrincipalPlusReward(t *testing.T) {
	svc, database, _, clock := newInitializedService(t)
	ctx := context.Background()

	_, err := svc.Stake(ctx, "staker-1", testPrincipal, testLockSecs*time.Second)
	require.Nil(t, err)
	// custody must carry the reward on top of the principal
	require.Nil(t, svc.AdminDeposit(ctx, testAuthority, testWeekReward))

	clock.Advance(testLockSecs * time.Second)

	result, uerr := svc.Unstake(ctx, "staker-1")
	require.Nil(t, uerr)
	assert.Equal(t, uint64(testPrincipal), result.Principal)
	assert.Equal(t, uint64(testWeekReward), result.Reward)
	assert.Equal(t, uint64(testPrincipal+testWeekReward), result.Payout)

	// the record is gone entirely and the vault drained back to zero
	_, serr := svc.GetStakeSnapshot(ctx, "staker-1")
	require.NotNil(t, serr)
	assert.Equal(t, types.NoActiveStake, serr.ErrorCode)

	stats, verr := svc.GetVaultStats(ctx)
	require.Nil(t, verr)
	assert.Zero(t, stats.TotalStaked)
	assert.Zero(t, stats.CustodyBalance)

	sum, aerr := database.SumActivePrincipals(ctx)
	require.NoError(t, aerr)
	assert.Zero(t, sum)
}

func TestUnstakeWithoutActiveStake(t *testing.T) {
	svc, _, _, _ := newInitializedService(t)

	_, err := svc.Unstake(context.Background(), "staker-1")
	require.NotNil(t, err)
	assert.Equal(t, types.NoActiveStake, err.ErrorCode)
	assert.Equal(t, http.StatusNotFound, err.StatusCode)
}

func TestUnstakeShortfallIsSolvencyFault(t *testing.T) {
	svc, _, _, clock := newInitializedService(t)
	ctx := context.Background()

	_, err := svc.Stake(ctx, "staker-1", testPrincipal, testLockSecs*time.Second)
	require.Nil(t, err)

	// no admin deposit: custody holds exactly the principal, so the
	// accrued reward cannot be honored
	clock.Advance(testLockSecs * time.Second)

	_, uerr := svc.Unstake(ctx, "staker-1")
	require.NotNil(t, uerr)
	assert.Equal(t, types.CustodyShortfall, uerr.ErrorCode)
	assert.Equal(t, http.StatusInternalServerError, uerr.StatusCode)

	// the failed payout must leave the position untouched
	snapshot, serr := svc.GetStakeSnapshot(ctx, "staker-1")
	require.Nil(t, serr)
	assert.Equal(t, uint64(testPrincipal), snapshot.Principal)
}

func TestClaimPaysRewardAndResetsCheckpoint(t *testing.T) {
	svc, _, _, clock := newInitializedService(t)
	ctx := context.Background()

	_, err := svc.Stake(ctx, "staker-1", testPrincipal, testLockSecs*time.Second)
	require.Nil(t, err)
	require.Nil(t, svc.AdminDeposit(ctx, testAuthority, testWeekReward))

	clock.Advance(7 * 24 * time.Hour)

	result, cerr := svc.ClaimRewards(ctx, "staker-1")
	require.Nil(t, cerr)
	assert.Equal(t, uint64(testWeekReward), result.Reward)

	// the principal and lock stay untouched
	snapshot, serr := svc.GetStakeSnapshot(ctx, "staker-1")
	require.Nil(t, serr)
	assert.Equal(t, uint64(testPrincipal), snapshot.Principal)
	assert.Zero(t, snapshot.PendingReward)

	// a second immediate claim has nothing left to pay
	_, cerr = svc.ClaimRewards(ctx, "staker-1")
	require.NotNil(t, cerr)
	assert.Equal(t, types.NothingToClaim, cerr.ErrorCode)
}

func TestExitsStayOpenWhilePaused(t *testing.T) {
	svc, _, _, clock := newInitializedService(t)
	ctx := context.Background()

	_, err := svc.Stake(ctx, "staker-1", testPrincipal, testLockSecs*time.Second)
	require.Nil(t, err)
	require.Nil(t, svc.AdminDeposit(ctx, testAuthority, 2*testWeekReward))
	require.Nil(t, svc.Pause(ctx, testAuthority))

	clock.Advance(testLockSecs * time.Second)

	_, cerr := svc.ClaimRewards(ctx, "staker-1")
	require.Nil(t, cerr)

	_, uerr := svc.Unstake(ctx, "staker-1")
	require.Nil(t, uerr)
}

func TestAdminDepositRequiresAuthority(t *testing.T) {
	svc, _, _, _ := newInitializedService(t)
	ctx := context.Background()

	err := svc.AdminDeposit(ctx, "staker-1", testPrincipal)
	require.NotNil(t, err)
	assert.Equal(t, types.Unauthorized, err.ErrorCode)
	assert.Equal(t, http.StatusForbidden, err.StatusCode)

	err = svc.AdminDeposit(ctx, testAuthority, 0)
	require.NotNil(t, err)
	assert.Equal(t, types.ValidationError, err.ErrorCode)

	// amounts above int64 range would flip the custody delta negative
	err = svc.AdminDeposit(ctx, testAuthority, math.MaxInt64+1)
	require.NotNil(t, err)
	assert.Equal(t, types.ValidationError, err.ErrorCode)
}

func TestAdminWithdrawTakesOnlySurplus(t *testing.T) {
	svc, _, _, _ := newInitializedService(t)
	ctx := context.Background()

	_, err := svc.Stake(ctx, "staker-1", testPrincipal, testLockSecs*time.Second)
	require.Nil(t, err)
	require.Nil(t, svc.AdminDeposit(ctx, testAuthority, 5_00000000))

	// more than the surplus is rejected even though custody could cover it
	_, werr := svc.AdminWithdraw(ctx, testAuthority, 5_00000001)
	require.NotNil(t, werr)
	assert.Equal(t, types.ValidationError, werr.ErrorCode)

	result, werr := svc.AdminWithdraw(ctx, testAuthority, 2_00000000)
	require.Nil(t, werr)
	assert.Equal(t, uint64(2_00000000), result.Amount)
	assert.Equal(t, uint64(3_00000000), result.RemainingSurplus)

	// zero amount drains the remaining surplus
	result, werr = svc.AdminWithdraw(ctx, testAuthority, 0)
	require.Nil(t, werr)
	assert.Equal(t, uint64(3_00000000), result.Amount)
	assert.Zero(t, result.RemainingSurplus)

	_, werr = svc.AdminWithdraw(ctx, testAuthority, 0)
	require.NotNil(t, werr)
	assert.Equal(t, types.NothingToWithdraw, werr.ErrorCode)

	stats, serr := svc.GetVaultStats(ctx)
	require.Nil(t, serr)
	assert.Equal(t, uint64(testPrincipal), stats.CustodyBalance)
}

func TestConfigureChangesRateForNewWindowsOnly(t *testing.T) {
	svc, _, _, clock := newInitializedService(t)
	ctx := context.Background()

	_, err := svc.Stake(ctx, "staker-1", testPrincipal, testLockSecs*time.Second)
	require.Nil(t, err)

	clock.Advance(7 * 24 * time.Hour)

	// the claimable reward at read time follows the current rate
	snapshot, serr := svc.GetStakeSnapshot(ctx, "staker-1")
	require.Nil(t, serr)
	assert.Equal(t, uint64(testWeekReward), snapshot.PendingReward)

	require.Nil(t, svc.Configure(ctx, testAuthority, 10_000))

	snapshot, serr = svc.GetStakeSnapshot(ctx, "staker-1")
	require.Nil(t, serr)
	assert.Equal(t, uint64(2*testWeekReward), snapshot.PendingReward)
}

func TestConfigureRejectsNonAuthority(t *testing.T) {
	svc, _, _, _ := newInitializedService(t)
	ctx := context.Background()

	err := svc.Configure(ctx, "staker-1", 10_000)
	require.NotNil(t, err)
	assert.Equal(t, types.Unauthorized, err.ErrorCode)

	// the rate must be unchanged after the rejected call
	stats, serr := svc.GetVaultStats(ctx)
	require.Nil(t, serr)
	assert.Equal(t, uint64(testApyBps), stats.ApyRateBps)
}

func TestConfigureValidatesRateBounds(t *testing.T) {
	svc, _, _, _ := newInitializedService(t)
	ctx := context.Background()

	err := svc.Configure(ctx, testAuthority, 99)
	require.NotNil(t, err)
	assert.Equal(t, types.ValidationError, err.ErrorCode)

	err = svc.Configure(ctx, testAuthority, 20_001)
	require.NotNil(t, err)
	assert.Equal(t, types.ValidationError, err.ErrorCode)
}

func TestPauseRequiresAuthority(t *testing.T) {
	svc, _, _, _ := newInitializedService(t)

	err := svc.Pause(context.Background(), "staker-1")
	require.NotNil(t, err)
	assert.Equal(t, types.Unauthorized, err.ErrorCode)
}

func TestEligibilityTracksUnlock(t *testing.T) {
	svc, _, _, clock := newInitializedService(t)
	ctx := context.Background()

	_, err := svc.Stake(ctx, "staker-1", testPrincipal, testLockSecs*time.Second)
	require.Nil(t, err)

	eligibility, eerr := svc.GetUnstakeEligibility(ctx, "staker-1")
	require.Nil(t, eerr)
	assert.False(t, eligibility.CanUnstake)
	assert.Equal(t, uint64(testLockSecs), eligibility.RemainingSeconds)

	clock.Advance(testLockSecs * time.Second)

	eligibility, eerr = svc.GetUnstakeEligibility(ctx, "staker-1")
	require.Nil(t, eerr)
	assert.True(t, eligibility.CanUnstake)
	assert.Zero(t, eligibility.RemainingSeconds)
}

func TestSnapshotStateFollowsUnlock(t *testing.T) {
	svc, _, _, clock := newInitializedService(t)
	ctx := context.Background()

	_, err := svc.Stake(ctx, "staker-1", testPrincipal, testLockSecs*time.Second)
	require.Nil(t, err)

	snapshot, serr := svc.GetStakeSnapshot(ctx, "staker-1")
	require.Nil(t, serr)
	assert.Equal(t, types.StateActive, snapshot.State)

	clock.Advance(testLockSecs * time.Second)

	snapshot, serr = svc.GetStakeSnapshot(ctx, "staker-1")
	require.Nil(t, serr)
	assert.Equal(t, types.StateUnlocked, snapshot.State)
}

func TestOperationsEmitEvents(t *testing.T) {
	svc, _, emitter, clock := newInitializedService(t)
	ctx := context.Background()

	_, err := svc.Stake(ctx, "staker-1", testPrincipal, testLockSecs*time.Second)
	require.Nil(t, err)
	require.Nil(t, svc.AdminDeposit(ctx, testAuthority, testWeekReward))

	clock.Advance(testLockSecs * time.Second)

	_, uerr := svc.Unstake(ctx, "staker-1")
	require.Nil(t, uerr)

	assert.Equal(t, []types.EventTypes{
		types.EventVaultInitialized,
		types.EventStake,
		types.EventAdminDeposit,
		types.EventUnstake,
	}, emitter.Types())
}

func TestConcurrentStakersKeepVaultConsistent(t *testing.T) {
	svc, database, _, _ := newInitializedService(t)
	ctx := context.Background()

	const stakers = 16

	var wg conc.WaitGroup
	for i := 0; i < stakers; i++ {
		account := testutil.RandomAccountID()
		wg.Go(func() {
			_, err := svc.Stake(ctx, account, testPrincipal, testLockSecs*time.Second)
			assert.Nil(t, err)
		})
	}
	wg.Wait()

	stats, serr := svc.GetVaultStats(ctx)
	require.Nil(t, serr)
	assert.Equal(t, uint64(stakers*testPrincipal), stats.TotalStaked)
	assert.Equal(t, uint64(stakers*testPrincipal), stats.CustodyBalance)

	sum, err := database.SumActivePrincipals(ctx)
	require.NoError(t, err)
	assert.Equal(t, stats.TotalStaked, sum)
}

func TestAuditPassesOnConsistentLedger(t *testing.T) {
	svc, _, _, _ := newInitializedService(t)
	ctx := context.Background()

	_, err := svc.Stake(ctx, "staker-1", testPrincipal, testLockSecs*time.Second)
	require.Nil(t, err)

	require.Nil(t, svc.auditSolvency(ctx))
}
