package services

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountLocksSerializePerAccount(t *testing.T) {
	locks := newAccountLocks()

	const workers = 32
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := locks.acquire("acct-1")
			defer release()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, counter)
}

func TestAccountLocksAreIndependent(t *testing.T) {
	locks := newAccountLocks()

	releaseA := locks.acquire("acct-a")
	defer releaseA()

	// a different account must not block behind acct-a
	done := make(chan struct{})
	go func() {
		release := locks.acquire("acct-b")
		release()
		close(done)
	}()
	<-done
}

func TestAccountLocksEntryRemovedOnRelease(t *testing.T) {
	locks := newAccountLocks()

	release := locks.acquire("acct-1")
	release()

	locks.mu.Lock()
	defer locks.mu.Unlock()
	require.Empty(t, locks.locks)
}
