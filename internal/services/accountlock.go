package services

import (
	"sync"
)

// accountLocks serializes ledger operations per account: at most one
// in-flight state transition for any given stake record. Entries are
// reference counted so the map does not grow with the account set.
type accountLocks struct {
	mu    sync.Mutex
	locks map[string]*accountLock
}

type accountLock struct {
	mu   sync.Mutex
	refs int
}

func newAccountLocks() *accountLocks {
	return &accountLocks{
		locks: make(map[string]*accountLock),
	}
}

// acquire blocks until the account lock is held and returns the release
// function.
func (l *accountLocks) acquire(account string) func() {
	l.mu.Lock()
	entry, ok := l.locks[account]
	if !ok {
		entry = &accountLock{}
		l.locks[account] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, account)
		}
		l.mu.Unlock()
	}
}
