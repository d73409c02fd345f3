package services

import "sync"

// userLocks serializes the read-check-write sequences of confirmation and
// ingestion per user. The dedup keys alone make retries converge, but a
// single mutex keyed by user id closes the window where two concurrent calls
// both pass the dedup check before either writes. No cross-user coordination
// is ever needed.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*sync.Mutex)}
}

func (u *userLocks) lock(userID string) *sync.Mutex {
	u.mu.Lock()
	m, ok := u.locks[userID]
	if !ok {
		m = &sync.Mutex{}
		u.locks[userID] = m
	}
	u.mu.Unlock()
	m.Lock()
	return m
}
