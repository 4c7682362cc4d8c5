package session

import "sync"

// lockSet is a set of non-reentrant, non-blocking per-session locks.
type lockSet struct {
	mu   sync.Mutex
	held map[int64]bool
}

func newLockSet() *lockSet {
	return &lockSet{held: make(map[int64]bool)}
}

// TryLock acquires the lock for id, returning false if it is already held.
func (l *lockSet) TryLock(id int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[id] {
		return false
	}
	l.held[id] = true
	return true
}

// Unlock releases the lock for id. Releasing a free lock is a no-op.
func (l *lockSet) Unlock(id int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, id)
}

// Locked reports whether the lock for id is held.
func (l *lockSet) Locked(id int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held[id]
}
