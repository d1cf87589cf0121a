package claim

import (
	"context"
	"sync"
)

// KeyLocker provides mutual exclusion per key.
//
// Entries are reference counted and removed when the last holder or waiter
// releases them, so the map only holds keys with in-flight claims.
//
// Thread-safety: all methods are safe for concurrent use.
type KeyLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewKeyLocker creates an empty KeyLocker.
func NewKeyLocker() *KeyLocker {
	return &KeyLocker{locks: make(map[string]*keyLock)}
}

// Do runs fn while holding the lock for key.
func (l *KeyLocker) Do(key string, fn func() error) error {
	kl := l.acquire(key)
	defer l.release(key, kl)
	return fn()
}

// Held returns the number of keys with an active holder or waiter.
func (l *KeyLocker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func (l *KeyLocker) acquire(key string) *keyLock {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	kl.mu.Lock()
	return kl
}

func (l *KeyLocker) release(key string, kl *keyLock) {
	kl.mu.Unlock()

	l.mu.Lock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}

// LockedLedger turns any Tx into a Ledger by serializing claims per key with
// a KeyLocker. Use it for backends without transactional read-modify-write.
type LockedLedger struct {
	tx    Tx
	locks *KeyLocker
}

// NewLockedLedger wraps tx.
func NewLockedLedger(tx Tx) *LockedLedger {
	return &LockedLedger{tx: tx, locks: NewKeyLocker()}
}

// Serialize runs fn under the lock for taskKey.
func (l *LockedLedger) Serialize(ctx context.Context, taskKey string, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.locks.Do(taskKey, func() error {
		return fn(l.tx)
	})
}
