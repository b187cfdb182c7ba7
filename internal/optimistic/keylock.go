package optimistic

import (
	"sync"

	"go-der-dashboard/internal/model"
)

// keyLock serializes work per entity key. Entries are dropped once nobody holds or waits on them.
type keyLock struct {
	mu      sync.Mutex
	entries map[model.Key]*keyLockEntry
}

type keyLockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyLock() *keyLock {
	return &keyLock{entries: make(map[model.Key]*keyLockEntry)}
}

// lock blocks until key is free and returns the matching unlock
func (k *keyLock) lock(key model.Key) func() {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &keyLockEntry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}

// busy reports whether key is held or awaited
func (k *keyLock) busy(key model.Key) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, ok := k.entries[key]
	return ok
}
