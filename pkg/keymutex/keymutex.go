package keymutex

import "sync"

// KeyedMutex provides mutual exclusion per string key. The loan engine uses it
// to serialize check-then-act sequences: one key per book for copy binding, one
// key per (book, user) pair for duplicate-request checks.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func New() *KeyedMutex {
	return &KeyedMutex{
		locks: make(map[string]*entry),
	}
}

// Lock acquires the mutex for key and returns the matching unlock function.
// Entries are dropped once the last holder releases, so the map stays bounded
// by the number of in-flight operations.
func (km *KeyedMutex) Lock(key string) func() {
	km.mu.Lock()
	e, ok := km.locks[key]
	if !ok {
		e = &entry{}
		km.locks[key] = e
	}
	e.refs++
	km.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()
		km.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(km.locks, key)
		}
		km.mu.Unlock()
	}
}

// Size returns the number of keys currently held or contended.
func (km *KeyedMutex) Size() int {
	km.mu.Lock()
	defer km.mu.Unlock()
	return len(km.locks)
}
