// Package syncutil provides in-process locking keyed by id.
package syncutil

import "sync"

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

// KeyedMutex holds one mutex per key, created on first use and dropped once
// no goroutine holds or waits on it. Distinct keys never contend.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*keyedEntry
}

func (k *KeyedMutex) acquire(key string) *keyedEntry {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.entries == nil {
		k.entries = make(map[string]*keyedEntry)
	}
	e, ok := k.entries[key]
	if !ok {
		e = &keyedEntry{}
		k.entries[key] = e
	}
	e.refs++
	return e
}

func (k *KeyedMutex) drop(key string, e *keyedEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
}

// TryLock acquires the mutex for key without blocking. ok is false when it is
// already held.
func (k *KeyedMutex) TryLock(key string) (unlock func(), ok bool) {
	e := k.acquire(key)
	if !e.mu.TryLock() {
		k.drop(key, e)
		return nil, false
	}
	return func() {
		e.mu.Unlock()
		k.drop(key, e)
	}, true
}

func (k *KeyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}
