package repository

import "sync"

// keyedMutex hands out one mutex per key and forgets it once nobody holds or waits for it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

func (km *keyedMutex) Lock(key string) {
	km.mu.Lock()
	m, ok := km.locks[key]
	if !ok {
		m = &refMutex{}
		km.locks[key] = m
	}
	m.refs++
	km.mu.Unlock()

	m.Lock()
}

func (km *keyedMutex) Unlock(key string) {
	km.mu.Lock()
	m, ok := km.locks[key]
	if !ok {
		km.mu.Unlock()
		return
	}
	m.refs--
	if m.refs == 0 {
		delete(km.locks, key)
	}
	km.mu.Unlock()

	m.Unlock()
}
