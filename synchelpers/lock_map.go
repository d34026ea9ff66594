package synchelpers

import (
	"sync"
)

// LockMap is a set of per-key exclusive locks. TryAcquire never blocks: it
// reports false when the key is already held.
type LockMap interface {
	TryAcquire(key string) bool
	Release(key string)
	Held(key string) bool
}

func NewLockMap() LockMap {
	return &lockMap{
		m:    map[string]struct{}{},
		lock: sync.RWMutex{},
	}
}

type lockMap struct {
	m    map[string]struct{}
	lock sync.RWMutex
}

func (l *lockMap) TryAcquire(key string) bool {
	l.lock.Lock()
	defer l.lock.Unlock()
	if _, ok := l.m[key]; ok {
		return false
	}
	l.m[key] = struct{}{}
	return true
}

func (l *lockMap) Release(key string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	delete(l.m, key)
}

func (l *lockMap) Held(key string) bool {
	l.lock.RLock()
	defer l.lock.RUnlock()
	_, ok := l.m[key]
	return ok
}
