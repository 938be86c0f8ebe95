package ext

import "sync"

// KeyedMutex hands out a read-write lock per key. Entries are reference
// counted and dropped once the last holder releases them, so the map only
// grows with the number of keys locked concurrently.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sync.RWMutex
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedLock)}
}

// Lock acquires the write lock for key and returns the function releasing it.
func (m *KeyedMutex) Lock(key string) (unlock func()) {
	l := m.acquire(key)
	l.Lock()
	return func() {
		l.Unlock()
		m.release(key)
	}
}

// RLock acquires the read lock for key and returns the function releasing it.
func (m *KeyedMutex) RLock(key string) (unlock func()) {
	l := m.acquire(key)
	l.RLock()
	return func() {
		l.RUnlock()
		m.release(key)
	}
}

// Len returns the number of keys currently tracked.
func (m *KeyedMutex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

func (m *KeyedMutex) acquire(key string) *keyedLock {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &keyedLock{}
		m.locks[key] = l
	}
	l.refs++
	return l
}

func (m *KeyedMutex) release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.locks[key]
	l.refs--
	if l.refs == 0 {
		delete(m.locks, key)
	}
}
