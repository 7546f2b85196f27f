package engine

import (
	"sync"
)

// NamedLock is a try-acquire resource lock identified by name
type NamedLock struct {
	name string
	mu   sync.Mutex
}

// NewNamedLock creates a lock with the given display name
func NewNamedLock(name string) *NamedLock {
	return &NamedLock{name: name}
}

// TryLock attempts to acquire the lock without blocking
func (l *NamedLock) TryLock() bool {
	return l.mu.TryLock()
}

// Unlock releases the lock
func (l *NamedLock) Unlock() {
	l.mu.Unlock()
}

// DisplayName identifies the lock in logs
func (l *NamedLock) DisplayName() string {
	return l.name
}

// LockRegistry hands out one shared lock per resource name
type LockRegistry struct {
	mu    sync.Mutex
	locks map[string]*NamedLock
}

// NewLockRegistry creates an empty registry
func NewLockRegistry() *LockRegistry {
	return &LockRegistry{locks: make(map[string]*NamedLock)}
}

// Lock returns the lock for the given resource name, creating it on first use
func (r *LockRegistry) Lock(name string) *NamedLock {
	r.mu.Lock()
	defer r.mu.Unlock()

	lock, ok := r.locks[name]
	if !ok {
		lock = NewNamedLock(name)
		r.locks[name] = lock
	}
	return lock
}
