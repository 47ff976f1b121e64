package gcheap

import (
	"sync"
	"sync/atomic"
)

// HeapLock is the heap-wide monitor guarding all state-mutating region
// operations. Its scope typically spans many regions for one heap-level
// operation (for example selecting an entire collection set), so concurrent
// lock-free readers observe an atomic heap-wide view between synchronization
// points.
//
// The lock is acquired by the caller, never inside region operations; the
// operations accept the resulting HeapGuard token and assert (in heapdebug
// builds) that it is live.
type HeapLock struct {
	mu   sync.Mutex
	held atomic.Bool
}

// Lock acquires the heap lock and returns the guard token state-mutating
// operations require.
func (l *HeapLock) Lock() *HeapGuard {
	l.mu.Lock()
	l.held.Store(true)
	return &HeapGuard{lock: l}
}

// Held reports whether some thread currently holds the lock. Used only by
// debug assertions; it cannot attribute ownership to the calling goroutine.
func (l *HeapLock) Held() bool { return l.held.Load() }

// HeapGuard is the token proving the heap lock is held. It is valid from
// Lock until Unlock and must not be retained past Unlock.
type HeapGuard struct {
	lock *HeapLock
}

// Unlock releases the heap lock and invalidates the guard.
func (g *HeapGuard) Unlock() {
	l := g.lock
	g.lock = nil
	l.held.Store(false)
	l.mu.Unlock()
}

// live reports whether the guard still proves lock ownership.
func (g *HeapGuard) live() bool {
	return g != nil && g.lock != nil && g.lock.held.Load()
}
