package indexer

import (
	"sync"
	"sync/atomic"
)

// IndexLock provides non-blocking lock semantics using atomic operations
type IndexLock struct {
	state atomic.Int32 // 0 = unlocked, 1 = locked
}

// TryAcquire attempts to acquire the lock without blocking
func (l *IndexLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release releases the lock.
// Must only be called by the goroutine that successfully acquired the lock.
func (l *IndexLock) Release() {
	l.state.Store(0)
}

// Held reports whether the lock is currently held
func (l *IndexLock) Held() bool {
	return l.state.Load() == 1
}

// Locks serialises index runs per project. The engine itself does not lock;
// hosts call TryAcquire before starting a run.
type Locks struct {
	mu    sync.Mutex
	locks map[int64]*IndexLock
}

// NewLocks creates an empty lock set
func NewLocks() *Locks {
	return &Locks{locks: make(map[int64]*IndexLock)}
}

func (l *Locks) get(projectID int64) *IndexLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[projectID]
	if !ok {
		lock = &IndexLock{}
		l.locks[projectID] = lock
	}
	return lock
}

// TryAcquire takes the lock for projectID. On success the returned release
// func must be called exactly once.
func (l *Locks) TryAcquire(projectID int64) (release func(), ok bool) {
	lock := l.get(projectID)
	if !lock.TryAcquire() {
		return nil, false
	}
	var once sync.Once
	return func() { once.Do(lock.Release) }, true
}

// Running reports whether an index run holds the lock for projectID
func (l *Locks) Running(projectID int64) bool {
	return l.get(projectID).Held()
}
