package nvm

import "sync"

// Lock arbitrates exclusive use of a backend bus between threads. Backends
// take a Lock in their configuration; composed devices forward
// Acquire/Release to the inner device so arbitration always resolves at the
// lowest concrete backend.
//
// The lock type is chosen at configuration time: NopLock when a handle is
// never shared, MutexLock for plain mutual exclusion, SemLock when a
// counting semaphore is wanted.
type Lock interface {
	Acquire()
	Release()
}

// NopLock is the default arbitration: no locking at all. Safe only under
// caller discipline.
type NopLock struct{}

func (NopLock) Acquire() {}
func (NopLock) Release() {}

// MutexLock arbitrates with a mutex. The zero value is ready to use.
type MutexLock struct {
	mu sync.Mutex
}

func (l *MutexLock) Acquire() { l.mu.Lock() }
func (l *MutexLock) Release() { l.mu.Unlock() }

// SemLock arbitrates with a counting semaphore of n permits.
type SemLock struct {
	ch chan struct{}
}

func NewSemLock(n int) *SemLock {
	return &SemLock{ch: make(chan struct{}, n)}
}

func (l *SemLock) Acquire() { l.ch <- struct{}{} }
func (l *SemLock) Release() { <-l.ch }
