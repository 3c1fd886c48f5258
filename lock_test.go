package nvm

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type countingLock struct{ acquired, released int }

func (l *countingLock) Acquire() { l.acquired++ }
func (l *countingLock) Release() { l.released++ }

func TestMutexLockExcludes(t *testing.T) {
	var lock MutexLock
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				lock.Acquire()
				counter++
				lock.Release()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 8000, counter)
}

func TestSemLockPermits(t *testing.T) {
	lock := NewSemLock(2)
	lock.Acquire()
	lock.Acquire()

	done := make(chan struct{})
	go func() {
		lock.Acquire() // blocks until a permit frees up
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("third acquire should have blocked")
	default:
	}

	lock.Release()
	<-done
}
