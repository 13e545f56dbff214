package sched

import "runtime"
import "sync/atomic"

// Spinlock_t is a test-and-set lock. the holder may be any core; nothing
// records which one.
type Spinlock_t struct {
	v int32
}

func (l *Spinlock_t) Lock() {
	for !atomic.CompareAndSwapInt32(&l.v, 0, 1) {
		runtime.Gosched()
	}
}

func (l *Spinlock_t) Trylock() bool {
	return atomic.CompareAndSwapInt32(&l.v, 0, 1)
}

func (l *Spinlock_t) Unlock() {
	if !atomic.CompareAndSwapInt32(&l.v, 1, 0) {
		panic("unlock of unlocked spinlock")
	}
}

func (l *Spinlock_t) Held() bool {
	return atomic.LoadInt32(&l.v) != 0
}
