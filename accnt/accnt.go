package accnt

import "sync"
import "sync/atomic"

import "github.com/VBWizard/os64-sub000/defs"
import "github.com/VBWizard/os64-sub000/util"

// run time is kept in scheduler ticks, not nanoseconds; the tick clock is the
// only time source every core agrees on.
type Accnt_t struct {
	Userticks int64
	Systicks  int64
	// voluntary and involuntary context switches
	Nvcsw  int64
	Nivcsw int64
	// for getting consistent snapshot of all counters; not always needed
	sync.Mutex
}

func (a *Accnt_t) Utadd(delta int) {
	atomic.AddInt64(&a.Userticks, int64(delta))
}

func (a *Accnt_t) Systadd(delta int) {
	atomic.AddInt64(&a.Systicks, int64(delta))
}

func (a *Accnt_t) Switched(voluntary bool) {
	if voluntary {
		atomic.AddInt64(&a.Nvcsw, 1)
	} else {
		atomic.AddInt64(&a.Nivcsw, 1)
	}
}

func (a *Accnt_t) Switches() int64 {
	return atomic.LoadInt64(&a.Nvcsw) + atomic.LoadInt64(&a.Nivcsw)
}

func (a *Accnt_t) Add(n *Accnt_t) {
	a.Lock()
	a.Userticks += atomic.LoadInt64(&n.Userticks)
	a.Systicks += atomic.LoadInt64(&n.Systicks)
	a.Nvcsw += atomic.LoadInt64(&n.Nvcsw)
	a.Nivcsw += atomic.LoadInt64(&n.Nivcsw)
	a.Unlock()
}

func (a *Accnt_t) Fetch() []uint8 {
	a.Lock()
	ru := a.To_rusage()
	a.Unlock()
	return ru
}

// layout: user timeval, sys timeval, nvcsw, nivcsw; 8 bytes per word.
func (a *Accnt_t) To_rusage() []uint8 {
	words := 6
	ret := make([]uint8, words*8)
	totv := func(ticks int64) (int, int) {
		secs := int(ticks / defs.TICKS_PER_SECOND)
		usecs := int((ticks % defs.TICKS_PER_SECOND) * (1e6 / defs.TICKS_PER_SECOND))
		return secs, usecs
	}
	off := 0
	// user timeval
	s, us := totv(atomic.LoadInt64(&a.Userticks))
	util.Writen(ret, 8, off, s)
	off += 8
	util.Writen(ret, 8, off, us)
	off += 8
	// sys timeval
	s, us = totv(atomic.LoadInt64(&a.Systicks))
	util.Writen(ret, 8, off, s)
	off += 8
	util.Writen(ret, 8, off, us)
	off += 8
	util.Writen(ret, 8, off, int(atomic.LoadInt64(&a.Nvcsw)))
	off += 8
	util.Writen(ret, 8, off, int(atomic.LoadInt64(&a.Nivcsw)))
	return ret
}
