package tinfo

import "fmt"
import "sync/atomic"

import "github.com/VBWizard/os64-sub000/defs"
import "github.com/VBWizard/os64-sub000/limits"

// Tidmap_t hands out thread ids from a bitmap. ids below res are reserved
// and only ever claimed explicitly with Take; the general allocator walks
// [res, max) round-robin from where it last succeeded.
type Tidmap_t struct {
	bits []uint64
	max  int
	res  int
	// next id to try
	next int64
	used int64
}

func Mktidmap(max, res int) *Tidmap_t {
	if res < 0 || res >= max {
		panic("bad tid range")
	}
	tm := &Tidmap_t{max: max, res: res}
	tm.bits = make([]uint64, (max+63)/64)
	tm.next = int64(res)
	return tm
}

var Tids = Mktidmap(limits.Syslimit.Threads, limits.Syslimit.Resthreads)

func (tm *Tidmap_t) _word(id int) (*uint64, uint64) {
	if id < 0 || id >= tm.max {
		panic(fmt.Sprintf("tid %v out of range", id))
	}
	return &tm.bits[id/64], 1 << uint(id%64)
}

// claims id; returns false if it is taken.
func (tm *Tidmap_t) Take(id defs.Tid_t) bool {
	w, b := tm._word(int(id))
	for {
		old := atomic.LoadUint64(w)
		if old&b != 0 {
			return false
		}
		if atomic.CompareAndSwapUint64(w, old, old|b) {
			atomic.AddInt64(&tm.used, 1)
			return true
		}
	}
}

func (tm *Tidmap_t) Release(id defs.Tid_t) {
	w, b := tm._word(int(id))
	for {
		old := atomic.LoadUint64(w)
		if old&b == 0 {
			panic(fmt.Sprintf("release of free tid %v", id))
		}
		if atomic.CompareAndSwapUint64(w, old, old&^b) {
			atomic.AddInt64(&tm.used, -1)
			return
		}
	}
}

func (tm *Tidmap_t) Inuse(id defs.Tid_t) bool {
	w, b := tm._word(int(id))
	return atomic.LoadUint64(w)&b != 0
}

func (tm *Tidmap_t) Reserved(id defs.Tid_t) bool {
	return int(id) < tm.res
}

func (tm *Tidmap_t) Used() int {
	return int(atomic.LoadInt64(&tm.used))
}

// returns a fresh id, or -EAGAIN when every general id is in use.
func (tm *Tidmap_t) Alloc() (defs.Tid_t, defs.Err_t) {
	span := tm.max - tm.res
	start := int(atomic.LoadInt64(&tm.next)) - tm.res
	if start < 0 || start >= span {
		start = 0
	}
	for n := 0; n < span; n++ {
		off := (start + n) % span
		id := tm.res + off
		w, b := tm._word(id)
		// skip full words
		if b == 1 && off+64 <= span && atomic.LoadUint64(w) == ^uint64(0) {
			n += 63
			continue
		}
		if tm.Take(defs.Tid_t(id)) {
			atomic.StoreInt64(&tm.next, int64(id+1))
			return defs.Tid_t(id), 0
		}
	}
	return 0, -defs.EAGAIN
}
