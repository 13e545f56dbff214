package sched

import "sync"
import "testing"

import "github.com/VBWizard/os64-sub000/defs"
import "github.com/VBWizard/os64-sub000/proc"

func mkthreads(n int) []*proc.Thread_t {
	ret := make([]*proc.Thread_t, n)
	for i := range ret {
		ret[i] = &proc.Thread_t{Id: defs.Tid_t(100 + i), Slot: proc.NOSLOT,
			Prev: proc.NOSLOT, Next: proc.NOSLOT}
	}
	return ret
}

func ids(ts []*proc.Thread_t) []defs.Tid_t {
	var ret []defs.Tid_t
	for _, t := range ts {
		ret = append(ret, t.Id)
	}
	return ret
}

func same(a, b []*proc.Thread_t) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func mustpanic(t *testing.T, what string, f func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Fatalf("%v did not panic", what)
		}
	}()
	f()
}

func TestQueueLinks(t *testing.T) {
	var rq runqs_t
	rq.init()
	ts := mkthreads(4)
	for _, th := range ts {
		rq.add(defs.TRUNNABLE, th)
	}
	if rq.len(defs.TRUNNABLE) != 4 || !same(rq.list(defs.TRUNNABLE), ts) {
		t.Fatalf("order %v", ids(rq.list(defs.TRUNNABLE)))
	}
	// middle, head, tail
	rq.remove(defs.TRUNNABLE, ts[1])
	if !same(rq.list(defs.TRUNNABLE), []*proc.Thread_t{ts[0], ts[2], ts[3]}) {
		t.Fatalf("after middle: %v", ids(rq.list(defs.TRUNNABLE)))
	}
	if ts[1].Prev != proc.NOSLOT || ts[1].Next != proc.NOSLOT || ts[1].Inq != defs.TNONE {
		t.Fatalf("removed thread keeps links")
	}
	rq.remove(defs.TRUNNABLE, ts[0])
	rq.remove(defs.TRUNNABLE, ts[3])
	if !same(rq.list(defs.TRUNNABLE), []*proc.Thread_t{ts[2]}) {
		t.Fatalf("after ends: %v", ids(rq.list(defs.TRUNNABLE)))
	}
	q := rq.qs[qidx(defs.TRUNNABLE)]
	if q.head != ts[2].Slot || q.tail != ts[2].Slot {
		t.Fatalf("single member not head and tail")
	}
	rq.remove(defs.TRUNNABLE, ts[2])
	q = rq.qs[qidx(defs.TRUNNABLE)]
	if q.head != proc.NOSLOT || q.tail != proc.NOSLOT || q.n != 0 {
		t.Fatalf("emptied queue keeps a head")
	}
	// re-adding appends at the tail
	rq.add(defs.TZOMBIE, ts[3])
	rq.add(defs.TZOMBIE, ts[0])
	if !same(rq.list(defs.TZOMBIE), []*proc.Thread_t{ts[3], ts[0]}) {
		t.Fatalf("zombie order %v", ids(rq.list(defs.TZOMBIE)))
	}
}

func TestQueueMisuse(t *testing.T) {
	var rq runqs_t
	rq.init()
	ts := mkthreads(2)
	rq.add(defs.TSTOPPED, ts[0])
	mustpanic(t, "double add", func() {
		rq.add(defs.TRUNNABLE, ts[0])
	})
	mustpanic(t, "remove from the wrong queue", func() {
		rq.remove(defs.TRUNNABLE, ts[0])
	})
	mustpanic(t, "remove of unlinked thread", func() {
		rq.remove(defs.TSTOPPED, ts[1])
	})
	mustpanic(t, "none queue", func() {
		rq.add(defs.TNONE, ts[1])
	})
	mustpanic(t, "out of range queue", func() {
		rq.len(defs.Tstate_t(42))
	})
	mustpanic(t, "release of linked thread", func() {
		rq.release(ts[0])
	})
	if rq.len(defs.TSTOPPED) != 1 || ts[0].Inq != defs.TSTOPPED {
		t.Fatalf("failed operations changed the queue")
	}
}

func TestSlotReuse(t *testing.T) {
	var rq runqs_t
	rq.init()
	ts := mkthreads(3)
	for _, th := range ts {
		rq.add(defs.TRUNNABLE, th)
	}
	s1 := ts[1].Slot
	rq.remove(defs.TRUNNABLE, ts[1])
	rq.release(ts[1])
	if ts[1].Slot != proc.NOSLOT {
		t.Fatalf("slot kept")
	}
	n := mkthreads(1)[0]
	rq.add(defs.TISLEEP, n)
	if n.Slot != s1 || len(rq.arena) != 3 {
		t.Fatalf("slot %v not reused (arena %v)", n.Slot, len(rq.arena))
	}
	if !same(rq.list(defs.TRUNNABLE), []*proc.Thread_t{ts[0], ts[2]}) {
		t.Fatalf("neighbours disturbed")
	}
}

func TestIterMove(t *testing.T) {
	var rq runqs_t
	rq.init()
	ts := mkthreads(5)
	for _, th := range ts {
		rq.add(defs.TISLEEP, th)
	}
	// move every other thread while walking
	i := 0
	rq.iter(defs.TISLEEP, func(th *proc.Thread_t) bool {
		if i%2 == 0 {
			rq.remove(defs.TISLEEP, th)
			rq.add(defs.TRUNNABLE, th)
		}
		i++
		return false
	})
	if i != 5 {
		t.Fatalf("visited %v", i)
	}
	if !same(rq.list(defs.TISLEEP), []*proc.Thread_t{ts[1], ts[3]}) ||
		!same(rq.list(defs.TRUNNABLE), []*proc.Thread_t{ts[0], ts[2], ts[4]}) {
		t.Fatalf("bad split")
	}
}

func TestSpinlock(t *testing.T) {
	var l Spinlock_t
	const n = 8
	const per = 5000
	count := 0
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < per; j++ {
				l.Lock()
				count++
				l.Unlock()
			}
		}()
	}
	wg.Wait()
	if count != n*per {
		t.Fatalf("count %v", count)
	}
	if !l.Trylock() || l.Trylock() || !l.Held() {
		t.Fatalf("trylock")
	}
	l.Unlock()
	mustpanic(t, "unlock of free lock", l.Unlock)
}
