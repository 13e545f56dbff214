package sched

import "fmt"

import "github.com/VBWizard/os64-sub000/defs"
import "github.com/VBWizard/os64-sub000/proc"

const nqueues = 6

// queue order in runqs_t.qs
var qstates = [nqueues]defs.Tstate_t{
	defs.TRUNNING,
	defs.TRUNNABLE,
	defs.TSTOPPED,
	defs.TUSLEEP,
	defs.TISLEEP,
	defs.TZOMBIE,
}

func qidx(st defs.Tstate_t) int {
	switch st {
	case defs.TRUNNING:
		return 0
	case defs.TRUNNABLE:
		return 1
	case defs.TSTOPPED:
		return 2
	case defs.TUSLEEP:
		return 3
	case defs.TISLEEP:
		return 4
	case defs.TZOMBIE:
		return 5
	}
	panic(fmt.Sprintf("no queue for state %v (%d)", st, st))
}

type queue_t struct {
	head int32
	tail int32
	n    int
}

// runqs_t links threads into per-state queues by arena slot. a thread gets
// a slot on its first enqueue and keeps it until it is released.
type runqs_t struct {
	arena []*proc.Thread_t
	free  []int32
	qs    [nqueues]queue_t
}

func (rq *runqs_t) init() {
	for i := range rq.qs {
		rq.qs[i] = queue_t{head: proc.NOSLOT, tail: proc.NOSLOT}
	}
}

func (rq *runqs_t) _slot(t *proc.Thread_t) int32 {
	if t.Slot != proc.NOSLOT {
		if rq.arena[t.Slot] != t {
			panic(fmt.Sprintf("thread %v: slot %v taken by another thread",
				t.Id, t.Slot))
		}
		return t.Slot
	}
	var s int32
	if n := len(rq.free); n > 0 {
		s = rq.free[n-1]
		rq.free = rq.free[:n-1]
		rq.arena[s] = t
	} else {
		s = int32(len(rq.arena))
		rq.arena = append(rq.arena, t)
	}
	t.Slot = s
	return s
}

// gives the thread's slot back. the thread must not be linked.
func (rq *runqs_t) release(t *proc.Thread_t) {
	if t.Inq != defs.TNONE {
		panic(fmt.Sprintf("release of thread %v linked in %v", t.Id, t.Inq))
	}
	if t.Slot == proc.NOSLOT {
		return
	}
	rq.arena[t.Slot] = nil
	rq.free = append(rq.free, t.Slot)
	t.Slot = proc.NOSLOT
}

func (rq *runqs_t) add(st defs.Tstate_t, t *proc.Thread_t) {
	q := &rq.qs[qidx(st)]
	if t.Inq != defs.TNONE {
		panic(fmt.Sprintf("thread %v already linked in %v", t.Id, t.Inq))
	}
	s := rq._slot(t)
	t.Next = proc.NOSLOT
	if q.n == 0 {
		q.head = s
		t.Prev = proc.NOSLOT
	} else {
		rq.arena[q.tail].Next = s
		t.Prev = q.tail
	}
	q.tail = s
	q.n++
	t.Inq = st
}

func (rq *runqs_t) remove(st defs.Tstate_t, t *proc.Thread_t) {
	q := &rq.qs[qidx(st)]
	if t.Inq != st {
		panic(fmt.Sprintf("thread %v not in %v queue (linked in %v)",
			t.Id, st, t.Inq))
	}
	if t.Prev != proc.NOSLOT {
		rq.arena[t.Prev].Next = t.Next
	} else {
		q.head = t.Next
	}
	if t.Next != proc.NOSLOT {
		rq.arena[t.Next].Prev = t.Prev
	} else {
		q.tail = t.Prev
	}
	t.Prev, t.Next = proc.NOSLOT, proc.NOSLOT
	t.Inq = defs.TNONE
	q.n--
}

func (rq *runqs_t) len(st defs.Tstate_t) int {
	return rq.qs[qidx(st)].n
}

// iter calls f on st's threads in queue order until f returns true. f may
// move the thread it was given to another queue.
func (rq *runqs_t) iter(st defs.Tstate_t, f func(*proc.Thread_t) bool) bool {
	for s := rq.qs[qidx(st)].head; s != proc.NOSLOT; {
		t := rq.arena[s]
		s = t.Next
		if f(t) {
			return true
		}
	}
	return false
}

func (rq *runqs_t) list(st defs.Tstate_t) []*proc.Thread_t {
	var ret []*proc.Thread_t
	rq.iter(st, func(t *proc.Thread_t) bool {
		ret = append(ret, t)
		return false
	})
	return ret
}
