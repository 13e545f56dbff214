package sched

import "fmt"

import "github.com/VBWizard/os64-sub000/apic"
import "github.com/VBWizard/os64-sub000/caller"
import "github.com/VBWizard/os64-sub000/cpu"
import "github.com/VBWizard/os64-sub000/defs"
import "github.com/VBWizard/os64-sub000/klog"
import "github.com/VBWizard/os64-sub000/ktime"
import "github.com/VBWizard/os64-sub000/proc"
import "github.com/VBWizard/os64-sub000/stats"
import "github.com/VBWizard/os64-sub000/trace"

type schedstats_t struct {
	Calls     stats.Counter_t
	Switches  stats.Counter_t
	Voluntary stats.Counter_t
	Wakeups   stats.Counter_t
	Triggers  stats.Counter_t
	Nested    stats.Counter_t
	Yields    stats.Counter_t
	Idlewaits stats.Counter_t
	Signals   stats.Counter_t
	Lockwait  stats.Cycles_t
}

// Sched_t owns every run queue and the task list. one spinlock guards all
// of them, and every thread field the scheduler touches once a task has
// been submitted.
type Sched_t struct {
	lock  Spinlock_t
	rq    runqs_t
	tasks []*proc.Task_t

	Tab   *cpu.Table_t
	Clock *ktime.Clock_t
	Trace *trace.Trace_t
	Stats schedstats_t
}

// Mksched creates the scheduler for the cores in tab and installs it on the
// timer and manual scheduling vectors.
func Mksched(tab *cpu.Table_t, tr *trace.Trace_t) *Sched_t {
	s := &Sched_t{Tab: tab, Clock: tab.Clock, Trace: tr}
	tab.Trace = tr
	s.rq.init()
	tab.Handle(defs.IPI_TIMER_SCHEDULE_VECTOR, s.Trap)
	tab.Handle(defs.IPI_MANUAL_SCHEDULE_VECTOR, s.Trap)
	return s
}

func (s *Sched_t) fatal(f string, args ...interface{}) {
	msg := fmt.Sprintf(f, args...)
	klog.Flush()
	caller.Callerdump(2)
	panic(msg)
}

func (s *Sched_t) _lock() {
	if stats.Timing {
		st := stats.Rdtsc()
		s.lock.Lock()
		s.Stats.Lockwait.Add(st)
		return
	}
	s.lock.Lock()
}

// _change moves t to st's queue. the caller holds the lock.
func (s *Sched_t) _change(t *proc.Thread_t, st defs.Tstate_t) {
	now := s.Clock.Now()
	old := t.State
	if old != defs.TNONE {
		s.rq.remove(old, t)
	}
	if old == defs.TRUNNING {
		ran := now - t.Laststart
		t.Totalticks += ran
		t.Lastend = now
		if t.Kernel {
			t.Task.Accnt.Systadd(int(ran))
		} else {
			t.Task.Accnt.Utadd(int(ran))
		}
	}
	t.State = st
	s.rq.add(st, t)
	switch st {
	case defs.TRUNNABLE:
		t.Runnableticks = 0
	case defs.TRUNNING:
		t.Laststart = now
	}
}

// Change_queue moves a thread that is not on a core between queues. only a
// scheduling pass puts a thread on a core or takes it off one.
func (s *Sched_t) Change_queue(t *proc.Thread_t, st defs.Tstate_t) defs.Err_t {
	if st == defs.TNONE || st == defs.TRUNNING {
		return -defs.EINVAL
	}
	// unknown states are fatal
	qidx(st)
	s._lock()
	defer s.lock.Unlock()
	switch t.State {
	case defs.TRUNNING:
		return -defs.EBUSY
	case defs.TNONE, defs.TZOMBIE:
		// never submitted, exited or reaped
		return -defs.EINVAL
	}
	klog.Printd(klog.SCHED|klog.DETAILED, "change queue: %v from %v to %v\n",
		t.Id, t.State, st)
	s._change(t, st)
	return 0
}

// Submit makes every thread of a newly created task runnable.
func (s *Sched_t) Submit(task *proc.Task_t) {
	task.Lock()
	ths := append([]*proc.Thread_t(nil), task.Threads...)
	task.Unlock()
	if len(ths) == 0 {
		s.fatal("submit of task %v with no threads", task.Id)
	}
	s._lock()
	for _, t := range ths {
		if t.State != defs.TNONE {
			s.lock.Unlock()
			s.fatal("submit of thread %v in %v", t.Id, t.State)
		}
	}
	s.tasks = append(s.tasks, task)
	task.Starttick = s.Clock.Now()
	for _, t := range ths {
		s._change(t, defs.TRUNNABLE)
	}
	s.lock.Unlock()
	klog.Printd(klog.TASK, "submitted task %v (%s), %v thread(s)\n", task.Id,
		task.Exename, len(ths))
}

// Setprio changes the priority of a task the scheduler may be aging.
func (s *Sched_t) Setprio(task *proc.Task_t, prio int) defs.Err_t {
	s._lock()
	defer s.lock.Unlock()
	return task.Setprio(prio)
}

// find ages every runnable thread once and returns the one to run on c: the
// highest aging score among non-idle threads and c's own idle thread. a
// later thread with an equal score beats an earlier one. outside browsing,
// finding nothing is fatal.
func (s *Sched_t) find(c *cpu.Cpu_t, browsing bool) *proc.Thread_t {
	var best *proc.Thread_t
	var most uint64
	s.rq.iter(defs.TRUNNABLE, func(t *proc.Thread_t) bool {
		if !t.Idle {
			t.Runnableticks += uint64(defs.RUNNABLE_TICKS_INTERVAL - t.Task.Prio + 1)
		}
		if t.Runnableticks >= most && (!t.Idle || t.Pincpu == c.Num) {
			best = t
			most = t.Runnableticks
		}
		return false
	})
	if best == nil && !browsing {
		s.fatal("core %v: no runnable thread (%v runnable)", c.Num,
			s.rq.len(defs.TRUNNABLE))
	}
	return best
}

func (s *Sched_t) _save(c *cpu.Cpu_t, t *proc.Thread_t) {
	t.Ctx.Tf = c.Tf
}

func (s *Sched_t) _load(c *cpu.Cpu_t, t *proc.Thread_t) {
	c.Tf = t.Ctx.Tf
	c.Cr3 = t.Ctx.Cr3
	c.Rsp0 = t.Ctx.Rsp0
	c.Cur = t
	t.Oncpu = c.Num
}

// run_new takes c's thread off the core and puts the selected thread on
// it, which may be the same thread. the caller holds the lock.
func (s *Sched_t) run_new(c *cpu.Cpu_t, vol bool) {
	now := s.Clock.Now()
	old := c.Cur
	exec := false
	if old != nil {
		var st defs.Tstate_t
		switch {
		case old.Exited:
			st = defs.TZOMBIE
		case old.Sig.Has(defs.SIGSLEEP):
			st = defs.TISLEEP
		default:
			st = defs.TRUNNABLE
		}
		if old.Execnosave {
			exec = true
			old.Execnosave = false
		} else {
			s._save(c, old)
		}
		klog.Cprintd(c.Num, old.Id, klog.SCHED, "stop %v -> %v\n", old.Id, st)
		s._change(old, st)
		old.Oncpu = proc.NOCPU
		c.Cur = nil
	}

	next := s.find(c, false)
	s._change(next, defs.TRUNNING)
	if next == old {
		if exec {
			s._load(c, old)
		}
		c.Cur = old
		old.Oncpu = c.Num
		return
	}
	s._load(c, next)
	s.Stats.Switches.Inc()
	prev := -1
	if old != nil {
		prev = int(old.Id)
		if vol {
			s.Stats.Voluntary.Inc()
		}
		if !old.Idle {
			old.Task.Accnt.Switched(vol)
		}
		if old.State == defs.TRUNNABLE {
			s.Trace.Record(now, trace.PREEMPT, c.Num, old.Id, 0)
		}
	}
	s.Trace.Record(now, trace.DISPATCH, c.Num, next.Id, prev)
	klog.Cprintd(c.Num, next.Id, klog.SCHED, "run %v (%s) rip %#x\n", next.Id,
		next.Task.Exename, c.Tf[defs.TF_RIP])
}

// Trap is the scheduling pass a core runs from its timer and manual
// scheduling vectors.
func (s *Sched_t) Trap(c *cpu.Cpu_t, vec int) {
	if !c.Casstate(cpu.SIDLE, cpu.SINSCHED) &&
		!c.Casstate(cpu.SAWAITING, cpu.SINSCHED) {
		s.fatal("core %v: nested scheduler entry (vector %#x)", c.Num, vec)
	}
	// a secondary core's first pass has nothing to stop
	if !c.Ranonce && !c.Isbsp() && c.Cur != nil {
		s.fatal("core %v: thread %v current before the first pass", c.Num,
			c.Cur.Id)
	}
	vol := vec == defs.IPI_MANUAL_SCHEDULE_VECTOR
	s._lock()
	s._process_signals(c)
	next := s.find(c, true)
	if next != nil && next != c.Cur {
		s.run_new(c, vol)
	}
	s.lock.Unlock()
	s.Stats.Calls.Inc()
	c.Ranonce = true
	c.Setstate(cpu.SIDLE)
}

// Trigger asks for a scheduling pass on c right away and idles until it
// ran. it does nothing when c is already inside the scheduler.
func (s *Sched_t) Trigger(c *cpu.Cpu_t) {
	if !c.Casstate(cpu.SIDLE, cpu.SAWAITING) {
		s.Stats.Nested.Inc()
		klog.Cprintd(c.Num, 0, klog.SCHED, "trigger while %v\n", c.State())
		return
	}
	s.Stats.Triggers.Inc()
	// the manual vector preempts the quantum, so restart it
	if c.Enabled() {
		apic.Timer_restart(c.Lapic, c.Timercount)
	}
	if !s.Tab.Send_ipi(c, c.Num, defs.IPI_MANUAL_SCHEDULE_VECTOR) {
		c.Casstate(cpu.SAWAITING, cpu.SIDLE)
		klog.Cprintd(c.Num, 0, klog.SCHED, "core %v refused trigger\n", c.Num)
		return
	}
	c.Halt()
}

// Yield gives up c if another thread is waiting for it, otherwise idles
// until the next interrupt.
func (s *Sched_t) Yield(c *cpu.Cpu_t) {
	s.Stats.Yields.Inc()
	s._lock()
	next := s.find(c, true)
	s.lock.Unlock()
	if next != nil && next != c.Cur {
		s.Trigger(c)
	} else {
		s.Stats.Idlewaits.Inc()
		c.Halt()
	}
}

// Wake_isleep makes a task's first thread runnable if it is in
// interruptible sleep, boosts it, and runs a scheduling pass on c.
func (s *Sched_t) Wake_isleep(c *cpu.Cpu_t, task *proc.Task_t) {
	t := task.First()
	if t == nil {
		return
	}
	s._lock()
	if t.State == defs.TISLEEP {
		t.Sig.Clear(defs.SIGSLEEP)
		s._change(t, defs.TRUNNABLE)
		s.Stats.Wakeups.Inc()
		s.Trace.Record(s.Clock.Now(), trace.WAKE, c.Num, t.Id, 0)
	}
	t.Runnableticks += defs.HIGH_PRIORITY_TICKS_BOOST
	s.lock.Unlock()
	s.Trigger(c)
}

// Exit ends the thread running on c. it becomes a zombie at the scheduling
// pass this starts.
func (s *Sched_t) Exit(c *cpu.Cpu_t, code int) {
	s._lock()
	t := c.Cur
	if t == nil {
		s.lock.Unlock()
		s.fatal("core %v: exit with no thread", c.Num)
	}
	if t.Idle {
		s.lock.Unlock()
		s.fatal("core %v: idle thread %v exited", c.Num, t.Id)
	}
	t.Exited = true
	t.Retval = code
	s.lock.Unlock()
	klog.Cprintd(c.Num, t.Id, klog.TASK, "thread %v exit %v\n", t.Id, code)
	s.Trigger(c)
}

// Exec restarts t at rip. when t is on a core, its next scheduling pass
// loads the new context instead of saving the live registers.
func (s *Sched_t) Exec(t *proc.Thread_t, rip uintptr) {
	s._lock()
	t.Exec(rip)
	s.lock.Unlock()
}

// Reap unlinks a task whose threads are all zombies and destroys it.
func (s *Sched_t) Reap(task *proc.Task_t) defs.Err_t {
	s._lock()
	for _, t := range task.Threads {
		if t.State != defs.TZOMBIE {
			s.lock.Unlock()
			return -defs.EBUSY
		}
	}
	if tk, ok := proc.Ttable.Get(task.Id); !ok || tk != task {
		s.lock.Unlock()
		return -defs.ESRCH
	}
	found := false
	for i, tk := range s.tasks {
		if tk == task {
			copy(s.tasks[i:], s.tasks[i+1:])
			s.tasks[len(s.tasks)-1] = nil
			s.tasks = s.tasks[:len(s.tasks)-1]
			found = true
			break
		}
	}
	if !found {
		s.lock.Unlock()
		return -defs.ESRCH
	}
	for _, t := range task.Threads {
		s.rq.remove(defs.TZOMBIE, t)
		t.State = defs.TNONE
		s.rq.release(t)
	}
	s.lock.Unlock()
	task.Destroy()
	return 0
}

// Running returns the running thread with id tid.
func (s *Sched_t) Running(tid defs.Tid_t) (*proc.Thread_t, bool) {
	s._lock()
	defer s.lock.Unlock()
	var ret *proc.Thread_t
	s.rq.iter(defs.TRUNNING, func(t *proc.Thread_t) bool {
		if t.Id == tid {
			ret = t
			return true
		}
		return false
	})
	return ret, ret != nil
}

func (s *Sched_t) Qlen(st defs.Tstate_t) int {
	s._lock()
	defer s.lock.Unlock()
	return s.rq.len(st)
}

func (s *Sched_t) Ntasks() int {
	s._lock()
	defer s.lock.Unlock()
	return len(s.tasks)
}

// Idlecount returns how many idle threads are pinned to core num.
func (s *Sched_t) Idlecount(num int) int {
	s._lock()
	defer s.lock.Unlock()
	n := 0
	for _, tk := range s.tasks {
		for _, t := range tk.Threads {
			if t.Idle && t.Pincpu == num {
				n++
			}
		}
	}
	return n
}

// Check walks every queue and core under the lock and reports the first
// inconsistency it finds.
func (s *Sched_t) Check() error {
	s._lock()
	defer s.lock.Unlock()
	seen := make(map[*proc.Thread_t]defs.Tstate_t)
	known := make(map[*proc.Task_t]bool)
	for _, tk := range s.tasks {
		known[tk] = true
	}
	for _, st := range qstates {
		n := 0
		var err error
		prev := int32(proc.NOSLOT)
		s.rq.iter(st, func(t *proc.Thread_t) bool {
			n++
			if q, ok := seen[t]; ok {
				err = fmt.Errorf("thread %v in %v and %v queues", t.Id, q, st)
				return true
			}
			seen[t] = st
			if t.State != st || t.Inq != st {
				err = fmt.Errorf("thread %v state %v linked %v in %v queue",
					t.Id, t.State, t.Inq, st)
				return true
			}
			if !known[t.Task] {
				err = fmt.Errorf("thread %v in %v queue belongs to no submitted task",
					t.Id, st)
				return true
			}
			if t.Prev != prev {
				err = fmt.Errorf("thread %v bad back link in %v", t.Id, st)
				return true
			}
			prev = t.Slot
			return false
		})
		if err != nil {
			return err
		}
		if n != s.rq.len(st) {
			return fmt.Errorf("%v queue count %v, walked %v", st, s.rq.len(st), n)
		}
	}
	for _, tk := range s.tasks {
		for _, t := range tk.Threads {
			if _, ok := seen[t]; !ok {
				return fmt.Errorf("thread %v (%v) in no queue", t.Id, t.State)
			}
		}
	}
	oncore := make(map[*proc.Thread_t]int)
	for _, c := range s.Tab.Cpus {
		t := c.Cur
		if t == nil {
			continue
		}
		if o, ok := oncore[t]; ok {
			return fmt.Errorf("thread %v current on cores %v and %v", t.Id, o, c.Num)
		}
		oncore[t] = c.Num
		if t.State != defs.TRUNNING || t.Oncpu != c.Num {
			return fmt.Errorf("core %v current %v is %v on %v", c.Num, t.Id,
				t.State, t.Oncpu)
		}
		if t.Idle && t.Pincpu != c.Num {
			return fmt.Errorf("core %v runs idle thread %v of core %v",
				c.Num, t.Id, t.Pincpu)
		}
	}
	var err error
	s.rq.iter(defs.TRUNNING, func(t *proc.Thread_t) bool {
		if _, ok := oncore[t]; !ok {
			err = fmt.Errorf("running thread %v on no core", t.Id)
			return true
		}
		return false
	})
	return err
}

func (s *Sched_t) String() string {
	return fmt.Sprintf("sched: %v tasks, running %v runnable %v isleep %v zombie %v%s",
		s.Ntasks(), s.Qlen(defs.TRUNNING), s.Qlen(defs.TRUNNABLE),
		s.Qlen(defs.TISLEEP), s.Qlen(defs.TZOMBIE), stats.Stats2String(&s.Stats))
}
