package sched

import "github.com/VBWizard/os64-sub000/cpu"
import "github.com/VBWizard/os64-sub000/defs"
import "github.com/VBWizard/os64-sub000/klog"
import "github.com/VBWizard/os64-sub000/proc"
import "github.com/VBWizard/os64-sub000/trace"

// Signal posts sig with data to t, or to c's current thread when t is nil.
// SIGSLEEP data is the tick to wake at; the thread leaves the core at the
// scheduling pass this starts.
func (s *Sched_t) Signal(c *cpu.Cpu_t, sig uint32, data uint64, t *proc.Thread_t) defs.Err_t {
	if sig != defs.SIGSLEEP {
		return -defs.EINVAL
	}
	s._lock()
	if t == nil {
		t = c.Cur
	}
	if t == nil {
		s.lock.Unlock()
		return -defs.ESRCH
	}
	if t.Idle {
		s.lock.Unlock()
		return -defs.EPERM
	}
	t.Sig.Set(sig, data)
	s.lock.Unlock()
	s.Stats.Signals.Inc()
	klog.Cprintd(c.Num, t.Id, klog.SIGNAL, "sleep %v until %v\n", t.Id, data)
	s.Trigger(c)
	return 0
}

// Sleep puts c's current thread to sleep for ticks clock ticks.
func (s *Sched_t) Sleep(c *cpu.Cpu_t, ticks uint64) defs.Err_t {
	return s.Signal(c, defs.SIGSLEEP, s.Clock.Now()+ticks, nil)
}

// Process_signals wakes every interruptibly sleeping thread whose wake tick
// has passed and runs a scheduling pass on c if it woke any.
func (s *Sched_t) Process_signals(c *cpu.Cpu_t) int {
	s._lock()
	n := s._process_signals(c)
	s.lock.Unlock()
	if n > 0 {
		s.Trigger(c)
	}
	return n
}

// the scan runs on the kernel page tables; c's own are restored after. the
// caller holds the lock.
func (s *Sched_t) _process_signals(c *cpu.Cpu_t) int {
	prior := c.Cr3
	kcr3 := s.Tab.Kas.P_pmap
	if prior != kcr3 {
		c.Cr3 = kcr3
	}
	now := s.Clock.Now()
	woke := 0
	signum := proc.Signum(defs.SIGSLEEP)
	s.rq.iter(defs.TISLEEP, func(t *proc.Thread_t) bool {
		if !t.Sig.Has(defs.SIGSLEEP) || now < t.Sig.Data[signum] {
			return false
		}
		t.Sig.Clear(defs.SIGSLEEP)
		s._change(t, defs.TRUNNABLE)
		t.Runnableticks += defs.HIGH_PRIORITY_TICKS_BOOST
		s.Stats.Wakeups.Inc()
		s.Trace.Record(now, trace.WAKE, c.Num, t.Id, 0)
		klog.Cprintd(c.Num, t.Id, klog.SIGNAL, "woke %v at %v\n", t.Id, now)
		woke++
		return false
	})
	if prior != kcr3 {
		c.Cr3 = prior
	}
	return woke
}
