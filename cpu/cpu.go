package cpu

import "context"
import "fmt"
import "sync"
import "sync/atomic"
import "time"

import "github.com/VBWizard/os64-sub000/apic"
import "github.com/VBWizard/os64-sub000/defs"
import "github.com/VBWizard/os64-sub000/ktime"
import "github.com/VBWizard/os64-sub000/limits"
import "github.com/VBWizard/os64-sub000/mem"
import "github.com/VBWizard/os64-sub000/proc"
import "github.com/VBWizard/os64-sub000/stats"
import "github.com/VBWizard/os64-sub000/trace"
import "github.com/VBWizard/os64-sub000/vm"

type Schedstate_t int32

const (
	SIDLE Schedstate_t = iota
	SINSCHED
	SAWAITING
)

func (s Schedstate_t) String() string {
	switch s {
	case SIDLE:
		return "idle"
	case SINSCHED:
		return "in scheduler"
	case SAWAITING:
		return "awaiting dispatch"
	}
	return "?"
}

type Handler_t func(c *Cpu_t, vec int)

// Entry_t is what a parked core jumps to once the primary core writes it
// into the core's goto slot.
type Entry_t func(c *Cpu_t)

type cpustats_t struct {
	Traps     stats.Counter_t
	Spurious  stats.Counter_t
	Idlehalts stats.Counter_t
	Tlbflush  stats.Counter_t
}

// Cpu_t is a core-local record. a core reaches its own record only through
// the table, by the core number it was started with.
type Cpu_t struct {
	Self   *Cpu_t
	Num    int
	Apicid uint32
	Lapic  apic.Lapic_i
	Tab    *Table_t

	// timer ticks per second and the initial count for one quantum
	Timerhz    uint64
	Timercount uint32

	// live register shadow: the trap entry saved the interrupted thread's
	// registers here and the trap exit restores whatever is here
	Tf  [defs.TFSIZE]uintptr
	Cr3 mem.Pa_t
	// the TSS privileged stack slot. written only by this core.
	Rsp0 uintptr
	Cur  *proc.Thread_t
	// the core finished at least one scheduling pass
	Ranonce bool

	Goto    atomic.Pointer[Entry_t]
	awoken  int32
	initted int32
	enabled int32
	state   int32

	// boot-time state, written by the core itself
	Tmpstack bool
	Gdt      bool
	Idt      bool
	Msrs     bool
	Stack    vm.Stack_t

	bootmu  sync.Mutex
	booterr error

	Stats cpustats_t
}

func (c *Cpu_t) Isbsp() bool {
	return c.Num == 0
}

func (c *Cpu_t) Awoken() bool {
	return atomic.LoadInt32(&c.awoken) != 0
}

func (c *Cpu_t) Initted() bool {
	return atomic.LoadInt32(&c.initted) != 0
}

func (c *Cpu_t) Enabled() bool {
	return atomic.LoadInt32(&c.enabled) != 0
}

func (c *Cpu_t) State() Schedstate_t {
	return Schedstate_t(atomic.LoadInt32(&c.state))
}

func (c *Cpu_t) Casstate(old, new Schedstate_t) bool {
	return atomic.CompareAndSwapInt32(&c.state, int32(old), int32(new))
}

func (c *Cpu_t) Setstate(s Schedstate_t) {
	atomic.StoreInt32(&c.state, int32(s))
}

func (c *Cpu_t) _booterr(err error) {
	c.bootmu.Lock()
	c.booterr = err
	c.bootmu.Unlock()
}

func (c *Cpu_t) Booterr() error {
	c.bootmu.Lock()
	defer c.bootmu.Unlock()
	return c.booterr
}

// services every pending interrupt, highest vector first.
func (c *Cpu_t) Service() int {
	n := 0
	for {
		vec, ok := c.Lapic.Next()
		if !ok {
			return n
		}
		n++
		c.Stats.Traps.Inc()
		c.Tf[defs.TF_TRAP] = uintptr(vec)
		if h := c.Tab.handler(vec); h != nil {
			h(c, vec)
		} else {
			c.Stats.Spurious.Inc()
		}
		apic.Eoi(c.Lapic)
	}
}

// sti; hlt. returns false once the core has been shut down.
func (c *Cpu_t) Halt() bool {
	c.Stats.Idlehalts.Inc()
	if !c.Lapic.Wait() {
		return false
	}
	c.Service()
	return true
}

// Table_t holds every core record, indexed by core number.
type Table_t struct {
	Cpus  []*Cpu_t
	Bus   *apic.Bus_t
	Clock *ktime.Clock_t
	Kas   *vm.As_t
	ctx   context.Context
	sync.Mutex
	handlers [defs.NVECTORS]Handler_t

	Ipis       stats.Counter_t
	Ipirefused stats.Counter_t
	// sent IPIs are recorded here when set
	Trace *trace.Trace_t
}

// Mktable creates n cores, each with its own local APIC on bus. ctx bounds
// every wait a core performs during bring-up.
func Mktable(ctx context.Context, n int, bus *apic.Bus_t, kas *vm.As_t) *Table_t {
	if n <= 0 || n > limits.Syslimit.Cpus {
		panic(fmt.Sprintf("bad core count %v", n))
	}
	t := &Table_t{Bus: bus, Clock: bus.Clock(), Kas: kas, ctx: ctx}
	for i := 0; i < n; i++ {
		c := &Cpu_t{Num: i, Apicid: uint32(i), Tab: t}
		c.Lapic = bus.Attach(c.Apicid)
		t.Cpus = append(t.Cpus, c)
	}
	t.Handle(defs.IPI_AP_INITIALIZATION_VECTOR, ap_init)
	t.Handle(defs.IPI_ENABLE_SCHEDULING_VECTOR, sched_enable)
	t.Handle(defs.IPI_DISABLE_SCHEDULING_VECTOR, sched_disable)
	t.Handle(defs.IPI_INVALIDATE_TLB_VECTOR, tlbflush)
	return t
}

func (t *Table_t) Ncpu() int {
	return len(t.Cpus)
}

func (t *Table_t) Get(num int) *Cpu_t {
	if num < 0 || num >= len(t.Cpus) {
		panic(fmt.Sprintf("no core %v", num))
	}
	return t.Cpus[num]
}

func (t *Table_t) Handle(vec int, h Handler_t) {
	t.Lock()
	t.handlers[vec] = h
	t.Unlock()
}

func (t *Table_t) handler(vec int) Handler_t {
	t.Lock()
	defer t.Unlock()
	return t.handlers[vec]
}

func _schedvec(vec int) bool {
	return vec == defs.IPI_MANUAL_SCHEDULE_VECTOR ||
		vec == defs.IPI_TIMER_SCHEDULE_VECTOR
}

// Send_ipi sends vec from core from to core dst. a scheduling IPI a core
// aims at itself while it is inside the scheduler is refused, as is a
// scheduling IPI to a core that never initialized.
func (t *Table_t) Send_ipi(from *Cpu_t, dst int, vec int) bool {
	c := t.Get(dst)
	if _schedvec(vec) {
		if c == from && from.State() == SINSCHED {
			t.Ipirefused.Inc()
			return false
		}
		if !c.Initted() {
			t.Ipirefused.Inc()
			return false
		}
	}
	t.Ipis.Inc()
	t._traceipi(from, vec)
	if c == from {
		apic.Selfipi(from.Lapic, vec)
	} else {
		apic.Ipi(from.Lapic, c.Apicid, vec)
	}
	return true
}

// only the sending core reads its own current thread.
func (t *Table_t) _traceipi(from *Cpu_t, vec int) {
	var tid defs.Tid_t
	if from.Cur != nil {
		tid = from.Cur.Id
	}
	t.Trace.Record(t.Clock.Now(), trace.IPI, from.Num, tid, vec)
}

// asks every other initialized core to flush its TLB. once every core is up
// a single broadcast does it.
func (t *Table_t) Tlbshoot(from *Cpu_t) {
	all := true
	for _, c := range t.Cpus {
		if !c.Initted() {
			all = false
			break
		}
	}
	if all && len(t.Cpus) > 1 {
		t.Ipis.Inc()
		t._traceipi(from, defs.IPI_INVALIDATE_TLB_VECTOR)
		apic.Othersipi(from.Lapic, defs.IPI_INVALIDATE_TLB_VECTOR)
		return
	}
	for _, c := range t.Cpus {
		if c != from && c.Initted() {
			t.Send_ipi(from, c.Num, defs.IPI_INVALIDATE_TLB_VECTOR)
		}
	}
}

func (t *Table_t) Shutdown() {
	for _, c := range t.Cpus {
		c.Lapic.Shutdown()
	}
}

func tlbflush(c *Cpu_t, vec int) {
	c.Stats.Tlbflush.Inc()
}

func sched_enable(c *Cpu_t, vec int) {
	if !c.Initted() {
		panic(fmt.Sprintf("core %v: scheduling enabled before init", c.Num))
	}
	apic.Timer_periodic(c.Lapic, defs.IPI_TIMER_SCHEDULE_VECTOR, c.Timercount)
	apic.Timer_unmask(c.Lapic)
	atomic.StoreInt32(&c.enabled, 1)
}

func sched_disable(c *Cpu_t, vec int) {
	apic.Timer_mask(c.Lapic)
	atomic.StoreInt32(&c.enabled, 0)
}

// polls cond the way a core spins on a flag another core sets.
func spinwait(ctx context.Context, cond func() bool) error {
	for !cond() {
		if err := ctx.Err(); err != nil {
			return err
		}
		time.Sleep(20 * time.Microsecond)
	}
	return nil
}
