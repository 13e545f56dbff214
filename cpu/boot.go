package cpu

import "context"
import "errors"
import "fmt"
import "sync/atomic"
import "time"

import "github.com/VBWizard/os64-sub000/apic"
import "github.com/VBWizard/os64-sub000/defs"
import "github.com/VBWizard/os64-sub000/limits"
import "github.com/VBWizard/os64-sub000/vm"

// how long the primary core waits on each secondary core's flags
var Aptimeout = 5 * time.Second

func cpustackva(num int) uintptr {
	span := vm.Stackspan(limits.Syslimit.Cpustackpages, limits.Syslimit.Guardpages)
	return defs.CPUSTACK_BASE + uintptr(num)*span
}

// setup is the part of initialization every core runs on itself: permanent
// stack, core-local record, syscall MSRs and timer calibration.
func (c *Cpu_t) setup() error {
	s, err := c.Tab.Kas.Mkstack(cpustackva(c.Num), limits.Syslimit.Cpustackpages,
		limits.Syslimit.Guardpages)
	if err != 0 {
		return fmt.Errorf("core %v: permanent stack: %w", c.Num, err)
	}
	c.Stack = s
	c.Tmpstack = false
	c.Rsp0 = s.Top()
	c.Self = c
	c.Msrs = true
	hz, cerr := apic.Calibrate(c.Tab.ctx, c.Lapic, c.Tab.Clock)
	if cerr != nil {
		return fmt.Errorf("core %v: timer calibration: %w", c.Num, cerr)
	}
	c.Timerhz = hz
	c.Timercount = uint32(hz / defs.SCHED_RUNS_PER_SECOND)
	if c.Timercount == 0 {
		return fmt.Errorf("core %v: timer too slow (%v Hz)", c.Num, hz)
	}
	atomic.StoreInt32(&c.initted, 1)
	return nil
}

// Bsp_init initializes the bootstrap core on the calling goroutine.
func (t *Table_t) Bsp_init() error {
	c := t.Get(0)
	c.Cr3 = t.Kas.P_pmap
	c.Gdt, c.Idt = true, true
	atomic.StoreInt32(&c.awoken, 1)
	return c.setup()
}

// Ap_entry is the first thing a secondary core runs after leaving its
// parked loop: kernel page tables, a temporary stack and the descriptor
// tables, then it reports itself awake. the caller idles afterwards,
// waiting for the initialization IPI.
func Ap_entry(c *Cpu_t) {
	if c.Isbsp() {
		panic("bsp in ap entry")
	}
	c.Cr3 = c.Tab.Kas.P_pmap
	c.Tmpstack = true
	c.Gdt, c.Idt = true, true
	atomic.StoreInt32(&c.awoken, 1)
}

// Apmain makes the entry for a secondary core that runs main once the core
// initialized. until then the core idles on interrupts; main never runs on
// a core whose initialization failed or that was shut down first.
func Apmain(main Entry_t) Entry_t {
	return func(c *Cpu_t) {
		Ap_entry(c)
		for !c.Initted() {
			if c.Booterr() != nil || !c.Halt() {
				return
			}
		}
		main(c)
	}
}

func ap_init(c *Cpu_t, vec int) {
	if !c.Awoken() || c.Initted() {
		panic(fmt.Sprintf("core %v: init ipi out of order", c.Num))
	}
	if err := c.setup(); err != nil {
		c._booterr(err)
	}
}

// Park spins on the core's goto slot until the primary core fills it, then
// runs the entry on this core. it returns without running anything if the
// table's context ends first.
func (c *Cpu_t) Park() {
	var e *Entry_t
	spinwait(c.Tab.ctx, func() bool {
		e = c.Goto.Load()
		return e != nil
	})
	if e == nil {
		return
	}
	(*e)(c)
}

// Start_ap wakes one parked secondary core and brings it to the point where
// its scheduler timer runs: wake, wait for awoken, init IPI, wait for
// initted, enable-scheduling IPI.
func (t *Table_t) Start_ap(num int, entry Entry_t) error {
	c := t.Get(num)
	if c.Isbsp() {
		panic("start bsp")
	}
	bsp := t.Get(0)
	ctx, cancel := context.WithTimeout(t.ctx, Aptimeout)
	defer cancel()

	e := entry
	c.Goto.Store(&e)
	if err := spinwait(ctx, c.Awoken); err != nil {
		return fmt.Errorf("core %v never woke: %w", num, err)
	}
	t.Send_ipi(bsp, num, defs.IPI_AP_INITIALIZATION_VECTOR)
	err := spinwait(ctx, func() bool {
		return c.Initted() || c.Booterr() != nil
	})
	if berr := c.Booterr(); berr != nil {
		return berr
	}
	if err != nil {
		return fmt.Errorf("core %v never initialized: %w", num, err)
	}
	t.Send_ipi(bsp, num, defs.IPI_ENABLE_SCHEDULING_VECTOR)
	return nil
}

// Start_aps brings up every secondary core in order. a core that fails is
// reported and left out; the rest still start.
func (t *Table_t) Start_aps(entry Entry_t) error {
	var errs []error
	for i := 1; i < len(t.Cpus); i++ {
		if err := t.Start_ap(i, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func Enable_sched(c *Cpu_t) {
	sched_enable(c, defs.IPI_ENABLE_SCHEDULING_VECTOR)
}

func Disable_sched(c *Cpu_t) {
	sched_disable(c, defs.IPI_DISABLE_SCHEDULING_VECTOR)
}
