package main

import "context"
import "flag"
import "fmt"
import "io"
import "os"
import "sync"
import "sync/atomic"
import "time"

import "github.com/VBWizard/os64-sub000/accnt"
import "github.com/VBWizard/os64-sub000/apic"
import "github.com/VBWizard/os64-sub000/cpu"
import "github.com/VBWizard/os64-sub000/defs"
import "github.com/VBWizard/os64-sub000/klog"
import "github.com/VBWizard/os64-sub000/ktime"
import "github.com/VBWizard/os64-sub000/limits"
import "github.com/VBWizard/os64-sub000/mem"
import "github.com/VBWizard/os64-sub000/proc"
import "github.com/VBWizard/os64-sub000/sched"
import "github.com/VBWizard/os64-sub000/stats"
import "github.com/VBWizard/os64-sub000/trace"
import "github.com/VBWizard/os64-sub000/vm"

type kernel_t struct {
	cl    Cmdline_t
	clock *ktime.Clock_t
	bus   *apic.Bus_t
	tab   *cpu.Table_t
	s     *sched.Sched_t
	tr    *trace.Trace_t

	ctx       context.Context
	cancel    context.CancelFunc
	clockdone chan struct{}
	// secondary cores
	wg sync.WaitGroup
	// the bootstrap core stops the machine at this tick
	until uint64
	stop  int32

	// log daemon output
	logout io.Writer

	sync.Mutex
	tasks  []*proc.Task_t
	idles  []*proc.Task_t
	reaped []string
	// run time of every reaped task
	acct accnt.Accnt_t
}

// Boot brings up a machine of ncpu cores as cl asks: the kernel address
// space, the bootstrap core, one idle task per core, the secondary cores and
// finally the built-in programs. the clock ticks every period.
func Boot(cl Cmdline_t, ncpu int, period time.Duration, logout io.Writer) (*kernel_t, error) {
	klog.Setmask(cl.Log)
	n := cl.Ncpu(ncpu)
	if err := vm.Kas_init(mem.Phys_init(limits.Syslimit.Physpages)); err != 0 {
		return nil, fmt.Errorf("kernel address space: %w", err)
	}
	k := &kernel_t{cl: cl, clock: ktime.Mkclock(), logout: logout,
		clockdone: make(chan struct{})}
	k.ctx, k.cancel = context.WithCancel(context.Background())
	k.bus = apic.Mkbus(k.clock, cl.Hz)
	k.tab = cpu.Mktable(k.ctx, n, k.bus, vm.Kas())
	k.tr = trace.Mktrace(limits.Syslimit.Traceents)
	k.s = sched.Mksched(k.tab, k.tr)
	klog.Setclock(k.clock.Now)
	klog.Setrings(n)
	klog.Printd(klog.BOOT, "boot %v: %v of %v cores, %v\n", k.tr.Boot, n,
		ncpu, cl.String())

	go func() {
		k.clock.Run(k.ctx, period)
		close(k.clockdone)
	}()
	for _, c := range k.tab.Cpus[1:] {
		k.wg.Add(1)
		go func(c *cpu.Cpu_t) {
			defer k.wg.Done()
			c.Park()
		}(c)
	}

	if err := k.tab.Bsp_init(); err != nil {
		k.halt()
		return nil, fmt.Errorf("bsp: %w", err)
	}
	klog.Printd(klog.SMP, "bsp: timer %v Hz, quantum %v\n",
		k.tab.Get(0).Timerhz, k.tab.Get(0).Timercount)
	// every core needs its idle thread before it takes its first
	// scheduling pass
	for i := 0; i < n; i++ {
		task, err := proc.Task_create(fmt.Sprintf("/idle%d", i), nil, nil,
			true, i, RIP_IDLE)
		if err != 0 {
			k.halt()
			return nil, fmt.Errorf("idle task %v: %w", i, err)
		}
		k.s.Submit(task)
		k.idles = append(k.idles, task)
	}
	if err := k.tab.Start_aps(cpu.Apmain(k.coreloop)); err != nil {
		klog.Printd(klog.SMP, "secondary cores: %v\n", err)
	}
	cpu.Enable_sched(k.tab.Get(0))

	for _, p := range progs() {
		if _, err := k.spawn(p); err != nil {
			k.halt()
			return nil, err
		}
	}
	return k, nil
}

func (k *kernel_t) stopped() bool {
	return atomic.LoadInt32(&k.stop) != 0
}

// coreloop is what every core runs once it is initialized: take pending
// interrupts, then run a step of whatever thread is current.
func (k *kernel_t) coreloop(c *cpu.Cpu_t) {
	for !k.stopped() {
		c.Service()
		if c.Isbsp() && k.clock.Now() >= k.until {
			return
		}
		if k.stopped() {
			return
		}
		if c.Cur == nil {
			if !c.Halt() {
				return
			}
			continue
		}
		b, ok := bodies[c.Tf[defs.TF_RIP]]
		if !ok {
			klog.Cprintd(c.Num, c.Cur.Id, klog.TASK, "thread %v: no code at %#x\n",
				c.Cur.Id, c.Tf[defs.TF_RIP])
			k.s.Exit(c, int(-defs.EFAULT))
			continue
		}
		b(k, c)
	}
}

// Run runs the machine on the calling goroutine, as the bootstrap core, for
// ticks clock ticks and then stops every core.
func (k *kernel_t) Run(ticks uint64) {
	k.until = k.clock.Now() + ticks
	k.coreloop(k.tab.Get(0))
	k.shutdown()
}

func (k *kernel_t) shutdown() {
	bsp := k.tab.Get(0)
	for _, c := range k.tab.Cpus[1:] {
		if c.Initted() {
			k.tab.Send_ipi(bsp, c.Num, defs.IPI_DISABLE_SCHEDULING_VECTOR)
		}
	}
	cpu.Disable_sched(bsp)
	k.halt()
	if n := k.reap(nil); n > 0 {
		klog.Printd(klog.TASK, "reaped %v task(s) at shutdown\n", n)
	}
	klog.Drain(k.logout)
}

// halt stops every core and the clock.
func (k *kernel_t) halt() {
	atomic.StoreInt32(&k.stop, 1)
	k.tab.Shutdown()
	k.cancel()
	k.wg.Wait()
	<-k.clockdone
}

func (k *kernel_t) report(w io.Writer) {
	k.Lock()
	fmt.Fprintf(w, "tasks: %v live, %v reaped %v\n", len(k.tasks),
		len(k.reaped), k.reaped)
	k.acct.Lock()
	fmt.Fprintf(w, "reaped time: user %v sys %v ticks, %v voluntary %v involuntary switches\n",
		k.acct.Userticks, k.acct.Systicks, k.acct.Nvcsw, k.acct.Nivcsw)
	k.acct.Unlock()
	k.Unlock()
	io.WriteString(w, k.s.String())
	for _, c := range k.tab.Cpus {
		fmt.Fprintf(w, "core %v (%v Hz):%s", c.Num, c.Timerhz,
			stats.Stats2String(&c.Stats))
	}
	sent, dropped, inits := k.bus.Counts()
	fmt.Fprintf(w, "ipis: %v sent, %v dropped, %v init; %v refused\n", sent,
		dropped, inits, k.tab.Ipirefused.Get())
	fmt.Fprintf(w, "trace %v: %v events\n", k.tr.Boot, k.tr.Total())
	if err := k.s.Check(); err != nil {
		fmt.Fprintf(w, "scheduler inconsistent: %v\n", err)
	}
}

func main() {
	cmdline := flag.String("cmdline", "", "kernel command line")
	ncpu := flag.Int("cpus", 4, "cores the machine has")
	ticks := flag.Uint64("ticks", 5*defs.TICKS_PER_SECOND, "clock ticks to run")
	period := flag.Duration("tick", time.Second/defs.TICKS_PER_SECOND,
		"wall time per clock tick")
	flag.Parse()

	cl, err := Parse_cmdline(*cmdline)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}
	k, err := Boot(cl, *ncpu, *period, os.Stdout)
	if err != nil {
		klog.Flush()
		fmt.Fprintf(os.Stderr, "boot failed: %v\n", err)
		os.Exit(1)
	}
	k.Run(*ticks)
	k.report(os.Stdout)
}
