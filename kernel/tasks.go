package main

import "fmt"

import "github.com/VBWizard/os64-sub000/cpu"
import "github.com/VBWizard/os64-sub000/defs"
import "github.com/VBWizard/os64-sub000/klog"
import "github.com/VBWizard/os64-sub000/proc"

// entry points of the built-in programs. a core finds the code to run by
// the instruction pointer in its live register image, so a thread that was
// switched in, or that exec'd, continues with the right body.
const (
	RIP_IDLE  uintptr = 0xffffffff80100000
	RIP_LOGD  uintptr = 0xffffffff80101000
	RIP_SPIN  uintptr = 0xffffffff80102000
	RIP_SLEEP uintptr = 0xffffffff80103000
	RIP_INIT  uintptr = 0x401000
	RIP_WORK  uintptr = 0x402000
)

// a body runs one step of the current thread on c and returns to the core
// loop. the thread's progress lives in its registers.
type body_t func(k *kernel_t, c *cpu.Cpu_t)

var bodies = map[uintptr]body_t{
	RIP_IDLE:  idle,
	RIP_LOGD:  logd,
	RIP_SPIN:  spin,
	RIP_SLEEP: sleeper,
	RIP_INIT:  initprog,
	RIP_WORK:  work,
}

const (
	spin_steps   = 40
	spin_yield   = 8
	sleep_rounds = 10
	sleep_ticks  = 7
	work_steps   = 16
)

func idle(k *kernel_t, c *cpu.Cpu_t) {
	c.Halt()
}

// the log daemon empties the per-core log rings, collects finished tasks
// and goes back to sleep.
func logd(k *kernel_t, c *cpu.Cpu_t) {
	n := klog.Drain(k.logout)
	c.Tf[defs.TF_RAX] += uintptr(n)
	k.reap(c)
	if err := k.s.Sleep(c, defs.LOGD_SLEEP_TICKS); err != 0 {
		klog.Cprintd(c.Num, c.Cur.Id, klog.TASK, "logd sleep: %v\n", err)
	}
}

// compute bound: every step runs until the next interrupt on the core.
func spin(k *kernel_t, c *cpu.Cpu_t) {
	c.Tf[defs.TF_RBX]++
	n := c.Tf[defs.TF_RBX]
	switch {
	case n >= spin_steps:
		k.s.Exit(c, int(n))
	case n%spin_yield == 0:
		k.s.Yield(c)
	default:
		c.Lapic.Wait()
	}
}

func sleeper(k *kernel_t, c *cpu.Cpu_t) {
	n := c.Tf[defs.TF_RBX]
	if n >= sleep_rounds {
		k.s.Exit(c, 0)
		return
	}
	c.Tf[defs.TF_RBX] = n + 1
	if err := k.s.Sleep(c, sleep_ticks); err != 0 {
		k.s.Exit(c, int(err))
	}
}

// the first user program replaces its image with the worker and gives up
// the core; the worker starts from a clean register file.
func initprog(k *kernel_t, c *cpu.Cpu_t) {
	k.s.Exec(c.Cur, RIP_WORK)
	k.s.Yield(c)
}

func work(k *kernel_t, c *cpu.Cpu_t) {
	c.Tf[defs.TF_RBX]++
	if c.Tf[defs.TF_RBX] >= work_steps {
		k.s.Exit(c, 0)
		return
	}
	k.s.Yield(c)
}

type prog_t struct {
	path   string
	argv   []string
	env    []string
	kernel bool
	prio   int
	rip    uintptr
}

// the programs started once every core runs.
func progs() []prog_t {
	ret := []prog_t{
		{path: "/sbin/logd", kernel: true, prio: -10, rip: RIP_LOGD},
	}
	for _, p := range []int{-5, 0, 5} {
		ret = append(ret, prog_t{path: "/bin/spin",
			argv: []string{"spin", fmt.Sprint(p)}, kernel: true, prio: p,
			rip: RIP_SPIN})
	}
	ret = append(ret,
		prog_t{path: "/bin/sleeper", kernel: true, rip: RIP_SLEEP},
		prog_t{path: "/bin/init", env: []string{"PATH=/bin", "HOME=/"},
			rip: RIP_INIT})
	return ret
}

func (k *kernel_t) spawn(p prog_t) (*proc.Task_t, error) {
	task, err := proc.Task_create(p.path, p.argv, nil, p.kernel, proc.NOCPU, p.rip)
	if err != 0 {
		return nil, fmt.Errorf("%v: %w", p.path, err)
	}
	for _, kv := range p.env {
		task.Setenv(kv)
	}
	if p.prio != defs.PRIO_DEFAULT {
		if err := k.s.Setprio(task, p.prio); err != 0 {
			task.Destroy()
			return nil, fmt.Errorf("%v: priority %v: %w", p.path, p.prio, err)
		}
	}
	klog.Printd(klog.TASK, "task %v: %v prio %v\n", task.Id, p.path, task.Prio)
	k.Lock()
	k.tasks = append(k.tasks, task)
	k.Unlock()
	k.s.Submit(task)
	return task, nil
}

// reap collects every task whose threads are all zombies; the scheduler
// refuses the rest. c is the core doing it, or nil once the cores stopped.
func (k *kernel_t) reap(c *cpu.Cpu_t) int {
	k.Lock()
	tasks := append([]*proc.Task_t(nil), k.tasks...)
	k.Unlock()
	n := 0
	for _, task := range tasks {
		user := !task.Kernel
		if err := k.s.Reap(task); err != 0 {
			continue
		}
		n++
		k.acct.Add(&task.Accnt)
		if user && c != nil {
			k.tab.Tlbshoot(c)
		}
		k.Lock()
		for i, tk := range k.tasks {
			if tk == task {
				k.tasks = append(k.tasks[:i], k.tasks[i+1:]...)
				break
			}
		}
		k.reaped = append(k.reaped, task.Path.String())
		k.Unlock()
	}
	return n
}
