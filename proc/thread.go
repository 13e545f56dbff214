package proc

import "fmt"

import "github.com/VBWizard/os64-sub000/defs"
import "github.com/VBWizard/os64-sub000/limits"
import "github.com/VBWizard/os64-sub000/mem"
import "github.com/VBWizard/os64-sub000/tinfo"
import "github.com/VBWizard/os64-sub000/vm"

// Context_t is everything a switch saves and restores: the register image
// in trapframe layout, the address-space root and the privileged stack the
// core's TSS must point at while the thread runs.
type Context_t struct {
	Tf   [defs.TFSIZE]uintptr
	Cr3  mem.Pa_t
	Rsp0 uintptr
	Ss0  uintptr
}

// the signal mailbox. Data is indexed by the signal's bit number for bit
// signals.
type Sig_t struct {
	Data    [defs.NSIGDATA]uint64
	Pending uint32
}

func Signum(sig uint32) int {
	for i := 0; i < 32; i++ {
		if sig == 1<<uint(i) {
			return i
		}
	}
	return int(sig)
}

func (s *Sig_t) Has(sig uint32) bool {
	return s.Pending&sig != 0
}

func (s *Sig_t) Set(sig uint32, data uint64) {
	s.Data[Signum(sig)] = data
	s.Pending |= sig
}

func (s *Sig_t) Clear(sig uint32) {
	s.Data[Signum(sig)] = 0
	s.Pending &^= sig
}

const NOCPU = -1
const NOSLOT = -1

// Thread_t fields below Ctx are guarded by the scheduler lock once the
// thread has been submitted.
type Thread_t struct {
	Id     defs.Tid_t
	Task   *Task_t
	Kernel bool
	Kstack vm.Stack_t
	Ustack vm.Stack_t

	Ctx   Context_t
	State defs.Tstate_t
	// pinned idle threads only run on Pincpu
	Idle   bool
	Pincpu int
	Oncpu  int
	Exited bool
	Retval int
	// the thread replaced its program image; its saved context must not be
	// overwritten when it is next switched out
	Execnosave bool

	Totalticks uint64
	// aging score while runnable
	Runnableticks uint64
	Laststart     uint64
	Lastend       uint64
	Sig           Sig_t

	// run-queue links are arena slots
	Slot int32
	Prev int32
	Next int32
	Inq  defs.Tstate_t
}

func (t *Thread_t) String() string {
	return fmt.Sprintf("thread %v (%s) %v", t.Id, t.Task.Exename, t.State)
}

func kstackva(tid defs.Tid_t) uintptr {
	span := vm.Stackspan(limits.Syslimit.Kstackpages, limits.Syslimit.Guardpages)
	return defs.KSTACK_BASE + uintptr(tid)*span
}

func ustackva(n int) uintptr {
	span := vm.Stackspan(limits.Syslimit.Ustackpages, limits.Syslimit.Guardpages)
	return defs.USTACK_BASE + uintptr(n)*span
}

// Thread_new allocates a thread id and the thread's stacks and prepares its
// initial context. it does not add the thread to task's thread list. every
// resource acquired is released if a later step fails.
func Thread_new(task *Task_t, kernel bool) (*Thread_t, defs.Err_t) {
	if !limits.Syslimit.Livethreads.Take() {
		return nil, -defs.EAGAIN
	}
	tid, err := tinfo.Tids.Alloc()
	if err != 0 {
		limits.Syslimit.Livethreads.Give()
		return nil, err
	}
	t := &Thread_t{Id: tid, Task: task, Kernel: kernel, Pincpu: NOCPU,
		Oncpu: NOCPU, Slot: NOSLOT, Prev: NOSLOT, Next: NOSLOT}
	t.Kstack, err = vm.Kas().Mkstack(kstackva(tid), limits.Syslimit.Kstackpages,
		limits.Syslimit.Guardpages)
	if err != 0 {
		t.Free()
		return nil, err
	}
	if !kernel {
		t.Ustack, err = task.As.Mkstack(ustackva(task.nustacks),
			limits.Syslimit.Ustackpages, limits.Syslimit.Guardpages)
		if err != 0 {
			t.Free()
			return nil, err
		}
		task.nustacks++
	}

	tf := &t.Ctx.Tf
	if kernel {
		tf[defs.TF_CS] = defs.KCODE_SEL
		tf[defs.TF_SS] = defs.KDATA_SEL
		tf[defs.TF_RSP] = t.Kstack.Top()
	} else {
		tf[defs.TF_CS] = defs.UCODE_SEL
		tf[defs.TF_SS] = defs.UDATA_SEL
		tf[defs.TF_RSP] = t.Ustack.Top()
	}
	tf[defs.TF_RFLAGS] = defs.RFLAGS_INIT
	t.Ctx.Rsp0 = t.Kstack.Top()
	t.Ctx.Ss0 = defs.KDATA_SEL
	t.Ctx.Cr3 = task.As.P_pmap
	return t, 0
}

// releases the thread's stacks and id. the thread must not be linked into
// a run queue.
func (t *Thread_t) Free() {
	if t.Inq != defs.TNONE {
		panic(fmt.Sprintf("free of queued thread %v", t.Id))
	}
	t.Ustack.Free()
	t.Kstack.Free()
	if t.Id != 0 {
		tinfo.Tids.Release(t.Id)
		t.Id = 0
		limits.Syslimit.Livethreads.Give()
	}
}

func (t *Thread_t) Setentry(rip uintptr) {
	t.Ctx.Tf[defs.TF_RIP] = rip
}

// Exec restarts the thread at rip on a fresh stack pointer. the thread may
// be running; the scheduler loads the new context instead of saving the
// live registers over it.
func (t *Thread_t) Exec(rip uintptr) {
	tf := &t.Ctx.Tf
	for i := 0; i < defs.TFREGS; i++ {
		tf[i] = 0
	}
	tf[defs.TF_RIP] = rip
	if t.Kernel {
		tf[defs.TF_RSP] = t.Kstack.Top()
	} else {
		tf[defs.TF_RSP] = t.Ustack.Top()
	}
	tf[defs.TF_RFLAGS] = defs.RFLAGS_INIT
	t.Execnosave = true
}
