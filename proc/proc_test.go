package proc

import "os"
import "strings"
import "testing"

import "github.com/VBWizard/os64-sub000/defs"
import "github.com/VBWizard/os64-sub000/limits"
import "github.com/VBWizard/os64-sub000/mem"
import "github.com/VBWizard/os64-sub000/tinfo"
import "github.com/VBWizard/os64-sub000/vm"

func TestMain(m *testing.M) {
	limits.Syslimit.Ustackpages = 8
	if err := vm.Kas_init(mem.Phys_init(1 << 14)); err != 0 {
		panic("kas")
	}
	os.Exit(m.Run())
}

func TestTaskCreateUser(t *testing.T) {
	task, err := Task_create("/bin/shell", nil, nil, false, 0, 0x401000)
	if err != 0 {
		t.Fatalf("create: %v", err)
	}
	defer task.Destroy()
	if task.Exename.String() != "shell" {
		t.Fatalf("exename %q", task.Exename)
	}
	if len(task.Argv) != 1 || task.Argv[0].String() != "/bin/shell" {
		t.Fatalf("argv %v", task.Argv)
	}
	if task.Cwd.String() != "/" || task.Stdin != 0 || task.Stdout != 1 || task.Stderr != 2 {
		t.Fatalf("defaults: cwd %q stdio %v %v %v", task.Cwd, task.Stdin, task.Stdout, task.Stderr)
	}
	if task.Heapstart != defs.TASK_HEAP_START || task.Heapend != defs.TASK_HEAP_START {
		t.Fatalf("heap bounds")
	}
	th := task.First()
	if th.Id != task.Id || tinfo.Tids.Reserved(th.Id) {
		t.Fatalf("thread id %v task id %v", th.Id, task.Id)
	}
	if th.Idle || th.Pincpu != NOCPU || th.State != defs.TNONE {
		t.Fatalf("fresh thread state")
	}
	tf := &th.Ctx.Tf
	if tf[defs.TF_CS] != defs.GDT_UCODE<<3|3 || tf[defs.TF_SS] != defs.GDT_UDATA<<3|3 {
		t.Fatalf("user selectors %#x %#x", tf[defs.TF_CS], tf[defs.TF_SS])
	}
	if tf[defs.TF_RFLAGS] != 0x202 || tf[defs.TF_RIP] != 0x401000 {
		t.Fatalf("rflags %#x rip %#x", tf[defs.TF_RFLAGS], tf[defs.TF_RIP])
	}
	if tf[defs.TF_RSP] != th.Ustack.Top() || th.Ctx.Rsp0 != th.Kstack.Top() {
		t.Fatalf("stack pointers")
	}
	if th.Ctx.Cr3 != task.As.P_pmap || task.As == vm.Kas() {
		t.Fatalf("user task shares the kernel address space")
	}
	// guards on both sides of both stacks
	vm.Kas().Assert_no_va_map(th.Kstack.Va)
	vm.Kas().Assert_no_va_map(th.Kstack.Hi())
	task.As.Assert_no_va_map(th.Ustack.Va)
	task.As.Assert_no_va_map(th.Ustack.Hi())
	if _, ok := task.As.Lookup(th.Ustack.Top()); !ok {
		t.Fatalf("user stack unmapped")
	}
	if got, ok := Ttable.Get(task.Id); !ok || got != task {
		t.Fatalf("task table")
	}
}

func TestTaskInherit(t *testing.T) {
	parent, err := Task_create("/bin/init", []string{"init", "-s"}, nil, true, 0, 0)
	if err != 0 {
		t.Fatalf("parent: %v", err)
	}
	defer parent.Destroy()
	parent.Cwd = []uint8("/home")
	parent.Setenv("PATH=/bin")
	parent.Stdout = 5
	long := strings.Repeat("x", defs.TASK_MAX_ARG_LEN+10)
	child, err := Task_create("/bin/child", []string{"child", long}, parent, false, 0, 0)
	if err != 0 {
		t.Fatalf("child: %v", err)
	}
	defer child.Destroy()
	if child.Cwd.String() != "/home" || child.Stdout != 5 || child.Stdin != 0 {
		t.Fatalf("inheritance: %q %v", child.Cwd, child.Stdout)
	}
	if len(child.Env) != 1 || child.Env[0].String() != "PATH=/bin" {
		t.Fatalf("env %v", child.Env)
	}
	if len(child.Argv) != 2 || len(child.Argv[1]) != defs.TASK_MAX_ARG_LEN {
		t.Fatalf("argv not truncated")
	}
	if child.Parent != parent {
		t.Fatalf("parent link")
	}
	// the kernel task runs on its kernel stack
	pt := parent.First()
	if pt.Ctx.Tf[defs.TF_CS] != defs.KCODE_SEL || pt.Ctx.Tf[defs.TF_RSP] != pt.Kstack.Top() {
		t.Fatalf("kernel thread context")
	}
	if pt.Ustack.Valid() {
		t.Fatalf("kernel thread has a user stack")
	}
}

func TestIdleTask(t *testing.T) {
	task, err := Task_create("/idle", nil, nil, false, 3, 0xdead)
	if err != 0 {
		t.Fatalf("create: %v", err)
	}
	defer task.Destroy()
	th := task.First()
	if !th.Idle || th.Pincpu != 3 || !task.Kernel {
		t.Fatalf("idle task not pinned: %v %v %v", th.Idle, th.Pincpu, task.Kernel)
	}
	if th.Ctx.Tf[defs.TF_CS] != defs.KCODE_SEL {
		t.Fatalf("idle task runs in user mode")
	}
	if _, err := Task_create("/idle", nil, nil, true, -1, 0); err != -defs.EINVAL {
		t.Fatalf("unpinned idle task accepted: %v", err)
	}
}

func TestCreateErrors(t *testing.T) {
	if _, err := Task_create(strings.Repeat("a", defs.TASK_MAX_PATH_LEN+1), nil, nil, true, 0, 0); err != -defs.ENAMETOOLONG {
		t.Fatalf("long path: %v", err)
	}
	if _, err := Task_create("", nil, nil, true, 0, 0); err != -defs.EINVAL {
		t.Fatalf("empty path: %v", err)
	}
	task, _ := Task_create("/bin/p", nil, nil, true, 0, 0)
	defer task.Destroy()
	if task.Setprio(-21) != -defs.EINVAL || task.Setprio(-5) != 0 || task.Prio != -5 {
		t.Fatalf("setprio")
	}
}

// every allocation path fails once; creation must release everything it
// took on each failure and succeed once the faults are exhausted.
func TestCreateRollback(t *testing.T) {
	phys := vm.Kas().Phys
	tids := tinfo.Tids.Used()
	live := limits.Syslimit.Livethreads.Left()
	ntasks := Ttable.Len()

	phys.Fail.Reset()
	phys.Fail.Enabled = true
	defer func() {
		phys.Fail.Enabled = false
	}()
	var task *Task_t
	fails := 0
	for i := 0; i < 100 && task == nil; i++ {
		tk, err := Task_create("/bin/rollback", nil, nil, false, 0, 0)
		if err == 0 {
			task = tk
			break
		}
		if err != -defs.ENOMEM {
			t.Fatalf("unexpected error %v", err)
		}
		fails++
		if tinfo.Tids.Used() != tids || limits.Syslimit.Livethreads.Left() != live {
			t.Fatalf("failed create leaked a thread id")
		}
		if Ttable.Len() != ntasks {
			t.Fatalf("failed create left a task behind")
		}
	}
	phys.Fail.Enabled = false
	if task == nil || fails == 0 {
		t.Fatalf("task %v after %v faults", task, fails)
	}
	task.Destroy()
	if tinfo.Tids.Used() != tids || Ttable.Len() != ntasks {
		t.Fatalf("destroy leaked")
	}
}

func TestTidExhaustion(t *testing.T) {
	old := limits.Syslimit.Livethreads
	limits.Syslimit.Livethreads = 0
	defer func() {
		limits.Syslimit.Livethreads = old
	}()
	if _, err := Task_create("/bin/none", nil, nil, true, 0, 0); err != -defs.EAGAIN {
		t.Fatalf("thread limit not enforced: %v", err)
	}
}

func TestExec(t *testing.T) {
	task, _ := Task_create("/bin/exec", nil, nil, false, 0, 0x1000)
	defer task.Destroy()
	th := task.First()
	th.Ctx.Tf[defs.TF_RAX] = 7
	th.Exec(0x2000)
	if !th.Execnosave || th.Ctx.Tf[defs.TF_RIP] != 0x2000 || th.Ctx.Tf[defs.TF_RAX] != 0 {
		t.Fatalf("exec context")
	}
	th2, err := task.Thread_add(0x3000)
	if err != 0 {
		t.Fatalf("thread add: %v", err)
	}
	if th2.Ustack.Va == th.Ustack.Va || th2.Id == th.Id {
		t.Fatalf("second thread shares a stack or id")
	}
}

func TestSignum(t *testing.T) {
	var s Sig_t
	s.Set(defs.SIGSLEEP, 55)
	if !s.Has(defs.SIGSLEEP) || s.Data[1] != 55 {
		t.Fatalf("sleep slot")
	}
	s.Clear(defs.SIGSLEEP)
	if s.Pending != 0 || s.Data[1] != 0 {
		t.Fatalf("clear")
	}
}
