package proc

import "fmt"
import "sync"

import "github.com/VBWizard/os64-sub000/accnt"
import "github.com/VBWizard/os64-sub000/defs"
import "github.com/VBWizard/os64-sub000/hashtable"
import "github.com/VBWizard/os64-sub000/ustr"
import "github.com/VBWizard/os64-sub000/vm"

type Stream_t int

const (
	STDIN  Stream_t = 0
	STDOUT Stream_t = 1
	STDERR Stream_t = 2
)

type Task_t struct {
	// first thread id
	Id      defs.Tid_t
	Path    ustr.Ustr
	Exename ustr.Ustr
	Argv    []ustr.Ustr
	Env     []ustr.Ustr
	Cwd     ustr.Ustr
	// not owned
	Parent *Task_t
	Kernel bool

	sync.Mutex
	// guarded by the mutex until the task is submitted
	Threads  []*Thread_t
	nustacks int

	// Address space
	As *vm.As_t

	// -20 is the highest priority, 20 the lowest
	Prio      int
	Heapstart uintptr
	Heapend   uintptr

	Stdin  Stream_t
	Stdout Stream_t
	Stderr Stream_t

	Accnt     accnt.Accnt_t
	Starttick uint64
}

type ttable_t struct {
	ht *hashtable.Hashtable_t
}

func (tt *ttable_t) Get(id defs.Tid_t) (*Task_t, bool) {
	ret, ok := tt.ht.Get(id)
	if ok {
		return ret.(*Task_t), true
	}
	return nil, false
}

func (tt *ttable_t) Set(id defs.Tid_t, t *Task_t) {
	if _, ok := tt.ht.Set(id, t); !ok {
		panic(fmt.Sprintf("task %v already in table", id))
	}
}

func (tt *ttable_t) Del(id defs.Tid_t) {
	tt.ht.Del(id)
}

func (tt *ttable_t) Len() int {
	return tt.ht.Size()
}

// Iter may execute concurrently with other lookups, inserts, and deletes
func (tt *ttable_t) Iter(f func(*Task_t) bool) {
	tt.ht.Iter(func(key, value interface{}) bool {
		return f(value.(*Task_t))
	})
}

var Ttable = ttable_t{
	ht: hashtable.MkHash(1024),
}

// Task_create builds a task and its first thread. entry is the first
// thread's instruction pointer; pincpu is the core an idle task is bound to
// and is ignored otherwise.
func Task_create(path string, argv []string, parent *Task_t, kernel bool,
	pincpu int, entry uintptr) (*Task_t, defs.Err_t) {
	if len(path) == 0 {
		return nil, -defs.EINVAL
	}
	if len(path) > defs.TASK_MAX_PATH_LEN {
		return nil, -defs.ENAMETOOLONG
	}
	if len(argv) > defs.TASK_MAX_ARGS {
		return nil, -defs.E2BIG
	}
	us := ustr.Ustr(path).Dup()
	idle := us.Hasmarker("/idle", defs.TASK_MARKER_SPAN)
	if idle {
		kernel = true
		if pincpu < 0 {
			return nil, -defs.EINVAL
		}
	}

	task := &Task_t{Path: us, Exename: us.Last(), Parent: parent,
		Kernel: kernel, Prio: defs.PRIO_DEFAULT,
		Heapstart: defs.TASK_HEAP_START, Heapend: defs.TASK_HEAP_START}
	if len(argv) == 0 {
		task.Argv = []ustr.Ustr{us.Dup()}
	}
	for _, a := range argv {
		task.Argv = append(task.Argv, ustr.Ustr(a).Truncate(defs.TASK_MAX_ARG_LEN))
	}
	if parent != nil {
		task.Stdin, task.Stdout, task.Stderr = parent.Stdin, parent.Stdout, parent.Stderr
		task.Cwd = parent.Cwd.Dup()
		for _, e := range parent.Env {
			task.Env = append(task.Env, e.Dup())
		}
	} else {
		task.Stdin, task.Stdout, task.Stderr = STDIN, STDOUT, STDERR
		task.Cwd = ustr.MkUstrRoot()
	}

	if kernel {
		task.As = vm.Kas()
	} else {
		as, err := vm.Mkas(vm.Kas().Phys, false)
		if err != 0 {
			return nil, err
		}
		task.As = as
	}

	t, err := Thread_new(task, kernel)
	if err != 0 {
		if !kernel {
			task.As.Free()
		}
		return nil, err
	}
	if idle {
		t.Idle = true
		t.Pincpu = pincpu
	}
	t.Setentry(entry)
	task.Id = t.Id
	task.Threads = append(task.Threads, t)
	Ttable.Set(task.Id, task)
	return task, 0
}

func (task *Task_t) First() *Thread_t {
	if len(task.Threads) == 0 {
		return nil
	}
	return task.Threads[0]
}

func (task *Task_t) Setprio(prio int) defs.Err_t {
	if prio < defs.PRIO_HIGHEST || prio > defs.PRIO_LOWEST {
		return -defs.EINVAL
	}
	task.Prio = prio
	return 0
}

// adds another thread to a task that has not been submitted yet.
func (task *Task_t) Thread_add(entry uintptr) (*Thread_t, defs.Err_t) {
	task.Lock()
	defer task.Unlock()
	t, err := Thread_new(task, task.Kernel)
	if err != 0 {
		return nil, err
	}
	t.Setentry(entry)
	task.Threads = append(task.Threads, t)
	return t, 0
}

// Destroy releases a task that never reached the scheduler, or whose
// threads are all zombies that have been unlinked.
func (task *Task_t) Destroy() {
	task.Lock()
	for _, t := range task.Threads {
		t.Free()
	}
	task.Threads = nil
	task.Unlock()
	if !task.Kernel {
		task.As.Free()
	}
	Ttable.Del(task.Id)
}

func (task *Task_t) Setenv(kv string) {
	task.Env = append(task.Env, ustr.Ustr(kv))
}
