package defs

type Tstate_t uint8

const (
	TNONE     Tstate_t = 0
	TRUNNING  Tstate_t = 1
	TRUNNABLE Tstate_t = 2
	TSTOPPED  Tstate_t = 3
	TUSLEEP   Tstate_t = 4
	TISLEEP   Tstate_t = 5
	TZOMBIE   Tstate_t = 0xff
)

func (s Tstate_t) String() string {
	switch s {
	case TNONE:
		return "None"
	case TRUNNING:
		return "Running"
	case TRUNNABLE:
		return "Runnable"
	case TSTOPPED:
		return "Stopped"
	case TUSLEEP:
		return "Uninterruptable Sleep"
	case TISLEEP:
		return "Interruptable Sleep"
	case TZOMBIE:
		return "Zombie"
	}
	return "Unknown"
}

// signal numbers are bit masks except SIGKILL, which keeps its POSIX value.
const (
	SIGHALT     = 1
	SIGSLEEP    = 1 << 1
	SIGUSLEEP   = 1 << 2
	SIGINT      = 1 << 3
	SIGSEGV     = 1 << 4
	SIGSTOP     = 1 << 5
	SIGIO       = 1 << 6
	SIGCONT     = 1 << 7
	SIGKILL     = 9
	SIGLOGFLUSH = 1 << 9

	NSIGDATA = 32
)

const (
	TICKS_PER_SECOND = 100

	// the local timer fires this many times per second on every core
	SCHED_RUNS_PER_SECOND = 50

	RUNNABLE_TICKS_INTERVAL   = 20
	HIGH_PRIORITY_TICKS_BOOST = 10000000

	TIMER_SYNC_ITERATIONS = 3

	LOGD_SLEEP_TICKS = TICKS_PER_SECOND
)

const (
	PRIO_HIGHEST = -20
	PRIO_LOWEST  = 20
	PRIO_DEFAULT = 0

	TASK_MAX_PATH_LEN = 128
	TASK_MAX_ARG_LEN  = 128
	TASK_MAX_ARGS     = 64
	TASK_HEAP_START   = 0x70000000

	// the first 10 bytes of a path are searched for these markers
	TASK_MARKER_SPAN = 10
)

// stack placement. user stacks live in each task's address space; kernel
// stacks share the kernel address space and are spread by thread id.
const (
	USTACK_BASE   uintptr = 0xb0000000
	KSTACK_BASE   uintptr = 0xffff8000fff00000
	CPUSTACK_BASE uintptr = 0xffff8000e0000000
)
