package klog

import "fmt"
import "io"
import "os"
import "strings"
import "sync"
import "sync/atomic"

import "github.com/VBWizard/os64-sub000/defs"
import "github.com/VBWizard/os64-sub000/limits"

// Cat_t is a set of debug categories. an entry is emitted when any of its
// categories is enabled; a DETAILED entry also needs DETAILED in the mask.
type Cat_t uint32

const (
	SCHED Cat_t = 1 << iota
	SMP
	TASK
	SIGNAL
	MEM
	BOOT
	DETAILED

	ALL  = SCHED | SMP | TASK | SIGNAL | MEM | BOOT
	NONE = Cat_t(0)
)

var catnames = []struct {
	c Cat_t
	n string
}{
	{SCHED, "sched"},
	{SMP, "smp"},
	{TASK, "task"},
	{SIGNAL, "signal"},
	{MEM, "mem"},
	{BOOT, "boot"},
	{DETAILED, "detail"},
}

func (c Cat_t) String() string {
	var s []string
	for _, cn := range catnames {
		if c&cn.c != 0 {
			s = append(s, cn.n)
		}
	}
	if len(s) == 0 {
		return "none"
	}
	return strings.Join(s, "|")
}

type klog_t struct {
	mask uint32
	sync.Mutex
	sink  io.Writer
	rings []*Ring_t
	now   func() uint64
}

var _log = klog_t{mask: uint32(BOOT | SMP), sink: os.Stdout}

func Setmask(m Cat_t) {
	atomic.StoreUint32(&_log.mask, uint32(m))
}

func Mask() Cat_t {
	return Cat_t(atomic.LoadUint32(&_log.mask))
}

func Enabled(cat Cat_t) bool {
	m := Mask()
	if cat&DETAILED != 0 && m&DETAILED == 0 {
		return false
	}
	return m&cat&^DETAILED != 0
}

// Setsink redirects console output. it returns the previous sink.
func Setsink(w io.Writer) io.Writer {
	_log.Lock()
	defer _log.Unlock()
	old := _log.sink
	_log.sink = w
	return old
}

// Setclock installs the tick source stamped on ring entries.
func Setclock(now func() uint64) {
	_log.Lock()
	_log.now = now
	_log.Unlock()
}

// Setrings gives each of ncpu cores its own log ring. with no rings every
// entry goes straight to the sink.
func Setrings(ncpu int) {
	rings := make([]*Ring_t, ncpu)
	for i := range rings {
		rings[i] = Mkring(limits.Syslimit.Logents)
	}
	_log.Lock()
	_log.rings = rings
	_log.Unlock()
}

func Ring(core int) *Ring_t {
	_log.Lock()
	defer _log.Unlock()
	if core < 0 || core >= len(_log.rings) {
		return nil
	}
	return _log.rings[core]
}

func _write(s string) {
	_log.Lock()
	io.WriteString(_log.sink, s)
	_log.Unlock()
}

// Printf is the unconditional console path.
func Printf(f string, args ...interface{}) {
	_write(fmt.Sprintf(f, args...))
}

func Printd(cat Cat_t, f string, args ...interface{}) {
	if !Enabled(cat) {
		return
	}
	_write(fmt.Sprintf(f, args...))
}

// Cprintd logs on behalf of a core. the entry is queued in the core's ring
// for the log daemon, or written directly when the core has no ring.
func Cprintd(core int, tid defs.Tid_t, cat Cat_t, f string, args ...interface{}) {
	if !Enabled(cat) {
		return
	}
	msg := fmt.Sprintf(f, args...)
	_log.Lock()
	var r *Ring_t
	if core >= 0 && core < len(_log.rings) {
		r = _log.rings[core]
	}
	now := _log.now
	_log.Unlock()
	if r == nil {
		_write(msg)
		return
	}
	var tick uint64
	if now != nil {
		tick = now()
	}
	r.Put(Ent_t{Tick: tick, Core: core, Cat: cat, Tid: tid, Msg: msg})
}

// Drain writes every queued entry, ring by ring, to w and returns how many
// were written.
func Drain(w io.Writer) int {
	_log.Lock()
	rings := _log.rings
	_log.Unlock()
	n := 0
	for _, r := range rings {
		n += r.Drain(w)
	}
	return n
}

// Flush drains the rings to the console sink. fatal paths call it before
// panicking so the last entries are not lost.
func Flush() {
	_log.Lock()
	w := _log.sink
	_log.Unlock()
	Drain(&lockedw_t{w})
}

type lockedw_t struct {
	w io.Writer
}

func (l *lockedw_t) Write(p []byte) (int, error) {
	_log.Lock()
	defer _log.Unlock()
	return l.w.Write(p)
}

// Parsemask turns the kernel command-line words nolog, alllog and detlog
// into a mask. the words are applied in that order wherever they appear;
// words it does not know are ignored.
func Parsemask(words []string, def Cat_t) Cat_t {
	has := make(map[string]bool)
	for _, w := range words {
		has[w] = true
	}
	m := def
	if has["nolog"] {
		m = NONE
	}
	if has["alllog"] {
		m = ALL
	}
	if has["detlog"] {
		m |= DETAILED
	}
	return m
}
