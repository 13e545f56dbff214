package trace

import "fmt"
import "strings"
import "sync"

import "github.com/google/uuid"

import "github.com/VBWizard/os64-sub000/defs"

type Kind_t uint8

const (
	// a core started running a different thread
	DISPATCH Kind_t = iota + 1
	// a thread left a core still runnable
	PREEMPT
	// a sleeping thread became runnable
	WAKE
	// a core sent an inter-processor interrupt
	IPI
)

func (k Kind_t) String() string {
	switch k {
	case DISPATCH:
		return "dispatch"
	case PREEMPT:
		return "preempt"
	case WAKE:
		return "wake"
	case IPI:
		return "ipi"
	}
	return "?"
}

type Ev_t struct {
	Seq  uint64
	Tick uint64
	Kind Kind_t
	Core int
	Tid  defs.Tid_t
	// IPI: the vector. DISPATCH: the thread switched out, or -1
	Arg int
}

func (e Ev_t) String() string {
	return fmt.Sprintf("#%v @%v c%v %v t%v %v", e.Seq, e.Tick, e.Core, e.Kind,
		e.Tid, e.Arg)
}

// Trace_t keeps the most recent scheduling events of one boot. it is
// written under the scheduler lock but read from anywhere.
type Trace_t struct {
	Boot uuid.UUID
	sync.Mutex
	evs    []Ev_t
	seq    uint64
	counts map[Kind_t]map[defs.Tid_t]uint64
}

func Mktrace(nents int) *Trace_t {
	if nents <= 0 {
		panic("bad trace size")
	}
	return &Trace_t{Boot: uuid.New(), evs: make([]Ev_t, nents),
		counts: make(map[Kind_t]map[defs.Tid_t]uint64)}
}

func (tr *Trace_t) Record(tick uint64, k Kind_t, core int, tid defs.Tid_t, arg int) {
	if tr == nil {
		return
	}
	tr.Lock()
	defer tr.Unlock()
	e := Ev_t{Seq: tr.seq, Tick: tick, Kind: k, Core: core, Tid: tid, Arg: arg}
	tr.evs[tr.seq%uint64(len(tr.evs))] = e
	tr.seq++
	m, ok := tr.counts[k]
	if !ok {
		m = make(map[defs.Tid_t]uint64)
		tr.counts[k] = m
	}
	m[tid]++
}

// Count returns how many events of kind k named tid were ever recorded,
// including ones the ring no longer holds.
func (tr *Trace_t) Count(k Kind_t, tid defs.Tid_t) uint64 {
	tr.Lock()
	defer tr.Unlock()
	return tr.counts[k][tid]
}

func (tr *Trace_t) Total() uint64 {
	tr.Lock()
	defer tr.Unlock()
	return tr.seq
}

// Snapshot copies the held events, oldest first.
func (tr *Trace_t) Snapshot() []Ev_t {
	tr.Lock()
	defer tr.Unlock()
	n := uint64(len(tr.evs))
	first := uint64(0)
	if tr.seq > n {
		first = tr.seq - n
	}
	ret := make([]Ev_t, 0, tr.seq-first)
	for i := first; i < tr.seq; i++ {
		ret = append(ret, tr.evs[i%n])
	}
	return ret
}

func (tr *Trace_t) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "boot %v: %v events\n", tr.Boot, tr.Total())
	for _, e := range tr.Snapshot() {
		fmt.Fprintf(&b, "\t%v\n", e)
	}
	return b.String()
}
