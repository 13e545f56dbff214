package klog

import "fmt"
import "io"
import "strings"
import "sync"

import "github.com/VBWizard/os64-sub000/defs"

type Ent_t struct {
	Tick uint64
	Core int
	Cat  Cat_t
	Tid  defs.Tid_t
	Msg  string
}

func (e *Ent_t) String() string {
	return fmt.Sprintf("%08d c%02d t%04x %s", e.Tick, e.Core, e.Tid, e.Msg)
}

// Ring_t is a core's log buffer. the core appends and the log daemon
// drains, possibly from another core. head and tail only grow; slots are
// taken modulo the buffer size.
type Ring_t struct {
	sync.Mutex
	buf  []Ent_t
	head int
	tail int
	// entries overwritten before anyone drained them
	Dropped int
}

func Mkring(sz int) *Ring_t {
	if sz <= 0 {
		panic("bad ring size")
	}
	return &Ring_t{buf: make([]Ent_t, sz)}
}

func (r *Ring_t) _full() bool {
	return r.head-r.tail == len(r.buf)
}

// Put appends e. a full ring gives up its oldest entry.
func (r *Ring_t) Put(e Ent_t) {
	r.Lock()
	defer r.Unlock()
	if r._full() {
		r.tail++
		r.Dropped++
	}
	r.buf[r.head%len(r.buf)] = e
	r.head++
}

func (r *Ring_t) Used() int {
	r.Lock()
	defer r.Unlock()
	return r.head - r.tail
}

// Take removes and returns up to max entries, oldest first. max <= 0 means
// all of them.
func (r *Ring_t) Take(max int) []Ent_t {
	r.Lock()
	defer r.Unlock()
	n := r.head - r.tail
	if max > 0 && max < n {
		n = max
	}
	ret := make([]Ent_t, 0, n)
	for i := 0; i < n; i++ {
		ret = append(ret, r.buf[r.tail%len(r.buf)])
		r.buf[r.tail%len(r.buf)] = Ent_t{}
		r.tail++
	}
	return ret
}

func (r *Ring_t) Drain(w io.Writer) int {
	ents := r.Take(0)
	for i := range ents {
		s := ents[i].String()
		if !strings.HasSuffix(s, "\n") {
			s += "\n"
		}
		io.WriteString(w, s)
	}
	return len(ents)
}
