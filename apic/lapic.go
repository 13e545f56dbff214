package apic

import "fmt"
import "math/bits"
import "sync"

import "github.com/VBWizard/os64-sub000/defs"
import "github.com/VBWizard/os64-sub000/ktime"

const apic_debug bool = false

func dbg(f string, args ...interface{}) {
	if apic_debug {
		fmt.Printf(f, args...)
	}
}

// local APIC register offsets
const (
	LAPIC_ID         = 0x20
	LAPIC_EOI        = 0xb0
	LAPIC_SPURIOUS   = 0xf0
	LAPIC_ICRL       = 0x300
	LAPIC_ICRH       = 0x310
	LAPIC_LVT_TIMER  = 0x320
	LAPIC_INIT_COUNT = 0x380
	LAPIC_CUR_COUNT  = 0x390
	LAPIC_DIVIDE     = 0x3e0

	LVT_MASKED     = 1 << 16
	TIMER_PERIODIC = 1 << 17
	ICR_PENDING    = 1 << 12

	DIVIDE_16 = 0x3
)

// destination shorthands
const (
	DS_NONE   = 0
	DS_SELF   = 1
	DS_ALL    = 2
	DS_OTHERS = 3
)

// delivery modes
const (
	DELIV_FIXED   = 0
	DELIV_INIT    = 5
	DELIV_STARTUP = 6
)

type Lapic_i interface {
	Id() uint32
	Rd(reg int) uint32
	Wr(reg int, v uint32)
	// blocks until an interrupt is pending; false once the APIC is shut
	// down and nothing is pending
	Wait() bool
	// pops the highest priority pending vector
	Next() (int, bool)
	Shutdown()
}

// Lapic_t models one core's local APIC: a register file, the interrupt
// request bitmap and the timer, which counts down at the bus rate divided by
// the divide configuration and is advanced by the PIT clock.
type Lapic_t struct {
	bus *Bus_t
	id  uint32
	sync.Mutex
	cond   *sync.Cond
	regs   [0x400 / 4]uint32
	irr    [defs.NVECTORS / 64]uint64
	down   bool
	tstart uint64
	tfired uint64
	Eois   uint64
}

var _ Lapic_i = &Lapic_t{}

func (l *Lapic_t) Id() uint32 {
	return l.id
}

func _divisor(v uint32) uint64 {
	switch v & 0xb {
	case 0x0:
		return 2
	case 0x1:
		return 4
	case 0x2:
		return 8
	case 0x3:
		return 16
	case 0x8:
		return 32
	case 0x9:
		return 64
	case 0xa:
		return 128
	}
	return 1
}

// counts consumed since the initial count was loaded. l must be locked.
func (l *Lapic_t) _elapsed(now uint64) uint64 {
	rate := l.bus.Hz / _divisor(l.regs[LAPIC_DIVIDE/4]) / defs.TICKS_PER_SECOND
	return (now - l.tstart) * rate
}

func (l *Lapic_t) _curcount(now uint64) uint32 {
	init := uint64(l.regs[LAPIC_INIT_COUNT/4])
	if init == 0 {
		return 0
	}
	el := l._elapsed(now)
	if l.regs[LAPIC_LVT_TIMER/4]&TIMER_PERIODIC != 0 {
		return uint32(init - el%init)
	}
	if el >= init {
		return 0
	}
	return uint32(init - el)
}

func (l *Lapic_t) Rd(reg int) uint32 {
	l.Lock()
	defer l.Unlock()
	switch reg {
	case LAPIC_ID:
		return l.id << 24
	case LAPIC_CUR_COUNT:
		return l._curcount(l.bus.clock.Now())
	case LAPIC_ICRL:
		// delivery is synchronous; the pending bit is never observed
		return l.regs[reg/4] &^ ICR_PENDING
	}
	return l.regs[reg/4]
}

func (l *Lapic_t) Wr(reg int, v uint32) {
	if reg&3 != 0 || reg < 0 || reg >= 0x400 {
		panic(fmt.Sprintf("bad lapic reg %#x", reg))
	}
	if reg == LAPIC_ICRL {
		l.Lock()
		hi := l.regs[LAPIC_ICRH/4]
		l.regs[reg/4] = v
		l.Unlock()
		l.bus.deliver(l, hi, v)
		return
	}
	l.Lock()
	defer l.Unlock()
	switch reg {
	case LAPIC_ID, LAPIC_CUR_COUNT:
		// read-only
		return
	case LAPIC_EOI:
		l.Eois++
		return
	case LAPIC_INIT_COUNT:
		l.tstart = l.bus.clock.Now()
		l.tfired = 0
	}
	l.regs[reg/4] = v
}

func (l *Lapic_t) _post(vec int) {
	if vec < 0 || vec >= defs.NVECTORS {
		panic("bad vector")
	}
	l.irr[vec/64] |= 1 << uint(vec%64)
	l.cond.Broadcast()
}

func (l *Lapic_t) Post(vec int) {
	l.Lock()
	l._post(vec)
	l.Unlock()
}

func (l *Lapic_t) _pending() bool {
	for _, w := range l.irr {
		if w != 0 {
			return true
		}
	}
	return false
}

func (l *Lapic_t) Pending(vec int) bool {
	l.Lock()
	defer l.Unlock()
	return l.irr[vec/64]&(1<<uint(vec%64)) != 0
}

func (l *Lapic_t) Next() (int, bool) {
	l.Lock()
	defer l.Unlock()
	for i := len(l.irr) - 1; i >= 0; i-- {
		w := l.irr[i]
		if w == 0 {
			continue
		}
		b := 63 - bits.LeadingZeros64(w)
		l.irr[i] &^= 1 << uint(b)
		return i*64 + b, true
	}
	return 0, false
}

func (l *Lapic_t) Wait() bool {
	l.Lock()
	defer l.Unlock()
	for !l._pending() && !l.down {
		l.cond.Wait()
	}
	return l._pending()
}

func (l *Lapic_t) Shutdown() {
	l.Lock()
	l.down = true
	l.cond.Broadcast()
	l.Unlock()
}

func (l *Lapic_t) timertick(now uint64) {
	l.Lock()
	defer l.Unlock()
	init := uint64(l.regs[LAPIC_INIT_COUNT/4])
	lvt := l.regs[LAPIC_LVT_TIMER/4]
	if init == 0 || lvt&LVT_MASKED != 0 {
		return
	}
	el := l._elapsed(now)
	if lvt&TIMER_PERIODIC != 0 {
		if n := el / init; n > l.tfired {
			l.tfired = n
			l._post(int(lvt & 0xff))
		}
	} else if el >= init && l.tfired == 0 {
		l.tfired = 1
		l._post(int(lvt & 0xff))
	}
}

// Bus_t is the interconnect between local APICs. it also feeds PIT ticks to
// every APIC timer.
type Bus_t struct {
	// timer input clock
	Hz    uint64
	clock *ktime.Clock_t
	sync.Mutex
	laps    map[uint32]*Lapic_t
	order   []*Lapic_t
	Sent    uint64
	Dropped uint64
	Inits   uint64
}

func Mkbus(clock *ktime.Clock_t, hz uint64) *Bus_t {
	if hz/16/defs.TICKS_PER_SECOND == 0 {
		panic("bus clock too slow")
	}
	b := &Bus_t{Hz: hz, clock: clock, laps: make(map[uint32]*Lapic_t)}
	clock.Listen(b.tick)
	return b
}

func (b *Bus_t) Clock() *ktime.Clock_t {
	return b.clock
}

func (b *Bus_t) Attach(apicid uint32) *Lapic_t {
	b.Lock()
	defer b.Unlock()
	if _, ok := b.laps[apicid]; ok {
		panic(fmt.Sprintf("duplicate apic id %v", apicid))
	}
	l := &Lapic_t{bus: b, id: apicid}
	l.cond = sync.NewCond(&l.Mutex)
	l.regs[LAPIC_LVT_TIMER/4] = LVT_MASKED
	b.laps[apicid] = l
	b.order = append(b.order, l)
	return l
}

func (b *Bus_t) tick(now uint64) {
	b.Lock()
	laps := b.order
	b.Unlock()
	for _, l := range laps {
		l.timertick(now)
	}
}

func (b *Bus_t) deliver(from *Lapic_t, hi, low uint32) {
	ds := (low >> 18) & 3
	deliv := (low >> 8) & 7
	vec := int(low & 0xff)

	b.Lock()
	var dst []*Lapic_t
	switch ds {
	case DS_NONE:
		if l, ok := b.laps[hi>>24]; ok {
			dst = append(dst, l)
		}
	case DS_SELF:
		dst = append(dst, from)
	case DS_ALL:
		dst = append(dst, b.order...)
	case DS_OTHERS:
		for _, l := range b.order {
			if l != from {
				dst = append(dst, l)
			}
		}
	}
	if len(dst) == 0 {
		b.Dropped++
		b.Unlock()
		dbg("ipi %#x to %#x dropped\n", low, hi)
		return
	}
	if deliv != DELIV_FIXED {
		// INIT and STARTUP only matter to cores still in real mode
		b.Inits++
		b.Unlock()
		return
	}
	b.Sent += uint64(len(dst))
	b.Unlock()
	for _, l := range dst {
		l.Post(vec)
	}
}
