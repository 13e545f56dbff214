package apic

import "context"

import "github.com/VBWizard/os64-sub000/defs"
import "github.com/VBWizard/os64-sub000/ktime"

func Ipilow(ds int, t int, l int, deliv int, vec int) uint32 {
	return uint32(ds<<18 | t<<15 | l<<14 |
		deliv<<8 | vec)
}

func Icrw(lap Lapic_i, hi uint32, low uint32) {
	lap.Wr(LAPIC_ICRH, hi)
	lap.Wr(LAPIC_ICRL, low)
	for lap.Rd(LAPIC_ICRL)&ICR_PENDING != 0 {
	}
}

// fixed-delivery IPI to the core with the given APIC ID.
func Ipi(lap Lapic_i, apicid uint32, vec int) {
	Icrw(lap, apicid<<24, Ipilow(DS_NONE, 0, 1, DELIV_FIXED, vec))
}

func Selfipi(lap Lapic_i, vec int) {
	Icrw(lap, 0, Ipilow(DS_SELF, 0, 1, DELIV_FIXED, vec))
}

func Othersipi(lap Lapic_i, vec int) {
	Icrw(lap, 0, Ipilow(DS_OTHERS, 0, 1, DELIV_FIXED, vec))
}

func Eoi(lap Lapic_i) {
	lap.Wr(LAPIC_EOI, 0)
}

// programs the timer to interrupt on vec every count timer ticks. the timer
// stays masked until Timer_unmask.
func Timer_periodic(lap Lapic_i, vec int, count uint32) {
	lap.Wr(LAPIC_LVT_TIMER, uint32(vec)|TIMER_PERIODIC|LVT_MASKED)
	lap.Wr(LAPIC_DIVIDE, DIVIDE_16)
	lap.Wr(LAPIC_INIT_COUNT, count)
}

func Timer_mask(lap Lapic_i) {
	lap.Wr(LAPIC_LVT_TIMER, lap.Rd(LAPIC_LVT_TIMER)|LVT_MASKED)
}

func Timer_unmask(lap Lapic_i) {
	lap.Wr(LAPIC_LVT_TIMER, lap.Rd(LAPIC_LVT_TIMER)&^LVT_MASKED)
}

func Timer_masked(lap Lapic_i) bool {
	return lap.Rd(LAPIC_LVT_TIMER)&LVT_MASKED != 0
}

// reloading the initial count restarts the countdown.
func Timer_restart(lap Lapic_i, count uint32) {
	lap.Wr(LAPIC_INIT_COUNT, count)
}

// measures the timer against the PIT: TIMER_SYNC_ITERATIONS windows of a
// tenth of a second each, averaged. returns timer ticks per second.
func Calibrate(ctx context.Context, lap Lapic_i, clock *ktime.Clock_t) (uint64, error) {
	const window = defs.TICKS_PER_SECOND / 10
	var total uint64
	for i := 0; i < defs.TIMER_SYNC_ITERATIONS; i++ {
		// start on a tick boundary
		if err := clock.Waitfor(ctx, 1); err != nil {
			return 0, err
		}
		lap.Wr(LAPIC_DIVIDE, DIVIDE_16)
		lap.Wr(LAPIC_LVT_TIMER, LVT_MASKED)
		lap.Wr(LAPIC_INIT_COUNT, 0xffffffff)
		if err := clock.Waitfor(ctx, window); err != nil {
			return 0, err
		}
		cur := lap.Rd(LAPIC_CUR_COUNT)
		lap.Wr(LAPIC_INIT_COUNT, 0)
		ticks := uint64(0xffffffff-cur) * (defs.TICKS_PER_SECOND / window)
		dbg("apic %v window %v: %v\n", lap.Id(), i, ticks)
		total += ticks
	}
	return total / defs.TIMER_SYNC_ITERATIONS, nil
}

func (b *Bus_t) Counts() (sent, dropped, inits uint64) {
	b.Lock()
	defer b.Unlock()
	return b.Sent, b.Dropped, b.Inits
}

func (l *Lapic_t) Eoicount() uint64 {
	l.Lock()
	defer l.Unlock()
	return l.Eois
}
