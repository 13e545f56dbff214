package trace

import "strings"
import "testing"

import "github.com/google/uuid"

import "github.com/VBWizard/os64-sub000/defs"

func TestRecord(t *testing.T) {
	tr := Mktrace(4)
	if tr.Boot == uuid.Nil {
		t.Fatalf("no boot id")
	}
	for i := 0; i < 6; i++ {
		tr.Record(uint64(i), DISPATCH, i%2, defs.Tid_t(0x20+i%3), 0)
	}
	tr.Record(9, WAKE, 0, 0x21, 0)
	if tr.Total() != 7 {
		t.Fatalf("total %v", tr.Total())
	}
	evs := tr.Snapshot()
	if len(evs) != 4 {
		t.Fatalf("held %v", len(evs))
	}
	for i := 1; i < len(evs); i++ {
		if evs[i].Seq != evs[i-1].Seq+1 {
			t.Fatalf("not in order: %v", evs)
		}
	}
	if evs[3].Kind != WAKE || evs[0].Seq != 3 {
		t.Fatalf("bad window %v", evs)
	}
	if n := tr.Count(DISPATCH, 0x20); n != 2 {
		t.Fatalf("dispatch count %v", n)
	}
	if n := tr.Count(PREEMPT, 0x20); n != 0 {
		t.Fatalf("preempt count %v", n)
	}
	if !strings.Contains(tr.String(), tr.Boot.String()) {
		t.Fatalf("boot id missing from dump")
	}
}

func TestNilTrace(t *testing.T) {
	var tr *Trace_t
	tr.Record(0, IPI, 0, 0, 0x7e)
}

func TestDistinctBoots(t *testing.T) {
	if Mktrace(1).Boot == Mktrace(1).Boot {
		t.Fatalf("boot ids repeat")
	}
}
