package klog

import "bytes"
import "strings"
import "testing"

func withsink(t *testing.T, m Cat_t) *bytes.Buffer {
	var b bytes.Buffer
	old := Setsink(&b)
	oldm := Mask()
	Setmask(m)
	t.Cleanup(func() {
		Setsink(old)
		Setmask(oldm)
		_log.Lock()
		_log.rings = nil
		_log.now = nil
		_log.Unlock()
	})
	return &b
}

func TestMask(t *testing.T) {
	b := withsink(t, SCHED)
	Printd(SCHED, "one\n")
	Printd(SMP, "two\n")
	Printd(SCHED|DETAILED, "three\n")
	Printd(SMP|SCHED, "four\n")
	if got := b.String(); got != "one\nfour\n" {
		t.Fatalf("got %q", got)
	}
	b.Reset()
	Setmask(SCHED | DETAILED)
	Printd(SCHED|DETAILED, "three\n")
	Printd(DETAILED, "five\n")
	if got := b.String(); got != "three\n" {
		t.Fatalf("got %q", got)
	}
	b.Reset()
	Setmask(NONE)
	Printf("banner %v\n", 1)
	if got := b.String(); got != "banner 1\n" {
		t.Fatalf("got %q", got)
	}
}

func TestParsemask(t *testing.T) {
	tests := []struct {
		words []string
		want  Cat_t
	}{
		{nil, BOOT},
		{[]string{"nolog"}, NONE},
		{[]string{"alllog"}, ALL},
		{[]string{"detlog"}, BOOT | DETAILED},
		{[]string{"detlog", "alllog"}, ALL | DETAILED},
		{[]string{"alllog", "nolog"}, ALL},
		{[]string{"maxcpus=2", "bogus"}, BOOT},
	}
	for _, tt := range tests {
		if got := Parsemask(tt.words, BOOT); got != tt.want {
			t.Errorf("%v: got %v want %v", tt.words, got, tt.want)
		}
	}
	if s := (SCHED | DETAILED).String(); s != "sched|detail" {
		t.Fatalf("bad name %q", s)
	}
}

func TestRingDropsOldest(t *testing.T) {
	r := Mkring(4)
	for i := 0; i < 6; i++ {
		r.Put(Ent_t{Tick: uint64(i)})
	}
	if r.Used() != 4 || r.Dropped != 2 {
		t.Fatalf("used %v dropped %v", r.Used(), r.Dropped)
	}
	got := r.Take(3)
	if len(got) != 3 || got[0].Tick != 2 || got[2].Tick != 4 {
		t.Fatalf("bad order %v", got)
	}
	r.Put(Ent_t{Tick: 6})
	got = r.Take(0)
	if len(got) != 2 || got[0].Tick != 5 || got[1].Tick != 6 {
		t.Fatalf("bad order %v", got)
	}
	if r.Used() != 0 {
		t.Fatalf("not empty")
	}
}

func TestCoreRings(t *testing.T) {
	b := withsink(t, ALL)
	Setrings(2)
	tick := uint64(7)
	Setclock(func() uint64 { return tick })
	Cprintd(1, 0x21, SCHED, "switch\n")
	Cprintd(0, 0x20, TASK, "create")
	Cprintd(5, 0, SCHED, "direct\n")
	if b.String() != "direct\n" {
		t.Fatalf("entry for unknown core not written directly: %q", b.String())
	}
	if Ring(0).Used() != 1 || Ring(1).Used() != 1 {
		t.Fatalf("entries not queued")
	}
	var out bytes.Buffer
	if n := Drain(&out); n != 2 {
		t.Fatalf("drained %v", n)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %q", out.String())
	}
	if lines[0] != "00000007 c00 t0020 create" {
		t.Fatalf("bad line %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], "t0021 switch") {
		t.Fatalf("bad line %q", lines[1])
	}
	Cprintd(0, 0, SCHED, "late\n")
	b.Reset()
	Flush()
	if b.String() != "00000007 c00 t0000 late\n" {
		t.Fatalf("flush wrote %q", b.String())
	}
}
