package mem

import "testing"

func TestAllocFree(t *testing.T) {
	phys := Phys_init(8)
	var pas []Pa_t
	for i := 0; i < 8; i++ {
		p, ok := phys.Refpa_new()
		if !ok {
			t.Fatalf("alloc %v failed", i)
		}
		if p == 0 || p&PGOFFSET != 0 {
			t.Fatalf("bad page %#x", p)
		}
		phys.Refup(p)
		pas = append(pas, p)
	}
	if _, ok := phys.Refpa_new(); ok {
		t.Fatalf("allocated past the arena")
	}
	if phys.Pgcount() != 0 {
		t.Fatalf("free count %v", phys.Pgcount())
	}
	phys.Refup(pas[3])
	if phys.Refdown(pas[3]) {
		t.Fatalf("page with a reference freed")
	}
	if !phys.Refdown(pas[3]) {
		t.Fatalf("last reference did not free")
	}
	p, ok := phys.Refpa_new()
	if !ok || p != pas[3] {
		t.Fatalf("freed page not reused: %#x", p)
	}
}

func TestZeroed(t *testing.T) {
	phys := Phys_init(1)
	pg, p, ok := phys.Refpg_new()
	if !ok {
		t.Fatalf("alloc")
	}
	phys.Refup(p)
	pg[10] = 77
	Pg2bytes(pg)[0] = 1
	if phys.Dmap8(p)[0] != 1 {
		t.Fatalf("dmap does not alias the page")
	}
	phys.Refdown(p)
	pg, _, _ = phys.Refpg_new()
	if pg[10] != 0 || pg[0] != 0 {
		t.Fatalf("recycled page not zeroed")
	}
}

func TestFailInjection(t *testing.T) {
	phys := Phys_init(4)
	phys.Fail.Enabled = true
	fails := 0
	for i := 0; i < 3; i++ {
		if _, ok := phys.Refpa_new(); !ok {
			fails++
		}
	}
	if fails != 1 {
		t.Fatalf("expected one injected failure, got %v", fails)
	}
}
