package tinfo

import "sync"
import "testing"

import "github.com/VBWizard/os64-sub000/defs"

func TestAllocRange(t *testing.T) {
	tm := Mktidmap(100, 32)
	seen := make(map[defs.Tid_t]bool)
	for i := 0; i < 68; i++ {
		id, err := tm.Alloc()
		if err != 0 {
			t.Fatalf("alloc %v: %v", i, err)
		}
		if i == 0 && id != 32 {
			t.Fatalf("first id %v", id)
		}
		if tm.Reserved(id) || id >= 100 {
			t.Fatalf("id %v outside the general range", id)
		}
		if seen[id] {
			t.Fatalf("id %v handed out twice", id)
		}
		seen[id] = true
	}
	if _, err := tm.Alloc(); err != -defs.EAGAIN {
		t.Fatalf("exhausted map returned %v", err)
	}
	tm.Release(50)
	id, err := tm.Alloc()
	if err != 0 || id != 50 {
		t.Fatalf("released id not reused: %v %v", id, err)
	}
	if tm.Used() != 68 {
		t.Fatalf("used %v", tm.Used())
	}
}

func TestWrap(t *testing.T) {
	tm := Mktidmap(40, 32)
	var ids []defs.Tid_t
	for i := 0; i < 8; i++ {
		id, _ := tm.Alloc()
		ids = append(ids, id)
	}
	tm.Release(ids[2])
	tm.Release(ids[6])
	a, _ := tm.Alloc()
	b, _ := tm.Alloc()
	// the cursor sits past the top, so the walk wraps to the low id first
	if a != ids[2] || b != ids[6] {
		t.Fatalf("wrap order %v %v", a, b)
	}
}

func TestReserved(t *testing.T) {
	tm := Mktidmap(128, 32)
	if !tm.Take(3) {
		t.Fatalf("take reserved")
	}
	if tm.Take(3) {
		t.Fatalf("double take")
	}
	for i := 0; i < 96; i++ {
		id, err := tm.Alloc()
		if err != 0 || tm.Reserved(id) {
			t.Fatalf("alloc gave %v %v", id, err)
		}
	}
}

func TestReleaseFreePanics(t *testing.T) {
	tm := Mktidmap(64, 1)
	defer func() {
		if recover() == nil {
			t.Fatalf("release of a free id accepted")
		}
	}()
	tm.Release(5)
}

func TestConcurrentAlloc(t *testing.T) {
	tm := Mktidmap(1<<14, 32)
	const nproc = 8
	const per = 1000
	var wg sync.WaitGroup
	got := make([][]defs.Tid_t, nproc)
	for p := 0; p < nproc; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < per; i++ {
				id, err := tm.Alloc()
				if err != 0 {
					t.Errorf("alloc: %v", err)
					return
				}
				got[p] = append(got[p], id)
			}
		}(p)
	}
	wg.Wait()
	seen := make(map[defs.Tid_t]bool)
	for _, ids := range got {
		for _, id := range ids {
			if seen[id] {
				t.Fatalf("duplicate id %v", id)
			}
			seen[id] = true
		}
	}
	if len(seen) != nproc*per {
		t.Fatalf("got %v ids", len(seen))
	}
}
