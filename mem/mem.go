package mem

import "fmt"
import "sync"
import "sync/atomic"
import "unsafe"

import "github.com/VBWizard/os64-sub000/caller"

const PGSHIFT uint = 12
const PGSIZE int = 1 << PGSHIFT
const PGOFFSET Pa_t = 0xfff
const PGMASK Pa_t = ^(PGOFFSET)

const PTE_P Pa_t = 1 << 0
const PTE_W Pa_t = 1 << 1
const PTE_U Pa_t = 1 << 2
const PTE_PCD Pa_t = 1 << 4
const PTE_PS Pa_t = 1 << 7
const PTE_G Pa_t = 1 << 8

const PTE_ADDR Pa_t = PGMASK &^ (1 << 63)

type Pa_t uintptr
type Bytepg_t [PGSIZE]uint8
type Pg_t [512]int
type Pmap_t [512]Pa_t

type Page_i interface {
	Refpg_new() (*Pg_t, Pa_t, bool)
	Refpa_new() (Pa_t, bool)
	Refcnt(Pa_t) int
	Dmap(Pa_t) *Pg_t
	Refup(Pa_t)
	Refdown(Pa_t) bool
}

func Pg2bytes(pg *Pg_t) *Bytepg_t {
	return (*Bytepg_t)(unsafe.Pointer(pg))
}

func Pg2pmap(pg *Pg_t) *Pmap_t {
	return (*Pmap_t)(unsafe.Pointer(pg))
}

type Physpg_t struct {
	Refcnt int32
	// index into pgs of next page on free list
	nexti uint32
	// bit n is set if core n loaded this page (which is a pmap) into its
	// cr3 register
	Cpumask uint64
	// contents are materialized on first Dmap
	pg *Pg_t
}

// Physmem_t is the page arena. the kernel runs hosted, so a physical address
// is an index into Pgs shifted by PGSHIFT; page 0 is never handed out.
type Physmem_t struct {
	Pgs []Physpg_t
	// index into pgs of first free pg
	freei   uint32
	freelen int32
	sync.Mutex
	// when enabled, the first allocation from each distinct call path
	// fails
	Fail caller.Distinct_caller_t
}

const nopg = ^uint32(0)

func Phys_init(npages int) *Physmem_t {
	if npages <= 0 || npages >= int(nopg) {
		panic("bad page count")
	}
	phys := &Physmem_t{}
	phys.Pgs = make([]Physpg_t, npages)
	for i := range phys.Pgs {
		phys.Pgs[i].nexti = uint32(i + 1)
	}
	phys.Pgs[npages-1].nexti = nopg
	phys.freei = 0
	phys.freelen = int32(npages)
	return phys
}

func _pa2idx(p_pg Pa_t) uint32 {
	return uint32(p_pg>>PGSHIFT) - 1
}

func _idx2pa(idx uint32) Pa_t {
	return Pa_t(idx+1) << PGSHIFT
}

func (phys *Physmem_t) _pgidx(p_pg Pa_t) uint32 {
	if p_pg&PGOFFSET != 0 {
		panic(fmt.Sprintf("unaligned page %#x", p_pg))
	}
	idx := _pa2idx(p_pg)
	if p_pg == 0 || int(idx) >= len(phys.Pgs) {
		panic(fmt.Sprintf("bad page %#x", p_pg))
	}
	return idx
}

func (phys *Physmem_t) Refaddr(p_pg Pa_t) (*int32, uint32) {
	idx := phys._pgidx(p_pg)
	return &phys.Pgs[idx].Refcnt, idx
}

func (phys *Physmem_t) Tlbaddr(p_pg Pa_t) *uint64 {
	idx := phys._pgidx(p_pg)
	return &phys.Pgs[idx].Cpumask
}

func (phys *Physmem_t) Refcnt(p_pg Pa_t) int {
	ref, _ := phys.Refaddr(p_pg)
	return int(atomic.LoadInt32(ref))
}

func (phys *Physmem_t) Refup(p_pg Pa_t) {
	ref, _ := phys.Refaddr(p_pg)
	c := atomic.AddInt32(ref, 1)
	if c <= 0 {
		panic("wut")
	}
}

// returns true iff the page was returned to the free list.
func (phys *Physmem_t) Refdown(p_pg Pa_t) bool {
	ref, idx := phys.Refaddr(p_pg)
	c := atomic.AddInt32(ref, -1)
	if c < 0 {
		panic("wut")
	}
	if c != 0 {
		return false
	}
	phys.Lock()
	phys.Pgs[idx].nexti = phys.freei
	phys.freei = idx
	phys.freelen++
	phys.Unlock()
	return true
}

// pops a page off the free list. the refcount of the returned page is 0; the
// caller takes its reference with Refup.
func (phys *Physmem_t) _phys_new() (uint32, bool) {
	if phys.Fail.Enabled {
		if ok, _ := phys.Fail.Distinct(); ok {
			return 0, false
		}
	}
	phys.Lock()
	defer phys.Unlock()
	ff := phys.freei
	if ff == nopg {
		return 0, false
	}
	phys.freei = phys.Pgs[ff].nexti
	phys.Pgs[ff].nexti = nopg
	phys.freelen--
	if phys.freelen < 0 || phys.Pgs[ff].Refcnt != 0 {
		panic("free list corrupt")
	}
	return ff, true
}

// allocates a page without touching its contents.
func (phys *Physmem_t) Refpa_new() (Pa_t, bool) {
	idx, ok := phys._phys_new()
	if !ok {
		return 0, false
	}
	return _idx2pa(idx), true
}

func (phys *Physmem_t) Refpg_new() (*Pg_t, Pa_t, bool) {
	idx, ok := phys._phys_new()
	if !ok {
		return nil, 0, false
	}
	p_pg := _idx2pa(idx)
	pg := phys.Dmap(p_pg)
	*pg = Pg_t{}
	return pg, p_pg, true
}

func (phys *Physmem_t) Pmap_new() (*Pmap_t, Pa_t, bool) {
	pg, p_pg, ok := phys.Refpg_new()
	if !ok {
		return nil, 0, false
	}
	return Pg2pmap(pg), p_pg, true
}

// returns the page's contents.
func (phys *Physmem_t) Dmap(p Pa_t) *Pg_t {
	idx := phys._pgidx(p &^ PGOFFSET)
	phys.Lock()
	pg := phys.Pgs[idx].pg
	if pg == nil {
		pg = &Pg_t{}
		phys.Pgs[idx].pg = pg
	}
	phys.Unlock()
	return pg
}

func (phys *Physmem_t) Dmap8(p Pa_t) []uint8 {
	pg := phys.Dmap(p)
	off := p & PGOFFSET
	bpg := Pg2bytes(pg)
	return bpg[off:]
}

// returns the number of free pages.
func (phys *Physmem_t) Pgcount() int {
	phys.Lock()
	r := int(phys.freelen)
	phys.Unlock()
	return r
}

func (phys *Physmem_t) Npages() int {
	return len(phys.Pgs)
}
