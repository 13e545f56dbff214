package vm

import "fmt"
import "sync"

import "github.com/VBWizard/os64-sub000/defs"
import "github.com/VBWizard/os64-sub000/mem"

// As_t is an address space: a four-level page table over the page arena.
type As_t struct {
	sync.Mutex
	Phys   *mem.Physmem_t
	Pmap   *mem.Pmap_t
	P_pmap mem.Pa_t
	Kernel bool
	npages int
}

func Mkas(phys *mem.Physmem_t, kernel bool) (*As_t, defs.Err_t) {
	pm, p_pm, ok := phys.Pmap_new()
	if !ok {
		return nil, -defs.ENOMEM
	}
	phys.Refup(p_pm)
	return &As_t{Phys: phys, Pmap: pm, P_pmap: p_pm, Kernel: kernel}, 0
}

var kas *As_t

// the kernel address space shared by every kernel task and every kernel
// stack.
func Kas() *As_t {
	if kas == nil {
		panic("kernel address space not initted")
	}
	return kas
}

func Kas_init(phys *mem.Physmem_t) defs.Err_t {
	as, err := Mkas(phys, true)
	if err != 0 {
		return err
	}
	kas = as
	return 0
}

func (as *As_t) _unmap(va uintptr, npages int) {
	for i := 0; i < npages; i++ {
		v := va + uintptr(i)*PGSIZEW
		pte := pmap_lookup(as.Phys, as.Pmap, v)
		if pte == nil || *pte&PTE_P == 0 {
			continue
		}
		as.Phys.Refdown(*pte & PTE_ADDR)
		*pte = 0
		as.npages--
	}
}

// maps npages fresh pages at va. on failure no new leaf mapping survives;
// intermediate page tables stay for later use.
func (as *As_t) Map_pages(va uintptr, npages int, perms mem.Pa_t) defs.Err_t {
	if va&(PGSIZEW-1) != 0 {
		panic("unaligned va")
	}
	if !as.Kernel {
		perms |= PTE_U
	}
	as.Lock()
	defer as.Unlock()
	for i := 0; i < npages; i++ {
		v := va + uintptr(i)*PGSIZEW
		pte, err := pmap_walk(as.Phys, as.Pmap, v, perms)
		if err != 0 {
			as._unmap(va, i)
			return err
		}
		if *pte&PTE_P != 0 {
			panic(fmt.Sprintf("page already mapped %#x", v))
		}
		p_pg, ok := as.Phys.Refpa_new()
		if !ok {
			as._unmap(va, i)
			return -defs.ENOMEM
		}
		as.Phys.Refup(p_pg)
		*pte = p_pg | perms | PTE_P
		as.npages++
	}
	return 0
}

func (as *As_t) Unmap_pages(va uintptr, npages int) {
	as.Lock()
	as._unmap(va, npages)
	as.Unlock()
}

// returns the physical page backing va.
func (as *As_t) Lookup(va uintptr) (mem.Pa_t, bool) {
	as.Lock()
	defer as.Unlock()
	pte := pmap_lookup(as.Phys, as.Pmap, va)
	if pte == nil || *pte&PTE_P == 0 {
		return 0, false
	}
	return *pte & PTE_ADDR, true
}

func (as *As_t) Assert_no_va_map(va uintptr) {
	if _, ok := as.Lookup(va); ok {
		panic(fmt.Sprintf("va %#x is mapped", va))
	}
}

// leaf pages currently mapped
func (as *As_t) Mapped() int {
	as.Lock()
	defer as.Unlock()
	return as.npages
}

// releases every page table and mapped page. the kernel address space is
// never freed.
func (as *As_t) Free() {
	if as.Kernel {
		panic("free kernel address space")
	}
	as.Lock()
	pmfree(as.Phys, as.P_pmap, 4)
	as.Pmap = nil
	as.P_pmap = 0
	as.npages = 0
	as.Unlock()
}
