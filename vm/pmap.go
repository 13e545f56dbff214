package vm

import "fmt"

import "github.com/VBWizard/os64-sub000/defs"
import "github.com/VBWizard/os64-sub000/mem"

const PTE_P = mem.PTE_P
const PTE_W = mem.PTE_W
const PTE_U = mem.PTE_U
const PTE_PS = mem.PTE_PS
const PTE_ADDR = mem.PTE_ADDR
const PGSHIFT = mem.PGSHIFT
const PGSIZEW uintptr = uintptr(mem.PGSIZE)

func _instpg(phys *mem.Physmem_t, pg *mem.Pmap_t, idx uint, perms mem.Pa_t) (mem.Pa_t, bool) {
	_, p_np, ok := phys.Refpg_new()
	if !ok {
		return 0, false
	}
	phys.Refup(p_np)
	npte := p_np | perms | PTE_P
	pg[idx] = npte
	return npte, true
}

// returns nil if either 1) create was false and the mapping doesn't exist or
// 2) create was true but we failed to allocate a page to create the mapping.
func pmap_pgtbl(phys *mem.Physmem_t, pml4 *mem.Pmap_t, v uintptr, create bool,
	perms mem.Pa_t) (*mem.Pmap_t, int) {
	vn := uint(v)
	l4b := (vn >> (12 + 9*3)) & 0x1ff
	pdpb := (vn >> (12 + 9*2)) & 0x1ff
	pdb := (vn >> (12 + 9*1)) & 0x1ff
	ptb := (vn >> (12 + 9*0)) & 0x1ff

	if v < PGSIZEW && create {
		panic("mapping page 0")
	}

	cpe := func(pe mem.Pa_t) *mem.Pmap_t {
		if pe&PTE_PS != 0 {
			panic("insert mapping into PS page")
		}
		return mem.Pg2pmap(phys.Dmap(pe & PTE_ADDR))
	}

	var ok bool
	next := pml4
	for _, idx := range []uint{l4b, pdpb, pdb} {
		pe := next[idx]
		if pe&PTE_P == 0 {
			if !create {
				return nil, 0
			}
			pe, ok = _instpg(phys, next, idx, perms)
			if !ok {
				return nil, 0
			}
		}
		next = cpe(pe)
	}
	return next, int(ptb)
}

func _pmap_walk(phys *mem.Physmem_t, pml4 *mem.Pmap_t, v uintptr, create bool,
	perms mem.Pa_t) *mem.Pa_t {
	pgtbl, slot := pmap_pgtbl(phys, pml4, v, create, perms)
	if pgtbl == nil {
		return nil
	}
	return &pgtbl[slot]
}

func pmap_walk(phys *mem.Physmem_t, pml4 *mem.Pmap_t, v uintptr,
	perms mem.Pa_t) (*mem.Pa_t, defs.Err_t) {
	ret := _pmap_walk(phys, pml4, v, true, perms)
	if ret == nil {
		// create was set; failed to allocate a page
		return nil, -defs.ENOMEM
	}
	return ret, 0
}

func pmap_lookup(phys *mem.Physmem_t, pml4 *mem.Pmap_t, v uintptr) *mem.Pa_t {
	return _pmap_walk(phys, pml4, v, false, 0)
}

// drops every page reachable from the table at p_tbl, the table included.
// lev is 4 for a pml4.
func pmfree(phys *mem.Physmem_t, p_tbl mem.Pa_t, lev int) {
	tbl := mem.Pg2pmap(phys.Dmap(p_tbl))
	for i, pte := range tbl {
		if pte&PTE_P == 0 {
			continue
		}
		pa := pte & PTE_ADDR
		if lev == 1 {
			phys.Refdown(pa)
		} else {
			pmfree(phys, pa, lev-1)
		}
		tbl[i] = 0
	}
	if !phys.Refdown(p_tbl) {
		panic(fmt.Sprintf("page table %#x still referenced", p_tbl))
	}
}
