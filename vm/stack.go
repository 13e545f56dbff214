package vm

import "github.com/VBWizard/os64-sub000/defs"
import "github.com/VBWizard/os64-sub000/mem"

// Stack_t is a mapped stack with an unmapped guard region on each side:
// [Va, Va+Guard) guard, [Lo(), Hi()) mapped, [Hi(), Hi()+Guard) guard.
type Stack_t struct {
	As    *As_t
	Va    uintptr
	Size  uintptr
	Guard uintptr
}

func (s *Stack_t) Lo() uintptr {
	return s.Va + s.Guard
}

func (s *Stack_t) Hi() uintptr {
	return s.Va + s.Guard + s.Size
}

// initial stack pointer
func (s *Stack_t) Top() uintptr {
	return s.Hi() - 8
}

func (s *Stack_t) Valid() bool {
	return s.As != nil
}

// span of virtual addresses a stack of the given size occupies, guards
// included.
func Stackspan(pages, guard int) uintptr {
	return uintptr(pages+2*guard) * PGSIZEW
}

// maps a stack of pages pages at va+guard pages, leaving the guards
// unmapped.
func (as *As_t) Mkstack(va uintptr, pages, guard int) (Stack_t, defs.Err_t) {
	if pages <= 0 || guard < 1 {
		panic("bad stack geometry")
	}
	s := Stack_t{As: as, Va: va, Size: uintptr(pages) * PGSIZEW,
		Guard: uintptr(guard) * PGSIZEW}
	as.Assert_no_va_map(s.Va)
	as.Assert_no_va_map(s.Hi())
	if err := as.Map_pages(s.Lo(), pages, mem.PTE_W); err != 0 {
		return Stack_t{}, err
	}
	return s, 0
}

func (s *Stack_t) Free() {
	if s.As == nil {
		return
	}
	s.As.Unmap_pages(s.Lo(), int(s.Size/PGSIZEW))
	s.As = nil
}
