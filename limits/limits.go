package limits

import "sync/atomic"

type Sysatomic_t int64

type Syslimit_t struct {
	// size of the thread id space; ids wrap below this value
	Threads int
	// ids below Resthreads are never handed out by the general allocator
	Resthreads int
	// live threads across all tasks
	Livethreads Sysatomic_t
	// largest core count the core table accepts
	Cpus int
	// pages per kernel stack, user stack and guard region
	Kstackpages int
	Ustackpages int
	Guardpages  int
	// pages backing the per-core permanent stacks
	Cpustackpages int
	// physical pages in the page arena
	Physpages int
	// entries per core log ring
	Logents int
	// dispatch records kept by the scheduler trace
	Traceents int
}

var Syslimit *Syslimit_t = MkSysLimit()

func MkSysLimit() *Syslimit_t {
	return &Syslimit_t{
		Threads:       1024*1024 - 1,
		Resthreads:    32,
		Livethreads:   1e4,
		Cpus:          64,
		Kstackpages:   16,
		Ustackpages:   256,
		Guardpages:    1,
		Cpustackpages: 4,
		// 1GB
		Physpages: 1 << 18,
		Logents:   512,
		Traceents: 4096,
	}
}

func (s *Sysatomic_t) _aptr() *int64 {
	return (*int64)(s)
}

func (s *Sysatomic_t) Given(_n uint) {
	n := int64(_n)
	if n < 0 {
		panic("too mighty")
	}
	atomic.AddInt64(s._aptr(), n)
}

func (s *Sysatomic_t) Taken(_n uint) bool {
	n := int64(_n)
	if n < 0 {
		panic("too mighty")
	}
	g := atomic.AddInt64(s._aptr(), -n)
	if g >= 0 {
		return true
	}
	atomic.AddInt64(s._aptr(), n)
	return false
}

// returns false if the limit has been reached.
func (s *Sysatomic_t) Take() bool {
	return s.Taken(1)
}

func (s *Sysatomic_t) Give() {
	s.Given(1)
}

func (s *Sysatomic_t) Left() int64 {
	return atomic.LoadInt64(s._aptr())
}
