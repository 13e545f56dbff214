package ktime

import "context"
import "sync"
import "sync/atomic"
import "time"

// Clock_t is the programmable interval timer: a monotonic tick counter every
// core reads. listeners run on each tick, in the ticking goroutine, after
// the counter advanced.
type Clock_t struct {
	ticks uint64
	sync.Mutex
	// closed and replaced on every tick
	tickc     chan struct{}
	listeners []func(uint64)
}

func Mkclock() *Clock_t {
	return &Clock_t{tickc: make(chan struct{})}
}

func (c *Clock_t) Now() uint64 {
	return atomic.LoadUint64(&c.ticks)
}

func (c *Clock_t) Listen(f func(uint64)) {
	c.Lock()
	c.listeners = append(c.listeners, f)
	c.Unlock()
}

// advances the clock one tick.
func (c *Clock_t) Tick() uint64 {
	c.Lock()
	now := atomic.AddUint64(&c.ticks, 1)
	ls := c.listeners
	old := c.tickc
	c.tickc = make(chan struct{})
	c.Unlock()
	close(old)
	for _, f := range ls {
		f(now)
	}
	return now
}

func (c *Clock_t) Advance(n int) {
	for i := 0; i < n; i++ {
		c.Tick()
	}
}

// blocks until the clock reads at least t.
func (c *Clock_t) Waituntil(ctx context.Context, t uint64) error {
	for {
		c.Lock()
		ch := c.tickc
		c.Unlock()
		if c.Now() >= t {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Clock_t) Waitfor(ctx context.Context, n uint64) error {
	return c.Waituntil(ctx, c.Now()+n)
}

// ticks every period until ctx is done.
func (c *Clock_t) Run(ctx context.Context, period time.Duration) {
	tk := time.NewTicker(period)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
			c.Tick()
		}
	}
}
