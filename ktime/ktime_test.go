package ktime

import "context"
import "testing"
import "time"

func TestWaituntil(t *testing.T) {
	c := Mkclock()
	var seen []uint64
	c.Listen(func(now uint64) {
		seen = append(seen, now)
	})
	done := make(chan error)
	go func() {
		done <- c.Waituntil(context.Background(), 5)
	}()
	c.Advance(5)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("wait: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("waiter never woke")
	}
	if c.Now() != 5 || len(seen) != 5 || seen[4] != 5 {
		t.Fatalf("now %v listeners %v", c.Now(), seen)
	}
}

func TestWaitCancel(t *testing.T) {
	c := Mkclock()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Waitfor(ctx, 1); err == nil {
		t.Fatalf("canceled wait returned nil")
	}
}

func TestRun(t *testing.T) {
	c := Mkclock()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx, time.Millisecond)
	wctx, wcancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer wcancel()
	if err := c.Waitfor(wctx, 3); err != nil {
		t.Fatalf("ticker stalled: %v", err)
	}
}
