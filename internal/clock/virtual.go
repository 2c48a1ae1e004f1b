package clock

import (
	"sync"
	"time"
)

// VirtualClock stands still until Advance is called. Tests use it to expire
// cached recordings and to step replay instances through their gaps. Safe
// for concurrent use.
type VirtualClock struct {
	mu    sync.RWMutex
	now   time.Time
	timer []timer // unfired After calls
}

type timer struct {
	at time.Time
	ch chan time.Time
}

func NewVirtualClock(start time.Time) *VirtualClock {
	return &VirtualClock{now: start}
}

func (c *VirtualClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

func (c *VirtualClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// After fires immediately for d <= 0; otherwise it fires inside the Advance
// call that reaches now+d.
func (c *VirtualClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- c.now
		return ch
	}
	c.timer = append(c.timer, timer{at: c.now.Add(d), ch: ch})
	return ch
}

// Advance moves the clock forward by d. A negative d panics.
func (c *VirtualClock) Advance(d time.Duration) {
	if d < 0 {
		panic("clock: cannot advance by negative duration")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
	kept := c.timer[:0]
	for _, t := range c.timer {
		if t.at.After(c.now) {
			kept = append(kept, t)
			continue
		}
		t.ch <- c.now
	}
	c.timer = kept
}

// Pending reports how many After channels have not fired yet, so a test can
// wait for a replay instance to block before advancing.
func (c *VirtualClock) Pending() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.timer)
}
