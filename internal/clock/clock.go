// Package clock is the time source for rrview. Cache entries are stamped
// and expired with it, replay gaps are slept on it, and the request log
// measures latency with it, so tests can drive all three from a
// VirtualClock instead of waiting on the wall clock.
package clock

import (
	"context"
	"time"
)

type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
	// After returns a channel that receives the clock's time once d has
	// passed on it.
	After(d time.Duration) <-chan time.Time
}

// RealClock is the wall clock used by the serve and play commands.
type RealClock struct{}

func NewRealClock() *RealClock {
	return &RealClock{}
}

func (*RealClock) Now() time.Time                         { return time.Now() }
func (*RealClock) Since(t time.Time) time.Duration        { return time.Since(t) }
func (*RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Sleep waits d on c. It returns ctx.Err() if ctx ends first, which is how
// a destroyed replay instance stops mid-gap.
func Sleep(ctx context.Context, c Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.After(d):
		return nil
	}
}
