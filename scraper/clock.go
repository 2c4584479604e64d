package scraper

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"
)

// ErrWaitTimeout is returned by WaitFor when the condition never held.
var ErrWaitTimeout = errors.New("wait timed out")

// Clock is the source of time for every wait and delay of a run.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, whichever comes first.
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock returns the wall clock.
func SystemClock() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// VirtualClock advances instantly on Sleep. Safe for concurrent use.
type VirtualClock struct {
	mu    sync.Mutex
	now   time.Time
	slept time.Duration
}

// NewVirtualClock starts a virtual clock at start.
func NewVirtualClock(start time.Time) *VirtualClock {
	return &VirtualClock{now: start}
}

func (c *VirtualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *VirtualClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.slept += d
	c.mu.Unlock()
	return nil
}

// Slept returns the total virtual time spent sleeping.
func (c *VirtualClock) Slept() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slept
}

// Range is an inclusive [Min, Max] delay window.
type Range struct {
	Min time.Duration
	Max time.Duration
}

// Pick returns a uniformly random duration within the range.
func (r Range) Pick() time.Duration {
	if r.Max <= r.Min {
		return max(r.Min, 0)
	}
	return max(r.Min+rand.N(r.Max-r.Min+1), 0)
}

// WaitFor polls cond every interval until it returns true, the timeout
// elapses on clock, or ctx is done.
func WaitFor(ctx context.Context, clock Clock, timeout, interval time.Duration, cond func(context.Context) bool) error {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	deadline := clock.Now().Add(timeout)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if cond(ctx) {
			return nil
		}
		if !clock.Now().Before(deadline) {
			return ErrWaitTimeout
		}
		if err := clock.Sleep(ctx, interval); err != nil {
			return err
		}
	}
}
