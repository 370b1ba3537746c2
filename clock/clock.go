// Package clock provides the millisecond time source used by polling drivers.
//
// NowMillis wraps around like a microcontroller tick counter. Callers compare
// timestamps by subtraction (now - last), which stays correct across a single
// wraparound.
package clock

import (
	"context"
	"sync"
	"time"
)

type Clock interface {
	// NowMillis returns a monotonically non-decreasing, wrapping counter.
	NowMillis() uint32
	// Sleep blocks for d or until ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

// System counts milliseconds since it was created using the monotonic clock.
type System struct {
	start time.Time
}

func NewSystem() *System {
	return &System{start: time.Now()}
}

func (c *System) NowMillis() uint32 {
	return uint32(time.Since(c.start).Milliseconds())
}

func (c *System) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Manual is a clock driven by hand. Sleep advances it instead of blocking.
type Manual struct {
	mx  sync.Mutex
	now uint32
	// Slept accumulates the durations passed to Sleep.
	slept time.Duration
}

func NewManual(start uint32) *Manual {
	return &Manual{now: start}
}

func (c *Manual) NowMillis() uint32 {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.now
}

func (c *Manual) Set(ms uint32) {
	c.mx.Lock()
	c.now = ms
	c.mx.Unlock()
}

// Advance moves the clock forward, wrapping like the hardware counter.
func (c *Manual) Advance(d time.Duration) {
	c.mx.Lock()
	c.now += uint32(d.Milliseconds())
	c.mx.Unlock()
}

func (c *Manual) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mx.Lock()
	c.now += uint32(d.Milliseconds())
	c.slept += d
	c.mx.Unlock()
	return nil
}

// Slept returns the total time requested through Sleep.
func (c *Manual) Slept() time.Duration {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.slept
}
