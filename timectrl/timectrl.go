package timectrl

import (
	"context"
	"sync"
	"time"
)

// Clock is the read-only view of simulation time that nodes, analytics, and
// the aggregator surface depend on.
type Clock interface {
	// CurrentTick returns the index of the most recently completed tick.
	// It is 0 before the first tick has run.
	CurrentTick() uint64
	// Now returns the simulated wall-clock time of the current tick.
	Now() time.Time
}

// Mode describes how the TickController paces tick advancement.
type Mode int

const (
	// RealTime paces each tick by its simulated duration in wall-clock time.
	RealTime Mode = iota
	// Accelerated advances as quickly as the listeners can run.
	Accelerated
)

// TickController owns global tick advancement. All per-tick work hangs off
// registered listeners, which run sequentially in registration order: a
// listener observes a world in which every earlier listener has finished the
// same tick. That ordering is the barrier between node publishing and the
// tick's aggregate readers.
type TickController struct {
	mu        sync.RWMutex
	StartTime time.Time
	TickLen   time.Duration
	Mode      Mode

	currentTick uint64
	currentTime time.Time

	listeners []func(ctx context.Context, tick uint64)
}

// NewTickController constructs a controller. tickLen is the simulated
// duration of one tick (1/fps for camera-rate simulations).
func NewTickController(start time.Time, tickLen time.Duration, mode Mode) *TickController {
	return &TickController{
		StartTime:   start,
		TickLen:     tickLen,
		Mode:        mode,
		currentTime: start,
	}
}

// CurrentTick implements Clock.
func (tc *TickController) CurrentTick() uint64 {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTick
}

// Now implements Clock.
func (tc *TickController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// AddListener registers a callback invoked on every tick. Registration
// order is execution order; register node pools before aggregate readers.
func (tc *TickController) AddListener(fn func(ctx context.Context, tick uint64)) {
	tc.listeners = append(tc.listeners, fn)
}

// Step advances exactly one tick and runs all listeners for it. It returns
// the new tick index.
func (tc *TickController) Step(ctx context.Context) uint64 {
	tc.mu.Lock()
	tc.currentTick++
	tc.currentTime = tc.currentTime.Add(tc.TickLen)
	tick := tc.currentTick
	tc.mu.Unlock()

	for _, fn := range tc.listeners {
		fn(ctx, tick)
	}
	return tick
}

// Run drives ticks until totalTicks have elapsed or ctx is cancelled. In
// RealTime mode each tick waits for its simulated duration; Accelerated mode
// runs back to back. It returns the last completed tick.
func (tc *TickController) Run(ctx context.Context, totalTicks uint64) uint64 {
	var ticker *time.Ticker
	if tc.Mode == RealTime {
		ticker = time.NewTicker(tc.TickLen)
		defer ticker.Stop()
	}

	for i := uint64(0); i < totalTicks; i++ {
		if ticker != nil {
			select {
			case <-ctx.Done():
				return tc.CurrentTick()
			case <-ticker.C:
			}
		} else if ctx.Err() != nil {
			return tc.CurrentTick()
		}
		tc.Step(ctx)
	}
	return tc.CurrentTick()
}
