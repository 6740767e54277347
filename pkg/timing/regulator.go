// Package timing provides the fixed-period pacing shared by every periodic
// loop in the service.
package timing

import (
	"context"
	"sync"
	"time"
)

// Clock abstracts wall time so tests can drive a Regulator deterministically.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// SystemClock is the real wall clock.
var SystemClock Clock = systemClock{}

// Regulator paces a loop to a desired interval. Each Regulate call sleeps for
// whatever is left of the interval since the previous call and then starts the
// next interval from "now"; lost time is not made up in later cycles.
type Regulator struct {
	mu      sync.Mutex
	clock   Clock
	desired time.Duration
	tic     time.Time
}

// NewRegulator returns a Regulator whose first interval starts now.
func NewRegulator(interval time.Duration) *Regulator {
	return NewRegulatorWithClock(interval, SystemClock)
}

// NewRegulatorWithClock is NewRegulator with an explicit clock.
func NewRegulatorWithClock(interval time.Duration, clock Clock) *Regulator {
	return &Regulator{
		clock:   clock,
		desired: interval,
		tic:     clock.Now(),
	}
}

// Regulate blocks until at least the desired interval has passed since the
// previous call and returns the interval that actually elapsed.
func (r *Regulator) Regulate() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	elapsed := r.clock.Now().Sub(r.tic)
	if elapsed < r.desired {
		r.clock.Sleep(r.desired - elapsed)
	}
	now := r.clock.Now()
	actual := now.Sub(r.tic)
	r.tic = now
	return actual
}

// Interval returns the desired interval.
func (r *Regulator) Interval() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.desired
}

// SetInterval changes the desired interval, effective from the next Regulate.
func (r *Regulator) SetInterval(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.desired = d
}

// Run calls fn once per interval until ctx is cancelled. The context is checked
// once per cycle, before fn runs. observe, if not nil, receives the measured
// period after every cycle.
func Run(ctx context.Context, r *Regulator, fn func(ctx context.Context), observe func(period time.Duration)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		fn(ctx)

		period := r.Regulate()
		if observe != nil {
			observe(period)
		}
	}
}
