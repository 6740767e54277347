package kinematics

import (
	"sync"
	"time"
)

// Stats summarizes the engine's cycles since it was created.
type Stats struct {
	Cycles       uint64        `json:"cycles"`
	FailedCycles uint64        `json:"failed_cycles"`
	Published    uint64        `json:"published"`
	MinCompute   time.Duration `json:"min_compute_ns"`
	AvgCompute   time.Duration `json:"avg_compute_ns"`
	MaxCompute   time.Duration `json:"max_compute_ns"`
	LastPeriod   time.Duration `json:"last_period_ns"`
	// StaleCommands counts joint values overwritten before a cycle consumed them.
	StaleCommands uint64 `json:"stale_commands"`
}

type statsRecorder struct {
	mu           sync.Mutex
	cycles       uint64
	failed       uint64
	published    uint64
	min, max     time.Duration
	totalCompute time.Duration
	lastPeriod   time.Duration
}

func (r *statsRecorder) cycle(compute time.Duration, published int, failed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cycles++
	if failed {
		r.failed++
	}
	r.published += uint64(published)
	if r.cycles == 1 || compute < r.min {
		r.min = compute
	}
	if compute > r.max {
		r.max = compute
	}
	r.totalCompute += compute
}

func (r *statsRecorder) period(d time.Duration) {
	r.mu.Lock()
	r.lastPeriod = d
	r.mu.Unlock()
}

func (r *statsRecorder) snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Stats{
		Cycles:       r.cycles,
		FailedCycles: r.failed,
		Published:    r.published,
		MinCompute:   r.min,
		MaxCompute:   r.max,
		LastPeriod:   r.lastPeriod,
	}
	if r.cycles > 0 {
		s.AvgCompute = r.totalCompute / time.Duration(r.cycles)
	}
	return s
}
