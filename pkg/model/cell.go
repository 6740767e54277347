package model

import (
	"errors"
	"sync"
	"time"

	"github.com/open-teleop/kinsim/pkg/transform"
)

// ErrLimitClamped is returned by ValueCell.Put when a value fell outside the
// mate's limits and was clamped. The clamped value is still stored.
var ErrLimitClamped = errors.New("joint value clamped to mate limits")

// Limits bounds the values a mate accepts.
type Limits struct {
	Min float64
	Max float64
}

// ValueCell is a single-slot mailbox for a mate's commanded value. Any number
// of producers may Put; a single consumer Takes. A Put overwrites a value that
// has not been taken yet, so the consumer only ever sees the latest one.
type ValueCell struct {
	mu      sync.Mutex
	value   float64
	pending bool
	limits  *Limits
	drops   uint64
	puts    uint64
}

// NewValueCell returns a cell already holding initial, so the first engine
// cycle places every body at its initial joint value.
func NewValueCell(initial float64, limits *Limits) *ValueCell {
	c := &ValueCell{limits: limits}
	_ = c.Put(initial)
	return c
}

// Put stores v, replacing any pending value.
func (c *ValueCell) Put(v float64) error {
	var err error
	if c.limits != nil {
		switch {
		case v > c.limits.Max:
			v, err = c.limits.Max, ErrLimitClamped
		case v < c.limits.Min:
			v, err = c.limits.Min, ErrLimitClamped
		}
	}

	c.mu.Lock()
	if c.pending {
		c.drops++
	}
	c.value = v
	c.pending = true
	c.puts++
	c.mu.Unlock()
	return err
}

// Take drains the cell, returning the latest value if one was pending.
func (c *ValueCell) Take() (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.pending {
		return 0, false
	}
	c.pending = false
	return c.value, true
}

// Pending reports whether a value is waiting to be taken.
func (c *ValueCell) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Drops is the number of values overwritten before the consumer saw them.
func (c *ValueCell) Drops() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drops
}

// Puts is the number of values ever stored.
func (c *ValueCell) Puts() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.puts
}

// Pose is one published world pose of a body.
type Pose struct {
	Body      int
	Seq       uint64
	Stamp     time.Time
	Transform transform.Transform
}

// PoseCell holds the most recently published pose of a body. Readers poll it
// and never block the publisher beyond a short critical section.
type PoseCell struct {
	mu   sync.RWMutex
	pose Pose
	ok   bool
}

// NewPoseCell returns an empty cell for body.
func NewPoseCell(body int) *PoseCell {
	return &PoseCell{pose: Pose{Body: body}}
}

// Publish replaces the latest pose and returns its sequence number.
func (c *PoseCell) Publish(t transform.Transform) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pose.Seq++
	c.pose.Stamp = time.Now()
	c.pose.Transform = t
	c.ok = true
	return c.pose.Seq
}

// Latest returns the most recent pose, or false if none was published yet.
func (c *PoseCell) Latest() (Pose, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pose, c.ok
}
