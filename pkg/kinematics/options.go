package kinematics

import (
	"fmt"
	"strings"
	"time"

	customlog "github.com/open-teleop/kinsim/pkg/log"
	"github.com/open-teleop/kinsim/pkg/timing"
)

// DefaultInterval is the recompute period used when none is configured.
const DefaultInterval = time.Millisecond

// SnapshotPolicy decides when the engine drains the mate value cells during a
// cycle.
type SnapshotPolicy int

const (
	// SnapshotPerNode drains each mate's cell as its node is visited. Branches
	// visited later in a pass may see fresher commands than earlier ones.
	SnapshotPerNode SnapshotPolicy = iota
	// SnapshotAtCycleStart drains every cell before the traversal, so one pass
	// works from a single consistent set of joint values.
	SnapshotAtCycleStart
)

func (p SnapshotPolicy) String() string {
	switch p {
	case SnapshotPerNode:
		return "per_node"
	case SnapshotAtCycleStart:
		return "cycle_start"
	default:
		return fmt.Sprintf("SnapshotPolicy(%d)", int(p))
	}
}

// ParseSnapshotPolicy accepts the names produced by SnapshotPolicy.String.
// An empty string selects SnapshotPerNode.
func ParseSnapshotPolicy(s string) (SnapshotPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "per_node":
		return SnapshotPerNode, nil
	case "cycle_start":
		return SnapshotAtCycleStart, nil
	default:
		return 0, fmt.Errorf("unknown snapshot policy %q", s)
	}
}

// DiagnosticSink receives per-cycle failures. Report must not block.
type DiagnosticSink interface {
	Report(err error)
}

type nopSink struct{}

func (nopSink) Report(error) {}

// Option configures an Engine.
type Option func(*Engine)

// WithInterval sets the recompute period.
func WithInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithSnapshotPolicy selects when value cells are drained.
func WithSnapshotPolicy(p SnapshotPolicy) Option {
	return func(e *Engine) { e.policy = p }
}

func WithLogger(l customlog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func WithSink(s DiagnosticSink) Option {
	return func(e *Engine) { e.sink = s }
}

// WithClock replaces the wall clock used to pace the loop.
func WithClock(c timing.Clock) Option {
	return func(e *Engine) { e.clock = c }
}
