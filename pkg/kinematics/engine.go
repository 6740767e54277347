// Package kinematics runs the forward-kinematics loop over a validated tree.
//
// Every cycle walks the tree from the root, drains each mate's value cell,
// composes
//
//	world(node) = world(parent) · parentJoint · localMotion(value) · inv(selfJoint)
//
// and publishes the result to the body's pose cell. A node is recomputed only
// when it received a new value or its parent moved in the same pass, so a
// quiet mechanism publishes nothing.
package kinematics

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/open-teleop/kinsim/pkg/chain"
	customlog "github.com/open-teleop/kinsim/pkg/log"
	"github.com/open-teleop/kinsim/pkg/model"
	"github.com/open-teleop/kinsim/pkg/timing"
	"github.com/open-teleop/kinsim/pkg/transform"
)

var (
	// ErrSizeMismatch rejects a batch whose size differs from the mate count.
	ErrSizeMismatch = errors.New("joint value batch size does not match mate count")
	// ErrUnknownKey rejects a batch naming a mate that is not in the tree.
	ErrUnknownKey = errors.New("unknown mate in joint value batch")
	// ErrRootPoseUndefined fails a cycle when the root has no world pose.
	ErrRootPoseUndefined = errors.New("root pose undefined")
	// ErrNonFiniteValue rejects a batch carrying NaN or an infinity.
	ErrNonFiniteValue = errors.New("non-finite joint value")

	ErrAlreadyStarted = errors.New("engine already started")
	ErrStopped        = errors.New("engine stopped")
)

// State is the engine lifecycle state.
type State int

const (
	Idle State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Engine owns a kinematic tree and keeps the bodies' world poses current.
type Engine struct {
	tree     *chain.Tree
	logger   customlog.Logger
	sink     DiagnosticSink
	clock    timing.Clock
	interval time.Duration
	policy   SnapshotPolicy
	session  string

	// Loop-owned state, guarded by cycleMu so Step and the loop never overlap.
	cycleMu  sync.Mutex
	cycleNo  uint64
	world    []transform.Transform
	changed  []bool
	fresh    []float64
	hasFresh []bool

	valuesMu sync.RWMutex
	applied  []float64

	rootMu    sync.Mutex
	root      *transform.Transform
	rootDirty bool

	stateMu sync.Mutex
	state   State
	cancel  context.CancelFunc
	done    chan struct{}

	stats statsRecorder
}

// New prepares an engine for tree. The root's world pose is taken from the
// root body's InitialPose and may be replaced later with SetRootPose.
func New(tree *chain.Tree, opts ...Option) *Engine {
	n := tree.Len()
	e := &Engine{
		tree:      tree,
		logger:    customlog.NewNopLogger(),
		sink:      nopSink{},
		clock:     timing.SystemClock,
		interval:  DefaultInterval,
		policy:    SnapshotPerNode,
		session:   uuid.New().String(),
		world:     make([]transform.Transform, n),
		changed:   make([]bool, n),
		fresh:     make([]float64, n),
		hasFresh:  make([]bool, n),
		applied:   make([]float64, n),
		rootDirty: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = customlog.Component(e.logger, "engine")

	if rp := tree.Node(tree.Root()).Body.InitialPose; rp != nil {
		root := *rp
		e.root = &root
	}
	tree.Walk(func(i int, node *chain.Node) {
		if node.Mate != nil {
			e.applied[i] = node.Mate.InitialValue
		}
	})
	return e
}

// SessionID identifies this engine instance on published frames.
func (e *Engine) SessionID() string { return e.session }

// Tree returns the tree the engine drives.
func (e *Engine) Tree() *chain.Tree { return e.tree }

// Interval is the configured recompute period.
func (e *Engine) Interval() time.Duration { return e.interval }

// Policy is the configured snapshot policy.
func (e *Engine) Policy() SnapshotPolicy { return e.policy }

// State returns the lifecycle state.
func (e *Engine) State() State {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.state
}

// Start launches the recompute loop. The loop runs until ctx is cancelled or
// Stop is called.
func (e *Engine) Start(ctx context.Context) error {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	switch e.state {
	case Running:
		return ErrAlreadyStarted
	case Stopped:
		return ErrStopped
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	e.cancel = cancel
	e.done = done
	e.state = Running

	regulator := timing.NewRegulatorWithClock(e.interval, e.clock)
	go func() {
		defer close(done)
		err := timing.Run(ctx, regulator, func(context.Context) {
			_, _ = e.cycle()
		}, e.stats.period)
		e.logger.Infof("Recompute loop exited: %v", err)

		e.stateMu.Lock()
		e.state = Stopped
		e.stateMu.Unlock()
	}()

	e.logger.Infof("Engine started: bodies=%d mates=%d interval=%v snapshot=%v session=%s",
		e.tree.Len(), len(e.tree.Cells()), e.interval, e.policy, e.session)
	return nil
}

// Stop cancels the loop and waits for it to exit. It is safe to call more
// than once, and before Start.
func (e *Engine) Stop() {
	e.stateMu.Lock()
	switch e.state {
	case Running:
		e.cancel()
		e.state = Stopped
	case Idle:
		e.state = Stopped
	}
	done := e.done
	e.stateMu.Unlock()

	if done != nil {
		<-done
	}
}

// Done is closed when the loop goroutine has exited. It is nil before Start.
func (e *Engine) Done() <-chan struct{} {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.done
}

// Step runs one cycle synchronously and returns the number of poses
// published. Failures are also reported to the sink, as in the loop.
func (e *Engine) Step() (int, error) {
	return e.cycle()
}

// SetJointValues commands every mate at once. The batch must name each mate
// of the tree exactly once; otherwise it is rejected and no cell is written.
// Values outside a mate's limits are clamped and logged; NaN and infinities
// reject the whole batch.
func (e *Engine) SetJointValues(values map[int]float64) error {
	cells := e.tree.Cells()
	if len(values) != len(cells) {
		return fmt.Errorf("%w: got %d values for %d mates", ErrSizeMismatch, len(values), len(cells))
	}
	for mate, v := range values {
		if _, ok := cells[mate]; !ok {
			return fmt.Errorf("%w: mate %d", ErrUnknownKey, mate)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: mate %d got %g", ErrNonFiniteValue, mate, v)
		}
	}

	for mate, v := range values {
		if err := cells[mate].Put(v); err != nil {
			e.logger.Warnf("Mate %d: %v (requested %g)", mate, err, v)
		}
	}
	return nil
}

// JointValues returns the value last applied to each mate by the loop.
func (e *Engine) JointValues() map[int]float64 {
	e.valuesMu.RLock()
	defer e.valuesMu.RUnlock()

	out := make(map[int]float64, len(e.tree.Cells()))
	e.tree.Walk(func(i int, n *chain.Node) {
		if n.Mate != nil {
			out[n.Mate.Index] = e.applied[i]
		}
	})
	return out
}

// SetRootPose replaces the root's world pose. The whole tree is recomputed on
// the next cycle.
func (e *Engine) SetRootPose(t transform.Transform) {
	e.rootMu.Lock()
	defer e.rootMu.Unlock()
	e.root = &t
	e.rootDirty = true
}

// Pose returns the latest published pose of a body.
func (e *Engine) Pose(body int) (model.Pose, bool) {
	i, ok := e.tree.NodeOfBody(body)
	if !ok {
		return model.Pose{}, false
	}
	return e.tree.Node(i).Body.Poses().Latest()
}

// Poses returns the latest published pose of every body that has one, in
// tree order.
func (e *Engine) Poses() []model.Pose {
	out := make([]model.Pose, 0, e.tree.Len())
	e.tree.Walk(func(_ int, n *chain.Node) {
		if p, ok := n.Body.Poses().Latest(); ok {
			out = append(out, p)
		}
	})
	return out
}

// Stats returns cycle counters and compute-time figures.
func (e *Engine) Stats() Stats {
	s := e.stats.snapshot()
	for _, c := range e.tree.Cells() {
		s.StaleCommands += c.Drops()
	}
	return s
}

func (e *Engine) cycle() (int, error) {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()

	e.cycleNo++
	start := e.clock.Now()
	published, err := e.recompute()
	e.stats.cycle(e.clock.Now().Sub(start), published, err != nil)

	if err != nil {
		err = fmt.Errorf("cycle %d: %w", e.cycleNo, err)
		e.sink.Report(err)
	}
	return published, err
}

func (e *Engine) recompute() (int, error) {
	root, rootChanged, ok := e.takeRoot()
	if !ok {
		return 0, ErrRootPoseUndefined
	}

	if e.policy == SnapshotAtCycleStart {
		e.tree.Walk(func(i int, n *chain.Node) {
			if n.Mate != nil {
				e.fresh[i], e.hasFresh[i] = n.Mate.Value().Take()
			}
		})
	}

	published := 0
	e.tree.Walk(func(i int, n *chain.Node) {
		if n.IsRoot() {
			e.world[i] = root
			e.changed[i] = rootChanged
		} else {
			changed := e.changed[n.Parent]
			if v, ok := e.take(i, n); ok {
				e.valuesMu.Lock()
				e.applied[i] = v
				e.valuesMu.Unlock()
				changed = true
			}
			e.changed[i] = changed
			if changed {
				e.world[i] = transform.Compose(
					e.world[n.Parent],
					n.ParentBodyToParentJoint,
					model.LocalMotion(n.Motion, e.applied[i]),
					n.SelfJointToBody,
				)
			}
		}

		if e.changed[i] {
			n.Body.Poses().Publish(e.world[i])
			published++
		}
	})
	return published, nil
}

func (e *Engine) take(i int, n *chain.Node) (float64, bool) {
	if e.policy == SnapshotAtCycleStart {
		v, ok := e.fresh[i], e.hasFresh[i]
		e.hasFresh[i] = false
		return v, ok
	}
	return n.Mate.Value().Take()
}

func (e *Engine) takeRoot() (transform.Transform, bool, bool) {
	e.rootMu.Lock()
	defer e.rootMu.Unlock()
	if e.root == nil {
		return transform.Transform{}, false, false
	}
	changed := e.rootDirty
	e.rootDirty = false
	return *e.root, changed, true
}
