// Package telemetry forwards published poses to observers: a topic publisher
// and any number of in-process subscribers.
package telemetry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/open-teleop/kinsim/pkg/chain"
	"github.com/open-teleop/kinsim/pkg/kinematics"
	customlog "github.com/open-teleop/kinsim/pkg/log"
	"github.com/open-teleop/kinsim/pkg/model"
	"github.com/open-teleop/kinsim/pkg/timing"
)

// PosePublisher sends one body pose to remote observers.
type PosePublisher interface {
	PublishPose(name string, pose model.Pose) error
}

// Stats counts streamer activity.
type Stats struct {
	Ticks       uint64 `json:"ticks"`
	Published   uint64 `json:"published"`
	Errors      uint64 `json:"errors"`
	Subscribers int    `json:"subscribers"`
}

// Streamer polls every body's pose cell at its own pace and forwards the
// poses whose sequence number advanced since the previous tick. It never
// touches the engine, only the cells the engine publishes into.
type Streamer struct {
	tree      *chain.Tree
	publisher PosePublisher
	interval  time.Duration
	logger    customlog.Logger

	lastSeq []uint64

	mu     sync.Mutex
	subs   map[int]chan []kinematics.PoseReport
	nextID int

	ticks     atomic.Uint64
	published atomic.Uint64
	errors    atomic.Uint64
}

// NewStreamer creates a streamer over tree. publisher may be nil when only
// in-process subscribers are wanted.
func NewStreamer(tree *chain.Tree, publisher PosePublisher, interval time.Duration, logger customlog.Logger) *Streamer {
	if interval <= 0 {
		interval = 20 * time.Millisecond
	}
	return &Streamer{
		tree:      tree,
		publisher: publisher,
		interval:  interval,
		logger:    customlog.Component(logger, "telemetry"),
		lastSeq:   make([]uint64, tree.Len()),
		subs:      make(map[int]chan []kinematics.PoseReport),
	}
}

// Run ticks until ctx is cancelled.
func (s *Streamer) Run(ctx context.Context) error {
	s.logger.Infof("Pose streamer started: interval=%v", s.interval)
	err := timing.Run(ctx, timing.NewRegulator(s.interval), func(context.Context) {
		s.Tick()
	}, nil)
	s.logger.Infof("Pose streamer stopped")
	return err
}

// Tick forwards every pose that changed since the last tick and returns how
// many there were. Tick must not be called concurrently.
func (s *Streamer) Tick() int {
	s.ticks.Add(1)

	var changed []kinematics.PoseReport
	s.tree.Walk(func(i int, n *chain.Node) {
		pose, ok := n.Body.Poses().Latest()
		if !ok || pose.Seq == s.lastSeq[i] {
			return
		}
		s.lastSeq[i] = pose.Seq
		changed = append(changed, kinematics.NewPoseReport(n.Body.Name, pose))

		if s.publisher == nil {
			return
		}
		if err := s.publisher.PublishPose(n.Body.Name, pose); err != nil {
			if s.errors.Add(1) == 1 {
				s.logger.Warnf("Failed to publish pose of %s: %v", n.Body.Name, err)
			}
			return
		}
		s.published.Add(1)
	})

	if len(changed) > 0 {
		s.broadcast(changed)
	}
	return len(changed)
}

// Subscribe registers an observer. Each delivery is one tick's worth of
// changed poses; a slow observer only ever sees the latest one. The returned
// function unregisters the observer and closes its channel.
func (s *Streamer) Subscribe() (<-chan []kinematics.PoseReport, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan []kinematics.PoseReport, 1)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

// Stats returns the streamer counters.
func (s *Streamer) Stats() Stats {
	s.mu.Lock()
	subs := len(s.subs)
	s.mu.Unlock()

	return Stats{
		Ticks:       s.ticks.Load(),
		Published:   s.published.Load(),
		Errors:      s.errors.Load(),
		Subscribers: subs,
	}
}

func (s *Streamer) broadcast(reports []kinematics.PoseReport) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range s.subs {
		// Replace an undelivered batch rather than block
		select {
		case <-ch:
		default:
		}
		ch <- reports
	}
}
