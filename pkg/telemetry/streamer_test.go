package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/open-teleop/kinsim/pkg/chain"
	"github.com/open-teleop/kinsim/pkg/kinematics"
	customlog "github.com/open-teleop/kinsim/pkg/log"
	"github.com/open-teleop/kinsim/pkg/model"
	"github.com/open-teleop/kinsim/pkg/transform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

type recordingPublisher struct {
	mu    sync.Mutex
	names []string
	err   error
}

func (p *recordingPublisher) PublishPose(name string, _ model.Pose) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.names = append(p.names, name)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.names)
}

func arm(t *testing.T) (*chain.Tree, *kinematics.Engine) {
	t.Helper()
	root := transform.Identity()
	bodies := []*model.Body{
		{
			Index: 0, Name: "base", IsFixed: true, InitialPose: &root,
			Joints: []model.Joint{{Index: 0, Transform: transform.Translation(r3.Vec{X: 100})}},
		},
		{
			Index: 1, Name: "link",
			Joints: []model.Joint{
				{Index: 0, Transform: transform.Translation(r3.Vec{X: -100})},
				{Index: 1, Transform: transform.Translation(r3.Vec{X: 100})},
			},
		},
		{
			Index: 2, Name: "tool",
			Joints: []model.Joint{{Index: 0, Transform: transform.Translation(r3.Vec{X: -100})}},
		},
	}
	mates := []*model.Mate{
		{Index: 0, Bearing: model.Endpoint{Body: 0, Joint: 0}, Shaft: model.Endpoint{Body: 1, Joint: 0}},
		{Index: 1, Bearing: model.Endpoint{Body: 1, Joint: 1}, Shaft: model.Endpoint{Body: 2, Joint: 0}},
	}
	sys := model.NewSystem("arm", bodies, mates)
	rootIndex, err := chain.Validate(sys)
	require.NoError(t, err)
	tree, err := chain.Build(sys, rootIndex)
	require.NoError(t, err)
	return tree, kinematics.New(tree, kinematics.WithLogger(customlog.NewNopLogger()))
}

func TestTickForwardsOnlyChangedPoses(t *testing.T) {
	tree, engine := arm(t)
	pub := &recordingPublisher{}
	s := NewStreamer(tree, pub, time.Millisecond, customlog.NewNopLogger())

	// Only the root has a pose before the first cycle
	assert.Equal(t, 1, s.Tick())
	assert.Equal(t, []string{"base"}, pub.names)

	_, err := engine.Step()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, s.Tick(), 2)
	assert.Equal(t, 0, s.Tick(), "nothing changed since the last tick")

	// Both mates get a fresh value; the base stays put
	require.NoError(t, engine.SetJointValues(map[int]float64{0: 0, 1: 90}))
	_, err = engine.Step()
	require.NoError(t, err)
	assert.Equal(t, 2, s.Tick())

	st := s.Stats()
	assert.Equal(t, uint64(4), st.Ticks)
	assert.Equal(t, uint64(pub.count()), st.Published)
}

func TestSubscribersSeeLatestBatch(t *testing.T) {
	tree, engine := arm(t)
	s := NewStreamer(tree, nil, time.Millisecond, customlog.NewNopLogger())

	ch, cancel := s.Subscribe()
	assert.Equal(t, 1, s.Stats().Subscribers)

	s.Tick()
	_, err := engine.Step()
	require.NoError(t, err)
	s.Tick()

	// Two ticks, one slot: the first batch was replaced
	batch := <-ch
	names := make([]string, 0, len(batch))
	for _, r := range batch {
		names = append(names, r.Name)
	}
	assert.Contains(t, names, "tool")
	select {
	case <-ch:
		t.Fatal("expected a single pending batch")
	default:
	}

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, s.Stats().Subscribers)
}

func TestPublishErrorsAreCounted(t *testing.T) {
	tree, _ := arm(t)
	pub := &recordingPublisher{err: errors.New("socket closed")}
	s := NewStreamer(tree, pub, time.Millisecond, customlog.NewNopLogger())

	s.Tick()
	assert.Equal(t, uint64(1), s.Stats().Errors)
	assert.Equal(t, uint64(0), s.Stats().Published)
}

func TestRunStopsOnCancel(t *testing.T) {
	tree, _ := arm(t)
	pub := &recordingPublisher{}
	s := NewStreamer(tree, pub, time.Millisecond, customlog.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return pub.count() == 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("streamer did not stop")
	}
}
