package processing

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	customlog "github.com/open-teleop/kinsim/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRejected = errors.New("rejected")

type fakeSetter struct {
	mu      sync.Mutex
	batches []map[int]float64
	err     error
	block   chan struct{}
}

func (f *fakeSetter) SetJointValues(values map[int]float64) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, values)
	return f.err
}

func (f *fakeSetter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

type fakePublisher struct {
	mu       sync.Mutex
	topics   []string
	payloads [][]byte
}

func (p *fakePublisher) PublishMessage(topic string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, data)
	return nil
}

func TestPoolAppliesInOrder(t *testing.T) {
	pool := NewCommandPool("test", 1, 16, customlog.NewNopLogger())

	var mu sync.Mutex
	var seen []float64
	pool.SetProcessor(func(cmd *Command) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, cmd.Values[0])
		return nil
	})
	pool.Start()

	for i := 0; i < 10; i++ {
		require.True(t, pool.Submit(NewCommand("test", map[int]float64{0: float64(i)})))
	}
	pool.Stop()

	assert.Equal(t, []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, seen)
	m := pool.GetMetrics()
	assert.Equal(t, int64(10), m.ProcessedCount)
	assert.Equal(t, int64(10), m.QueuedCount)
	assert.Equal(t, int64(0), m.ErrorCount)
}

func TestPoolDropsWhenFull(t *testing.T) {
	pool := NewCommandPool("test", 1, 1, customlog.NewNopLogger())
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	pool.SetProcessor(func(*Command) error {
		started <- struct{}{}
		<-release
		return nil
	})
	pool.Start()

	require.True(t, pool.Submit(NewCommand("test", nil)))
	<-started // the worker holds the first command
	require.True(t, pool.Submit(NewCommand("test", nil)))
	assert.False(t, pool.Submit(NewCommand("test", nil)))

	close(release)
	pool.Stop()
	assert.Equal(t, int64(1), pool.GetMetrics().DroppedCount)
	assert.False(t, pool.Submit(NewCommand("test", nil)), "submit after stop")
}

func TestPoolRestartAfterStop(t *testing.T) {
	pool := NewCommandPool("test", 2, 4, customlog.NewNopLogger())
	var mu sync.Mutex
	processed := 0
	pool.SetProcessor(func(*Command) error {
		mu.Lock()
		defer mu.Unlock()
		processed++
		return nil
	})

	for run := 1; run <= 3; run++ {
		pool.Start()
		require.NotPanics(t, func() {
			assert.True(t, pool.Submit(NewCommand("test", map[int]float64{0: 1})))
		}, "run %d", run)
		pool.Stop()
		assert.Equal(t, 0, pool.GetQueueLength())
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, processed)
	assert.Equal(t, int64(3), pool.GetMetrics().ProcessedCount)
}

func TestDirectorRestart(t *testing.T) {
	target := &fakeSetter{}
	d := NewCommandDirector(target, NewSourceRegistry(customlog.NewNopLogger()), customlog.NewNopLogger(),
		&DirectorOptions{Workers: 1, QueueSize: 8})
	assert.Equal(t, 8, d.QueueCapacity())

	d.Start()
	d.Stop()
	d.Start()
	defer d.Stop()

	_, err := d.Enqueue("ws", map[int]float64{0: 1})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return target.count() == 1 }, 2*time.Second, time.Millisecond)
}

func TestDirectorApplyIsSynchronous(t *testing.T) {
	target := &fakeSetter{}
	registry := NewSourceRegistry(customlog.NewNopLogger())
	d := NewCommandDirector(target, registry, customlog.NewNopLogger(), nil)

	assert.ErrorIs(t, d.Apply("http", map[int]float64{0: 1}), ErrDirectorStopped)

	d.Start()
	defer d.Stop()

	require.NoError(t, d.Apply("http", map[int]float64{0: 1}))
	assert.Equal(t, 1, target.count())

	target.err = errRejected
	assert.ErrorIs(t, d.Apply("http", map[int]float64{0: 2}), errRejected)

	info, ok := registry.GetSourceInfo("http")
	require.True(t, ok)
	assert.Equal(t, int64(1), info.Accepted)
	assert.Equal(t, int64(1), info.Rejected)
	assert.Equal(t, "rejected", info.LastError)
}

func TestDirectorEnqueueReportsResults(t *testing.T) {
	target := &fakeSetter{}
	registry := NewSourceRegistry(customlog.NewNopLogger())
	d := NewCommandDirector(target, registry, customlog.NewNopLogger(), &DirectorOptions{Workers: 1, QueueSize: 8})

	results := make(chan *ProcessResult, 8)
	d.SetResultHandler(func(r *ProcessResult) { results <- r })
	d.Start()

	id, err := d.Enqueue("ws", map[int]float64{0: 5, 1: 6})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	select {
	case r := <-results:
		assert.Equal(t, id, r.CommandID)
		assert.Equal(t, "ws", r.Source)
		assert.Equal(t, 2, r.Mates)
		assert.NoError(t, r.Error)
	case <-time.After(2 * time.Second):
		t.Fatal("no result for queued command")
	}

	d.Stop()
	_, err = d.Enqueue("ws", map[int]float64{0: 5})
	assert.ErrorIs(t, err, ErrDirectorStopped)
	assert.Equal(t, []string{"ws"}, registry.GetAllSources())
}

func TestLoggingResultHandlerPublishes(t *testing.T) {
	pub := &fakePublisher{}
	h := NewLoggingResultHandler(customlog.NewNopLogger(), pub).CreateHandlerFunc()

	h(&ProcessResult{CommandID: "a", Source: "zmq", Mates: 3})
	h(&ProcessResult{CommandID: "b", Source: "ws", Error: errRejected})
	h(nil)

	require.Len(t, pub.topics, 2)
	assert.Equal(t, "kinsim.command.zmq", pub.topics[0])
	assert.Equal(t, "kinsim.command.ws", pub.topics[1])

	var msg map[string]interface{}
	require.NoError(t, json.Unmarshal(pub.payloads[1], &msg))
	assert.Equal(t, "ERROR", msg["status"])
	assert.Equal(t, "rejected", msg["error"])
	assert.Equal(t, "b", msg["command_id"])
}
