package processing

import (
	"errors"
	"fmt"
	"sync"
	"time"

	customlog "github.com/open-teleop/kinsim/pkg/log"
)

var (
	// ErrDirectorStopped is returned when a command arrives after Stop.
	ErrDirectorStopped = errors.New("command director is not running")
	// ErrQueueFull is returned when the asynchronous queue cannot take a command.
	ErrQueueFull = errors.New("command queue is full")
)

// JointSetter applies a full joint-value batch atomically.
type JointSetter interface {
	SetJointValues(values map[int]float64) error
}

// DirectorOptions holds configuration options for the CommandDirector
type DirectorOptions struct {
	Workers   int
	QueueSize int
}

// CommandDirector is the single entry point for joint commands. Request/reply
// transports call Apply and get the engine's verdict; streaming transports call
// Enqueue and learn the outcome from the result handler.
type CommandDirector struct {
	logger   customlog.Logger
	target   JointSetter
	registry *SourceRegistry
	pool     *CommandPool
	running  bool
	mu       sync.RWMutex
}

// NewCommandDirector creates a director that applies commands to target.
func NewCommandDirector(target JointSetter, registry *SourceRegistry, logger customlog.Logger, options *DirectorOptions) *CommandDirector {
	if options == nil {
		options = &DirectorOptions{
			Workers:   1,
			QueueSize: 64,
		}
	}

	d := &CommandDirector{
		logger:   customlog.Component(logger, "director"),
		target:   target,
		registry: registry,
	}
	d.pool = NewCommandPool("commands", options.Workers, options.QueueSize, logger)
	d.pool.SetProcessor(func(cmd *Command) error {
		return d.apply(cmd.Source, cmd.Values)
	})

	d.logger.Infof("Command director initialized: pool=%s workers=%d queue=%d",
		d.pool.GetName(), options.Workers, d.pool.GetQueueCapacity())
	return d
}

// SetResultHandler sets the handler notified after each queued command
func (d *CommandDirector) SetResultHandler(handler ResultHandler) {
	d.pool.SetResultHandler(handler)
}

// Start starts the asynchronous pool
func (d *CommandDirector) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}
	d.pool.Start()
	d.running = true
}

// Stop drains the asynchronous pool
func (d *CommandDirector) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.mu.Unlock()

	d.pool.Stop()
}

// Apply hands a batch to the engine synchronously.
func (d *CommandDirector) Apply(source string, values map[int]float64) error {
	d.mu.RLock()
	running := d.running
	d.mu.RUnlock()

	if !running {
		return ErrDirectorStopped
	}
	return d.apply(source, values)
}

// Enqueue queues a batch for a pool worker and returns its command id.
func (d *CommandDirector) Enqueue(source string, values map[int]float64) (string, error) {
	d.mu.RLock()
	running := d.running
	d.mu.RUnlock()

	if !running {
		return "", ErrDirectorStopped
	}

	cmd := NewCommand(source, values)
	if !d.pool.Submit(cmd) {
		err := fmt.Errorf("%w: command %s from %s", ErrQueueFull, cmd.ID, source)
		d.registry.Record(source, cmd.Received.UnixNano(), err)
		return "", err
	}
	return cmd.ID, nil
}

// Registry returns the per-source statistics.
func (d *CommandDirector) Registry() *SourceRegistry {
	return d.registry
}

// PoolMetrics returns the asynchronous pool's metrics.
func (d *CommandDirector) PoolMetrics() PoolMetrics {
	return d.pool.GetMetrics()
}

// QueueLength returns the number of commands waiting in the pool.
func (d *CommandDirector) QueueLength() int {
	return d.pool.GetQueueLength()
}

// QueueCapacity returns how many commands the pool can hold before dropping.
func (d *CommandDirector) QueueCapacity() int {
	return d.pool.GetQueueCapacity()
}

func (d *CommandDirector) apply(source string, values map[int]float64) error {
	err := d.target.SetJointValues(values)
	d.registry.Record(source, time.Now().UnixNano(), err)
	if err != nil {
		d.logger.Debugf("Rejected batch from %s: %v", source, err)
	}
	return err
}
