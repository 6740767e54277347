package processing

import (
	"sync"
	"time"

	"github.com/google/uuid"
	customlog "github.com/open-teleop/kinsim/pkg/log"
)

// Command is one joint-value batch waiting to be applied.
type Command struct {
	ID       string
	Source   string
	Values   map[int]float64
	Received time.Time
}

// NewCommand stamps a batch with an id and its arrival time.
func NewCommand(source string, values map[int]float64) *Command {
	return &Command{
		ID:       uuid.NewString(),
		Source:   source,
		Values:   values,
		Received: time.Now(),
	}
}

// ProcessResult is the result of applying a command
type ProcessResult struct {
	CommandID string        `json:"command_id"`
	Source    string        `json:"source"`
	Mates     int           `json:"mates"`
	Latency   time.Duration `json:"latency_ns"`
	Error     error         `json:"-"`
}

// ResultHandler is a function that handles processed results
type ResultHandler func(result *ProcessResult)

// CommandProcessor applies a command, typically by handing it to the engine.
type CommandProcessor func(cmd *Command) error

// CommandPool applies joint commands that arrive on asynchronous transports.
// With a single worker, commands are applied in arrival order.
type CommandPool struct {
	name          string
	workerCount   int
	logger        customlog.Logger
	queue         chan *Command
	running       bool
	wg            sync.WaitGroup
	mu            sync.RWMutex
	processor     CommandProcessor
	resultHandler ResultHandler
	queueSize     int

	metricsMu sync.Mutex
	metrics   PoolMetrics
}

// PoolMetrics tracks metrics for a command pool
type PoolMetrics struct {
	ProcessedCount    int64 `json:"processed"`
	ErrorCount        int64 `json:"errors"`
	QueuedCount       int64 `json:"queued"`
	DroppedCount      int64 `json:"dropped"`
	LastProcessedTime int64 `json:"last_processed_ns"`
	ProcessingTimeAvg int64 `json:"processing_time_avg_us"` // in microseconds
	ProcessingTimeMax int64 `json:"processing_time_max_us"` // in microseconds
}

// NewCommandPool creates a new command pool
func NewCommandPool(
	name string,
	workerCount int,
	queueSize int,
	logger customlog.Logger,
) *CommandPool {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &CommandPool{
		name:        name,
		workerCount: workerCount,
		queueSize:   queueSize,
		logger:      customlog.Component(logger, "pool."+name),
		queue:       make(chan *Command, queueSize),
	}
}

// SetProcessor sets the command processor function
func (p *CommandPool) SetProcessor(processor CommandProcessor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processor = processor
}

// SetResultHandler sets the result handler function
func (p *CommandPool) SetResultHandler(handler ResultHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resultHandler = handler
}

// Submit queues a command without blocking. It returns false when the pool
// is not running or its queue is full.
func (p *CommandPool) Submit(cmd *Command) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.running {
		p.logger.Warnf("%s pool not running, discarding command %s", p.name, cmd.ID)
		return false
	}

	select {
	case p.queue <- cmd:
		p.metricsMu.Lock()
		p.metrics.QueuedCount++
		p.metricsMu.Unlock()
		return true
	default:
		p.metricsMu.Lock()
		p.metrics.DroppedCount++
		p.metricsMu.Unlock()
		p.logger.Warnf("%s pool queue is full, discarding command %s from %s", p.name, cmd.ID, cmd.Source)
		return false
	}
}

// Start starts the pool workers
func (p *CommandPool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}

	// Stop closes the queue, so every run gets a fresh one.
	p.queue = make(chan *Command, p.queueSize)
	p.running = true
	p.logger.Infof("Starting %s pool with %d workers", p.name, p.workerCount)

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i, p.queue)
	}
}

// Stop drains the queue and waits for the workers to exit
func (p *CommandPool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	// Submit holds the read lock while sending, so closing here cannot race it.
	close(p.queue)
	p.mu.Unlock()

	p.logger.Infof("Stopping %s pool", p.name)
	p.wg.Wait()
	p.logger.Infof("%s pool stopped", p.name)

	p.logMetrics()
}

// worker applies commands from the queue
func (p *CommandPool) worker(id int, queue <-chan *Command) {
	defer p.wg.Done()

	p.logger.Debugf("%s pool worker %d started", p.name, id)

	for cmd := range queue {
		p.mu.RLock()
		processor := p.processor
		resultHandler := p.resultHandler
		p.mu.RUnlock()

		if processor == nil {
			p.logger.Errorf("No command processor set for %s pool", p.name)
			continue
		}

		startTime := time.Now()
		err := processor(cmd)
		processingTime := time.Since(startTime).Microseconds()

		p.metricsMu.Lock()
		p.metrics.ProcessedCount++
		p.metrics.LastProcessedTime = time.Now().UnixNano()
		if p.metrics.ProcessingTimeAvg == 0 {
			p.metrics.ProcessingTimeAvg = processingTime
		} else {
			// Simple moving average
			p.metrics.ProcessingTimeAvg = (p.metrics.ProcessingTimeAvg + processingTime) / 2
		}
		if processingTime > p.metrics.ProcessingTimeMax {
			p.metrics.ProcessingTimeMax = processingTime
		}
		if err != nil {
			p.metrics.ErrorCount++
		}
		p.metricsMu.Unlock()

		if resultHandler != nil {
			resultHandler(&ProcessResult{
				CommandID: cmd.ID,
				Source:    cmd.Source,
				Mates:     len(cmd.Values),
				Latency:   time.Since(cmd.Received),
				Error:     err,
			})
		}
	}

	p.logger.Debugf("%s pool worker %d stopped", p.name, id)
}

// GetMetrics returns a copy of the current metrics
func (p *CommandPool) GetMetrics() PoolMetrics {
	p.metricsMu.Lock()
	defer p.metricsMu.Unlock()
	return p.metrics
}

// logMetrics logs the current metrics
func (p *CommandPool) logMetrics() {
	metrics := p.GetMetrics()

	p.logger.Infof("%s pool metrics: processed=%d, errors=%d, dropped=%d, avg_time=%dµs, max_time=%dµs",
		p.name, metrics.ProcessedCount, metrics.ErrorCount, metrics.DroppedCount,
		metrics.ProcessingTimeAvg, metrics.ProcessingTimeMax)
}

// GetName returns the pool name
func (p *CommandPool) GetName() string {
	return p.name
}

// GetQueueLength returns the current length of the command queue
func (p *CommandPool) GetQueueLength() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.queue)
}

// GetQueueCapacity returns the capacity of the command queue
func (p *CommandPool) GetQueueCapacity() int {
	return p.queueSize
}
