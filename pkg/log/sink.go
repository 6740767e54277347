package log

import (
	"sync"
	"sync/atomic"
)

// Sink delivers diagnostics to a Logger from a background goroutine, so
// callers on a timing-critical path never wait on log I/O. When the buffer is
// full the report is dropped and counted.
type Sink struct {
	logger  Logger
	reports chan error
	dropped atomic.Uint64
	once    sync.Once
	done    chan struct{}
}

// NewSink starts a sink with room for buffer pending reports.
func NewSink(logger Logger, buffer int) *Sink {
	if buffer <= 0 {
		buffer = 64
	}
	s := &Sink{
		logger:  logger,
		reports: make(chan error, buffer),
		done:    make(chan struct{}),
	}
	go s.drain()
	return s
}

// Report queues err for logging. It never blocks and never fails.
func (s *Sink) Report(err error) {
	if err == nil {
		return
	}
	defer func() {
		// Report after Close must not panic the caller.
		if recover() != nil {
			s.dropped.Add(1)
		}
	}()
	select {
	case s.reports <- err:
	default:
		s.dropped.Add(1)
	}
}

// Dropped is the number of reports discarded because the buffer was full.
func (s *Sink) Dropped() uint64 {
	return s.dropped.Load()
}

// Close flushes pending reports and stops the background goroutine.
func (s *Sink) Close() {
	s.once.Do(func() {
		close(s.reports)
		<-s.done
	})
}

func (s *Sink) drain() {
	defer close(s.done)
	for err := range s.reports {
		s.logger.Errorf("%v", err)
	}
}
