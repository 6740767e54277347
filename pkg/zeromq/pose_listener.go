package zeromq

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	customlog "github.com/open-teleop/kinsim/pkg/log"
	zmq "github.com/pebbe/zmq4"
)

// PoseHandler receives decoded pose frames
type PoseHandler func(topic string, frame PoseFrame)

// PoseListener subscribes to a pose publisher and decodes its frames
type PoseListener struct {
	socket  *zmq.Socket
	poller  *zmq.Poller
	handler PoseHandler
	logger  customlog.Logger
	running atomic.Bool
	errors  atomic.Uint64
	wg      sync.WaitGroup
}

// NewPoseListener creates a listener for topics starting with filter. An empty
// filter subscribes to every pose.
func NewPoseListener(filter string, handler PoseHandler, logger customlog.Logger) (*PoseListener, error) {
	socket, err := zmq.NewSocket(zmq.SUB)
	if err != nil {
		return nil, err
	}

	if err := socket.SetLinger(0); err != nil {
		socket.Close()
		return nil, err
	}
	if err := socket.SetSubscribe(PoseTopicPrefix + filter); err != nil {
		socket.Close()
		return nil, err
	}

	poller := zmq.NewPoller()
	poller.Add(socket, zmq.POLLIN)

	return &PoseListener{
		socket:  socket,
		poller:  poller,
		handler: handler,
		logger:  customlog.Component(logger, "pose-listener"),
	}, nil
}

// Start connects to address and begins receiving
func (l *PoseListener) Start(address string) error {
	if err := l.socket.Connect(address); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", address, err)
	}

	l.running.Store(true)
	l.wg.Add(1)
	go l.receiveLoop()

	l.logger.Infof("Pose listener connected to %s", address)
	return nil
}

// Stop stops the listener and closes its socket
func (l *PoseListener) Stop() {
	if !l.running.CompareAndSwap(true, false) {
		return
	}
	l.wg.Wait()
	l.socket.Close()
}

// DecodeErrors returns the number of frames that failed to decode
func (l *PoseListener) DecodeErrors() uint64 {
	return l.errors.Load()
}

// receiveLoop continuously receives and decodes poses
func (l *PoseListener) receiveLoop() {
	defer l.wg.Done()

	for l.running.Load() {
		sockets, err := l.poller.Poll(100 * time.Millisecond)
		if err != nil || len(sockets) == 0 {
			continue
		}

		parts, err := l.socket.RecvMessageBytes(0)
		if err != nil {
			l.logger.Warnf("Error receiving message: %v", err)
			continue
		}
		if len(parts) != 2 {
			l.errors.Add(1)
			l.logger.Warnf("Expected topic and payload, got %d frames", len(parts))
			continue
		}

		frame, err := DecodePose(parts[1])
		if err != nil {
			l.errors.Add(1)
			l.logger.Warnf("Dropping frame on %s: %v", parts[0], err)
			continue
		}
		l.handler(string(parts[0]), frame)
	}
}
