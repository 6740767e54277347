package zeromq

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/open-teleop/kinsim/pkg/config"
	customlog "github.com/open-teleop/kinsim/pkg/log"
	"github.com/pebbe/zmq4"
)

// Common errors
var (
	ErrServiceClosed      = errors.New("zeromq service is closed")
	ErrInvalidMessage     = errors.New("invalid message format")
	ErrUnknownMessageType = errors.New("unknown message type")
)

// Message types
const (
	MsgTypeSetJointValues = "SET_JOINT_VALUES"
	MsgTypeGetJointValues = "GET_JOINT_VALUES"
	MsgTypeJointValues    = "JOINT_VALUES"
	MsgTypeGetPoses       = "GET_POSES"
	MsgTypePoses          = "POSES"
	MsgTypeAck            = "ACK"
	MsgTypeError          = "ERROR"
)

// ZeroMQMessage represents a generic message structure for ZeroMQ communication
type ZeroMQMessage struct {
	Type      string          `json:"type"`
	Timestamp float64         `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ErrorResponse represents an error response message
type ErrorResponse struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// MessageHandler defines the interface for handlers that process specific message types
type MessageHandler interface {
	HandleMessage(data []byte) ([]byte, error)
}

// HandlerFunc is a function type that implements MessageHandler
type HandlerFunc func(data []byte) ([]byte, error)

// HandleMessage calls the function
func (f HandlerFunc) HandleMessage(data []byte) ([]byte, error) {
	return f(data)
}

// NewEnvelope builds a reply envelope around data.
func NewEnvelope(messageType string, data interface{}) ([]byte, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", messageType, err)
		}
		raw = b
	}
	return json.Marshal(ZeroMQMessage{
		Type:      messageType,
		Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
		Data:      raw,
	})
}

// MessageReceiver handles receiving messages from a ZeroMQ socket
type MessageReceiver struct {
	socket      *zmq4.Socket
	dispatcher  *MessageDispatcher
	poller      *zmq4.Poller
	pollTimeout time.Duration
	logger      customlog.Logger
	running     atomic.Bool
	wg          *sync.WaitGroup
}

// newMessageReceiver creates a new MessageReceiver
func newMessageReceiver(ctx *zmq4.Context, cfg config.ZeroMQBootstrap, dispatcher *MessageDispatcher, logger customlog.Logger, wg *sync.WaitGroup) (*MessageReceiver, error) {
	socket, err := ctx.NewSocket(zmq4.REP)
	if err != nil {
		return nil, fmt.Errorf("failed to create REP socket: %w", err)
	}

	if err := socket.SetLinger(0); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set linger option: %w", err)
	}

	// Set receive and send timeouts to prevent indefinite blocking during shutdown
	const socketTimeout = 1 * time.Second
	if err := socket.SetRcvtimeo(socketTimeout); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set receive timeout: %w", err)
	}
	if err := socket.SetSndtimeo(socketTimeout); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set send timeout: %w", err)
	}

	if err := socket.Bind(cfg.CommandBindAddress); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to bind to %s: %w", cfg.CommandBindAddress, err)
	}

	// Create poller for non-blocking receives
	poller := zmq4.NewPoller()
	poller.Add(socket, zmq4.POLLIN)

	pollTimeout := time.Duration(cfg.ReceiveTimeoutMs) * time.Millisecond
	if pollTimeout <= 0 {
		pollTimeout = 100 * time.Millisecond
	}

	logger.Infof("MessageReceiver initialized on %s", cfg.CommandBindAddress)

	return &MessageReceiver{
		socket:      socket,
		dispatcher:  dispatcher,
		poller:      poller,
		pollTimeout: pollTimeout,
		logger:      logger,
		wg:          wg,
	}, nil
}

// Start begins the message receiving loop
func (r *MessageReceiver) Start() {
	if !r.running.CompareAndSwap(false, true) {
		return
	}
	r.wg.Add(1)

	go func() {
		defer r.wg.Done()
		defer r.socket.Close()
		r.logger.Infof("MessageReceiver started")

		for r.running.Load() {
			// Poll with a timeout so Stop is noticed promptly
			sockets, err := r.poller.Poll(r.pollTimeout)
			if err != nil {
				if r.running.Load() {
					r.logger.Warnf("Error polling socket: %v", err)
				}
				continue
			}
			if len(sockets) == 0 {
				continue
			}

			msg, err := r.socket.RecvBytes(0)
			if err != nil {
				if r.running.Load() {
					r.logger.Warnf("Error receiving message: %v", err)
				}
				continue
			}

			r.logger.Debugf("Received message (%d bytes)", len(msg))

			// A REP socket must answer every request, so failures become ERROR replies
			response, err := r.dispatcher.Dispatch(msg)
			if err != nil {
				r.logger.Warnf("Error dispatching message: %v", err)
				response = errorReply(err)
			}

			if _, err := r.socket.SendBytes(response, 0); err != nil && r.running.Load() {
				r.logger.Errorf("Error sending response: %v", err)
			}
		}
		r.logger.Infof("MessageReceiver stopped")
	}()
}

// Stop halts the message receiving loop. The socket is closed by the loop
// goroutine, which owns it.
func (r *MessageReceiver) Stop() {
	r.running.Store(false)
}

func errorReply(err error) []byte {
	reply, mErr := NewEnvelope(MsgTypeError, ErrorResponse{
		Message: err.Error(),
		Code:    errorCode(err),
	})
	if mErr != nil {
		return []byte(`{"type":"ERROR","data":{"message":"internal error","code":500}}`)
	}
	return reply
}

// MessageSender handles sending messages to ZeroMQ sockets
type MessageSender struct {
	socket  *zmq4.Socket
	logger  customlog.Logger
	running bool
	mu      sync.Mutex
}

// newMessageSender creates a new MessageSender
func newMessageSender(ctx *zmq4.Context, cfg config.ZeroMQBootstrap, logger customlog.Logger) (*MessageSender, error) {
	socket, err := ctx.NewSocket(zmq4.PUB)
	if err != nil {
		return nil, fmt.Errorf("failed to create PUB socket: %w", err)
	}

	if err := socket.SetLinger(0); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set linger option: %w", err)
	}
	if cfg.SendHighWaterMark > 0 {
		if err := socket.SetSndhwm(cfg.SendHighWaterMark); err != nil {
			socket.Close()
			return nil, fmt.Errorf("failed to set send high water mark: %w", err)
		}
	}

	if err := socket.Bind(cfg.PosePublishAddress); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to bind to %s: %w", cfg.PosePublishAddress, err)
	}

	logger.Infof("MessageSender initialized on %s", cfg.PosePublishAddress)

	return &MessageSender{
		socket:  socket,
		logger:  logger,
		running: true,
	}, nil
}

// PublishMessage sends a message with the given topic
func (s *MessageSender) PublishMessage(topic string, message []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return ErrServiceClosed
	}

	// Topic frame first, then the payload
	if _, err := s.socket.Send(topic, zmq4.SNDMORE); err != nil {
		return fmt.Errorf("failed to send topic: %w", err)
	}
	if _, err := s.socket.SendBytes(message, 0); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// Close cleans up resources
func (s *MessageSender) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = false
	if s.socket != nil {
		s.socket.Close()
		s.socket = nil
	}
}

// MessageDispatcher routes messages to the appropriate handlers
type MessageDispatcher struct {
	handlers map[string]MessageHandler
	raw      MessageHandler
	logger   customlog.Logger
	mu       sync.RWMutex
}

// NewMessageDispatcher creates a new message dispatcher
func NewMessageDispatcher(logger customlog.Logger) *MessageDispatcher {
	return &MessageDispatcher{
		handlers: make(map[string]MessageHandler),
		logger:   logger,
	}
}

// RegisterHandler adds a handler for a specific message type
func (d *MessageDispatcher) RegisterHandler(messageType string, handler MessageHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.handlers[messageType] = handler
	d.logger.Debugf("Registered handler for message type: %s", messageType)
}

// SetRawHandler sets the handler for frames that are not JSON envelopes
func (d *MessageDispatcher) SetRawHandler(handler MessageHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.raw = handler
}

// Dispatch processes a message and routes it to the appropriate handler
func (d *MessageDispatcher) Dispatch(data []byte) ([]byte, error) {
	var msg ZeroMQMessage
	if err := json.Unmarshal(data, &msg); err == nil && msg.Type != "" {
		d.mu.RLock()
		handler, exists := d.handlers[msg.Type]
		d.mu.RUnlock()

		if !exists {
			return nil, fmt.Errorf("%w: %s", ErrUnknownMessageType, msg.Type)
		}
		return handler.HandleMessage(data)
	}

	// Not a JSON envelope, assume a raw flatbuffer
	d.mu.RLock()
	raw := d.raw
	d.mu.RUnlock()
	if raw == nil {
		return nil, fmt.Errorf("%w: not a JSON envelope (%d bytes)", ErrInvalidMessage, len(data))
	}
	d.logger.Debugf("Handling raw frame (%d bytes)", len(data))
	return raw.HandleMessage(data)
}

// ZeroMQService owns the command (REP) and pose (PUB) sockets
type ZeroMQService struct {
	config     config.ZeroMQBootstrap
	ctx        *zmq4.Context
	receiver   *MessageReceiver
	sender     *MessageSender
	dispatcher *MessageDispatcher
	logger     customlog.Logger
	running    atomic.Bool
	wg         sync.WaitGroup

	lifecycleMu sync.Mutex
	closed      bool
}

// NewZeroMQService creates a new ZeroMQ service and binds its sockets
func NewZeroMQService(cfg config.ZeroMQBootstrap, logger customlog.Logger) (*ZeroMQService, error) {
	logger = customlog.Component(logger, "zeromq")

	ctx, err := zmq4.NewContext()
	if err != nil {
		return nil, fmt.Errorf("failed to create ZMQ context: %w", err)
	}

	s := &ZeroMQService{
		config:     cfg,
		ctx:        ctx,
		dispatcher: NewMessageDispatcher(logger),
		logger:     logger,
	}

	s.receiver, err = newMessageReceiver(ctx, cfg, s.dispatcher, logger, &s.wg)
	if err != nil {
		ctx.Term()
		return nil, err
	}

	s.sender, err = newMessageSender(ctx, cfg, logger)
	if err != nil {
		s.receiver.socket.Close()
		ctx.Term()
		return nil, err
	}

	return s, nil
}

// Dispatcher returns the request dispatcher
func (s *ZeroMQService) Dispatcher() *MessageDispatcher {
	return s.dispatcher
}

// RegisterHandler adds a handler for a specific message type
func (s *ZeroMQService) RegisterHandler(messageType string, handler MessageHandler) {
	s.dispatcher.RegisterHandler(messageType, handler)
}

// RegisterHandlerFunc adds a handler function for a specific message type
func (s *ZeroMQService) RegisterHandlerFunc(messageType string, handler func([]byte) ([]byte, error)) {
	s.dispatcher.RegisterHandler(messageType, HandlerFunc(handler))
}

// Start begins serving requests
func (s *ZeroMQService) Start() error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.closed {
		return ErrServiceClosed
	}
	if !s.running.CompareAndSwap(false, true) {
		return nil
	}
	s.logger.Infof("Starting ZeroMQ service")
	s.receiver.Start()
	return nil
}

// Stop halts the service and releases its sockets and context. It is safe to
// call more than once, and before Start.
func (s *ZeroMQService) Stop() {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.closed {
		return
	}
	s.closed = true

	s.logger.Infof("Stopping ZeroMQ service")
	if s.running.Swap(false) {
		// The receive loop closes its socket on exit
		s.receiver.Stop()
	} else {
		s.receiver.socket.Close()
	}
	s.sender.Close()

	s.wg.Wait()

	if s.ctx != nil {
		if err := s.ctx.Term(); err != nil {
			s.logger.Warnf("Error terminating ZMQ context: %v", err)
		}
		s.ctx = nil
	}
	s.logger.Infof("ZeroMQ service stopped")
}

// PublishMessage sends a message with the given topic
func (s *ZeroMQService) PublishMessage(topic string, message []byte) error {
	if !s.running.Load() {
		return ErrServiceClosed
	}
	return s.sender.PublishMessage(topic, message)
}
