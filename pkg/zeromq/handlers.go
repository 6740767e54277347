package zeromq

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/open-teleop/kinsim/pkg/kinematics"
	customlog "github.com/open-teleop/kinsim/pkg/log"
	"github.com/open-teleop/kinsim/pkg/processing"
)

// CommandSource is the source name commands received over ZeroMQ are recorded
// under.
const CommandSource = "zmq"

// CommandApplier forwards joint-value batches to the engine
type CommandApplier interface {
	Apply(source string, values map[int]float64) error
	Enqueue(source string, values map[int]float64) (string, error)
}

// StateReader exposes the engine state served to clients
type StateReader interface {
	SessionID() string
	JointValues() map[int]float64
	PoseReports() []kinematics.PoseReport
}

// SetJointValuesRequest is the payload of a SET_JOINT_VALUES message
type SetJointValuesRequest struct {
	Values map[int]float64 `json:"values"`
}

// AckResponse is the payload of an ACK reply
type AckResponse struct {
	Status    string `json:"status"`
	Mates     int    `json:"mates"`
	CommandID string `json:"command_id,omitempty"`
}

// JointValuesResponse is the payload of a JOINT_VALUES reply
type JointValuesResponse struct {
	Session string          `json:"session"`
	Values  map[int]float64 `json:"values"`
}

// PosesResponse is the payload of a POSES reply
type PosesResponse struct {
	Session string                  `json:"session"`
	Poses   []kinematics.PoseReport `json:"poses"`
}

// errorCode maps a handler error onto the code carried in ERROR replies.
func errorCode(err error) int {
	switch {
	case errors.Is(err, ErrInvalidMessage),
		errors.Is(err, ErrUnknownMessageType),
		errors.Is(err, kinematics.ErrSizeMismatch),
		errors.Is(err, kinematics.ErrUnknownKey),
		errors.Is(err, kinematics.ErrNonFiniteValue):
		return 400
	case errors.Is(err, processing.ErrQueueFull),
		errors.Is(err, processing.ErrDirectorStopped):
		return 503
	default:
		return 500
	}
}

// KinematicsHandler serves joint commands and state queries
type KinematicsHandler struct {
	commands CommandApplier
	state    StateReader
	logger   customlog.Logger
}

// NewKinematicsHandler creates a new handler
func NewKinematicsHandler(commands CommandApplier, state StateReader, logger customlog.Logger) *KinematicsHandler {
	return &KinematicsHandler{
		commands: commands,
		state:    state,
		logger:   logger,
	}
}

// HandleSetJointValues applies a batch synchronously and acknowledges it
func (h *KinematicsHandler) HandleSetJointValues(data []byte) ([]byte, error) {
	var msg ZeroMQMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	var req SetJointValuesRequest
	if len(msg.Data) == 0 {
		return nil, fmt.Errorf("%w: SET_JOINT_VALUES without data", ErrInvalidMessage)
	}
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	if err := h.commands.Apply(CommandSource, req.Values); err != nil {
		return nil, err
	}

	h.logger.Debugf("Applied %d joint values", len(req.Values))
	return NewEnvelope(MsgTypeAck, AckResponse{Status: "APPLIED", Mates: len(req.Values)})
}

// HandleGetJointValues replies with the most recently applied joint values
func (h *KinematicsHandler) HandleGetJointValues([]byte) ([]byte, error) {
	return NewEnvelope(MsgTypeJointValues, JointValuesResponse{
		Session: h.state.SessionID(),
		Values:  h.state.JointValues(),
	})
}

// HandleGetPoses replies with the latest pose of every body
func (h *KinematicsHandler) HandleGetPoses([]byte) ([]byte, error) {
	return NewEnvelope(MsgTypePoses, PosesResponse{
		Session: h.state.SessionID(),
		Poses:   h.state.PoseReports(),
	})
}

// HandleJointCommand queues a raw JointCommand flatbuffer
func (h *KinematicsHandler) HandleJointCommand(data []byte) ([]byte, error) {
	values, err := DecodeJointCommand(data)
	if err != nil {
		return nil, err
	}

	id, err := h.commands.Enqueue(CommandSource, values)
	if err != nil {
		return nil, err
	}
	return NewEnvelope(MsgTypeAck, AckResponse{Status: "QUEUED", Mates: len(values), CommandID: id})
}

// RegisterKinematicsHandlers wires the kinematics handlers into the service
func RegisterKinematicsHandlers(service *ZeroMQService, commands CommandApplier, state StateReader, logger customlog.Logger) *KinematicsHandler {
	h := NewKinematicsHandler(commands, state, customlog.Component(logger, "zeromq"))

	service.RegisterHandlerFunc(MsgTypeSetJointValues, h.HandleSetJointValues)
	service.RegisterHandlerFunc(MsgTypeGetJointValues, h.HandleGetJointValues)
	service.RegisterHandlerFunc(MsgTypeGetPoses, h.HandleGetPoses)
	service.Dispatcher().SetRawHandler(HandlerFunc(h.HandleJointCommand))

	logger.Infof("Registered kinematics handlers")
	return h
}
