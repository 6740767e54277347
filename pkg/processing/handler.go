package processing

import (
	"encoding/json"

	customlog "github.com/open-teleop/kinsim/pkg/log"
)

// ResultTopicPrefix prefixes the topic command results are published on; the
// command source is appended.
const ResultTopicPrefix = "kinsim.command."

// MessagePublisher defines the interface for publishing messages
type MessagePublisher interface {
	PublishMessage(topic string, data []byte) error
}

// LoggingResultHandler logs command results and publishes them
type LoggingResultHandler struct {
	logger    customlog.Logger
	publisher MessagePublisher
}

// NewLoggingResultHandler creates a new logging result handler. publisher may
// be nil.
func NewLoggingResultHandler(logger customlog.Logger, publisher MessagePublisher) *LoggingResultHandler {
	return &LoggingResultHandler{
		logger:    logger,
		publisher: publisher,
	}
}

type resultMessage struct {
	*ProcessResult
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HandleResult handles a processed command result
func (h *LoggingResultHandler) HandleResult(result *ProcessResult) {
	msg := resultMessage{ProcessResult: result, Status: "OK"}
	if result.Error != nil {
		h.logger.Errorf("Command %s from '%s' rejected: %v", result.CommandID, result.Source, result.Error)
		msg.Status = "ERROR"
		msg.Error = result.Error.Error()
	} else {
		h.logger.Debugf("Applied command %s from '%s' (%d mates, %v)",
			result.CommandID, result.Source, result.Mates, result.Latency)
	}

	if h.publisher == nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Errorf("Failed to serialize result of command %s: %v", result.CommandID, err)
		return
	}
	topic := ResultTopicPrefix + result.Source
	if err := h.publisher.PublishMessage(topic, data); err != nil {
		h.logger.Errorf("Failed to publish result for topic '%s': %v", topic, err)
	}
}

// CreateHandlerFunc creates a ResultHandler function for the CommandPool
func (h *LoggingResultHandler) CreateHandlerFunc() ResultHandler {
	return func(processResult *ProcessResult) {
		if processResult == nil {
			h.logger.Errorf("Received nil ProcessResult")
			return
		}
		h.HandleResult(processResult)
	}
}
