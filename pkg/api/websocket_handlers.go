package api

import (
	"encoding/json"
	"errors"
	"syscall"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/open-teleop/kinsim/pkg/kinematics"
	customlog "github.com/open-teleop/kinsim/pkg/log"
)

// WebSocketSource is the source name WebSocket commands are recorded under.
const WebSocketSource = "ws"

// PoseFeed hands out latest-only pose batches.
type PoseFeed interface {
	Subscribe() (<-chan []kinematics.PoseReport, func())
}

// RegisterWebSocketRoutes registers /ws/joints and /ws/poses.
func RegisterWebSocketRoutes(app *fiber.App, commands JointController, session string, feed PoseFeed, logger customlog.Logger) {
	logger = customlog.Component(logger, "ws")

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/joints", websocket.New(func(conn *websocket.Conn) {
		JointsWebSocketHandler(conn, logger, commands)
	}))
	app.Get("/ws/poses", websocket.New(func(conn *websocket.Conn) {
		PosesWebSocketHandler(conn, logger, session, feed)
	}))

	logger.Infof("Registered WebSocket endpoints /ws/joints and /ws/poses")
}

// handleJointMessage queues one joint batch and builds its acknowledgement.
func handleJointMessage(msg []byte, commands JointController) JointCommandAck {
	var cmd JointCommandMsg
	if err := json.Unmarshal(msg, &cmd); err != nil {
		return JointCommandAck{Status: "error", Error: "malformed joint command: " + err.Error()}
	}

	id, err := commands.Enqueue(WebSocketSource, cmd.Values)
	if err != nil {
		return JointCommandAck{ID: cmd.ID, Status: "error", Error: err.Error()}
	}
	return JointCommandAck{ID: cmd.ID, CommandID: id, Status: "queued"}
}

// JointsWebSocketHandler reads joint batches and queues them for the engine.
// Each batch is acknowledged once queued; the engine's verdict is published
// on the command result topic.
func JointsWebSocketHandler(conn *websocket.Conn, logger customlog.Logger, commands JointController) {
	logger.Infof("Joints WebSocket connected: %s", conn.RemoteAddr())
	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			logClose(logger, "Joints", err)
			break
		}

		if mt != websocket.TextMessage {
			logger.Infof("Ignoring non-text Joints WS message type: %d", mt)
			continue
		}

		ack := handleJointMessage(msg, commands)
		if ack.Error != "" {
			logger.Warnf("Joint command from WS not queued: %s", ack.Error)
		}
		if err := conn.WriteJSON(ack); err != nil {
			logger.Warnf("Failed to acknowledge joint command: %v", err)
			break
		}
	}
	logger.Infof("Joints WebSocket disconnected: %s", conn.RemoteAddr())
}

// PosesWebSocketHandler pushes changed poses until the client goes away.
func PosesWebSocketHandler(conn *websocket.Conn, logger customlog.Logger, session string, feed PoseFeed) {
	logger.Infof("Poses WebSocket connected: %s", conn.RemoteAddr())

	batches, cancel := feed.Subscribe()
	defer cancel()

	// The reader only notices the close; clients never send on this socket
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				logClose(logger, "Poses", err)
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			logger.Infof("Poses WebSocket disconnected: %s", conn.RemoteAddr())
			return
		case batch, ok := <-batches:
			if !ok {
				return
			}
			if err := conn.WriteJSON(PoseBatchMsg{Session: session, Poses: batch}); err != nil {
				logger.Warnf("Failed to push poses: %v", err)
				return
			}
		}
	}
}

func logClose(logger customlog.Logger, name string, err error) {
	switch {
	case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure):
		logger.Errorf("%s WS read error: %v", name, err)
	case errors.Is(err, websocket.ErrCloseSent), errors.Is(err, syscall.EPIPE), errors.Is(err, syscall.ECONNRESET):
		logger.Infof("%s WS connection closed normally.", name)
	default:
		logger.Infof("%s WS connection closed: %v", name, err)
	}
}
