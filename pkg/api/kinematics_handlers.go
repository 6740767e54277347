package api

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/open-teleop/kinsim/pkg/kinematics"
	customlog "github.com/open-teleop/kinsim/pkg/log"
	"github.com/open-teleop/kinsim/pkg/model"
	"github.com/open-teleop/kinsim/pkg/processing"
)

// HTTPSource is the source name REST commands are recorded under.
const HTTPSource = "http"

// JointController forwards joint-value batches to the engine.
type JointController interface {
	Apply(source string, values map[int]float64) error
	Enqueue(source string, values map[int]float64) (string, error)
}

// StateReader exposes the engine state served over HTTP.
type StateReader interface {
	SessionID() string
	JointValues() map[int]float64
	PoseReports() []kinematics.PoseReport
	Pose(body int) (model.Pose, bool)
	BodyName(body int) (string, bool)
}

// KinematicsHandler holds dependencies for the joint and pose endpoints.
type KinematicsHandler struct {
	commands JointController
	state    StateReader
	logger   customlog.Logger
}

// NewKinematicsHandler creates a new handler for joint and pose endpoints.
func NewKinematicsHandler(commands JointController, state StateReader, logger customlog.Logger) *KinematicsHandler {
	if commands == nil || state == nil {
		panic("commands and state cannot be nil in NewKinematicsHandler")
	}
	return &KinematicsHandler{
		commands: commands,
		state:    state,
		logger:   customlog.Component(logger, "api"),
	}
}

// RegisterKinematicsRoutes registers the joint and pose endpoints.
func RegisterKinematicsRoutes(app *fiber.App, commands JointController, state StateReader, logger customlog.Logger) {
	h := NewKinematicsHandler(commands, state, logger)

	v1 := app.Group("/api/v1")
	v1.Get("/joints", h.handleGetJoints)
	v1.Put("/joints", h.handlePutJoints)
	v1.Get("/poses", h.handleGetPoses)
	v1.Get("/poses/:body", h.handleGetPose)

	logger.Infof("Registered kinematics API endpoints under /api/v1")
}

// commandStatus maps a rejected command onto an HTTP status.
func commandStatus(err error) int {
	switch {
	case errors.Is(err, kinematics.ErrSizeMismatch),
		errors.Is(err, kinematics.ErrUnknownKey),
		errors.Is(err, kinematics.ErrNonFiniteValue):
		return http.StatusBadRequest
	case errors.Is(err, processing.ErrDirectorStopped), errors.Is(err, processing.ErrQueueFull):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *KinematicsHandler) handleGetJoints(c *fiber.Ctx) error {
	return c.JSON(JointValuesResponse{
		Session: h.state.SessionID(),
		Values:  h.state.JointValues(),
	})
}

func (h *KinematicsHandler) handlePutJoints(c *fiber.Ctx) error {
	var req JointValuesRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": "Request body must be a JSON object with a 'values' map",
		})
	}

	if err := h.commands.Apply(HTTPSource, req.Values); err != nil {
		h.logger.Debugf("Rejected joint batch: %v", err)
		return c.Status(commandStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"status": "applied",
		"mates":  len(req.Values),
	})
}

func (h *KinematicsHandler) handleGetPoses(c *fiber.Ctx) error {
	return c.JSON(PosesResponse{
		Session: h.state.SessionID(),
		Poses:   h.state.PoseReports(),
	})
}

func (h *KinematicsHandler) handleGetPose(c *fiber.Ctx) error {
	body, err := c.ParamsInt("body")
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "body must be an integer index")
	}

	name, ok := h.state.BodyName(body)
	if !ok {
		return fiber.NewError(http.StatusNotFound, "unknown body")
	}
	pose, ok := h.state.Pose(body)
	if !ok {
		return fiber.NewError(http.StatusNotFound, "body has no pose yet")
	}
	return c.JSON(kinematics.NewPoseReport(name, pose))
}
