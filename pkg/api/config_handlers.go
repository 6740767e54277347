package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"
	customlog "github.com/open-teleop/kinsim/pkg/log"
	"github.com/open-teleop/kinsim/services"
)

// RobotHandler holds dependencies for the robot description endpoints.
type RobotHandler struct {
	robotService services.RobotDescriptionService
	logger       customlog.Logger
}

// NewRobotHandler creates a new handler for robot description endpoints.
func NewRobotHandler(robotService services.RobotDescriptionService, logger customlog.Logger) *RobotHandler {
	if robotService == nil {
		panic("RobotDescriptionService cannot be nil in NewRobotHandler")
	}
	if logger == nil {
		panic("Logger cannot be nil in NewRobotHandler")
	}
	return &RobotHandler{
		robotService: robotService,
		logger:       customlog.Component(logger, "api"),
	}
}

// RegisterRobotRoutes registers the robot description endpoints with the Fiber app.
func RegisterRobotRoutes(app *fiber.App, robotService services.RobotDescriptionService, logger customlog.Logger) {
	h := NewRobotHandler(robotService, logger)

	apiGroup := app.Group("/api/v1")

	// GET returns the running description as YAML
	apiGroup.Get("/robot", h.handleGetRobot)

	// GET returns the description accepted for the next restart
	apiGroup.Get("/robot/pending", h.handleGetPendingRobot)

	// PUT validates and persists a replacement description
	apiGroup.Put("/robot", h.handleUpdateRobot)

	logger.Infof("Registered robot description API endpoints under /api/v1/robot")
}

// RestartPendingHeader is "true" when a persisted description differs from
// the one the engine is running.
const RestartPendingHeader = "X-Restart-Pending"

// handleGetRobot handles GET requests for the running description YAML.
func (h *RobotHandler) handleGetRobot(c *fiber.Ctx) error {
	c.Set(RestartPendingHeader, strconv.FormatBool(h.robotService.PendingDescription() != nil))
	c.Set(fiber.HeaderContentType, "application/x-yaml")
	return c.Send(h.robotService.GetDescriptionYAML())
}

// handleGetPendingRobot handles GET requests for the pending description YAML.
func (h *RobotHandler) handleGetPendingRobot(c *fiber.Ctx) error {
	yamlData := h.robotService.GetPendingYAML()
	if yamlData == nil {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{
			"error": "No robot description is pending a restart.",
		})
	}

	c.Set(fiber.HeaderContentType, "application/x-yaml")
	return c.Send(yamlData)
}

// handleUpdateRobot handles PUT requests replacing the robot description.
func (h *RobotHandler) handleUpdateRobot(c *fiber.Ctx) error {
	switch c.Get(fiber.HeaderContentType) {
	case "application/x-yaml", "application/yaml", "text/yaml":
	default:
		h.logger.Warnf("Received PUT request with Content-Type %q; parsing as YAML anyway", c.Get(fiber.HeaderContentType))
	}

	body := c.Body()
	if len(body) == 0 {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": "Request body cannot be empty.",
		})
	}

	if err := h.robotService.UpdateDescription(body); err != nil {
		if errors.Is(err, services.ErrInvalidDescription) {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		h.logger.Errorf("Failed to update robot description: %v", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("Internal server error during description update: %v", err),
		})
	}

	return c.JSON(fiber.Map{
		"message": "Robot description updated. Restart to rebuild the kinematic tree.",
	})
}
