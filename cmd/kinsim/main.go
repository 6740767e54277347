package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/open-teleop/kinsim/domain/diagnostic"
	"github.com/open-teleop/kinsim/pkg/api"
	"github.com/open-teleop/kinsim/pkg/chain"
	"github.com/open-teleop/kinsim/pkg/config"
	"github.com/open-teleop/kinsim/pkg/kinematics"
	customlog "github.com/open-teleop/kinsim/pkg/log"
	"github.com/open-teleop/kinsim/pkg/processing"
	"github.com/open-teleop/kinsim/pkg/telemetry"
	"github.com/open-teleop/kinsim/pkg/zeromq"
	"github.com/open-teleop/kinsim/services"
)

func main() {
	configDir := flag.String("config", "config", "directory holding "+config.BootstrapFilename)
	flag.Parse()

	bootstrapCfg, err := config.LoadBootstrapConfig(*configDir)
	if err != nil {
		log.Fatalf("Failed to load bootstrap configuration: %v", err)
	}

	logger, err := customlog.NewLogrusLogger(bootstrapCfg.Logging.Level, bootstrapCfg.Logging.LogPath)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	logger.Infof("Loaded bootstrap configuration from %s", *configDir)

	// Robot description -> validated tree
	robotService, err := services.NewRobotDescriptionService(bootstrapCfg.Data.RobotPath(), logger)
	if err != nil {
		logger.Fatalf("Failed to load robot description: %v", err)
	}
	desc := robotService.GetDescription()

	sys, err := desc.ToSystem()
	if err != nil {
		logger.Fatalf("Invalid robot description: %v", err)
	}
	root, err := chain.Validate(sys)
	if err != nil {
		logger.Fatalf("Robot description failed validation: %v", err)
	}
	tree, err := chain.Build(sys, root)
	if err != nil {
		logger.Fatalf("Failed to build kinematic tree: %v", err)
	}
	for _, island := range tree.Unreachable {
		logger.Warnf("Bodies %v are not connected to the fixed body and will not be posed", island)
	}
	logger.Infof("Kinematic tree ready: bodies=%d depth=%d", tree.Len(), tree.Depth())

	// Engine
	policy, err := kinematics.ParseSnapshotPolicy(bootstrapCfg.Kinematics.Snapshot)
	if err != nil {
		logger.Fatalf("Invalid kinematics configuration: %v", err)
	}
	sink := customlog.NewSink(customlog.Component(logger, "diagnostics"), 64)
	engine := kinematics.New(tree,
		kinematics.WithInterval(bootstrapCfg.Kinematics.Cycle()),
		kinematics.WithSnapshotPolicy(policy),
		kinematics.WithLogger(logger),
		kinematics.WithSink(sink),
	)

	// Transport
	zmqService, err := zeromq.NewZeroMQService(bootstrapCfg.ZeroMQ, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize ZeroMQ service: %v", err)
	}

	// Command intake
	registry := processing.NewSourceRegistry(logger)
	director := processing.NewCommandDirector(engine, registry, logger, &processing.DirectorOptions{
		Workers:   bootstrapCfg.Processing.CommandWorkers,
		QueueSize: bootstrapCfg.Processing.QueueSize,
	})
	director.SetResultHandler(processing.NewLoggingResultHandler(customlog.Component(logger, "commands"), zmqService).CreateHandlerFunc())
	zeromq.RegisterKinematicsHandlers(zmqService, director, engine, logger)

	// Pose streaming
	streamer := telemetry.NewStreamer(tree, zeromq.NewPosePublisher(zmqService, engine.SessionID()), bootstrapCfg.Telemetry.Cycle(), logger)

	diagnosticService := diagnostic.NewDiagnosticService(desc.Name, engine)
	diagnosticService.SetCommandSource(director)
	diagnosticService.SetStreamSource(streamer)
	diagnosticService.SetDropCounter(sink)

	// HTTP
	app := fiber.New(fiber.Config{
		AppName:               "kinsim",
		ErrorHandler:          customErrorHandler,
		DisableStartupMessage: true,
	})
	app.Use(fiberlogger.New())
	app.Use(recover.New())

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "online",
			"service": "kinsim",
			"robot":   desc.Name,
			"session": engine.SessionID(),
		})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		if engine.State() != kinematics.Running {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": engine.State().String()})
		}
		return c.JSON(fiber.Map{"status": "healthy"})
	})
	app.Get("/api/v1/diagnostics", diagnosticService.GetMetricsHandler)
	api.RegisterRobotRoutes(app, robotService, logger)
	api.RegisterKinematicsRoutes(app, director, engine, logger)
	api.RegisterWebSocketRoutes(app, director, engine.SessionID(), streamer, logger)

	// Start everything
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	director.Start()
	if err := engine.Start(ctx); err != nil {
		logger.Fatalf("Failed to start engine: %v", err)
	}
	if err := zmqService.Start(); err != nil {
		logger.Fatalf("Failed to start ZeroMQ service: %v", err)
	}
	streamDone := make(chan struct{})
	go func() {
		defer close(streamDone)
		_ = streamer.Run(ctx)
	}()

	go func() {
		addr := fmt.Sprintf(":%d", bootstrapCfg.Server.HTTPPort)
		logger.Infof("HTTP server starting on %s", addr)
		if err := app.Listen(addr); err != nil {
			logger.Errorf("HTTP server stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Infof("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warnf("HTTP server forced to shutdown: %v", err)
	}

	director.Stop()
	engine.Stop()
	<-streamDone
	zmqService.Stop()
	sink.Close()

	logger.Infof("kinsim exited properly")
}

// Custom error handler
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
