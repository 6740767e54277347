package diagnostic

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/open-teleop/kinsim/pkg/kinematics"
	"github.com/open-teleop/kinsim/pkg/processing"
	"github.com/open-teleop/kinsim/pkg/telemetry"
)

// EngineSource reports engine state and counters
type EngineSource interface {
	SessionID() string
	State() kinematics.State
	Interval() time.Duration
	Policy() kinematics.SnapshotPolicy
	Stats() kinematics.Stats
}

// CommandSource reports command intake counters
type CommandSource interface {
	PoolMetrics() processing.PoolMetrics
	QueueLength() int
	QueueCapacity() int
	Registry() *processing.SourceRegistry
}

// StreamSource reports pose streaming counters
type StreamSource interface {
	Stats() telemetry.Stats
}

// DropCounter reports diagnostics lost because the sink was full
type DropCounter interface {
	Dropped() uint64
}

// EngineMetrics describes the recompute loop
type EngineMetrics struct {
	State    string           `json:"state"`
	Interval string           `json:"interval"`
	Snapshot string           `json:"snapshot"`
	Stats    kinematics.Stats `json:"stats"`
}

// CommandMetrics describes command intake
type CommandMetrics struct {
	Pool          processing.PoolMetrics  `json:"pool"`
	QueueLength   int                     `json:"queue_length"`
	QueueCapacity int                     `json:"queue_capacity"`
	Sources       []processing.SourceInfo `json:"sources"`
}

// SystemMetrics represents system diagnostics information
type SystemMetrics struct {
	Timestamp          time.Time        `json:"timestamp"`
	Robot              string           `json:"robot"`
	Session            string           `json:"session"`
	Uptime             string           `json:"uptime"`
	Engine             EngineMetrics    `json:"engine"`
	Commands           *CommandMetrics  `json:"commands,omitempty"`
	Telemetry          *telemetry.Stats `json:"telemetry,omitempty"`
	DroppedDiagnostics uint64           `json:"dropped_diagnostics"`
}

// DiagnosticService gathers runtime metrics from the running components
type DiagnosticService struct {
	mu       sync.RWMutex
	robot    string
	started  time.Time
	engine   EngineSource
	commands CommandSource
	stream   StreamSource
	drops    DropCounter
}

// NewDiagnosticService creates a new diagnostic service instance
func NewDiagnosticService(robot string, engine EngineSource) *DiagnosticService {
	return &DiagnosticService{
		robot:   robot,
		started: time.Now(),
		engine:  engine,
	}
}

// SetCommandSource attaches command intake counters
func (s *DiagnosticService) SetCommandSource(c CommandSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = c
}

// SetStreamSource attaches pose streaming counters
func (s *DiagnosticService) SetStreamSource(st StreamSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stream = st
}

// SetDropCounter attaches the diagnostic sink drop counter
func (s *DiagnosticService) SetDropCounter(d DropCounter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drops = d
}

// GetMetrics returns the current system metrics
func (s *DiagnosticService) GetMetrics() SystemMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m := SystemMetrics{
		Timestamp: time.Now(),
		Robot:     s.robot,
		Session:   s.engine.SessionID(),
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Engine: EngineMetrics{
			State:    s.engine.State().String(),
			Interval: s.engine.Interval().String(),
			Snapshot: s.engine.Policy().String(),
			Stats:    s.engine.Stats(),
		},
	}
	if s.commands != nil {
		m.Commands = &CommandMetrics{
			Pool:          s.commands.PoolMetrics(),
			QueueLength:   s.commands.QueueLength(),
			QueueCapacity: s.commands.QueueCapacity(),
			Sources:       s.commands.Registry().GetSourceStats(),
		}
	}
	if s.stream != nil {
		st := s.stream.Stats()
		m.Telemetry = &st
	}
	if s.drops != nil {
		m.DroppedDiagnostics = s.drops.Dropped()
	}
	return m
}

// GetMetricsHandler handles API requests for system metrics
func (s *DiagnosticService) GetMetricsHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "success",
		"metrics": s.GetMetrics(),
	})
}
