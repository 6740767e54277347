package services

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/open-teleop/kinsim/pkg/chain"
	"github.com/open-teleop/kinsim/pkg/config"
	customlog "github.com/open-teleop/kinsim/pkg/log"
)

// ErrInvalidDescription wraps every rejection of a proposed robot description.
var ErrInvalidDescription = errors.New("invalid robot description")

// RobotDescriptionService manages the robot description file the engine was
// built from.
//
// The running description is the one loaded at startup; the engine's tree was
// built from it and it does not change for the life of the process. An
// accepted update is persisted and held as pending until the next restart.
type RobotDescriptionService interface {
	GetDescription() *config.RobotDescription
	GetDescriptionYAML() []byte
	PendingDescription() *config.RobotDescription
	GetPendingYAML() []byte
	UpdateDescription(yamlData []byte) error
	Path() string
}

// robotDescriptionService implements the RobotDescriptionService interface.
type robotDescriptionService struct {
	path   string
	logger customlog.Logger

	running     *config.RobotDescription
	runningYAML []byte
	pending     *config.RobotDescription
	pendingYAML []byte
	mu          sync.RWMutex
}

// NewRobotDescriptionService creates the service and loads the description at
// path.
func NewRobotDescriptionService(path string, logger customlog.Logger) (RobotDescriptionService, error) {
	if path == "" {
		return nil, fmt.Errorf("robot description path cannot be empty")
	}

	s := &robotDescriptionService{
		path:   path,
		logger: customlog.Component(logger, "robot"),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *robotDescriptionService) load() error {
	desc, data, err := config.LoadRobotDescription(s.path)
	if err != nil {
		return err
	}

	s.running = desc
	s.runningYAML = data
	s.logger.Infof("Loaded robot description '%s': bodies=%d mates=%d", desc.Name, len(desc.Bodies), len(desc.Mates))
	return nil
}

// GetDescription returns the description the engine is running. It must be
// treated as read-only.
func (s *robotDescriptionService) GetDescription() *config.RobotDescription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// GetDescriptionYAML returns the running description as it was read at
// startup.
func (s *robotDescriptionService) GetDescriptionYAML() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runningYAML
}

// PendingDescription returns the persisted description that takes effect on
// restart, or nil when none was accepted since startup.
func (s *robotDescriptionService) PendingDescription() *config.RobotDescription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending
}

// GetPendingYAML returns the pending description, or nil.
func (s *robotDescriptionService) GetPendingYAML() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pendingYAML
}

// UpdateDescription validates a new description the same way startup does and
// persists it as pending. The running engine keeps its tree.
func (s *robotDescriptionService) UpdateDescription(yamlData []byte) error {
	desc, err := config.ParseRobotDescription(yamlData)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDescription, err)
	}
	sys, err := desc.ToSystem()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDescription, err)
	}
	root, err := chain.Validate(sys)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDescription, err)
	}
	if _, err := chain.Build(sys, root); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDescription, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.WriteFile(s.path, yamlData, 0644); err != nil {
		return fmt.Errorf("error writing robot description '%s': %w", s.path, err)
	}
	s.pending = desc
	s.pendingYAML = append([]byte(nil), yamlData...)
	s.logger.Infof("Persisted robot description '%s'; running '%s' until restart", desc.Name, s.running.Name)
	return nil
}

// Path returns the description file path.
func (s *robotDescriptionService) Path() string {
	return s.path
}
