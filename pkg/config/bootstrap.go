package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// BootstrapFilename is the name of the service configuration file inside the
// config directory.
const BootstrapFilename = "kinsim_config.yaml"

// BootstrapConfig holds the initial configuration loaded from kinsim_config.yaml
type BootstrapConfig struct {
	Logging    LoggingConfig         `yaml:"logging" json:"logging"`
	Server     BootstrapServerConfig `yaml:"server" json:"server"`
	ZeroMQ     ZeroMQBootstrap       `yaml:"zeromq" json:"zeromq"`
	Kinematics KinematicsConfig      `yaml:"kinematics" json:"kinematics"`
	Telemetry  TelemetryConfig       `yaml:"telemetry" json:"telemetry"`
	Processing ProcessingConfig      `yaml:"processing" json:"processing"`
	Data       DataConfig            `yaml:"data" json:"data"`
}

// LoggingConfig holds logging settings from bootstrap
type LoggingConfig struct {
	Level   string `yaml:"level" json:"level"`
	LogPath string `yaml:"log_path,omitempty" json:"log_path,omitempty"`
}

// BootstrapServerConfig holds the HTTP server settings
type BootstrapServerConfig struct {
	HTTPPort int `yaml:"http_port" json:"http_port"`
}

// ZeroMQBootstrap holds the command and pose socket addresses
type ZeroMQBootstrap struct {
	CommandBindAddress  string `yaml:"command_bind_address" json:"command_bind_address"`
	PosePublishAddress  string `yaml:"pose_publish_address" json:"pose_publish_address"`
	ReceiveTimeoutMs    int    `yaml:"receive_timeout_ms" json:"receive_timeout_ms"`
	SendHighWaterMark   int    `yaml:"send_high_water_mark" json:"send_high_water_mark"`
	ReconnectIntervalMs int    `yaml:"reconnect_interval_ms" json:"reconnect_interval_ms"`
}

// KinematicsConfig configures the recompute loop
type KinematicsConfig struct {
	CycleMs  int    `yaml:"cycle_ms" json:"cycle_ms"`
	Snapshot string `yaml:"snapshot" json:"snapshot"`
}

// TelemetryConfig configures the pose streaming loop
type TelemetryConfig struct {
	CycleMs int `yaml:"cycle_ms" json:"cycle_ms"`
}

// ProcessingConfig sizes the asynchronous command pool
type ProcessingConfig struct {
	CommandWorkers int `yaml:"command_workers" json:"command_workers"`
	QueueSize      int `yaml:"queue_size" json:"queue_size"`
}

// DataConfig locates the robot description
type DataConfig struct {
	Directory string `yaml:"directory" json:"directory"`
	RobotFile string `yaml:"robot_file" json:"robot_file"`
}

// Cycle is the recompute period.
func (k KinematicsConfig) Cycle() time.Duration {
	return time.Duration(k.CycleMs) * time.Millisecond
}

// Cycle is the pose streaming period.
func (t TelemetryConfig) Cycle() time.Duration {
	return time.Duration(t.CycleMs) * time.Millisecond
}

// RobotPath is the full path of the robot description file.
func (d DataConfig) RobotPath() string {
	return filepath.Join(d.Directory, d.RobotFile)
}

// LoadBootstrapConfig loads the bootstrap configuration from kinsim_config.yaml
func LoadBootstrapConfig(configDir string) (*BootstrapConfig, error) {
	bootstrapConfigPath := filepath.Join(configDir, BootstrapFilename)

	data, err := os.ReadFile(bootstrapConfigPath)
	if err != nil {
		return nil, fmt.Errorf("error reading bootstrap config file '%s': %w", bootstrapConfigPath, err)
	}

	var bootstrapCfg BootstrapConfig
	if err := yaml.Unmarshal(data, &bootstrapCfg); err != nil {
		return nil, fmt.Errorf("error parsing bootstrap config file '%s': %w", bootstrapConfigPath, err)
	}

	if bootstrapCfg.ZeroMQ.CommandBindAddress == "" {
		return nil, fmt.Errorf("missing required field in bootstrap config: zeromq.command_bind_address")
	}
	if bootstrapCfg.ZeroMQ.PosePublishAddress == "" {
		return nil, fmt.Errorf("missing required field in bootstrap config: zeromq.pose_publish_address")
	}
	if bootstrapCfg.Data.Directory == "" {
		return nil, fmt.Errorf("missing required field in bootstrap config: data.directory")
	}
	if bootstrapCfg.Data.RobotFile == "" {
		return nil, fmt.Errorf("missing required field in bootstrap config: data.robot_file")
	}

	bootstrapCfg.applyDefaults()
	return &bootstrapCfg, nil
}

func (c *BootstrapConfig) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Server.HTTPPort == 0 {
		c.Server.HTTPPort = 8080
	}
	if c.ZeroMQ.ReceiveTimeoutMs == 0 {
		c.ZeroMQ.ReceiveTimeoutMs = 100
	}
	if c.ZeroMQ.SendHighWaterMark == 0 {
		c.ZeroMQ.SendHighWaterMark = 1000
	}
	if c.Kinematics.CycleMs <= 0 {
		c.Kinematics.CycleMs = 1
	}
	if c.Telemetry.CycleMs <= 0 {
		c.Telemetry.CycleMs = 20
	}
	if c.Processing.CommandWorkers <= 0 {
		c.Processing.CommandWorkers = 1
	}
	if c.Processing.QueueSize <= 0 {
		c.Processing.QueueSize = 64
	}
}
