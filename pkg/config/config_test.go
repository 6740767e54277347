package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/open-teleop/kinsim/pkg/model"
	"github.com/open-teleop/kinsim/pkg/transform"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadBootstrapConfig(t *testing.T) {
	tempDir := t.TempDir()

	bootstrapContent := `
logging:
  level: "debug"
  log_path: "/var/log/kinsim"
server:
  http_port: 9090
zeromq:
  command_bind_address: "tcp://*:6666"
  pose_publish_address: "tcp://*:7777"
  receive_timeout_ms: 250
kinematics:
  cycle_ms: 2
  snapshot: "cycle_start"
telemetry:
  cycle_ms: 50
processing:
  command_workers: 3
  queue_size: 16
data:
  directory: "/data/robots"
  robot_file: "arm.yaml"
`
	writeFile(t, tempDir, BootstrapFilename, bootstrapContent)

	bootstrapCfg, err := LoadBootstrapConfig(tempDir)
	if err != nil {
		t.Fatalf("LoadBootstrapConfig failed: %v", err)
	}

	if bootstrapCfg.Logging.Level != "debug" {
		t.Errorf("Expected logging level 'debug', got '%s'", bootstrapCfg.Logging.Level)
	}
	if bootstrapCfg.Logging.LogPath != "/var/log/kinsim" {
		t.Errorf("Expected log path '/var/log/kinsim', got '%s'", bootstrapCfg.Logging.LogPath)
	}
	if bootstrapCfg.Server.HTTPPort != 9090 {
		t.Errorf("Expected server http_port 9090, got %d", bootstrapCfg.Server.HTTPPort)
	}
	if bootstrapCfg.ZeroMQ.CommandBindAddress != "tcp://*:6666" {
		t.Errorf("Expected zeromq command_bind_address 'tcp://*:6666', got '%s'", bootstrapCfg.ZeroMQ.CommandBindAddress)
	}
	if bootstrapCfg.ZeroMQ.PosePublishAddress != "tcp://*:7777" {
		t.Errorf("Expected zeromq pose_publish_address 'tcp://*:7777', got '%s'", bootstrapCfg.ZeroMQ.PosePublishAddress)
	}
	if bootstrapCfg.ZeroMQ.ReceiveTimeoutMs != 250 {
		t.Errorf("Expected zeromq receive_timeout_ms 250, got %d", bootstrapCfg.ZeroMQ.ReceiveTimeoutMs)
	}
	if bootstrapCfg.Kinematics.Cycle().Milliseconds() != 2 {
		t.Errorf("Expected kinematics cycle 2ms, got %v", bootstrapCfg.Kinematics.Cycle())
	}
	if bootstrapCfg.Kinematics.Snapshot != "cycle_start" {
		t.Errorf("Expected kinematics snapshot 'cycle_start', got '%s'", bootstrapCfg.Kinematics.Snapshot)
	}
	if bootstrapCfg.Telemetry.CycleMs != 50 {
		t.Errorf("Expected telemetry cycle_ms 50, got %d", bootstrapCfg.Telemetry.CycleMs)
	}
	if bootstrapCfg.Processing.CommandWorkers != 3 {
		t.Errorf("Expected processing command_workers 3, got %d", bootstrapCfg.Processing.CommandWorkers)
	}
	if bootstrapCfg.Processing.QueueSize != 16 {
		t.Errorf("Expected processing queue_size 16, got %d", bootstrapCfg.Processing.QueueSize)
	}
	if got := bootstrapCfg.Data.RobotPath(); got != filepath.Join("/data/robots", "arm.yaml") {
		t.Errorf("Expected robot path '/data/robots/arm.yaml', got '%s'", got)
	}
}

func TestLoadBootstrapConfigDefaults(t *testing.T) {
	tempDir := t.TempDir()

	writeFile(t, tempDir, BootstrapFilename, `
zeromq:
  command_bind_address: "tcp://*:5555"
  pose_publish_address: "tcp://*:5556"
data:
  directory: "robots"
  robot_file: "arm.yaml"
`)

	bootstrapCfg, err := LoadBootstrapConfig(tempDir)
	if err != nil {
		t.Fatalf("LoadBootstrapConfig failed: %v", err)
	}

	if bootstrapCfg.Logging.Level != "info" {
		t.Errorf("Expected default logging level 'info', got '%s'", bootstrapCfg.Logging.Level)
	}
	if bootstrapCfg.Server.HTTPPort != 8080 {
		t.Errorf("Expected default http_port 8080, got %d", bootstrapCfg.Server.HTTPPort)
	}
	if bootstrapCfg.Kinematics.CycleMs != 1 {
		t.Errorf("Expected default kinematics cycle_ms 1, got %d", bootstrapCfg.Kinematics.CycleMs)
	}
	if bootstrapCfg.Telemetry.CycleMs != 20 {
		t.Errorf("Expected default telemetry cycle_ms 20, got %d", bootstrapCfg.Telemetry.CycleMs)
	}
	if bootstrapCfg.Processing.CommandWorkers != 1 {
		t.Errorf("Expected default command_workers 1, got %d", bootstrapCfg.Processing.CommandWorkers)
	}
}

// Test case for missing required fields validation in LoadBootstrapConfig
func TestLoadBootstrapConfigMissingRequired(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{
			name: "command address",
			content: `
zeromq:
  pose_publish_address: "tcp://*:7777"
data:
  directory: "/data"
  robot_file: "arm.yaml"
`,
			field: "zeromq.command_bind_address",
		},
		{
			name: "robot file",
			content: `
zeromq:
  command_bind_address: "tcp://*:6666"
  pose_publish_address: "tcp://*:7777"
data:
  directory: "/data"
`,
			field: "data.robot_file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tempDir := t.TempDir()
			writeFile(t, tempDir, BootstrapFilename, tt.content)

			_, err := LoadBootstrapConfig(tempDir)
			if err == nil {
				t.Fatalf("Expected error when loading bootstrap config without %s, but got nil", tt.field)
			}

			expectedErrorSubstr := "missing required field in bootstrap config: " + tt.field
			if !strings.Contains(err.Error(), expectedErrorSubstr) {
				t.Errorf("Expected error message to contain '%s', but got: %v", expectedErrorSubstr, err)
			}
		})
	}
}

const twoLinkRobot = `
name: two_link
bodies:
  - name: base
    fixed: true
    joints:
      - type: revolute
        xyz: [100, 0, 0]
  - name: link
    joints:
      - type: revolute
        matrix:
          - [1, 0, 0, 100]
          - [0, 1, 0, 0]
          - [0, 0, 1, 0]
mates:
  - name: hinge
    bearing: {body: 0, joint: 0}
    shaft: {body: 1, joint: 0}
    value: 15
    limits: {min: -90, max: 90}
    angular_offset: 5
`

func TestLoadRobotDescription(t *testing.T) {
	path := writeFile(t, t.TempDir(), "two_link.yaml", twoLinkRobot)

	desc, data, err := LoadRobotDescription(path)
	if err != nil {
		t.Fatalf("LoadRobotDescription failed: %v", err)
	}
	if string(data) != twoLinkRobot {
		t.Errorf("Expected the raw file back, got %q", data)
	}
	if desc.Name != "two_link" {
		t.Errorf("Expected name 'two_link', got '%s'", desc.Name)
	}

	sys, err := desc.ToSystem()
	if err != nil {
		t.Fatalf("ToSystem failed: %v", err)
	}
	if len(sys.Bodies) != 2 || len(sys.Mates) != 1 {
		t.Fatalf("Expected 2 bodies and 1 mate, got %d and %d", len(sys.Bodies), len(sys.Mates))
	}

	base := sys.Bodies[0]
	if !base.IsFixed || base.InitialPose == nil {
		t.Fatalf("Expected fixed base with a default pose")
	}
	if !transform.ApproxEqual(*base.InitialPose, transform.Identity(), 1e-12) {
		t.Errorf("Expected base pose at the origin, got %v", base.InitialPose.Matrix())
	}

	// The xyz form and the matrix form describe the same joint frame.
	if !transform.ApproxEqual(base.Joints[0].Transform, sys.Bodies[1].Joints[0].Transform, 1e-12) {
		t.Errorf("Expected matching joint frames, got %v and %v",
			base.Joints[0].Transform.Matrix(), sys.Bodies[1].Joints[0].Transform.Matrix())
	}
	if sys.Bodies[1].Joints[0].Type != model.Revolute {
		t.Errorf("Expected revolute joint, got %v", sys.Bodies[1].Joints[0].Type)
	}

	m := sys.Mates[0]
	if m.Name != "hinge" || m.InitialValue != 15 || m.AngularOffset != 5 {
		t.Errorf("Unexpected mate fields: %+v", m)
	}
	if !m.Limited || m.Min != -90 || m.Max != 90 {
		t.Errorf("Expected limits [-90, 90], got limited=%v [%g, %g]", m.Limited, m.Min, m.Max)
	}
	if v, ok := m.Value().Take(); !ok || v != 15 {
		t.Errorf("Expected value cell seeded with 15, got %g (pending=%v)", v, ok)
	}
}

func TestRobotDescriptionErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "no bodies",
			content: "name: empty\n",
			want:    "no bodies",
		},
		{
			name: "unknown joint type",
			content: `
bodies:
  - name: base
    fixed: true
    joints:
      - type: spherical
`,
			want: "unknown joint type",
		},
		{
			name: "short xyz",
			content: `
bodies:
  - name: base
    joints:
      - type: revolute
        xyz: [1, 2]
`,
			want: "xyz must have 3 values",
		},
		{
			name: "inverted limits",
			content: `
bodies:
  - name: a
    fixed: true
  - name: b
mates:
  - name: m
    limits: {min: 10, max: -10}
`,
			want: "limits min",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc, err := ParseRobotDescription([]byte(tt.content))
			if err == nil {
				_, err = desc.ToSystem()
			}
			if err == nil {
				t.Fatalf("Expected an error containing '%s', got nil", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing '%s', got: %v", tt.want, err)
			}
		})
	}
}

func TestFrameSpecRejectsNonRigidMatrix(t *testing.T) {
	f := FrameSpec{Matrix: [][]float64{
		{2, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
	}}
	if _, err := f.Transform(); !errors.Is(err, transform.ErrNotRigid) {
		t.Errorf("Expected ErrNotRigid, got %v", err)
	}
}

func TestShippedConfiguration(t *testing.T) {
	configDir := filepath.Join("..", "..", "config")

	bootstrapCfg, err := LoadBootstrapConfig(configDir)
	if err != nil {
		t.Fatalf("LoadBootstrapConfig failed on shipped config: %v", err)
	}

	desc, _, err := LoadRobotDescription(filepath.Join("..", "..", bootstrapCfg.Data.RobotPath()))
	if err != nil {
		t.Fatalf("LoadRobotDescription failed on shipped robot: %v", err)
	}
	if _, err := desc.ToSystem(); err != nil {
		t.Fatalf("ToSystem failed on shipped robot: %v", err)
	}
}
