package services

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	customlog "github.com/open-teleop/kinsim/pkg/log"
)

const hinge = `
name: hinge
bodies:
  - name: base
    fixed: true
    joints:
      - type: revolute
        xyz: [100, 0, 0]
  - name: arm
    joints:
      - type: revolute
mates:
  - bearing: {body: 0, joint: 0}
    shaft: {body: 1, joint: 0}
`

func newService(t *testing.T) (RobotDescriptionService, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "robot.yaml")
	if err := os.WriteFile(path, []byte(hinge), 0644); err != nil {
		t.Fatalf("Failed to write description: %v", err)
	}
	s, err := NewRobotDescriptionService(path, customlog.NewNopLogger())
	if err != nil {
		t.Fatalf("NewRobotDescriptionService failed: %v", err)
	}
	return s, path
}

func TestRobotDescriptionServiceLoads(t *testing.T) {
	s, path := newService(t)

	if s.Path() != path {
		t.Errorf("Expected path %s, got %s", path, s.Path())
	}
	if got := s.GetDescription().Name; got != "hinge" {
		t.Errorf("Expected description 'hinge', got '%s'", got)
	}
	if data := s.GetDescriptionYAML(); string(data) != hinge {
		t.Errorf("Expected the raw file back, got %q", data)
	}
	if s.PendingDescription() != nil || s.GetPendingYAML() != nil {
		t.Errorf("Expected nothing pending after load")
	}
}

func TestRobotDescriptionServiceMissingFile(t *testing.T) {
	if _, err := NewRobotDescriptionService(filepath.Join(t.TempDir(), "nope.yaml"), customlog.NewNopLogger()); err == nil {
		t.Fatal("Expected an error for a missing file")
	}
	if _, err := NewRobotDescriptionService("", customlog.NewNopLogger()); err == nil {
		t.Fatal("Expected an error for an empty path")
	}
}

func TestUpdateDescription(t *testing.T) {
	s, path := newService(t)

	updated := strings.Replace(hinge, "name: hinge", "name: hinge_v2", 1)
	if err := s.UpdateDescription([]byte(updated)); err != nil {
		t.Fatalf("UpdateDescription failed: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != updated {
		t.Errorf("Expected the update persisted, got %q", data)
	}

	// The running description still matches the tree built at startup.
	if got := s.GetDescription().Name; got != "hinge" {
		t.Errorf("Expected running description 'hinge', got '%s'", got)
	}
	if got := string(s.GetDescriptionYAML()); got != hinge {
		t.Errorf("Expected running YAML unchanged, got %q", got)
	}

	pending := s.PendingDescription()
	if pending == nil || pending.Name != "hinge_v2" {
		t.Fatalf("Expected pending description 'hinge_v2', got %+v", pending)
	}
	if got := string(s.GetPendingYAML()); got != updated {
		t.Errorf("Expected pending YAML %q, got %q", updated, got)
	}
}

func TestUpdateDescriptionRejectsInvalidTree(t *testing.T) {
	s, path := newService(t)

	tests := map[string]string{
		"bad yaml":     "bodies: [",
		"two roots":    strings.Replace(hinge, "  - name: arm\n", "  - name: arm\n    fixed: true\n", 1),
		"unknown body": strings.Replace(hinge, "shaft: {body: 1", "shaft: {body: 7", 1),
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			err := s.UpdateDescription([]byte(content))
			if !errors.Is(err, ErrInvalidDescription) {
				t.Fatalf("Expected ErrInvalidDescription, got %v", err)
			}
		})
	}

	data, _ := os.ReadFile(path)
	if string(data) != hinge {
		t.Errorf("Expected the file untouched after rejected updates")
	}
	if s.PendingDescription() != nil {
		t.Errorf("Expected nothing pending after rejected updates")
	}
}
