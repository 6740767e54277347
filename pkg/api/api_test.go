package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/open-teleop/kinsim/pkg/kinematics"
	customlog "github.com/open-teleop/kinsim/pkg/log"
	"github.com/open-teleop/kinsim/pkg/model"
	"github.com/open-teleop/kinsim/pkg/processing"
	"github.com/open-teleop/kinsim/pkg/transform"
	"github.com/open-teleop/kinsim/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

// fakeEngine accepts exactly mates 0 and 1, the way the engine does.
type fakeEngine struct {
	values map[int]float64
}

func (f *fakeEngine) Apply(_ string, values map[int]float64) error {
	if len(values) != 2 {
		return kinematics.ErrSizeMismatch
	}
	for k := range values {
		if k != 0 && k != 1 {
			return kinematics.ErrUnknownKey
		}
	}
	f.values = values
	return nil
}

func (f *fakeEngine) Enqueue(_ string, values map[int]float64) (string, error) {
	if len(values) == 0 {
		return "", processing.ErrQueueFull
	}
	return "cmd-7", nil
}

func (f *fakeEngine) SessionID() string { return "session-1" }

func (f *fakeEngine) JointValues() map[int]float64 { return f.values }

func (f *fakeEngine) PoseReports() []kinematics.PoseReport {
	p, _ := f.Pose(0)
	return []kinematics.PoseReport{kinematics.NewPoseReport("base", p)}
}

func (f *fakeEngine) Pose(body int) (model.Pose, bool) {
	if body != 0 {
		return model.Pose{}, false
	}
	return model.Pose{Body: 0, Seq: 3, Stamp: time.Now(), Transform: transform.Translation(r3.Vec{X: 5})}, true
}

func (f *fakeEngine) BodyName(body int) (string, bool) {
	switch body {
	case 0:
		return "base", true
	case 1:
		return "arm", true
	}
	return "", false
}

func newApp(engine *fakeEngine) *fiber.App {
	app := fiber.New()
	RegisterKinematicsRoutes(app, engine, engine, customlog.NewNopLogger())
	return app
}

func do(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestPutJoints(t *testing.T) {
	engine := &fakeEngine{}
	app := newApp(engine)

	resp, _ := do(t, app, "PUT", "/api/v1/joints", `{"values":{"0":10,"1":-20}}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[int]float64{0: 10, 1: -20}, engine.values)

	resp, data := do(t, app, "GET", "/api/v1/joints", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var got JointValuesResponse
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "session-1", got.Session)
	assert.Equal(t, -20.0, got.Values[1])
}

func TestPutJointsRejections(t *testing.T) {
	engine := &fakeEngine{}
	app := newApp(engine)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"size mismatch", `{"values":{"0":10}}`, http.StatusBadRequest},
		{"unknown key", `{"values":{"0":10,"9":1}}`, http.StatusBadRequest},
		{"not json", `values=1`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := do(t, app, "PUT", "/api/v1/joints", tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
	assert.Nil(t, engine.values, "rejected batches must not be applied")
}

func TestCommandStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, commandStatus(fmt.Errorf("mate 1: %w", kinematics.ErrNonFiniteValue)))
	assert.Equal(t, http.StatusBadRequest, commandStatus(kinematics.ErrUnknownKey))
	assert.Equal(t, http.StatusServiceUnavailable, commandStatus(processing.ErrDirectorStopped))
	assert.Equal(t, http.StatusInternalServerError, commandStatus(errors.New("boom")))
}

func TestGetPoses(t *testing.T) {
	app := newApp(&fakeEngine{})

	resp, data := do(t, app, "GET", "/api/v1/poses", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var all PosesResponse
	require.NoError(t, json.Unmarshal(data, &all))
	require.Len(t, all.Poses, 1)
	assert.Equal(t, [3]float64{5, 0, 0}, all.Poses[0].Position)

	resp, data = do(t, app, "GET", "/api/v1/poses/0", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var one kinematics.PoseReport
	require.NoError(t, json.Unmarshal(data, &one))
	assert.Equal(t, "base", one.Name)
	assert.Equal(t, uint64(3), one.Seq)

	resp, _ = do(t, app, "GET", "/api/v1/poses/1", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "known body without a pose")
	resp, _ = do(t, app, "GET", "/api/v1/poses/42", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = do(t, app, "GET", "/api/v1/poses/abc", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleJointMessage(t *testing.T) {
	engine := &fakeEngine{}

	ack := handleJointMessage([]byte(`{"id":"a1","values":{"0":1,"1":2}}`), engine)
	assert.Equal(t, JointCommandAck{ID: "a1", CommandID: "cmd-7", Status: "queued"}, ack)

	ack = handleJointMessage([]byte(`{"id":"a2","values":{}}`), engine)
	assert.Equal(t, "error", ack.Status)
	assert.Equal(t, "a2", ack.ID)
	assert.Contains(t, ack.Error, "queue is full")

	ack = handleJointMessage([]byte(`not json`), engine)
	assert.Equal(t, "error", ack.Status)
	assert.Contains(t, ack.Error, "malformed")
}

func TestWebSocketRoutesRequireUpgrade(t *testing.T) {
	app := fiber.New()
	RegisterWebSocketRoutes(app, &fakeEngine{}, "session-1", nil, customlog.NewNopLogger())

	resp, _ := do(t, app, "GET", "/ws/poses", "")
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}

const robotYAML = `
name: hinge
bodies:
  - name: base
    fixed: true
    joints:
      - type: revolute
  - name: arm
    joints:
      - type: revolute
mates:
  - bearing: {body: 0, joint: 0}
    shaft: {body: 1, joint: 0}
`

func TestRobotRoutes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "robot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(robotYAML), 0644))
	svc, err := services.NewRobotDescriptionService(path, customlog.NewNopLogger())
	require.NoError(t, err)

	app := fiber.New()
	RegisterRobotRoutes(app, svc, customlog.NewNopLogger())

	resp, data := do(t, app, "GET", "/api/v1/robot", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/x-yaml", resp.Header.Get("Content-Type"))
	assert.Equal(t, "false", resp.Header.Get(RestartPendingHeader))
	assert.Equal(t, robotYAML, string(data))

	resp, _ = do(t, app, "GET", "/api/v1/robot/pending", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	req := httptest.NewRequest("PUT", "/api/v1/robot", strings.NewReader("bodies: []\n"))
	req.Header.Set("Content-Type", "application/x-yaml")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	updated := strings.Replace(robotYAML, "hinge", "hinge_v2", 1)
	req = httptest.NewRequest("PUT", "/api/v1/robot", strings.NewReader(updated))
	req.Header.Set("Content-Type", "application/x-yaml")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// The engine still runs the tree built at startup.
	assert.Equal(t, "hinge", svc.GetDescription().Name)
	resp, data = do(t, app, "GET", "/api/v1/robot", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "true", resp.Header.Get(RestartPendingHeader))
	assert.Equal(t, robotYAML, string(data))

	resp, data = do(t, app, "GET", "/api/v1/robot/pending", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, updated, string(data))
}
