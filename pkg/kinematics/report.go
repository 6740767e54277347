package kinematics

import (
	"time"

	"github.com/open-teleop/kinsim/pkg/chain"
	"github.com/open-teleop/kinsim/pkg/model"
)

// PoseReport is the serializable view of a published pose shared by the
// request/reply and streaming surfaces.
type PoseReport struct {
	Body       int        `json:"body"`
	Name       string     `json:"name"`
	Seq        uint64     `json:"seq"`
	Stamp      time.Time  `json:"stamp"`
	Position   [3]float64 `json:"position"`
	Quaternion [4]float64 `json:"quaternion"` // w, x, y, z
}

// NewPoseReport flattens pose for serialization.
func NewPoseReport(name string, pose model.Pose) PoseReport {
	t := pose.Transform
	return PoseReport{
		Body:       pose.Body,
		Name:       name,
		Seq:        pose.Seq,
		Stamp:      pose.Stamp,
		Position:   [3]float64{t.Trans.X, t.Trans.Y, t.Trans.Z},
		Quaternion: [4]float64{t.Rot.Real, t.Rot.Imag, t.Rot.Jmag, t.Rot.Kmag},
	}
}

// BodyName returns the name of a body in the tree.
func (e *Engine) BodyName(body int) (string, bool) {
	i, ok := e.tree.NodeOfBody(body)
	if !ok {
		return "", false
	}
	return e.tree.Node(i).Body.Name, true
}

// PoseReports returns a report for every body with a published pose, in tree
// order.
func (e *Engine) PoseReports() []PoseReport {
	out := make([]PoseReport, 0, e.tree.Len())
	e.tree.Walk(func(_ int, n *chain.Node) {
		if p, ok := n.Body.Poses().Latest(); ok {
			out = append(out, NewPoseReport(n.Body.Name, p))
		}
	})
	return out
}
