// Package model holds the structural description of a mechanism: rigid bodies,
// the joint frames defined on them, and the one-DOF mates that connect them.
package model

import (
	"fmt"
	"strings"

	"github.com/open-teleop/kinsim/pkg/transform"
)

// JointType is the kind of motion a mate's joints allow.
type JointType int

const (
	Revolute JointType = iota
	Prismatic
)

func (t JointType) String() string {
	switch t {
	case Revolute:
		return "revolute"
	case Prismatic:
		return "prismatic"
	default:
		return fmt.Sprintf("JointType(%d)", int(t))
	}
}

// ParseJointType parses the textual joint type used in robot descriptions.
func ParseJointType(s string) (JointType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "revolute":
		return Revolute, nil
	case "prismatic":
		return Prismatic, nil
	default:
		return 0, fmt.Errorf("unknown joint type %q", s)
	}
}

// Joint is a fixed frame on a body. Transform maps joint-frame coordinates into
// body-frame coordinates.
type Joint struct {
	Index     int
	Name      string
	Type      JointType
	Transform transform.Transform
}

// Body is a rigid element of the mechanism.
type Body struct {
	Index   int
	Name    string
	IsFixed bool
	Joints  []Joint

	// InitialPose seeds the body's world pose. For the fixed body it is the
	// externally supplied root pose; nil leaves the root pose undefined.
	InitialPose *transform.Transform

	poses *PoseCell
}

// Joint looks up a joint by its per-body index.
func (b *Body) Joint(index int) (Joint, bool) {
	for _, j := range b.Joints {
		if j.Index == index {
			return j, true
		}
	}
	return Joint{}, false
}

// Poses returns the body's pose publication cell.
func (b *Body) Poses() *PoseCell {
	return b.poses
}

// Endpoint names one side of a mate.
type Endpoint struct {
	Body  int
	Joint int
}

// Mate connects a bearing joint on one body to a shaft joint on another.
type Mate struct {
	Index   int
	Name    string
	Bearing Endpoint
	Shaft   Endpoint

	InitialValue  float64
	Limited       bool
	Min           float64
	Max           float64
	AngularOffset float64
	LinearOffset  float64

	value    *ValueCell
	consumed bool
}

// Value returns the mate's live command cell.
func (m *Mate) Value() *ValueCell {
	return m.value
}

// Touches reports whether the mate has an endpoint on body, and if so returns
// that endpoint and the opposite one.
func (m *Mate) Touches(body int) (self, other Endpoint, ok bool) {
	switch body {
	case m.Bearing.Body:
		return m.Bearing, m.Shaft, true
	case m.Shaft.Body:
		return m.Shaft, m.Bearing, true
	}
	return Endpoint{}, Endpoint{}, false
}

// Consumed reports whether the mate has already been attached to a tree.
func (m *Mate) Consumed() bool { return m.consumed }

// Consume flags the mate as attached.
func (m *Mate) Consume() { m.consumed = true }

// Release clears the attached flag.
func (m *Mate) Release() { m.consumed = false }

// System is the full, unvalidated description of a mechanism.
type System struct {
	Name   string
	Bodies []*Body
	Mates  []*Mate
}

// NewSystem assembles a System and attaches the live cells every body and mate
// needs at runtime.
func NewSystem(name string, bodies []*Body, mates []*Mate) *System {
	for _, b := range bodies {
		b.poses = NewPoseCell(b.Index)
		if b.InitialPose != nil {
			b.poses.Publish(*b.InitialPose)
		}
	}
	for _, m := range mates {
		var limits *Limits
		if m.Limited {
			limits = &Limits{Min: m.Min, Max: m.Max}
		}
		m.value = NewValueCell(m.InitialValue, limits)
		m.consumed = false
	}
	return &System{Name: name, Bodies: bodies, Mates: mates}
}

// Body looks up a body by index.
func (s *System) Body(index int) (*Body, bool) {
	for _, b := range s.Bodies {
		if b.Index == index {
			return b, true
		}
	}
	return nil, false
}
