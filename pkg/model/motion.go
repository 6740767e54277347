package model

import (
	"fmt"

	"github.com/open-teleop/kinsim/pkg/transform"
)

// Motion parameterizes the local motion of a mate for one joint type. The set
// of implementations is closed: RevoluteMotion and PrismaticMotion.
type Motion interface {
	JointType() JointType
	isMotion()
}

// RevoluteMotion rotates about the joint Z axis by the commanded value (degrees).
type RevoluteMotion struct {
	AngularOffset float64 // degrees
	LinearOffset  float64
}

// PrismaticMotion translates along the joint Z axis by the commanded value.
type PrismaticMotion struct {
	AngularOffset float64 // degrees
	LinearOffset  float64
}

func (RevoluteMotion) JointType() JointType { return Revolute }

func (PrismaticMotion) JointType() JointType { return Prismatic }

func (RevoluteMotion) isMotion() {}

func (PrismaticMotion) isMotion() {}

// NewMotion builds the motion variant for a joint type.
func NewMotion(t JointType, angularOffset, linearOffset float64) (Motion, error) {
	switch t {
	case Revolute:
		return RevoluteMotion{AngularOffset: angularOffset, LinearOffset: linearOffset}, nil
	case Prismatic:
		return PrismaticMotion{AngularOffset: angularOffset, LinearOffset: linearOffset}, nil
	default:
		return nil, fmt.Errorf("unsupported joint type %v", t)
	}
}

// LocalMotion is the transform from the parent joint frame to the child joint
// frame for a commanded value.
func LocalMotion(m Motion, value float64) transform.Transform {
	switch m := m.(type) {
	case RevoluteMotion:
		return transform.Compose(
			transform.RotZ(transform.Deg(value+m.AngularOffset)),
			transform.TransZ(m.LinearOffset),
		)
	case PrismaticMotion:
		return transform.Compose(
			transform.RotZ(transform.Deg(m.AngularOffset)),
			transform.TransZ(value+m.LinearOffset),
		)
	default:
		panic(fmt.Sprintf("model: unhandled motion %T", m))
	}
}
