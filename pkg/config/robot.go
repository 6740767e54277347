package config

import (
	"fmt"
	"os"

	"github.com/open-teleop/kinsim/pkg/model"
	"github.com/open-teleop/kinsim/pkg/transform"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"
)

// RobotDescription is the YAML form of a mechanism.
type RobotDescription struct {
	Name   string     `yaml:"name" json:"name"`
	Bodies []BodySpec `yaml:"bodies" json:"bodies"`
	Mates  []MateSpec `yaml:"mates" json:"mates"`
}

// BodySpec describes one rigid body. Index defaults to the body's position in
// the list. Pose is the world pose of the fixed body.
type BodySpec struct {
	Index  *int        `yaml:"index,omitempty" json:"index,omitempty"`
	Name   string      `yaml:"name" json:"name"`
	Fixed  bool        `yaml:"fixed" json:"fixed"`
	Pose   *FrameSpec  `yaml:"pose,omitempty" json:"pose,omitempty"`
	Joints []JointSpec `yaml:"joints" json:"joints"`
}

// JointSpec describes a joint frame on a body.
type JointSpec struct {
	Index *int      `yaml:"index,omitempty" json:"index,omitempty"`
	Name  string    `yaml:"name" json:"name"`
	Type  string    `yaml:"type" json:"type"`
	Frame FrameSpec `yaml:",inline" json:"frame"`
}

// FrameSpec is a rigid transform given either as a 3x4 matrix or as a
// translation plus roll/pitch/yaw in degrees. Matrix wins when both are set.
type FrameSpec struct {
	Matrix [][]float64 `yaml:"matrix,omitempty" json:"matrix,omitempty"`
	XYZ    []float64   `yaml:"xyz,omitempty" json:"xyz,omitempty"`
	RPY    []float64   `yaml:"rpy,omitempty" json:"rpy,omitempty"`
}

// EndpointSpec names a joint on a body.
type EndpointSpec struct {
	Body  int `yaml:"body" json:"body"`
	Joint int `yaml:"joint" json:"joint"`
}

// LimitsSpec bounds a mate's value.
type LimitsSpec struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// MateSpec describes a one-DOF connection. Angles are degrees.
type MateSpec struct {
	Index         *int         `yaml:"index,omitempty" json:"index,omitempty"`
	Name          string       `yaml:"name" json:"name"`
	Bearing       EndpointSpec `yaml:"bearing" json:"bearing"`
	Shaft         EndpointSpec `yaml:"shaft" json:"shaft"`
	Value         float64      `yaml:"value" json:"value"`
	Limits        *LimitsSpec  `yaml:"limits,omitempty" json:"limits,omitempty"`
	AngularOffset float64      `yaml:"angular_offset" json:"angular_offset"`
	LinearOffset  float64      `yaml:"linear_offset" json:"linear_offset"`
}

// LoadRobotDescription reads and parses a robot description file. The raw
// file content is returned alongside the parsed description.
func LoadRobotDescription(path string) (*RobotDescription, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("error reading robot description '%s': %w", path, err)
	}
	desc, err := ParseRobotDescription(data)
	if err != nil {
		return nil, nil, fmt.Errorf("error parsing robot description '%s': %w", path, err)
	}
	return desc, data, nil
}

// ParseRobotDescription parses robot description YAML.
func ParseRobotDescription(data []byte) (*RobotDescription, error) {
	var desc RobotDescription
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return nil, err
	}
	if len(desc.Bodies) == 0 {
		return nil, fmt.Errorf("robot description has no bodies")
	}
	return &desc, nil
}

// ToSystem converts the description into an unvalidated model.System. Only
// per-field problems are reported here; structural checks belong to the chain
// package.
func (d *RobotDescription) ToSystem() (*model.System, error) {
	bodies := make([]*model.Body, 0, len(d.Bodies))
	for i, bs := range d.Bodies {
		body := &model.Body{
			Index:   indexOr(bs.Index, i),
			Name:    bs.Name,
			IsFixed: bs.Fixed,
		}
		if body.Name == "" {
			body.Name = fmt.Sprintf("body_%d", body.Index)
		}
		if bs.Pose != nil {
			pose, err := bs.Pose.Transform()
			if err != nil {
				return nil, fmt.Errorf("body %q pose: %w", body.Name, err)
			}
			body.InitialPose = &pose
		} else if bs.Fixed {
			// A fixed body without an explicit pose sits at the world origin.
			id := transform.Identity()
			body.InitialPose = &id
		}

		for j, js := range bs.Joints {
			jt, err := model.ParseJointType(js.Type)
			if err != nil {
				return nil, fmt.Errorf("body %q joint %d: %w", body.Name, j, err)
			}
			xf, err := js.Frame.Transform()
			if err != nil {
				return nil, fmt.Errorf("body %q joint %d: %w", body.Name, j, err)
			}
			body.Joints = append(body.Joints, model.Joint{
				Index:     indexOr(js.Index, j),
				Name:      js.Name,
				Type:      jt,
				Transform: xf,
			})
		}
		bodies = append(bodies, body)
	}

	mates := make([]*model.Mate, 0, len(d.Mates))
	for i, ms := range d.Mates {
		m := &model.Mate{
			Index:         indexOr(ms.Index, i),
			Name:          ms.Name,
			Bearing:       model.Endpoint{Body: ms.Bearing.Body, Joint: ms.Bearing.Joint},
			Shaft:         model.Endpoint{Body: ms.Shaft.Body, Joint: ms.Shaft.Joint},
			InitialValue:  ms.Value,
			AngularOffset: ms.AngularOffset,
			LinearOffset:  ms.LinearOffset,
		}
		if m.Name == "" {
			m.Name = fmt.Sprintf("mate_%d", m.Index)
		}
		if ms.Limits != nil {
			if ms.Limits.Min > ms.Limits.Max {
				return nil, fmt.Errorf("mate %q: limits min %g > max %g", m.Name, ms.Limits.Min, ms.Limits.Max)
			}
			m.Limited = true
			m.Min, m.Max = ms.Limits.Min, ms.Limits.Max
		}
		mates = append(mates, m)
	}

	return model.NewSystem(d.Name, bodies, mates), nil
}

// Transform converts the frame into a rigid transform. An empty frame is the
// identity.
func (f FrameSpec) Transform() (transform.Transform, error) {
	if len(f.Matrix) > 0 {
		if len(f.Matrix) != 3 {
			return transform.Transform{}, fmt.Errorf("matrix must have 3 rows, got %d", len(f.Matrix))
		}
		var m transform.Matrix
		for r, row := range f.Matrix {
			if len(row) != 4 {
				return transform.Transform{}, fmt.Errorf("matrix row %d must have 4 columns, got %d", r, len(row))
			}
			copy(m[r][:], row)
		}
		return transform.FromMatrix(m)
	}

	xyz, err := vec3("xyz", f.XYZ)
	if err != nil {
		return transform.Transform{}, err
	}
	rpy, err := vec3("rpy", f.RPY)
	if err != nil {
		return transform.Transform{}, err
	}
	return transform.FromRPY(xyz, transform.Deg(rpy.X), transform.Deg(rpy.Y), transform.Deg(rpy.Z)), nil
}

func vec3(field string, v []float64) (r3.Vec, error) {
	switch len(v) {
	case 0:
		return r3.Vec{}, nil
	case 3:
		return r3.Vec{X: v[0], Y: v[1], Z: v[2]}, nil
	default:
		return r3.Vec{}, fmt.Errorf("%s must have 3 values, got %d", field, len(v))
	}
}

func indexOr(idx *int, fallback int) int {
	if idx != nil {
		return *idx
	}
	return fallback
}
