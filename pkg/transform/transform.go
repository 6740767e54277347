// Package transform implements the rigid-body transform algebra used by the
// kinematics engine: rotation plus translation, composition, inversion and
// point application.
//
// Rotations are stored as unit quaternions rather than 3x3 matrices so that
// repeated composition over a long-running session cannot drift away from a
// proper rotation; Compose renormalizes after every product.
package transform

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Point is a position in 3D space.
type Point = r3.Vec

// Matrix is a homogeneous transform with the constant bottom row omitted.
type Matrix [3][4]float64

// ErrNotRigid is returned when a matrix does not describe a rigid transform.
var ErrNotRigid = errors.New("matrix is not a rigid transform")

// orthonormalTolerance bounds how far an authored rotation block may be from
// orthonormal before it is rejected.
const orthonormalTolerance = 1e-6

// Transform is a rigid transform: rotate by Rot, then translate by Trans.
type Transform struct {
	Rot   quat.Number
	Trans r3.Vec
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{Rot: quat.Number{Real: 1}}
}

// Translation returns a pure translation by v.
func Translation(v r3.Vec) Transform {
	return Transform{Rot: quat.Number{Real: 1}, Trans: v}
}

// Rotation returns a pure rotation of angle radians about axis.
func Rotation(axis r3.Vec, angle float64) Transform {
	return Transform{Rot: quat.Number(r3.NewRotation(angle, axis))}
}

// RotZ returns a pure rotation about the Z axis.
func RotZ(angle float64) Transform {
	return Rotation(r3.Vec{Z: 1}, angle)
}

// TransZ returns a pure translation along the Z axis.
func TransZ(d float64) Transform {
	return Translation(r3.Vec{Z: d})
}

// FromRPY builds a transform from a translation and roll/pitch/yaw angles in
// radians, applied as Rz(yaw)·Ry(pitch)·Rx(roll).
func FromRPY(xyz r3.Vec, roll, pitch, yaw float64) Transform {
	rot := Compose(
		Rotation(r3.Vec{Z: 1}, yaw),
		Rotation(r3.Vec{Y: 1}, pitch),
		Rotation(r3.Vec{X: 1}, roll),
	)
	rot.Trans = xyz
	return rot
}

// Compose chains transforms left to right: Compose(a, b) is a·b, i.e. "a then b"
// when walking from the world frame outwards.
func Compose(ts ...Transform) Transform {
	out := Identity()
	for _, t := range ts {
		out = compose2(out, t)
	}
	return out
}

func compose2(a, b Transform) Transform {
	return Transform{
		Rot:   normalize(quat.Mul(a.Rot, b.Rot)),
		Trans: r3.Add(a.rotate(b.Trans), a.Trans),
	}
}

// Inverse returns the transform that undoes t.
func (t Transform) Inverse() Transform {
	inv := quat.Conj(t.Rot)
	back := Transform{Rot: inv}
	return Transform{
		Rot:   inv,
		Trans: r3.Scale(-1, back.rotate(t.Trans)),
	}
}

// Apply maps a point from the transform's child frame into its parent frame.
func (t Transform) Apply(p Point) Point {
	return r3.Add(t.rotate(p), t.Trans)
}

// Position is the translation part, i.e. the child frame origin in the parent frame.
func (t Transform) Position() Point {
	return t.Trans
}

// Valid reports whether the rotation part is a usable unit quaternion.
func (t Transform) Valid() bool {
	n := quat.Abs(t.Rot)
	return !math.IsNaN(n) && math.Abs(n-1) < orthonormalTolerance
}

func (t Transform) rotate(p r3.Vec) r3.Vec {
	return r3.Rotation(t.Rot).Rotate(p)
}

// Matrix expands t into its 3x4 homogeneous form.
func (t Transform) Matrix() Matrix {
	w, x, y, z := t.Rot.Real, t.Rot.Imag, t.Rot.Jmag, t.Rot.Kmag
	return Matrix{
		{1 - 2*(y*y+z*z), 2 * (x*y - z*w), 2 * (x*z + y*w), t.Trans.X},
		{2 * (x*y + z*w), 1 - 2*(x*x+z*z), 2 * (y*z - x*w), t.Trans.Y},
		{2 * (x*z - y*w), 2 * (y*z + x*w), 1 - 2*(x*x+y*y), t.Trans.Z},
	}
}

// FromMatrix converts a 3x4 homogeneous matrix into a Transform. The rotation
// block must be orthonormal with determinant 1.
func FromMatrix(m Matrix) (Transform, error) {
	if err := checkRotation(m); err != nil {
		return Transform{}, err
	}

	var q quat.Number
	trace := m[0][0] + m[1][1] + m[2][2]
	switch {
	case trace > 0:
		s := 2 * math.Sqrt(trace+1)
		q = quat.Number{
			Real: s / 4,
			Imag: (m[2][1] - m[1][2]) / s,
			Jmag: (m[0][2] - m[2][0]) / s,
			Kmag: (m[1][0] - m[0][1]) / s,
		}
	case m[0][0] > m[1][1] && m[0][0] > m[2][2]:
		s := 2 * math.Sqrt(1+m[0][0]-m[1][1]-m[2][2])
		q = quat.Number{
			Real: (m[2][1] - m[1][2]) / s,
			Imag: s / 4,
			Jmag: (m[0][1] + m[1][0]) / s,
			Kmag: (m[0][2] + m[2][0]) / s,
		}
	case m[1][1] > m[2][2]:
		s := 2 * math.Sqrt(1+m[1][1]-m[0][0]-m[2][2])
		q = quat.Number{
			Real: (m[0][2] - m[2][0]) / s,
			Imag: (m[0][1] + m[1][0]) / s,
			Jmag: s / 4,
			Kmag: (m[1][2] + m[2][1]) / s,
		}
	default:
		s := 2 * math.Sqrt(1+m[2][2]-m[0][0]-m[1][1])
		q = quat.Number{
			Real: (m[1][0] - m[0][1]) / s,
			Imag: (m[0][2] + m[2][0]) / s,
			Jmag: (m[1][2] + m[2][1]) / s,
			Kmag: s / 4,
		}
	}

	return Transform{
		Rot:   normalize(q),
		Trans: r3.Vec{X: m[0][3], Y: m[1][3], Z: m[2][3]},
	}, nil
}

func checkRotation(m Matrix) error {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			dot := m[0][i]*m[0][j] + m[1][i]*m[1][j] + m[2][i]*m[2][j]
			want := 0.0
			if i == j {
				want = 1
			}
			if math.Abs(dot-want) > orthonormalTolerance {
				return fmt.Errorf("%w: rotation columns %d and %d are not orthonormal", ErrNotRigid, i, j)
			}
		}
	}
	det := m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
	if math.Abs(det-1) > orthonormalTolerance {
		return fmt.Errorf("%w: determinant is %g", ErrNotRigid, det)
	}
	return nil
}

// ApproxEqual compares two transforms element-wise on their matrix form, so
// that q and -q (the same rotation) compare equal.
func ApproxEqual(a, b Transform, tol float64) bool {
	ma, mb := a.Matrix(), b.Matrix()
	for i := range ma {
		for j := range ma[i] {
			if math.Abs(ma[i][j]-mb[i][j]) > tol {
				return false
			}
		}
	}
	return true
}

func normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 || math.IsNaN(n) {
		return q
	}
	// Keep the scalar part non-negative so equal rotations share a representation.
	if q.Real < 0 {
		n = -n
	}
	return quat.Scale(1/n, q)
}

// Deg converts degrees to radians.
func Deg(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// ToDeg converts radians to degrees.
func ToDeg(radians float64) float64 {
	return radians * 180 / math.Pi
}

// RPY returns the roll, pitch and yaw of t in radians, in the convention of
// FromRPY. At pitch ±90° roll is reported as zero.
func (t Transform) RPY() (roll, pitch, yaw float64) {
	m := t.Matrix()
	sp := -m[2][0]
	if sp > 1 {
		sp = 1
	} else if sp < -1 {
		sp = -1
	}
	pitch = math.Asin(sp)
	if math.Abs(sp) > 1-1e-9 {
		return 0, pitch, math.Atan2(-m[0][1], m[1][1])
	}
	return math.Atan2(m[2][1], m[2][2]), pitch, math.Atan2(m[1][0], m[0][0])
}
