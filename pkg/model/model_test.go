package model

import (
	"sync"
	"testing"

	"github.com/open-teleop/kinsim/pkg/transform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestRevoluteAtZeroIsIdentity(t *testing.T) {
	m, err := NewMotion(Revolute, 0, 0)
	require.NoError(t, err)
	assert.True(t, transform.ApproxEqual(LocalMotion(m, 0), transform.Identity(), 1e-12))
}

func TestRevoluteNinetyDegrees(t *testing.T) {
	m, err := NewMotion(Revolute, 0, 0)
	require.NoError(t, err)

	local := LocalMotion(m, 90)
	assert.True(t, transform.ApproxEqual(local, transform.RotZ(transform.Deg(90)), 1e-12))
	assert.InDelta(t, 0, r3.Norm(local.Position()), 1e-12)
}

func TestRevoluteLinearOffsetIsConstant(t *testing.T) {
	m := RevoluteMotion{LinearOffset: 25}
	for _, v := range []float64{0, 45, -170} {
		p := LocalMotion(m, v).Position()
		assert.InDelta(t, 25, p.Z, 1e-12)
		assert.InDelta(t, 0, p.X, 1e-12)
		assert.InDelta(t, 0, p.Y, 1e-12)
	}
}

func TestPrismaticIsPureTranslation(t *testing.T) {
	m, err := NewMotion(Prismatic, 0, 0)
	require.NoError(t, err)

	for _, v := range []float64{0, 12.5, -40} {
		local := LocalMotion(m, v)
		assert.True(t, transform.ApproxEqual(local, transform.TransZ(v), 1e-12))
		assert.InDelta(t, abs(v), r3.Norm(local.Position()), 1e-12)
	}
}

func TestPrismaticAngularOffset(t *testing.T) {
	local := LocalMotion(PrismaticMotion{AngularOffset: 90, LinearOffset: 5}, 10)
	want := transform.Compose(transform.RotZ(transform.Deg(90)), transform.TransZ(15))
	assert.True(t, transform.ApproxEqual(local, want, 1e-12))
}

func TestNewMotionRejectsUnknownType(t *testing.T) {
	_, err := NewMotion(JointType(7), 0, 0)
	require.Error(t, err)
}

func TestParseJointType(t *testing.T) {
	jt, err := ParseJointType(" Revolute ")
	require.NoError(t, err)
	assert.Equal(t, Revolute, jt)

	jt, err = ParseJointType("prismatic")
	require.NoError(t, err)
	assert.Equal(t, Prismatic, jt)

	_, err = ParseJointType("spherical")
	require.Error(t, err)
}

func TestValueCellKeepsLatest(t *testing.T) {
	c := NewValueCell(0, nil)
	for i := 1; i <= 100; i++ {
		require.NoError(t, c.Put(float64(i)))
	}

	v, ok := c.Take()
	require.True(t, ok)
	assert.Equal(t, 100.0, v)

	_, ok = c.Take()
	assert.False(t, ok, "cell must be empty after a take")
	assert.Equal(t, uint64(100), c.Drops())
}

func TestValueCellSeededWithInitialValue(t *testing.T) {
	c := NewValueCell(12, nil)
	v, ok := c.Take()
	require.True(t, ok)
	assert.Equal(t, 12.0, v)
}

func TestValueCellClampsToLimits(t *testing.T) {
	c := NewValueCell(0, &Limits{Min: -10, Max: 10})
	assert.ErrorIs(t, c.Put(25), ErrLimitClamped)
	v, _ := c.Take()
	assert.Equal(t, 10.0, v)

	assert.ErrorIs(t, c.Put(-25), ErrLimitClamped)
	v, _ = c.Take()
	assert.Equal(t, -10.0, v)

	assert.NoError(t, c.Put(3))
	v, _ = c.Take()
	assert.Equal(t, 3.0, v)
}

func TestValueCellConcurrentProducers(t *testing.T) {
	c := NewValueCell(0, nil)
	c.Take()

	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				_ = c.Put(float64(p))
			}
		}(p)
	}
	wg.Wait()

	assert.Equal(t, uint64(8001), c.Puts())
	_, ok := c.Take()
	assert.True(t, ok)
	assert.False(t, c.Pending())
}

func TestPoseCellLatest(t *testing.T) {
	c := NewPoseCell(3)
	_, ok := c.Latest()
	assert.False(t, ok)

	c.Publish(transform.TransZ(1))
	seq := c.Publish(transform.TransZ(2))

	p, ok := c.Latest()
	require.True(t, ok)
	assert.Equal(t, uint64(2), seq)
	assert.Equal(t, seq, p.Seq)
	assert.Equal(t, 3, p.Body)
	assert.InDelta(t, 2, p.Transform.Trans.Z, 1e-12)
}

func TestMateTouches(t *testing.T) {
	m := &Mate{Bearing: Endpoint{Body: 1, Joint: 2}, Shaft: Endpoint{Body: 4, Joint: 0}}

	self, other, ok := m.Touches(4)
	require.True(t, ok)
	assert.Equal(t, Endpoint{Body: 4, Joint: 0}, self)
	assert.Equal(t, Endpoint{Body: 1, Joint: 2}, other)

	_, _, ok = m.Touches(9)
	assert.False(t, ok)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
