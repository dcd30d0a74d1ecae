package camera

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func lens() Lens {
	return Lens{FOV: mgl32.DegToRad(60), Near: 0.1, Far: 100, Width: 1600, Height: 900}
}

func TestLens(t *testing.T) {
	l := lens()
	assert.InDelta(t, 16.0/9.0, l.AspectRatio(), 1e-6)

	l.Resize(0, 0)
	assert.Equal(t, float32(1), l.AspectRatio())
}

func TestFixedLooksAtTarget(t *testing.T) {
	c := NewFixed(lens(), mgl32.Vec3{0, 0, 5}, mgl32.Vec3{})
	var _ Camera = c

	// Target ends up straight ahead (-Z in view space).
	p := c.View().Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	assert.InDelta(t, 0, p.X(), 1e-5)
	assert.InDelta(t, -5, p.Z(), 1e-5)
	assert.Equal(t, mgl32.Vec3{0, 0, 5}, c.Position())
}

func TestOrbit(t *testing.T) {
	c := NewOrbit(lens())
	var _ Camera = c
	c.RotationX = 0
	c.Distance = 4
	c.Center = mgl32.Vec3{1, 0, 0}

	assert.True(t, c.Position().ApproxEqualThreshold(mgl32.Vec3{1, 0, 4}, 1e-5))

	c.HandleDrag(0, 1e6)
	assert.Equal(t, c.MaxPitch, c.RotationX)

	c.HandleZoom(100)
	assert.Equal(t, c.MinDistance, c.Distance)
}

func TestOrbitFitToBounds(t *testing.T) {
	c := NewOrbit(lens())
	c.FitToBounds(mgl32.Vec3{0, 2, 0}, 10)

	assert.Equal(t, mgl32.Vec3{0, 2, 0}, c.Center)
	assert.InDelta(t, 20, c.Distance, 1e-3)
	assert.GreaterOrEqual(t, c.Far, c.Distance+10)
}
