// Package camera provides camera implementations for 3D rendering.
package camera

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Camera is what the renderer reads each frame.
type Camera interface {
	View() mgl32.Mat4
	Projection() mgl32.Mat4
	AspectRatio() float32
	Position() mgl32.Vec3
}

// Lens is a perspective projection.
type Lens struct {
	FOV           float32 // vertical, radians
	Near, Far     float32
	Width, Height int
}

// AspectRatio returns width over height. A zero height yields 1.
func (l *Lens) AspectRatio() float32 {
	if l.Height <= 0 || l.Width <= 0 {
		return 1
	}
	return float32(l.Width) / float32(l.Height)
}

// Projection returns the perspective matrix.
func (l *Lens) Projection() mgl32.Mat4 {
	return mgl32.Perspective(l.FOV, l.AspectRatio(), l.Near, l.Far)
}

// Resize updates the viewport size.
func (l *Lens) Resize(width, height int) {
	l.Width, l.Height = width, height
}

// Fixed looks from Eye at Target.
type Fixed struct {
	Lens
	Eye, Target, Up mgl32.Vec3
}

// NewFixed creates a camera at eye looking at target.
func NewFixed(lens Lens, eye, target mgl32.Vec3) *Fixed {
	return &Fixed{Lens: lens, Eye: eye, Target: target, Up: mgl32.Vec3{0, 1, 0}}
}

func (c *Fixed) View() mgl32.Mat4       { return mgl32.LookAtV(c.Eye, c.Target, c.Up) }
func (c *Fixed) Position() mgl32.Vec3   { return c.Eye }
func (c *Fixed) AspectRatio() float32   { return c.Lens.AspectRatio() }
func (c *Fixed) Projection() mgl32.Mat4 { return c.Lens.Projection() }

// Orbit orbits around a center point.
type Orbit struct {
	Lens

	// Center point to orbit around
	Center mgl32.Vec3

	// Spherical coordinates
	Distance  float32 // Distance from center
	RotationX float32 // Pitch (vertical angle, radians)
	RotationY float32 // Yaw (horizontal angle, radians)

	// Constraints
	MinDistance float32
	MaxDistance float32
	MinPitch    float32
	MaxPitch    float32

	// Sensitivity
	DragSensitivity float32
	ZoomSensitivity float32
}

// NewOrbit creates an orbit camera with default settings.
func NewOrbit(lens Lens) *Orbit {
	return &Orbit{
		Lens:            lens,
		Distance:        10.0,
		RotationX:       0.5,
		MinDistance:     0.5,
		MaxDistance:     500.0,
		MinPitch:        -1.5,
		MaxPitch:        1.5,
		DragSensitivity: 0.005,
		ZoomSensitivity: 0.1,
	}
}

// Position returns the camera position in world space.
func (c *Orbit) Position() mgl32.Vec3 {
	sx, cx := math32.Sincos(c.RotationX)
	sy, cy := math32.Sincos(c.RotationY)
	return c.Center.Add(mgl32.Vec3{cx * sy, sx, cx * cy}.Mul(c.Distance))
}

func (c *Orbit) View() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position(), c.Center, mgl32.Vec3{0, 1, 0})
}

func (c *Orbit) AspectRatio() float32   { return c.Lens.AspectRatio() }
func (c *Orbit) Projection() mgl32.Mat4 { return c.Lens.Projection() }

// HandleDrag updates rotation based on mouse drag delta.
func (c *Orbit) HandleDrag(deltaX, deltaY float32) {
	c.RotationY -= deltaX * c.DragSensitivity
	c.RotationX = mgl32.Clamp(c.RotationX+deltaY*c.DragSensitivity, c.MinPitch, c.MaxPitch)
}

// HandleZoom updates distance based on scroll wheel delta.
func (c *Orbit) HandleZoom(delta float32) {
	c.Distance = mgl32.Clamp(c.Distance-delta*c.Distance*c.ZoomSensitivity, c.MinDistance, c.MaxDistance)
}

// FitToBounds centers the camera on a box and backs off until the whole
// box fits the vertical field of view.
func (c *Orbit) FitToBounds(center mgl32.Vec3, radius float32) {
	c.Center = center
	d := radius / math32.Sin(c.FOV/2)
	c.Distance = mgl32.Clamp(d, c.MinDistance, max(c.MaxDistance, d))
	c.RotationX = 0.5
	c.RotationY = 0
	if c.Far < c.Distance+radius {
		c.Far = c.Distance + radius*2
	}
}
