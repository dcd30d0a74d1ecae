package render

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/lodestone/internal/engine/gpu"
)

// Debug primitive resolution.
const (
	SphereSegments = 16
	ConeSegments   = 16
	coneApexEdges  = 4
)

// DefaultLineCapacity is the number of endpoints reserved up front.
const DefaultLineCapacity = 1000

// LineBatch collects debug line segments for one frame and draws them
// with a single indexed draw.
type LineBatch struct {
	dev      gpu.Device
	vertices []gpu.LineVertex
	indices  []uint32
	vb       *gpu.VertexBuffer
	ib       *gpu.IndexBuffer
}

// NewLineBatch reserves room for capacity endpoints.
func NewLineBatch(dev gpu.Device, capacity int) *LineBatch {
	if capacity <= 0 {
		capacity = DefaultLineCapacity
	}
	return &LineBatch{
		dev:      dev,
		vertices: make([]gpu.LineVertex, 0, capacity),
		indices:  make([]uint32, 0, capacity),
	}
}

// Add appends one segment.
func (b *LineBatch) Add(from, to mgl32.Vec3, color mgl32.Vec4) {
	base := uint32(len(b.vertices))
	b.vertices = append(b.vertices,
		gpu.LineVertex{Position: from, Color: color},
		gpu.LineVertex{Position: to, Color: color},
	)
	b.indices = append(b.indices, base, base+1)
}

// Len returns the number of segments.
func (b *LineBatch) Len() int { return len(b.indices) / 2 }

// Endpoints returns the number of endpoints.
func (b *LineBatch) Endpoints() int { return len(b.vertices) }

// Capacity returns the reserved endpoint capacity.
func (b *LineBatch) Capacity() int { return cap(b.vertices) }

// Clear drops all segments, keeping capacity.
func (b *LineBatch) Clear() {
	b.vertices = b.vertices[:0]
	b.indices = b.indices[:0]
}

// Flush uploads the segments, issues one line draw with whatever program
// and state are bound, and clears the batch.
func (b *LineBatch) Flush() error {
	defer b.Clear()
	if len(b.indices) == 0 {
		return nil
	}
	if err := b.upload(); err != nil {
		return err
	}
	b.vb.Bind()
	b.ib.Bind()
	b.dev.DrawIndexed(gpu.Lines, len(b.indices), 0)
	return nil
}

func (b *LineBatch) upload() error {
	if b.vb == nil {
		vb, err := gpu.NewVertexBuffer(b.dev, b.vertices, gpu.LayoutLine, gpu.Dynamic)
		if err != nil {
			return fmt.Errorf("line vertices: %w", err)
		}
		ib, err := gpu.NewIndexBuffer(b.dev, b.indices, gpu.Dynamic)
		if err != nil {
			vb.Release()
			return fmt.Errorf("line indices: %w", err)
		}
		b.vb, b.ib = vb, ib
		return nil
	}
	if err := gpu.UpdateVertexBuffer(b.vb, b.vertices); err != nil {
		return fmt.Errorf("line vertices: %w", err)
	}
	if err := b.ib.Update(b.indices); err != nil {
		return fmt.Errorf("line indices: %w", err)
	}
	return nil
}

// Restore re-creates the device buffers after a device reset.
func (b *LineBatch) Restore() error {
	if b.vb == nil {
		return nil
	}
	if err := b.vb.Restore(); err != nil {
		return err
	}
	return b.ib.Restore()
}

// Release frees the device buffers.
func (b *LineBatch) Release() {
	if b.vb != nil {
		b.vb.Release()
		b.ib.Release()
		b.vb, b.ib = nil, nil
	}
}

// AddBox appends the 12 edges of the box min..max transformed by m.
func (b *LineBatch) AddBox(m mgl32.Mat4, lo, hi mgl32.Vec3, color mgl32.Vec4) {
	var c [8]mgl32.Vec3
	for i := range c {
		p := lo
		if i&1 != 0 {
			p[0] = hi[0]
		}
		if i&2 != 0 {
			p[1] = hi[1]
		}
		if i&4 != 0 {
			p[2] = hi[2]
		}
		c[i] = mgl32.TransformCoordinate(p, m)
	}
	edges := [12][2]int{
		// bottom
		{0, 1}, {1, 5}, {5, 4}, {4, 0},
		// top
		{2, 3}, {3, 7}, {7, 6}, {6, 2},
		// vertical
		{0, 2}, {1, 3}, {5, 7}, {4, 6},
	}
	for _, e := range edges {
		b.Add(c[e[0]], c[e[1]], color)
	}
}

// AddSphere appends three great circles around center.
func (b *LineBatch) AddSphere(center mgl32.Vec3, radius float32, color mgl32.Vec4) {
	for axis := 0; axis < 3; axis++ {
		prev := circlePoint(axis, 0, radius).Add(center)
		for i := 1; i <= SphereSegments; i++ {
			next := circlePoint(axis, float32(i)/SphereSegments, radius).Add(center)
			b.Add(prev, next, color)
			prev = next
		}
	}
}

// AddCone appends a cone with its base circle at the origin of m in the
// XZ plane and its apex height units up the Y axis.
func (b *LineBatch) AddCone(m mgl32.Mat4, height, radius float32, color mgl32.Vec4) {
	var base [ConeSegments]mgl32.Vec3
	for i := range base {
		base[i] = mgl32.TransformCoordinate(circlePoint(1, float32(i)/ConeSegments, radius), m)
	}
	for i := range base {
		b.Add(base[i], base[(i+1)%ConeSegments], color)
	}
	apex := mgl32.TransformCoordinate(mgl32.Vec3{0, height, 0}, m)
	for i := 0; i < coneApexEdges; i++ {
		b.Add(apex, base[i*ConeSegments/coneApexEdges], color)
	}
}

// circlePoint returns the point at fraction t of a circle perpendicular to axis.
func circlePoint(axis int, t, radius float32) mgl32.Vec3 {
	s, c := math32.Sincos(2 * math32.Pi * t)
	s, c = s*radius, c*radius
	switch axis {
	case 0:
		return mgl32.Vec3{0, c, s}
	case 1:
		return mgl32.Vec3{c, 0, s}
	}
	return mgl32.Vec3{c, s, 0}
}
