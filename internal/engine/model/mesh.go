package model

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/lodestone/internal/engine/gpu"
	"github.com/Faultbox/lodestone/internal/engine/material"
)

// LOD is one index buffer over a mesh's vertices. Threshold is the
// fraction of the full-detail index count it was generated for.
type LOD struct {
	Indices   *gpu.IndexBuffer
	Threshold float32
}

// BoundingBox is a center and non-negative half extents.
type BoundingBox struct {
	Center  mgl32.Vec3
	Extents mgl32.Vec3
}

// NewBoundingBox builds a box from corners. Swapped corners still yield
// non-negative extents.
func NewBoundingBox(box AABB) BoundingBox {
	half := box.Max.Sub(box.Min).Mul(0.5)
	return BoundingBox{
		Center:  box.Min.Add(box.Max).Mul(0.5),
		Extents: mgl32.Vec3{math32.Abs(half[0]), math32.Abs(half[1]), math32.Abs(half[2])},
	}
}

// Min returns the lower corner.
func (b BoundingBox) Min() mgl32.Vec3 { return b.Center.Sub(b.Extents) }

// Max returns the upper corner.
func (b BoundingBox) Max() mgl32.Vec3 { return b.Center.Add(b.Extents) }

// Radius returns the radius of the bounding sphere.
func (b BoundingBox) Radius() float32 { return b.Extents.Len() }

// Union returns the smallest box containing b and o.
func (b BoundingBox) Union(o BoundingBox) BoundingBox {
	bmin, bmax := b.Min(), b.Max()
	omin, omax := o.Min(), o.Max()
	var box AABB
	for i := 0; i < 3; i++ {
		box.Min[i] = min(bmin[i], omin[i])
		box.Max[i] = max(bmax[i], omax[i])
	}
	return NewBoundingBox(box)
}

// Mesh is one sub-mesh on the GPU. LODs[0] is always full detail.
type Mesh struct {
	Name     string
	Vertices *gpu.VertexBuffer
	LODs     []LOD
	Bounds   BoundingBox
}

// Release frees the mesh's device buffers.
func (m *Mesh) Release() {
	if m.Vertices != nil {
		m.Vertices.Release()
	}
	for _, lod := range m.LODs {
		lod.Indices.Release()
	}
}

// Restore re-uploads the mesh after a device reset.
func (m *Mesh) Restore() error {
	if err := m.Vertices.Restore(); err != nil {
		return err
	}
	for _, lod := range m.LODs {
		if err := lod.Indices.Restore(); err != nil {
			return err
		}
	}
	return nil
}

// SelectLOD picks the coarsest LOD whose threshold still covers coverage,
// the fraction of the screen the mesh spans. Coverage >= 1 selects full detail.
func SelectLOD(m *Mesh, coverage float32) *LOD {
	sel := &m.LODs[0]
	for i := 1; i < len(m.LODs); i++ {
		if m.LODs[i].Threshold < coverage {
			break
		}
		sel = &m.LODs[i]
	}
	return sel
}

// MaterialMeshes groups meshes sharing one material.
type MaterialMeshes struct {
	Material *material.Material
	Meshes   []*Mesh
}
