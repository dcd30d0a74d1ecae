package render

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/lodestone/internal/engine/gpu"
	"github.com/Faultbox/lodestone/internal/engine/model"
)

var errNoMeshes = errors.New("model has no meshes")

// ModelRenderable draws a model resource, choosing an LOD per mesh from
// the screen coverage of its bounding sphere.
type ModelRenderable struct {
	Resource *model.Resource
	Hidden   bool
	// Override, when set, replaces the accumulated transform.
	Override *mgl32.Mat4
	// ForceLOD, when >= 0, selects a fixed LOD index instead of coverage.
	ForceLOD int

	pushed bool
}

// NewModelRenderable returns a visible renderable with automatic LOD.
func NewModelRenderable(res *model.Resource) *ModelRenderable {
	return &ModelRenderable{Resource: res, ForceLOD: -1}
}

// Pass returns the alpha pass for transparent models, else the main pass.
func (r *ModelRenderable) Pass() Pass {
	if r.Resource.IsTransparent() {
		return PassAlpha
	}
	return PassMain
}

func (r *ModelRenderable) IsVisible() bool { return !r.Hidden }

func (r *ModelRenderable) PreRender(s *System) error {
	if len(r.Resource.Meshes()) == 0 {
		return errNoMeshes
	}
	if r.Override != nil {
		s.Stack().PushOverride(*r.Override)
		r.pushed = true
	}
	return nil
}

func (r *ModelRenderable) Render(s *System) error {
	world := s.Stack().Top()
	view := s.Camera().View()
	proj := s.Camera().Projection()
	dev := s.Device()

	for _, group := range r.Resource.Meshes() {
		if err := s.BindMaterial(group.Material); err != nil {
			return fmt.Errorf("%s: %w", r.Resource.Path(), err)
		}
		for _, mesh := range group.Meshes {
			lod := r.lod(mesh, world, view, proj)
			mesh.Vertices.Bind()
			lod.Indices.Bind()
			dev.DrawIndexed(gpu.Triangles, lod.Indices.Count(), 0)
		}
	}
	return nil
}

func (r *ModelRenderable) PostRender(s *System) {
	if r.pushed {
		s.Stack().Pop()
		r.pushed = false
	}
}

func (r *ModelRenderable) lod(m *model.Mesh, world, view, proj mgl32.Mat4) *model.LOD {
	if r.ForceLOD >= 0 {
		return &m.LODs[min(r.ForceLOD, len(m.LODs)-1)]
	}
	return model.SelectLOD(m, Coverage(m.Bounds, world, view, proj))
}

// Coverage estimates the fraction of the viewport height covered by the
// box's bounding sphere. A camera inside the sphere yields 1.
func Coverage(b model.BoundingBox, world, view, proj mgl32.Mat4) float32 {
	center := view.Mul4(world).Mul4x1(b.Center.Vec4(1))
	scale := math32.Max(world.Col(0).Vec3().Len(), math32.Max(world.Col(1).Vec3().Len(), world.Col(2).Vec3().Len()))
	radius := b.Radius() * scale
	depth := -center.Z()
	if depth <= radius {
		return 1
	}
	return math32.Min(radius*proj.At(1, 1)/depth, 1)
}

// BoundsRenderable draws the bounding boxes of a model's meshes as debug
// lines in the editor pass.
type BoundsRenderable struct {
	Resource *model.Resource
	Color    mgl32.Vec4
	Hidden   bool
}

func (r *BoundsRenderable) Pass() Pass              { return PassEditor }
func (r *BoundsRenderable) IsVisible() bool         { return !r.Hidden }
func (r *BoundsRenderable) PreRender(*System) error { return nil }
func (r *BoundsRenderable) PostRender(*System)      {}

func (r *BoundsRenderable) Render(s *System) error {
	world := s.Stack().Top()
	for _, group := range r.Resource.Meshes() {
		for _, mesh := range group.Meshes {
			s.SubmitBox(world, mesh.Bounds.Min(), mesh.Bounds.Max(), r.Color)
		}
	}
	return nil
}
