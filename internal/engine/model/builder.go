package model

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/Faultbox/lodestone/internal/engine/gpu"
	"github.com/Faultbox/lodestone/internal/engine/material"
	"github.com/Faultbox/lodestone/internal/engine/tasks"
	"github.com/Faultbox/lodestone/internal/logger"
)

// DefaultThresholds are the LOD retention fractions below full detail.
var DefaultThresholds = []float32{0.8, 0.5, 0.3, 0.1}

// Builder turns scenes into GPU meshes grouped by material.
type Builder struct {
	Device   gpu.Device
	Resolver MaterialResolver
	// Thresholds lists retention fractions in (0,1), descending.
	Thresholds []float32
	// Pool runs per-mesh CPU work. Nil runs it on the caller.
	Pool *tasks.Pool
}

// prepared is the CPU side of one mesh, ready for upload.
type prepared struct {
	name     string
	vertices []gpu.MeshVertex
	lods     [][]uint32
	levels   []float32
	bounds   BoundingBox
	material int
}

// Build prepares every sub-mesh on the pool, then uploads and resolves
// materials on the calling goroutine. On error nothing stays allocated on
// the device.
func (b *Builder) Build(ctx context.Context, modelPath string, scene *Scene) ([]MaterialMeshes, error) {
	thresholds := b.Thresholds
	if thresholds == nil {
		thresholds = DefaultThresholds
	}

	preps, err := tasks.Map(ctx, b.Pool, scene.Meshes, func(_ context.Context, raw RawMesh) (*prepared, error) {
		return prepare(&raw, thresholds), nil
	})
	if err != nil {
		return nil, fmt.Errorf("preparing %s: %w", modelPath, err)
	}

	var (
		groups []MaterialMeshes
		byMat  = make(map[*material.Material]int)
		built  []*Mesh
	)
	fail := func(err error) ([]MaterialMeshes, error) {
		for _, m := range built {
			m.Release()
		}
		return nil, err
	}

	for _, p := range preps {
		if p == nil {
			continue
		}

		var raw *RawMaterial
		if p.material >= 0 && p.material < len(scene.Materials) {
			raw = &scene.Materials[p.material]
		}
		mat, err := b.Resolver.Resolve(modelPath, raw)
		if err != nil {
			logger.Warn("could not resolve material, skipping mesh",
				zap.String("model", modelPath),
				zap.String("mesh", p.name),
				zap.Error(err),
			)
			continue
		}

		mesh, err := b.upload(p)
		if err != nil {
			return fail(fmt.Errorf("uploading %s/%s: %w", modelPath, p.name, err))
		}
		built = append(built, mesh)

		i, ok := byMat[mat]
		if !ok {
			i = len(groups)
			byMat[mat] = i
			groups = append(groups, MaterialMeshes{Material: mat})
		}
		groups[i].Meshes = append(groups[i].Meshes, mesh)
	}

	logger.Debug("model built",
		zap.String("model", modelPath),
		zap.Int("meshes", len(built)),
		zap.Int("materials", len(groups)),
	)
	return groups, nil
}

func (b *Builder) upload(p *prepared) (*Mesh, error) {
	vb, err := gpu.NewVertexBuffer(b.Device, p.vertices, gpu.LayoutMesh, gpu.Immutable)
	if err != nil {
		return nil, err
	}
	mesh := &Mesh{Name: p.name, Vertices: vb, Bounds: p.bounds}
	for i, indices := range p.lods {
		ib, err := gpu.NewIndexBuffer(b.Device, indices, gpu.Immutable)
		if err != nil {
			mesh.Release()
			return nil, err
		}
		mesh.LODs = append(mesh.LODs, LOD{Indices: ib, Threshold: p.levels[i]})
	}
	return mesh, nil
}

// prepare extracts vertices, optimizes indices and generates LODs. Faces
// referencing missing vertices are dropped. It returns nil for meshes
// without valid triangles.
func prepare(raw *RawMesh, thresholds []float32) *prepared {
	if len(raw.Faces) == 0 || len(raw.Positions) == 0 {
		logger.Warn("skipping empty mesh", zap.String("mesh", raw.Name))
		return nil
	}

	vertices := make([]gpu.MeshVertex, len(raw.Positions))
	for i := range vertices {
		v := &vertices[i]
		v.Position = raw.Positions[i]
		if i < len(raw.Normals) {
			v.Normal = raw.Normals[i]
		}
		if i < len(raw.TexCoords) {
			v.TexCoord = raw.TexCoords[i]
		}
		if i < len(raw.Tangents) {
			v.Tangent = raw.Tangents[i]
		}
	}

	n := uint32(len(vertices))
	indices := make([]uint32, 0, len(raw.Faces)*3)
	dropped := 0
	for _, f := range raw.Faces {
		if f[0] >= n || f[1] >= n || f[2] >= n {
			dropped++
			continue
		}
		indices = append(indices, f[0], f[1], f[2])
	}
	if dropped > 0 {
		logger.Warn("dropping faces with out of range indices",
			zap.String("mesh", raw.Name),
			zap.Int("dropped", dropped),
			zap.Int("vertices", len(vertices)),
		)
	}
	if len(indices) == 0 {
		return nil
	}
	full := OptimizeVertexCache(indices, len(vertices))

	p := &prepared{
		name:     raw.Name,
		vertices: vertices,
		lods:     [][]uint32{full},
		levels:   []float32{1},
		bounds:   NewBoundingBox(raw.AABB),
		material: raw.MaterialIndex,
	}
	for _, t := range thresholds {
		target := int(math.Round(float64(len(full)) * float64(t)))
		lod := SimplifySloppy(full, raw.Positions, target)
		if len(lod) == 0 {
			continue
		}
		p.lods = append(p.lods, OptimizeVertexCache(lod, len(vertices)))
		p.levels = append(p.levels, t)
	}
	return p
}
