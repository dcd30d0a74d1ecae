// Package model turns imported scenes into GPU meshes with cache-optimized
// indices and generated levels of detail.
package model

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/lodestone/internal/engine/material"
)

// Scene is an imported model before GPU upload.
type Scene struct {
	Meshes    []RawMesh
	Materials []RawMaterial
}

// RawMaterial is a material as described by the source file.
type RawMaterial = material.Raw

// RawMesh is one triangulated sub-mesh. Optional attribute slices may be
// nil or shorter than Positions; missing values read as zero.
type RawMesh struct {
	Name      string
	Positions [][3]float32
	Normals   [][3]float32
	TexCoords [][2]float32
	Tangents  [][3]float32
	Faces     [][3]uint32

	MaterialIndex int
	AABB          AABB
}

// AABB is an axis-aligned box given by its corners.
type AABB struct {
	Min, Max mgl32.Vec3
}

// ComputeAABB returns the bounds of positions.
func ComputeAABB(positions [][3]float32) AABB {
	if len(positions) == 0 {
		return AABB{}
	}
	box := AABB{Min: positions[0], Max: positions[0]}
	for _, p := range positions[1:] {
		for i := 0; i < 3; i++ {
			box.Min[i] = min(box.Min[i], p[i])
			box.Max[i] = max(box.Max[i], p[i])
		}
	}
	return box
}

// SceneLoader reads a model file.
type SceneLoader interface {
	Load(path string) (*Scene, error)
}

// MaterialResolver maps an imported material to a shared material instance.
// raw is nil when the mesh references no material.
type MaterialResolver interface {
	Resolve(modelPath string, raw *RawMaterial) (*material.Material, error)
}
