package model

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/lodestone/internal/assets"
	"github.com/Faultbox/lodestone/internal/logger"
)

// Resource is a model file and the meshes built from it.
type Resource struct {
	path    string
	loader  SceneLoader
	builder *Builder
	meshes  []MaterialMeshes
}

// NewResource creates an empty resource. Call Reimport to build it.
func NewResource(path string, loader SceneLoader, builder *Builder) *Resource {
	return &Resource{path: path, loader: loader, builder: builder}
}

func (r *Resource) Type() assets.Type { return assets.TypeModel }
func (r *Resource) Path() string      { return r.path }

// Meshes returns the current material groups.
func (r *Resource) Meshes() []MaterialMeshes { return r.meshes }

// Reimport loads and rebuilds the model. The previous meshes are replaced
// only when the whole rebuild succeeds.
func (r *Resource) Reimport(ctx context.Context) error {
	scene, err := r.loader.Load(r.path)
	if err != nil {
		return fmt.Errorf("importing %s: %w", r.path, err)
	}
	meshes, err := r.builder.Build(ctx, r.path, scene)
	if err != nil {
		return err
	}

	old := r.meshes
	r.meshes = meshes
	releaseGroups(old)
	logger.Info("model imported", zap.String("path", r.path), zap.Int("materials", len(meshes)))
	return nil
}

// IsTransparent reports whether any material needs alpha blending.
func (r *Resource) IsTransparent() bool {
	for _, g := range r.meshes {
		if g.Material != nil && g.Material.IsTransparent() {
			return true
		}
	}
	return false
}

// Bounds returns the union of all mesh bounds. ok is false when empty.
func (r *Resource) Bounds() (box BoundingBox, ok bool) {
	for _, g := range r.meshes {
		for _, m := range g.Meshes {
			if !ok {
				box, ok = m.Bounds, true
				continue
			}
			box = box.Union(m.Bounds)
		}
	}
	return box, ok
}

// Restore re-uploads every mesh from its retained data after a device
// reset. The model file is not read again.
func (r *Resource) Restore() error {
	for _, g := range r.meshes {
		for _, m := range g.Meshes {
			if err := m.Restore(); err != nil {
				return fmt.Errorf("restoring %s: %w", r.path, err)
			}
		}
	}
	return nil
}

// Release frees all device buffers.
func (r *Resource) Release() {
	releaseGroups(r.meshes)
	r.meshes = nil
}

func releaseGroups(groups []MaterialMeshes) {
	for _, g := range groups {
		for _, m := range g.Meshes {
			m.Release()
		}
	}
}
